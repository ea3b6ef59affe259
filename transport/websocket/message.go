package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

const (
	actionConnect = "connect"
	actionNewGame = "game:new"
	actionJoin    = "game:join"
	actionStart   = "game:start"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Payload struct {
	Player *entity.Player `json:"player,omitempty"`
	Room   *Room          `json:"room,omitempty"`
	Match  *MatchInfo     `json:"match,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Room is a private waiting room; the host waits there until someone joins by id.
type Room struct {
	ID       string `json:"id,omitempty"`
	GridSize int    `json:"grid_size,omitempty"`
}

type MatchInfo struct {
	ID         string `json:"id"`
	Mark       string `json:"mark"`
	OpponentID string `json:"opponent_id"`
	GridSize   int    `json:"grid_size"`
}

func encodeMessage(action string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	data, err := json.Marshal(Message{Action: action, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}

// decodePayload - an absent payload leaves v untouched.
func decodePayload(msg *Message, v any) error {
	if len(msg.Payload) == 0 {
		return nil
	}

	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return nil
}
