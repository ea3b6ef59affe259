package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/match"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSendTimeout   = errors.New("send buffer is full")
)

// Session is one client connection. It is the match.Participant the match engine talks to.
type Session struct {
	logger *slog.Logger
	conn   *websocket.Conn

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	playerID string
	listener match.Listener
	pairing  bool
}

func newSession(logger *slog.Logger, conn *websocket.Conn) *Session {
	return &Session{
		logger: logger.With("remote", conn.RemoteAddr().String()),
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
}

// ID returns the player id, empty until the client has sent connect.
func (that *Session) ID() string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.playerID
}

func (that *Session) setPlayerID(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.playerID = id
}

func (that *Session) SetMatchListener(listener match.Listener) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.listener = listener
}

func (that *Session) matchListener() match.Listener {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.listener
}

// reserve - claims the session for a match being created. It fails for a closed session
// or one that is already paired or playing.
func (that *Session) reserve() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.pairing || that.listener != nil || !that.IsActive() {
		return false
	}

	that.pairing = true

	return true
}

func (that *Session) release() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.pairing = false
}

// busy - the session is in a match or being paired into one.
func (that *Session) busy() bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.pairing || that.listener != nil
}

func (that *Session) IsActive() bool {
	select {
	case <-that.closed:
		return false
	default:
		return true
	}
}

func (that *Session) Send(ctx context.Context, kind entity.MessageKind, payload any) error {
	return that.sendAction(ctx, string(kind), payload)
}

// sendAction - queues a message for the write pump, waiting at most writeWait for buffer space.
func (that *Session) sendAction(ctx context.Context, action string, payload any) error {
	if !that.IsActive() {
		return ErrSessionClosed
	}

	data, err := encodeMessage(action, payload)
	if err != nil {
		return err
	}

	timer := time.NewTimer(writeWait)
	defer timer.Stop()

	select {
	case that.send <- data:
		return nil
	case <-that.closed:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrSendTimeout
	}
}

func (that *Session) sendError(ctx context.Context, action, errorMsg string) {
	if err := that.sendAction(ctx, action, Payload{Error: errorMsg}); err != nil {
		that.logger.Error("failed to send error response", "action", action, "error", err)
	}
}

func (that *Session) close() {
	that.closeOnce.Do(func() {
		close(that.closed)
	})
}

// readPump - reads messages until the connection fails or closes.
func (that *Session) readPump(ctx context.Context, dispatch func(ctx context.Context, session *Session, msg *Message)) {
	log := that.logger.With("method", "readPump")

	that.conn.SetReadLimit(maxMessageSize)
	_ = that.conn.SetReadDeadline(time.Now().Add(pongWait))
	that.conn.SetPongHandler(func(string) error {
		return that.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := that.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection closed unexpectedly", "error", err)
			}

			return
		}

		var msg Message
		if err = json.Unmarshal(data, &msg); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		dispatch(ctx, that, &msg)
	}
}

// writePump - the only goroutine writing to the connection.
func (that *Session) writePump() {
	log := that.logger.With("method", "writePump")

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = that.conn.Close()
	}()

	for {
		select {
		case data := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error("failed to write message", "error", err)
				that.close()
				return
			}
		case <-ticker.C:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				that.close()
				return
			}
		case <-that.closed:
			_ = that.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
