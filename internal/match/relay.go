package match

import (
	"context"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

// Listener receives the in-match messages of a participant's connection.
type Listener interface {
	OnMove(participant Participant, row, col int)
	OnChat(participant Participant, text string)
	OnParticipantLeft(participant Participant)
}

// Participant is one side of a match as seen from the transport layer.
type Participant interface {
	ID() string
	Send(ctx context.Context, kind entity.MessageKind, payload any) error

	// SetMatchListener binds the connection to a match. nil releases it.
	SetMatchListener(listener Listener)
	IsActive() bool
}

type playerStore interface {
	Update(ctx context.Context, id string, update entity.PlayerUpdate) (*entity.Player, error)
}

// Recorder counts moves for metrics.
type Recorder interface {
	MoveApplied()
	MoveRejected()
}

type noopRecorder struct{}

func (noopRecorder) MoveApplied()  {}
func (noopRecorder) MoveRejected() {}

// send - delivers a message, failures are logged and never stop the match.
func (that *Match) send(ctx context.Context, to Participant, kind entity.MessageKind, payload any) {
	if err := to.Send(ctx, kind, payload); err != nil {
		that.logger.Error("failed to send message",
			"method", "send", "playerID", to.ID(), "kind", kind, "error", err)
	}
}

func (that *Match) updatePlayer(ctx context.Context, playerID string, update entity.PlayerUpdate) {
	if _, err := that.store.Update(ctx, playerID, update); err != nil {
		that.logger.Error("failed to update player",
			"method", "updatePlayer", "playerID", playerID, "error", err)
	}
}
