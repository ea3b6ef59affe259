package match

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/tictactoe"
)

const DefaultWinBonus = 5

type Settings struct {
	GridSize int
	WinBonus int

	// LegacyDrawResult sends "Winner" to both players on a draw instead of "Draw".
	LegacyDrawResult bool

	// RejectFeedback tells the submitter about a dropped move.
	RejectFeedback bool

	// MaxGridSize bounds GridSize; 0 leaves only the board's own cap.
	MaxGridSize int
}

type Hooks struct {
	// OnEnd is called once, after the match has ended.
	OnEnd    func(result entity.MatchResult)
	Recorder Recorder
}

// Match is one live game between two participants. Moves may be submitted from any
// goroutine; the board is read and written only by the match's own loop.
type Match struct {
	id       string
	logger   *slog.Logger
	settings Settings
	hooks    Hooks

	first  Participant
	second Participant
	marks  map[string]entity.Mark

	store playerStore
	board *tictactoe.Board
	queue *intakeQueue

	// mu serializes lifecycle transitions, status is readable without it.
	mu     sync.Mutex
	status atomic.Int32
	done   chan struct{}
	result entity.MatchResult

	// moves mirrors the board's move count for readers outside the loop.
	moves atomic.Int32
}

func New(logger *slog.Logger, id string, settings Settings, first, second Participant, store playerStore, hooks Hooks) (*Match, error) {
	if first.ID() == second.ID() {
		return nil, fmt.Errorf("%w: %s", apperror.ErrSameParticipant, first.ID())
	}

	if settings.MaxGridSize > 0 && settings.GridSize > settings.MaxGridSize {
		return nil, fmt.Errorf("%w: %d > %d", apperror.ErrGridSizeTooLarge, settings.GridSize, settings.MaxGridSize)
	}

	board, err := tictactoe.NewBoard(settings.GridSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create board: %w", err)
	}

	if hooks.Recorder == nil {
		hooks.Recorder = noopRecorder{}
	}

	return &Match{
		id:       id,
		logger:   logger.With("component", "match", "matchID", id),
		settings: settings,
		hooks:    hooks,

		first:  first,
		second: second,
		marks: map[string]entity.Mark{
			first.ID():  entity.MarkX,
			second.ID(): entity.MarkO,
		},

		store: store,
		board: board,
		queue: newIntakeQueue(),
		done:  make(chan struct{}),
	}, nil
}

func (that *Match) ID() string {
	return that.id
}

func (that *Match) GridSize() int {
	return that.board.Size()
}

func (that *Match) Status() entity.MatchStatus {
	return entity.MatchStatus(that.status.Load())
}

// Done is closed when the match has ended.
func (that *Match) Done() <-chan struct{} {
	return that.done
}

// Result returns the match summary once the match has ended.
func (that *Match) Result() (entity.MatchResult, bool) {
	select {
	case <-that.done:
		return that.result, true
	default:
		return entity.MatchResult{}, false
	}
}

// Start marks both players as playing, binds their connections and runs the move loop.
// Calling it on a running or ended match does nothing.
func (that *Match) Start(ctx context.Context) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.Status() != entity.MatchCreated {
		return
	}

	that.status.Store(int32(entity.MatchRunning))

	that.updatePlayer(ctx, that.first.ID(), entity.PlayerUpdate{Status: entity.StatusPlaying})
	that.updatePlayer(ctx, that.second.ID(), entity.PlayerUpdate{Status: entity.StatusPlaying})

	that.first.SetMatchListener(that)
	that.second.SetMatchListener(that)

	go that.run(ctx)

	that.logger.Info("match started",
		"first", that.first.ID(), "second", that.second.ID(), "gridSize", that.board.Size())
}

// Stop ends the match without a winner. It is safe to call more than once.
func (that *Match) Stop() {
	that.finish(that.newResult(entity.EndReasonStopped, nil))
}

// finish moves the match to Ended exactly once and releases both connections.
func (that *Match) finish(result entity.MatchResult) {
	if that.claimEnd(result) {
		that.completeEnd(result)
	}
}

// claimEnd moves the match to Ended and releases both connections. Only the caller that
// gets true may run the end side effects and must then call completeEnd.
func (that *Match) claimEnd(result entity.MatchResult) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.Status() == entity.MatchEnded {
		return false
	}

	that.status.Store(int32(entity.MatchEnded))
	that.result = result

	that.first.SetMatchListener(nil)
	that.second.SetMatchListener(nil)
	that.queue.Clear()

	return true
}

// completeEnd publishes the result claimed by claimEnd.
func (that *Match) completeEnd(result entity.MatchResult) {
	close(that.done)

	that.logger.Info("match ended", "reason", result.Reason, "winnerID", result.WinnerID)

	if that.hooks.OnEnd != nil {
		that.hooks.OnEnd(result)
	}
}

func (that *Match) run(ctx context.Context) {
	log := that.logger.With("method", "run")

	go func() {
		select {
		case <-ctx.Done():
			that.Stop()
		case <-that.done:
		}
	}()

	for {
		req, ok := that.queue.Pop(that.done)
		if !ok {
			log.Debug("move loop interrupted")
			return
		}

		if that.Status() != entity.MatchRunning {
			return
		}

		that.process(ctx, req)
	}
}

// process applies one move and drives its side effects.
func (that *Match) process(ctx context.Context, req entity.MoveRequest) {
	log := that.logger.With("method", "process", "playerID", req.PlayerID, "row", req.Row, "col", req.Col)

	mover, err := that.participant(req.PlayerID)
	if err != nil {
		log.Error("move from unknown participant", "error", err)
		return
	}

	opponent, err := that.Opponent(mover.ID())
	if err != nil {
		log.Error("failed to resolve opponent", "error", err)
		return
	}

	mark := that.marks[mover.ID()]

	if err = that.board.Apply(mark, req.Row, req.Col); err != nil {
		log.Debug("move rejected", "error", err)
		that.hooks.Recorder.MoveRejected()

		if that.settings.RejectFeedback {
			that.send(ctx, mover, entity.MessageReject, entity.RejectPayload{Row: req.Row, Col: req.Col, Reason: err.Error()})
		}

		return
	}

	that.moves.Add(1)
	that.hooks.Recorder.MoveApplied()
	that.send(ctx, opponent, entity.MessageMove, entity.MovePayload{Row: req.Row, Col: req.Col})

	outcome := that.board.Evaluate(mark, req.Row, req.Col)
	if !outcome.IsTerminal() {
		return
	}

	// a forfeit or stop that landed while this move was relayed has already ended the match
	var result entity.MatchResult
	if outcome.Kind == entity.Win {
		result = that.newResult(entity.EndReasonWin, mover)
	} else {
		result = that.newResult(entity.EndReasonDraw, nil)
	}

	if !that.claimEnd(result) {
		log.Debug("match ended while the move was processed", "outcome", outcome.Kind.String())
		return
	}

	switch outcome.Kind {
	case entity.Win:
		that.send(ctx, mover, entity.MessageEnd, entity.EndPayload{Result: entity.ResultWinner})
		that.send(ctx, opponent, entity.MessageEnd, entity.EndPayload{Result: entity.ResultLoser})
		that.updatePlayer(ctx, mover.ID(), entity.PlayerUpdate{AddPoints: that.settings.WinBonus})
	case entity.Draw:
		endResult := entity.ResultDraw
		if that.settings.LegacyDrawResult {
			endResult = entity.ResultWinner
		}

		that.send(ctx, that.first, entity.MessageEnd, entity.EndPayload{Result: endResult})
		that.send(ctx, that.second, entity.MessageEnd, entity.EndPayload{Result: endResult})
	}

	that.completeEnd(result)
}

// OnMove queues a move. It never touches the board.
func (that *Match) OnMove(participant Participant, row, col int) {
	if that.Status() == entity.MatchEnded {
		that.logger.Debug("move after match end dropped", "playerID", participant.ID())
		return
	}

	that.queue.Push(entity.MoveRequest{PlayerID: participant.ID(), Row: row, Col: col})
}

// OnChat forwards text to the opponent as is.
func (that *Match) OnChat(participant Participant, text string) {
	if that.Status() == entity.MatchEnded {
		return
	}

	opponent, err := that.Opponent(participant.ID())
	if err != nil {
		that.logger.Error("chat from unknown participant", "method", "OnChat", "error", err)
		return
	}

	that.send(context.Background(), opponent, entity.MessageChat, entity.ChatPayload{Text: text})
}

// OnParticipantLeft ends the match as a forfeit. No winner is declared; the opponent
// goes back to idle if it is still connected.
func (that *Match) OnParticipantLeft(participant Participant) {
	if that.Status() == entity.MatchEnded {
		return
	}

	opponent, err := that.Opponent(participant.ID())
	if err != nil {
		that.logger.Error("leave from unknown participant", "method", "OnParticipantLeft", "error", err)
		that.Stop()

		return
	}

	result := that.newResult(entity.EndReasonForfeit, nil)
	if !that.claimEnd(result) {
		return
	}

	if opponent.IsActive() {
		that.updatePlayer(context.Background(), opponent.ID(), entity.PlayerUpdate{Status: entity.StatusIdle})
	}

	that.completeEnd(result)
}

// Opponent returns the participant that is not playerID.
func (that *Match) Opponent(playerID string) (Participant, error) {
	switch playerID {
	case that.first.ID():
		return that.second, nil
	case that.second.ID():
		return that.first, nil
	default:
		return nil, fmt.Errorf("%w: %s", apperror.ErrUnknownParticipant, playerID)
	}
}

func (that *Match) participant(playerID string) (Participant, error) {
	switch playerID {
	case that.first.ID():
		return that.first, nil
	case that.second.ID():
		return that.second, nil
	default:
		return nil, fmt.Errorf("%w: %s", apperror.ErrUnknownParticipant, playerID)
	}
}

func (that *Match) newResult(reason string, winner Participant) entity.MatchResult {
	result := entity.MatchResult{
		MatchID:   that.id,
		Players:   []string{that.first.ID(), that.second.ID()},
		GridSize:  that.board.Size(),
		Reason:    reason,
		MoveCount: int(that.moves.Load()),
	}

	if winner != nil {
		result.WinnerID = winner.ID()
		result.Mark = that.marks[winner.ID()].String()
	}

	return result
}
