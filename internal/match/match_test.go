package match

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

var errConnectionClosed = errors.New("connection closed")

type sentMessage struct {
	kind    entity.MessageKind
	payload any
}

type fakeParticipant struct {
	id string

	mu       sync.Mutex
	listener Listener
	active   bool
	sendErr  error
	messages []sentMessage

	// set before Start: move relays signal moveSent and then wait for releaseMove
	moveSent    chan struct{}
	releaseMove chan struct{}
}

func newParticipant(id string) *fakeParticipant {
	return &fakeParticipant{id: id, active: true}
}

func (that *fakeParticipant) ID() string {
	return that.id
}

func (that *fakeParticipant) Send(_ context.Context, kind entity.MessageKind, payload any) error {
	if kind == entity.MessageMove && that.releaseMove != nil {
		that.moveSent <- struct{}{}
		<-that.releaseMove
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.sendErr != nil {
		return that.sendErr
	}

	that.messages = append(that.messages, sentMessage{kind: kind, payload: payload})

	return nil
}

func (that *fakeParticipant) SetMatchListener(listener Listener) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.listener = listener
}

func (that *fakeParticipant) IsActive() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.active
}

func (that *fakeParticipant) boundListener() Listener {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.listener
}

func (that *fakeParticipant) received(kind entity.MessageKind) []any {
	that.mu.Lock()
	defer that.mu.Unlock()

	var payloads []any
	for _, msg := range that.messages {
		if msg.kind == kind {
			payloads = append(payloads, msg.payload)
		}
	}

	return payloads
}

type playerUpdate struct {
	id     string
	update entity.PlayerUpdate
}

type fakeStore struct {
	mu      sync.Mutex
	updates []playerUpdate
}

func (that *fakeStore) Update(_ context.Context, id string, update entity.PlayerUpdate) (*entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.updates = append(that.updates, playerUpdate{id: id, update: update})

	return &entity.Player{ID: id, Status: update.Status, Points: update.AddPoints}, nil
}

func (that *fakeStore) updatesFor(id string) []entity.PlayerUpdate {
	that.mu.Lock()
	defer that.mu.Unlock()

	var updates []entity.PlayerUpdate
	for _, u := range that.updates {
		if u.id == id {
			updates = append(updates, u.update)
		}
	}

	return updates
}

type fixture struct {
	match  *Match
	first  *fakeParticipant
	second *fakeParticipant
	store  *fakeStore
	ended  chan entity.MatchResult
}

func newFixture(t *testing.T, settings Settings) *fixture {
	t.Helper()

	if settings.GridSize == 0 {
		settings.GridSize = 3
	}

	f := &fixture{
		first:  newParticipant("alice"),
		second: newParticipant("bob"),
		store:  &fakeStore{},
		ended:  make(chan entity.MatchResult, 1),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	m, err := New(logger, "match-1", settings, f.first, f.second, f.store, Hooks{
		OnEnd: func(result entity.MatchResult) { f.ended <- result },
	})
	require.NoError(t, err)

	f.match = m
	t.Cleanup(m.Stop)

	return f
}

func (that *fixture) waitEnded(t *testing.T) entity.MatchResult {
	t.Helper()

	select {
	case result := <-that.ended:
		return result
	case <-time.After(waitFor):
		t.Fatal("match did not end in time")
		return entity.MatchResult{}
	}
}

func waitMessages(t *testing.T, p *fakeParticipant, kind entity.MessageKind, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return len(p.received(kind)) >= n
	}, waitFor, 5*time.Millisecond, "%s did not receive %d %s messages", p.id, n, kind)
}

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Rejects a match against oneself", func(t *testing.T) {
		p := newParticipant("alice")

		_, err := New(logger, "m", Settings{GridSize: 3}, p, p, &fakeStore{}, Hooks{})

		require.ErrorIs(t, err, apperror.ErrSameParticipant)
	})

	t.Run("Rejects an invalid grid size", func(t *testing.T) {
		_, err := New(logger, "m", Settings{GridSize: 0}, newParticipant("a"), newParticipant("b"), &fakeStore{}, Hooks{})

		require.ErrorIs(t, err, apperror.ErrInvalidGridSize)
	})

	t.Run("Rejects a grid above the configured maximum", func(t *testing.T) {
		_, err := New(logger, "m", Settings{GridSize: 16, MaxGridSize: 15}, newParticipant("a"), newParticipant("b"), &fakeStore{}, Hooks{})

		require.ErrorIs(t, err, apperror.ErrGridSizeTooLarge)
	})
}

func TestMatch_Start(t *testing.T) {
	t.Run("Binds both participants and marks them as playing", func(t *testing.T) {
		// Given: a created match
		f := newFixture(t, Settings{WinBonus: DefaultWinBonus})
		require.Equal(t, entity.MatchCreated, f.match.Status())

		// When: the match is started twice
		f.match.Start(context.Background())
		f.match.Start(context.Background())

		// Then: it runs, both connections point at it and each player was updated once
		assert.Equal(t, entity.MatchRunning, f.match.Status())
		assert.Equal(t, f.match, f.first.boundListener())
		assert.Equal(t, f.match, f.second.boundListener())
		assert.Equal(t, []entity.PlayerUpdate{{Status: entity.StatusPlaying}}, f.store.updatesFor("alice"))
		assert.Equal(t, []entity.PlayerUpdate{{Status: entity.StatusPlaying}}, f.store.updatesFor("bob"))
	})

	t.Run("Does not start an ended match", func(t *testing.T) {
		// Given: a match stopped before it started
		f := newFixture(t, Settings{})
		f.match.Stop()

		// When: it is started
		f.match.Start(context.Background())

		// Then: it stays ended and nothing is persisted
		assert.Equal(t, entity.MatchEnded, f.match.Status())
		assert.Empty(t, f.store.updatesFor("alice"))
	})
}

func TestMatch_Win(t *testing.T) {
	// Given: a running 3x3 match
	f := newFixture(t, Settings{WinBonus: DefaultWinBonus})
	f.match.Start(context.Background())

	// When: alice fills row 0 while bob plays elsewhere
	f.match.OnMove(f.first, 0, 0)
	f.match.OnMove(f.second, 1, 0)
	f.match.OnMove(f.first, 0, 1)
	f.match.OnMove(f.second, 1, 1)
	f.match.OnMove(f.first, 0, 2)

	result := f.waitEnded(t)

	// Then: alice wins, each side saw the other's moves and the bonus is stored
	assert.Equal(t, entity.EndReasonWin, result.Reason)
	assert.Equal(t, "alice", result.WinnerID)
	assert.Equal(t, "X", result.Mark)
	assert.Equal(t, 5, result.MoveCount)

	assert.Equal(t, []any{entity.EndPayload{Result: entity.ResultWinner}}, f.first.received(entity.MessageEnd))
	assert.Equal(t, []any{entity.EndPayload{Result: entity.ResultLoser}}, f.second.received(entity.MessageEnd))
	assert.Equal(t, []any{
		entity.MovePayload{Row: 0, Col: 0},
		entity.MovePayload{Row: 0, Col: 1},
		entity.MovePayload{Row: 0, Col: 2},
	}, f.second.received(entity.MessageMove))
	assert.Len(t, f.first.received(entity.MessageMove), 2)

	assert.Contains(t, f.store.updatesFor("alice"), entity.PlayerUpdate{AddPoints: 5})
	assert.NotContains(t, f.store.updatesFor("bob"), entity.PlayerUpdate{AddPoints: 5})

	// And: the match is over and released both connections
	assert.Equal(t, entity.MatchEnded, f.match.Status())
	assert.Nil(t, f.first.boundListener())
	assert.Nil(t, f.second.boundListener())
}

func TestMatch_Draw(t *testing.T) {
	moves := []struct {
		first    bool
		row, col int
	}{
		{true, 0, 0}, {false, 0, 1}, {true, 0, 2},
		{false, 1, 1}, {true, 1, 0}, {false, 1, 2},
		{true, 2, 1}, {false, 2, 0}, {true, 2, 2},
	}

	play := func(f *fixture) {
		for _, mv := range moves {
			p := f.second
			if mv.first {
				p = f.first
			}
			f.match.OnMove(p, mv.row, mv.col)
		}
	}

	t.Run("Sends Draw to both participants", func(t *testing.T) {
		// Given: a running 3x3 match
		f := newFixture(t, Settings{WinBonus: DefaultWinBonus})
		f.match.Start(context.Background())

		// When: the board is filled without a line
		play(f)
		result := f.waitEnded(t)

		// Then: both get a Draw result and nobody gains points
		assert.Equal(t, entity.EndReasonDraw, result.Reason)
		assert.Empty(t, result.WinnerID)
		assert.Equal(t, 9, result.MoveCount)
		assert.Equal(t, []any{entity.EndPayload{Result: entity.ResultDraw}}, f.first.received(entity.MessageEnd))
		assert.Equal(t, []any{entity.EndPayload{Result: entity.ResultDraw}}, f.second.received(entity.MessageEnd))
		assert.NotContains(t, f.store.updatesFor("alice"), entity.PlayerUpdate{AddPoints: 5})
	})

	t.Run("Legacy result sends Winner to both participants", func(t *testing.T) {
		// Given: a match with the legacy draw result
		f := newFixture(t, Settings{WinBonus: DefaultWinBonus, LegacyDrawResult: true})
		f.match.Start(context.Background())

		// When: the board is filled without a line
		play(f)
		f.waitEnded(t)

		// Then: both get Winner
		assert.Equal(t, []any{entity.EndPayload{Result: entity.ResultWinner}}, f.first.received(entity.MessageEnd))
		assert.Equal(t, []any{entity.EndPayload{Result: entity.ResultWinner}}, f.second.received(entity.MessageEnd))
	})
}

func TestMatch_InvalidMoves(t *testing.T) {
	t.Run("Out of range move is dropped silently", func(t *testing.T) {
		// Given: a running 3x3 match
		f := newFixture(t, Settings{})
		f.match.Start(context.Background())

		// When: alice plays outside the board and then a valid cell
		f.match.OnMove(f.first, 5, 5)
		f.match.OnMove(f.first, 1, 1)
		waitMessages(t, f.second, entity.MessageMove, 1)

		// Then: only the valid move reached bob and alice heard nothing
		assert.Equal(t, []any{entity.MovePayload{Row: 1, Col: 1}}, f.second.received(entity.MessageMove))
		assert.Empty(t, f.first.received(entity.MessageReject))
		assert.Equal(t, entity.MatchRunning, f.match.Status())
	})

	t.Run("Occupied cell is dropped", func(t *testing.T) {
		// Given: alice holds the center
		f := newFixture(t, Settings{})
		f.match.Start(context.Background())
		f.match.OnMove(f.first, 1, 1)

		// When: bob plays the same cell and then a free one
		f.match.OnMove(f.second, 1, 1)
		f.match.OnMove(f.second, 0, 0)
		waitMessages(t, f.first, entity.MessageMove, 1)

		// Then: only bob's free cell reached alice
		assert.Equal(t, []any{entity.MovePayload{Row: 0, Col: 0}}, f.first.received(entity.MessageMove))
	})

	t.Run("Rejection feedback reaches the submitter", func(t *testing.T) {
		// Given: a match with rejection feedback
		f := newFixture(t, Settings{RejectFeedback: true})
		f.match.Start(context.Background())

		// When: alice plays outside the board
		f.match.OnMove(f.first, 5, 5)
		waitMessages(t, f.first, entity.MessageReject, 1)

		// Then: alice is told which cell was rejected and bob saw nothing
		reject, ok := f.first.received(entity.MessageReject)[0].(entity.RejectPayload)
		require.True(t, ok)
		assert.Equal(t, 5, reject.Row)
		assert.Equal(t, 5, reject.Col)
		assert.Contains(t, reject.Reason, apperror.ErrCellOutOfRange.Error())
		assert.Empty(t, f.second.received(entity.MessageMove))
	})
}

func TestMatch_FIFO(t *testing.T) {
	t.Run("First queued move takes the cell", func(t *testing.T) {
		// Given: two moves on the same cell queued before the loop runs
		f := newFixture(t, Settings{})
		f.match.OnMove(f.first, 0, 0)
		f.match.OnMove(f.second, 0, 0)
		f.match.OnMove(f.second, 2, 2)

		// When: the match starts
		f.match.Start(context.Background())
		waitMessages(t, f.first, entity.MessageMove, 1)

		// Then: alice's move won the cell and bob's duplicate was dropped
		assert.Equal(t, []any{entity.MovePayload{Row: 0, Col: 0}}, f.second.received(entity.MessageMove))
		assert.Equal(t, []any{entity.MovePayload{Row: 2, Col: 2}}, f.first.received(entity.MessageMove))
	})

	t.Run("Concurrent submissions keep the board consistent", func(t *testing.T) {
		// Given: a running 10x10 match
		const size = 10
		f := newFixture(t, Settings{GridSize: size})
		f.match.Start(context.Background())

		// When: both players submit every cell at the same time
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range size * size {
				f.match.OnMove(f.first, i/size, i%size)
			}
		}()
		go func() {
			defer wg.Done()
			for i := size*size - 1; i >= 0; i-- {
				f.match.OnMove(f.second, i/size, i%size)
			}
		}()
		wg.Wait()

		result := f.waitEnded(t)

		// Then: every applied move is on the board exactly once and was relayed once
		occupied := 0
		for _, row := range f.match.board.Snapshot() {
			for _, cell := range row {
				if !cell.IsEmpty() {
					occupied++
				}
			}
		}

		assert.Equal(t, f.match.board.MoveCount(), occupied)
		assert.Equal(t, occupied, result.MoveCount)
		relayed := len(f.first.received(entity.MessageMove)) + len(f.second.received(entity.MessageMove))
		assert.Equal(t, occupied, relayed)
	})
}

func TestMatch_AfterEnd(t *testing.T) {
	// Given: a match alice has won
	f := newFixture(t, Settings{GridSize: 1, WinBonus: DefaultWinBonus})
	f.match.Start(context.Background())
	f.match.OnMove(f.first, 0, 0)
	f.waitEnded(t)

	// When: more moves and chat arrive
	f.match.OnMove(f.second, 0, 0)
	f.match.OnChat(f.second, "gg")

	// Then: nothing is queued or relayed
	assert.Zero(t, f.match.queue.Len())
	assert.Empty(t, f.first.received(entity.MessageMove))
	assert.Empty(t, f.first.received(entity.MessageChat))
}

func TestMatch_OnChat(t *testing.T) {
	// Given: a running match
	f := newFixture(t, Settings{})
	f.match.Start(context.Background())

	// When: alice sends a chat line
	f.match.OnChat(f.first, "good luck")

	// Then: only bob receives it and the match is unaffected
	assert.Equal(t, []any{entity.ChatPayload{Text: "good luck"}}, f.second.received(entity.MessageChat))
	assert.Empty(t, f.first.received(entity.MessageChat))
	assert.Zero(t, f.match.queue.Len())
	assert.Equal(t, entity.MatchRunning, f.match.Status())
}

func TestMatch_OnParticipantLeft(t *testing.T) {
	t.Run("Active opponent goes back to idle", func(t *testing.T) {
		// Given: a running match
		f := newFixture(t, Settings{WinBonus: DefaultWinBonus})
		f.match.Start(context.Background())

		// When: alice disconnects
		f.match.OnParticipantLeft(f.first)
		result := f.waitEnded(t)

		// Then: the match ends without a winner and bob is idle again
		assert.Equal(t, entity.EndReasonForfeit, result.Reason)
		assert.Empty(t, result.WinnerID)
		assert.Equal(t, entity.MatchEnded, f.match.Status())
		assert.Contains(t, f.store.updatesFor("bob"), entity.PlayerUpdate{Status: entity.StatusIdle})
		assert.Empty(t, f.second.received(entity.MessageEnd))
		assert.Nil(t, f.second.boundListener())
	})

	t.Run("Inactive opponent is left untouched", func(t *testing.T) {
		// Given: a running match where bob's connection is already gone
		f := newFixture(t, Settings{})
		f.match.Start(context.Background())
		f.second.mu.Lock()
		f.second.active = false
		f.second.mu.Unlock()

		// When: alice leaves
		f.match.OnParticipantLeft(f.first)
		f.waitEnded(t)

		// Then: bob's record was only touched at match start
		assert.Equal(t, []entity.PlayerUpdate{{Status: entity.StatusPlaying}}, f.store.updatesFor("bob"))
	})
}

func TestMatch_Opponent(t *testing.T) {
	f := newFixture(t, Settings{})

	opponent, err := f.match.Opponent("alice")
	require.NoError(t, err)
	assert.Equal(t, "bob", opponent.ID())

	opponent, err = f.match.Opponent("bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", opponent.ID())

	_, err = f.match.Opponent("mallory")
	require.ErrorIs(t, err, apperror.ErrUnknownParticipant)
}

func TestMatch_SendFailureDoesNotStopTheMatch(t *testing.T) {
	// Given: bob's connection fails every send
	f := newFixture(t, Settings{GridSize: 1, WinBonus: DefaultWinBonus})
	f.second.sendErr = errConnectionClosed
	f.match.Start(context.Background())

	// When: alice wins
	f.match.OnMove(f.first, 0, 0)
	result := f.waitEnded(t)

	// Then: the win is still recorded
	assert.Equal(t, "alice", result.WinnerID)
	assert.Contains(t, f.store.updatesFor("alice"), entity.PlayerUpdate{AddPoints: 5})
}

func TestMatch_ForfeitDuringWinningRelay(t *testing.T) {
	// Given: a 1x1 match where relaying alice's move to bob blocks
	f := newFixture(t, Settings{GridSize: 1, WinBonus: DefaultWinBonus})
	f.second.moveSent = make(chan struct{}, 1)
	f.second.releaseMove = make(chan struct{})
	f.match.Start(context.Background())

	// When: alice plays the winning move and bob leaves while it is being relayed
	f.match.OnMove(f.first, 0, 0)

	select {
	case <-f.second.moveSent:
	case <-time.After(waitFor):
		t.Fatal("move was not relayed")
	}

	f.match.OnParticipantLeft(f.second)
	result := f.waitEnded(t)
	close(f.second.releaseMove)

	// Then: the forfeit stands and the winning move has no end side effects
	assert.Equal(t, entity.EndReasonForfeit, result.Reason)
	assert.Empty(t, result.WinnerID)

	assert.Never(t, func() bool {
		return len(f.first.received(entity.MessageEnd)) > 0
	}, 200*time.Millisecond, 10*time.Millisecond)
	assert.NotContains(t, f.store.updatesFor("alice"), entity.PlayerUpdate{AddPoints: 5})

	stored, ok := f.match.Result()
	require.True(t, ok)
	assert.Equal(t, entity.EndReasonForfeit, stored.Reason)
}

func TestMatch_ContextCancelStopsTheMatch(t *testing.T) {
	// Given: a match running under a cancellable context
	f := newFixture(t, Settings{})
	ctx, cancel := context.WithCancel(context.Background())
	f.match.Start(ctx)

	// When: the context is cancelled
	cancel()
	result := f.waitEnded(t)

	// Then: the match stops with no winner
	assert.Equal(t, entity.EndReasonStopped, result.Reason)

	stored, ok := f.match.Result()
	require.True(t, ok)
	assert.Equal(t, result, stored)

	// And: player records keep the status set at match start
	assert.Equal(t, []entity.PlayerUpdate{{Status: entity.StatusPlaying}}, f.store.updatesFor("alice"))
	assert.Equal(t, []entity.PlayerUpdate{{Status: entity.StatusPlaying}}, f.store.updatesFor("bob"))
}
