package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/match"
	"github.com/rocketscienceinc/tictactoe-server/internal/repository"
)

const resultSaveTimeout = 5 * time.Second

var ErrManagerClosed = errors.New("match manager is shut down")

type playerRepo interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
	Update(ctx context.Context, id string, update entity.PlayerUpdate) (*entity.Player, error)
}

type matchRepo interface {
	Save(ctx context.Context, result *entity.MatchResult) error
}

type resultPublisher interface {
	Publish(ctx context.Context, result entity.MatchResult) error
}

type matchMetrics interface {
	match.Recorder
	MatchStarted()
	MatchEnded(reason string)
}

// MatchManager owns the running matches of this server.
type MatchManager struct {
	logger     *slog.Logger
	baseLogger *slog.Logger
	playerRepo playerRepo
	matchRepo  matchRepo
	publisher  resultPublisher
	metrics    matchMetrics
	settings   match.Settings

	mu      sync.RWMutex
	matches map[string]*match.Match
	closed  bool

	// counts registered matches until their result is saved and published
	wg sync.WaitGroup
}

func NewMatchManager(
	logger *slog.Logger,
	playerRepo playerRepo,
	matchRepo matchRepo,
	publisher resultPublisher,
	metrics matchMetrics,
	settings match.Settings,
) *MatchManager {
	return &MatchManager{
		logger:     logger.With("component", "match_manager"),
		baseLogger: logger,
		playerRepo: playerRepo,
		matchRepo:  matchRepo,
		publisher:  publisher,
		metrics:    metrics,
		settings:   settings,

		matches: make(map[string]*match.Match),
	}
}

// CreateMatch starts a match between two paired participants. gridSize 0 uses the configured size.
func (that *MatchManager) CreateMatch(ctx context.Context, first, second match.Participant, gridSize int) (*match.Match, error) {
	settings := that.settings
	if gridSize != 0 {
		settings.GridSize = gridSize
	}

	matchID := uuid.NewString()

	newMatch, err := match.New(that.baseLogger, matchID, settings, first, second, that.playerRepo, match.Hooks{
		OnEnd:    that.onMatchEnd,
		Recorder: that.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return nil, ErrManagerClosed
	}

	that.matches[matchID] = newMatch
	that.wg.Add(1)
	that.mu.Unlock()

	that.metrics.MatchStarted()
	newMatch.Start(ctx)

	return newMatch, nil
}

func (that *MatchManager) Match(id string) (*match.Match, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	existingMatch, ok := that.matches[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrMatchNotFound, id)
	}

	return existingMatch, nil
}

func (that *MatchManager) ActiveMatches() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.matches)
}

// Shutdown refuses new matches, stops every running one and waits until all
// results, including those of matches that ended just before, are recorded.
func (that *MatchManager) Shutdown() {
	that.mu.Lock()
	that.closed = true
	running := make([]*match.Match, 0, len(that.matches))
	for _, m := range that.matches {
		running = append(running, m)
	}
	that.mu.Unlock()

	for _, m := range running {
		m.Stop()
	}

	that.wg.Wait()

	that.logger.Info("all matches stopped", "count", len(running))
}

// GetOrCreatePlayer returns the stored player, creating a record for a new or unknown id.
func (that *MatchManager) GetOrCreatePlayer(ctx context.Context, id string) (*entity.Player, error) {
	if id != "" {
		player, err := that.playerRepo.GetByID(ctx, id)
		if err == nil {
			return player, nil
		}

		if !errors.Is(err, repository.ErrPlayerNotFound) {
			return nil, fmt.Errorf("failed to get player by id: %w", err)
		}
	}

	if id == "" {
		id = uuid.NewString()
	}

	player := &entity.Player{
		ID:     id,
		Status: entity.StatusIdle,
	}

	if err := that.playerRepo.CreateOrUpdate(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	return player, nil
}

// onMatchEnd - unregisters the match and records its result. Storage failures are only logged.
func (that *MatchManager) onMatchEnd(result entity.MatchResult) {
	defer that.wg.Done()

	log := that.logger.With("method", "onMatchEnd", "matchID", result.MatchID)

	that.mu.Lock()
	delete(that.matches, result.MatchID)
	that.mu.Unlock()

	that.metrics.MatchEnded(result.Reason)

	ctx, cancel := context.WithTimeout(context.Background(), resultSaveTimeout)
	defer cancel()

	if err := that.matchRepo.Save(ctx, &result); err != nil {
		log.Error("failed to save match result", "error", err)
	}

	if err := that.publisher.Publish(ctx, result); err != nil {
		log.Error("failed to publish match result", "error", err)
	}
}
