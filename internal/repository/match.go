package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

var ErrMatchNotFound = errors.New("match not found")

type MatchRepository interface {
	Save(ctx context.Context, result *entity.MatchResult) error
	GetByID(ctx context.Context, id string) (*entity.MatchResult, error)
	ListByPlayer(ctx context.Context, playerID string, limit int64) ([]string, error)
}

type dbMatch struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMatchRepository stores finished match results. ttl 0 keeps them forever.
func NewMatchRepository(client *redis.Client, ttl time.Duration) MatchRepository {
	return &dbMatch{
		client: client,
		ttl:    ttl,
	}
}

func matchKey(id string) string {
	return "match:" + id
}

func playerMatchesKey(playerID string) string {
	return "player:" + playerID + ":matches"
}

// Save writes the result and prepends its id to each player's history.
func (that *dbMatch) Save(ctx context.Context, result *entity.MatchResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("could not marshal match result: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, matchKey(result.MatchID), resultJSON, that.ttl)
		for _, playerID := range result.Players {
			pipe.LPush(ctx, playerMatchesKey(playerID), result.MatchID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save match result: %w", err)
	}

	return nil
}

func (that *dbMatch) GetByID(ctx context.Context, id string) (*entity.MatchResult, error) {
	response, err := that.client.Get(ctx, matchKey(id)).Bytes()

	if errors.Is(err, redis.Nil) {
		return nil, ErrMatchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get match by id: %w", err)
	}

	var result entity.MatchResult
	if err = json.Unmarshal(response, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match result: %w", err)
	}

	return &result, nil
}

// ListByPlayer returns the ids of the player's most recent matches, newest first.
func (that *dbMatch) ListByPlayer(ctx context.Context, playerID string, limit int64) ([]string, error) {
	ids, err := that.client.LRange(ctx, playerMatchesKey(playerID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list player matches: %w", err)
	}

	return ids, nil
}
