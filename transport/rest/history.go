package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/repository"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

type matchHistory interface {
	GetByID(ctx context.Context, id string) (*entity.MatchResult, error)
	ListByPlayer(ctx context.Context, playerID string, limit int64) ([]string, error)
}

// handleMatchHistory - GET /players/{id}/matches?limit=N, newest first. Expired results are skipped.
func (that *Server) handleMatchHistory(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleMatchHistory")

	playerID := r.PathValue("id")

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}

		limit = min(parsed, maxHistoryLimit)
	}

	ids, err := that.history.ListByPlayer(r.Context(), playerID, int64(limit))
	if err != nil {
		log.Error("failed to list matches", "playerID", playerID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	results := make([]*entity.MatchResult, 0, len(ids))
	for _, id := range ids {
		result, err := that.history.GetByID(r.Context(), id)
		if errors.Is(err, repository.ErrMatchNotFound) {
			continue
		}

		if err != nil {
			log.Error("failed to get match", "matchID", id, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		results = append(results, result)
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(results); err != nil {
		log.Error("failed to encode response", "error", err)
	}
}
