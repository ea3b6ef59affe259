package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rocketscienceinc/tictactoe-server/pkg/handlers"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	history  matchHistory
}

func New(logger *slog.Logger, gatherer prometheus.Gatherer, history matchHistory) *Server {
	return &Server{
		logger:   logger.With("component", "rest"),
		gatherer: gatherer,
		history:  history,
	}
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", handlers.PingHandler)
	mux.Handle("/metrics", handlers.MetricsHandler(that.gatherer))
	mux.HandleFunc("GET /players/{id}/matches", that.handleMatchHistory)

	return mux
}

// Start - serves until ctx is canceled or the listener fails.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
