package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/match"
	"github.com/rocketscienceinc/tictactoe-server/internal/tictactoe"
)

const shutdownTimeout = 5 * time.Second

type uMatch interface {
	GetOrCreatePlayer(ctx context.Context, id string) (*entity.Player, error)
	CreateMatch(ctx context.Context, first, second match.Participant, gridSize int) (*match.Match, error)
}

type waitingRoom struct {
	host     *Session
	gridSize int
}

type Server struct {
	logger      *slog.Logger
	uMatch      uMatch
	upgrader    websocket.Upgrader
	maxGridSize int

	handlers map[string]func(ctx context.Context, session *Session, msg *Message) error

	roomsMutex sync.Mutex
	rooms      map[string]*waitingRoom

	sessionsMutex sync.Mutex
	sessions      map[*Session]struct{}
}

// New - maxGridSize bounds the grid a client may request, 0 falls back to the board cap.
func New(logger *slog.Logger, uMatch uMatch, maxGridSize int) *Server {
	if maxGridSize <= 0 || maxGridSize > tictactoe.MaxSize {
		maxGridSize = tictactoe.MaxSize
	}

	server := &Server{
		logger: logger.With("component", "websocket"),
		uMatch: uMatch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},

		handlers: make(map[string]func(context.Context, *Session, *Message) error),
		rooms:    make(map[string]*waitingRoom),

		maxGridSize: maxGridSize,
		sessions: make(map[*Session]struct{}),
	}

	server.handlers[actionConnect] = server.handleConnect
	server.handlers[actionNewGame] = server.handleNewGame
	server.handlers[actionJoin] = server.handleJoinGame
	server.handlers[string(entity.MessageMove)] = server.handleMove
	server.handlers[string(entity.MessageChat)] = server.handleChat

	return server
}

// Handler - serves /ws. Matches created through it live as long as ctx.
func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	return mux
}

// Start - starts WebSocket server and blocks until ctx is canceled or the listener fails.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}

		that.closeSessions()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection and serves it until it closes.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	session := newSession(that.logger, conn)
	that.trackSession(session)

	log.Info("WebSocket connection established", "remote", conn.RemoteAddr().String())

	go session.writePump()
	session.readPump(ctx, that.dispatch)

	that.handleDisconnect(session)
}

func (that *Server) dispatch(ctx context.Context, session *Session, msg *Message) {
	log := that.logger.With("method", "dispatch", "action", msg.Action, "playerID", session.ID())

	handler, ok := that.handlers[msg.Action]
	if !ok {
		log.Warn("unknown action")
		session.sendError(ctx, msg.Action, "unknown action")

		return
	}

	if err := handler(ctx, session, msg); err != nil {
		log.Error("error processing message", "error", err)
	}
}

// handleDisconnect - drops the session's waiting rooms and forfeits its match.
func (that *Server) handleDisconnect(session *Session) {
	session.close()
	that.untrackSession(session)

	that.dropRooms(session)

	if listener := session.matchListener(); listener != nil {
		listener.OnParticipantLeft(session)
	}

	that.logger.Info("player disconnected", "method", "handleDisconnect", "playerID", session.ID())
}

func (that *Server) trackSession(session *Session) {
	that.sessionsMutex.Lock()
	defer that.sessionsMutex.Unlock()

	that.sessions[session] = struct{}{}
}

func (that *Server) untrackSession(session *Session) {
	that.sessionsMutex.Lock()
	defer that.sessionsMutex.Unlock()

	delete(that.sessions, session)
}

// closeSessions - hijacked connections outlive http.Server.Shutdown, so they are closed here.
func (that *Server) closeSessions() {
	that.sessionsMutex.Lock()
	defer that.sessionsMutex.Unlock()

	for session := range that.sessions {
		session.close()
		_ = session.conn.Close()
	}
}
