package websocket

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

func (that *Server) handleConnect(ctx context.Context, session *Session, msg *Message) error {
	log := that.logger.With("method", "handleConnect")

	var payloadReq Payload
	if err := decodePayload(msg, &payloadReq); err != nil {
		session.sendError(ctx, msg.Action, "invalid payload")
		return err
	}

	if session.ID() != "" {
		session.sendError(ctx, msg.Action, "already connected")
		return nil
	}

	var playerID string
	if payloadReq.Player != nil {
		playerID = payloadReq.Player.ID
	}

	player, err := that.uMatch.GetOrCreatePlayer(ctx, playerID)
	if err != nil {
		session.sendError(ctx, msg.Action, "failed to create a new player")
		return fmt.Errorf("failed to get or create player: %w", err)
	}

	session.setPlayerID(player.ID)

	if err = session.sendAction(ctx, msg.Action, Payload{Player: player}); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	log.Info("successfully connected player", "playerID", player.ID)

	return nil
}

// handleNewGame - parks the session in a new waiting room and returns the room id.
func (that *Server) handleNewGame(ctx context.Context, session *Session, msg *Message) error {
	if !that.canStartMatch(ctx, session, msg.Action) {
		return nil
	}

	var payloadReq Payload
	if err := decodePayload(msg, &payloadReq); err != nil {
		session.sendError(ctx, msg.Action, "invalid payload")
		return err
	}

	room := &Room{ID: uuid.NewString()}
	if payloadReq.Room != nil {
		room.GridSize = payloadReq.Room.GridSize
	}

	if room.GridSize < 0 {
		session.sendError(ctx, msg.Action, "grid size must be positive")
		return nil
	}

	if room.GridSize > that.maxGridSize {
		session.sendError(ctx, msg.Action, "grid size too large")
		return nil
	}

	that.roomsMutex.Lock()
	that.rooms[room.ID] = &waitingRoom{host: session, gridSize: room.GridSize}
	that.roomsMutex.Unlock()

	if err := session.sendAction(ctx, msg.Action, Payload{Room: room}); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	that.logger.Info("waiting room created", "method", "handleNewGame", "roomID", room.ID, "playerID", session.ID())

	return nil
}

// handleJoinGame - pairs the session with the host of a waiting room and starts their match.
func (that *Server) handleJoinGame(ctx context.Context, session *Session, msg *Message) error {
	log := that.logger.With("method", "handleJoinGame", "playerID", session.ID())

	if !that.canStartMatch(ctx, session, msg.Action) {
		return nil
	}

	var payloadReq Payload
	if err := decodePayload(msg, &payloadReq); err != nil {
		session.sendError(ctx, msg.Action, "invalid payload")
		return err
	}

	if payloadReq.Room == nil || payloadReq.Room.ID == "" {
		session.sendError(ctx, msg.Action, "room id is required")
		return nil
	}

	roomID := payloadReq.Room.ID
	log = log.With("roomID", roomID)

	room, ok := that.takeRoom(roomID)
	if !ok {
		session.sendError(ctx, msg.Action, "room not found")
		return nil
	}

	if room.host == session || room.host.ID() == session.ID() {
		that.putRoom(roomID, room)
		session.sendError(ctx, msg.Action, "cannot join your own room")

		return nil
	}

	if !room.host.reserve() {
		session.sendError(ctx, msg.Action, "room not found")
		return nil
	}

	if !session.reserve() {
		room.host.release()
		that.putRoom(roomID, room)
		session.sendError(ctx, msg.Action, "player is already in a match")

		return nil
	}

	newMatch, err := that.uMatch.CreateMatch(ctx, room.host, session, room.gridSize)

	room.host.release()
	session.release()

	if err != nil {
		if room.host.IsActive() {
			that.putRoom(roomID, room)
		}

		session.sendError(ctx, msg.Action, "failed to create match")

		return fmt.Errorf("failed to create match: %w", err)
	}

	that.dropRooms(room.host)
	that.dropRooms(session)

	// the host may have disconnected before the match bound it, so its disconnect saw no match
	if !room.host.IsActive() {
		newMatch.OnParticipantLeft(room.host)
		session.sendError(ctx, msg.Action, "opponent left")

		return nil
	}

	info := MatchInfo{ID: newMatch.ID(), GridSize: newMatch.GridSize()}

	hostInfo := info
	hostInfo.Mark = entity.MarkX.String()
	hostInfo.OpponentID = session.ID()

	guestInfo := info
	guestInfo.Mark = entity.MarkO.String()
	guestInfo.OpponentID = room.host.ID()

	if err = room.host.sendAction(ctx, actionStart, Payload{Match: &hostInfo}); err != nil {
		log.Error("failed to notify host", "error", err)
	}

	if err = session.sendAction(ctx, actionStart, Payload{Match: &guestInfo}); err != nil {
		log.Error("failed to notify guest", "error", err)
	}

	log.Info("player joined room", "matchID", newMatch.ID())

	return nil
}

func (that *Server) handleMove(ctx context.Context, session *Session, msg *Message) error {
	var move entity.MovePayload
	if err := decodePayload(msg, &move); err != nil {
		session.sendError(ctx, msg.Action, "invalid payload")
		return err
	}

	listener := session.matchListener()
	if listener == nil {
		that.logger.Debug("move without a match dropped", "method", "handleMove", "playerID", session.ID())
		return nil
	}

	listener.OnMove(session, move.Row, move.Col)

	return nil
}

func (that *Server) handleChat(ctx context.Context, session *Session, msg *Message) error {
	var chat entity.ChatPayload
	if err := decodePayload(msg, &chat); err != nil {
		session.sendError(ctx, msg.Action, "invalid payload")
		return err
	}

	listener := session.matchListener()
	if listener == nil {
		that.logger.Debug("chat without a match dropped", "method", "handleChat", "playerID", session.ID())
		return nil
	}

	listener.OnChat(session, chat.Text)

	return nil
}

// canStartMatch - the session must be connected and not bound to a running match.
func (that *Server) canStartMatch(ctx context.Context, session *Session, action string) bool {
	if session.ID() == "" {
		session.sendError(ctx, action, "player is not connected")
		return false
	}

	if session.busy() {
		session.sendError(ctx, action, "player is already in a match")
		return false
	}

	return true
}

func (that *Server) takeRoom(id string) (*waitingRoom, bool) {
	that.roomsMutex.Lock()
	defer that.roomsMutex.Unlock()

	room, ok := that.rooms[id]
	if ok {
		delete(that.rooms, id)
	}

	return room, ok
}

func (that *Server) putRoom(id string, room *waitingRoom) {
	that.roomsMutex.Lock()
	defer that.roomsMutex.Unlock()

	that.rooms[id] = room
}

// dropRooms - removes every waiting room hosted by the session.
func (that *Server) dropRooms(session *Session) {
	that.roomsMutex.Lock()
	defer that.roomsMutex.Unlock()

	for id, room := range that.rooms {
		if room.host == session {
			delete(that.rooms, id)
		}
	}
}
