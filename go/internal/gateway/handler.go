package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenroom/go/internal/room"
)

var (
	errMissingRoomID   = errors.New("room ID is required")
	errMissingUsername = errors.New("room ID and username are required")
	errBadStatus       = errors.New("status must be \"playing\" or \"paused\"")
	errEmptyMessage    = errors.New("message text is required")
)

// Router decodes client frames, validates them before any state is
// touched, and dispatches to the room operations. Every request gets
// exactly one ack.
type Router struct {
	registry *room.Registry
	manager  *ConnectionManager
}

// NewRouter creates a router over the given registry and pools.
func NewRouter(registry *room.Registry, manager *ConnectionManager) *Router {
	return &Router{registry: registry, manager: manager}
}

// HandleMessage implements MessageHandler.
func (rt *Router) HandleMessage(conn *Connection, message []byte) {
	var req Request
	if err := json.Unmarshal(message, &req); err != nil {
		conn.SendJSON(errAck("", fmt.Errorf("malformed request: %w", err)))
		return
	}

	ack := rt.dispatch(conn, req)
	conn.SendJSON(ack)

	if !ack.Success {
		log.Debug().
			Str("conn_id", conn.ID).
			Str("request", string(req.Type)).
			Str("error", ack.Error).
			Msg("request rejected")
	}
}

// HandleDisconnect implements MessageHandler. A dropped transport is a
// leave: the idle-connection disconnect is the only cancellation path.
func (rt *Router) HandleDisconnect(conn *Connection) {
	roomID := conn.RoomID()
	if roomID == "" {
		return
	}
	if r, err := rt.registry.Get(roomID); err == nil {
		r.Leave(conn.ID)
	}
	rt.manager.LeaveRoomPool(conn)
}

func (rt *Router) dispatch(conn *Connection, req Request) Ack {
	switch req.Type {
	case ReqJoinRoom:
		return rt.joinRoom(conn, req)
	case ReqLeaveRoom:
		return rt.leaveRoom(conn, req)
	case ReqRoomState:
		return rt.roomState(req)
	case ReqChatHistory:
		return rt.chatHistory(req)
	case ReqSendChat:
		return rt.sendChat(req)
	case ReqPlaySong:
		return rt.playSong(conn, req)
	case ReqUpdatePlayback:
		return rt.updatePlayback(conn, req)
	case ReqNextSong:
		return rt.advance(conn, req, room.Next)
	case ReqPrevSong:
		return rt.advance(conn, req, room.Previous)
	case ReqAddSong:
		return rt.addSong(req)
	default:
		return errAck(req.ID, fmt.Errorf("unknown request type %q", req.Type))
	}
}

func (rt *Router) joinRoom(conn *Connection, req Request) Ack {
	var p JoinRoomPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return errAck(req.ID, err)
	}
	if p.RoomID == "" || p.Username == "" {
		return errAck(req.ID, errMissingUsername)
	}

	// Switching rooms implies leaving the previous one first
	if prev := conn.RoomID(); prev != "" && prev != p.RoomID {
		if r, err := rt.registry.Get(prev); err == nil {
			r.Leave(conn.ID)
		}
	}

	snap, err := rt.registry.Join(p.RoomID, conn.ID, p.Username)
	if err != nil {
		return errAck(req.ID, err)
	}

	conn.Username = p.Username
	rt.manager.JoinRoomPool(conn, p.RoomID)
	return okAck(req.ID, JoinRoomData{RoomState: snap})
}

func (rt *Router) leaveRoom(conn *Connection, req Request) Ack {
	roomID := conn.RoomID()
	if roomID == "" {
		return okAck(req.ID, nil)
	}
	if r, err := rt.registry.Get(roomID); err == nil {
		r.Leave(conn.ID)
	}
	rt.manager.LeaveRoomPool(conn)
	return okAck(req.ID, nil)
}

func (rt *Router) roomState(req Request) Ack {
	var p RoomIDPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return errAck(req.ID, err)
	}
	if p.RoomID == "" {
		return errAck(req.ID, errMissingRoomID)
	}

	r, err := rt.registry.Get(p.RoomID)
	if err != nil {
		return errAck(req.ID, err)
	}
	snap, err := r.Snapshot()
	if err != nil {
		return errAck(req.ID, err)
	}
	return okAck(req.ID, JoinRoomData{RoomState: snap})
}

func (rt *Router) chatHistory(req Request) Ack {
	var p RoomIDPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return errAck(req.ID, err)
	}
	if p.RoomID == "" {
		return errAck(req.ID, errMissingRoomID)
	}

	r, err := rt.registry.Get(p.RoomID)
	if err != nil {
		return errAck(req.ID, err)
	}
	history, err := r.ChatHistory()
	if err != nil {
		return errAck(req.ID, err)
	}
	if history == nil {
		history = []room.ChatMessage{}
	}
	return okAck(req.ID, ChatHistoryData{History: history})
}

func (rt *Router) sendChat(req Request) Ack {
	var p SendChatPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return errAck(req.ID, err)
	}
	if p.RoomID == "" {
		return errAck(req.ID, errMissingRoomID)
	}
	if p.Msg.Text == "" {
		return errAck(req.ID, errEmptyMessage)
	}

	r, err := rt.registry.Get(p.RoomID)
	if err != nil {
		return errAck(req.ID, err)
	}
	if err := r.SendChat(p.Msg); err != nil {
		return errAck(req.ID, err)
	}
	return okAck(req.ID, nil)
}

func (rt *Router) playSong(conn *Connection, req Request) Ack {
	var p PlaySongPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return errAck(req.ID, err)
	}
	if p.RoomID == "" {
		return errAck(req.ID, errMissingRoomID)
	}
	if p.StartOffset < 0 {
		p.StartOffset = 0
	}

	r, err := rt.registry.Get(p.RoomID)
	if err != nil {
		return errAck(req.ID, err)
	}
	if err := r.Play(p.Song, p.StartOffset, conn.ID); err != nil {
		return errAck(req.ID, err)
	}
	return okAck(req.ID, nil)
}

func (rt *Router) updatePlayback(conn *Connection, req Request) Ack {
	var p UpdatePlaybackPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return errAck(req.ID, err)
	}
	if p.RoomID == "" {
		return errAck(req.ID, errMissingRoomID)
	}
	if p.Status != room.StatusPlaying && p.Status != room.StatusPaused {
		return errAck(req.ID, errBadStatus)
	}

	r, err := rt.registry.Get(p.RoomID)
	if err != nil {
		return errAck(req.ID, err)
	}
	if err := r.UpdatePlayback(p.Status, p.CurrentTime, conn.ID); err != nil {
		return errAck(req.ID, err)
	}
	return okAck(req.ID, nil)
}

func (rt *Router) advance(conn *Connection, req Request, dir room.Direction) Ack {
	var p RoomIDPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return errAck(req.ID, err)
	}
	if p.RoomID == "" {
		return errAck(req.ID, errMissingRoomID)
	}

	r, err := rt.registry.Get(p.RoomID)
	if err != nil {
		return errAck(req.ID, err)
	}
	if err := r.Advance(dir, conn.ID); err != nil {
		return errAck(req.ID, err)
	}
	return okAck(req.ID, nil)
}

func (rt *Router) addSong(req Request) Ack {
	var p AddSongPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return errAck(req.ID, err)
	}
	if p.RoomID == "" {
		return errAck(req.ID, errMissingRoomID)
	}

	r, err := rt.registry.Get(p.RoomID)
	if err != nil {
		return errAck(req.ID, err)
	}
	if err := r.AddSong(p.Song); err != nil {
		return errAck(req.ID, err)
	}
	return okAck(req.ID, nil)
}

// WebSocketHandler handles WebSocket upgrade requests.
type WebSocketHandler struct {
	manager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{manager: cm}
}

// HandleRoomConnection upgrades the request; the client joins a room
// with a joinRoom frame afterwards.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	if _, err := h.manager.UpgradeConnection(w, r); err != nil {
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
	}
}

// HandleConnectionStats returns statistics about active connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, rooms := h.manager.Stats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total_connections": total,
		"active_rooms":      len(rooms),
		"room_connections":  rooms,
	})
}
