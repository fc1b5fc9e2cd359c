package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenroom/go/internal/room"
)

// ConnectionManager owns every live WebSocket connection, grouped by
// the room the connection has joined. It implements room.Broadcaster:
// events are queued on a single channel and drained by one goroutine,
// which preserves the per-room publish order end to end.
type ConnectionManager struct {
	// Connection pools organized by room ID
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan room.Event

	// handler receives decoded client frames; set once during wiring
	handler MessageHandler
}

// MessageHandler consumes inbound client frames and connection drops.
type MessageHandler interface {
	HandleMessage(conn *Connection, message []byte)
	HandleDisconnect(conn *Connection)
}

// Connection represents a WebSocket connection to a client.
type Connection struct {
	ID       string
	Username string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	// roomID is the room this connection has joined, empty before the
	// first joinRoom. lastPing is touched by both pumps. Guarded by mu.
	roomID   string
	lastPing time.Time
	mu       sync.Mutex

	ConnectedAt time.Time
}

// RoomID returns the room this connection is currently in.
func (c *Connection) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Connection) setRoomID(id string) {
	c.mu.Lock()
	c.roomID = id
	c.mu.Unlock()
}

// LastPing returns when the connection last saw ping/pong traffic.
func (c *Connection) LastPing() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPing
}

func (c *Connection) touchPing() {
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  32 * 1024, // catalog songs carry several stream URLs
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan room.Event, 1000),
	}
}

// SetMessageHandler wires the inbound frame handler. Must be called
// before the first upgrade.
func (cm *ConnectionManager) SetMessageHandler(h MessageHandler) {
	cm.handler = h
}

// Publish implements room.Broadcaster. It never blocks the calling
// room operation; under extreme backlog the event is dropped.
func (cm *ConnectionManager) Publish(ev room.Event) {
	select {
	case cm.broadcastCh <- ev:
	default:
		log.Warn().Str("room_id", ev.RoomID).Str("event", string(ev.Type)).Msg("broadcast channel full, dropping event")
	}
}

// Start drains the broadcast queue until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case ev := <-cm.broadcastCh:
			cm.handleBroadcast(ev)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket connection
// and starts its pumps. The connection joins a room later via the
// joinRoom request.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		lastPing:    time.Now(),
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("conn_id", connection.ID).
		Str("remote", r.RemoteAddr).
		Msg("WebSocket connection established")

	return connection, nil
}

// JoinRoomPool registers the connection under a room so broadcasts for
// that room reach it. A connection lives in at most one pool.
func (cm *ConnectionManager) JoinRoomPool(conn *Connection, roomID string) {
	cm.LeaveRoomPool(conn)

	cm.mu.Lock()
	if cm.roomConnections[roomID] == nil {
		cm.roomConnections[roomID] = make(map[*Connection]bool)
	}
	cm.roomConnections[roomID][conn] = true
	total := len(cm.roomConnections[roomID])
	cm.mu.Unlock()

	conn.setRoomID(roomID)

	log.Debug().
		Str("conn_id", conn.ID).
		Str("room_id", roomID).
		Int("pool_size", total).
		Msg("connection registered in room pool")
}

// LeaveRoomPool removes the connection from its current room pool, if
// any. The Send channel stays open; closeConnection owns it.
func (cm *ConnectionManager) LeaveRoomPool(conn *Connection) {
	roomID := conn.RoomID()
	if roomID == "" {
		return
	}

	cm.mu.Lock()
	if pool, exists := cm.roomConnections[roomID]; exists {
		delete(pool, conn)
		if len(pool) == 0 {
			delete(cm.roomConnections, roomID)
		}
	}
	cm.mu.Unlock()

	conn.setRoomID("")
}

// closeConnection tears the connection down after a pump exits.
func (cm *ConnectionManager) closeConnection(conn *Connection) {
	cm.mu.Lock()
	var registered bool
	if roomID := conn.RoomID(); roomID != "" {
		if pool, exists := cm.roomConnections[roomID]; exists {
			if pool[conn] {
				registered = true
				delete(pool, conn)
				if len(pool) == 0 {
					delete(cm.roomConnections, roomID)
				}
			}
		}
	}
	cm.mu.Unlock()

	if registered || conn.RoomID() != "" {
		log.Info().
			Str("conn_id", conn.ID).
			Str("room_id", conn.RoomID()).
			Msg("connection unregistered")
	}
}

// handleBroadcast fans one room event out to the room's pool.
func (cm *ConnectionManager) handleBroadcast(ev room.Event) {
	cm.mu.RLock()
	pool, exists := cm.roomConnections[ev.RoomID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Snapshot the targets so the lock is not held during sends
	var targets []*Connection
	for conn := range pool {
		if ev.ExcludeConn != "" && conn.ID == ev.ExcludeConn {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event", string(ev.Type)).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			// Connection is slow or dead; drop it rather than stall the room
			log.Warn().
				Str("conn_id", conn.ID).
				Str("room_id", ev.RoomID).
				Msg("connection send buffer full, closing connection")
			cm.LeaveRoomPool(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event", string(ev.Type)).
		Str("room_id", ev.RoomID).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// SendJSON queues a payload on the connection's outbound channel.
func (c *Connection) SendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("conn_id", c.ID).Msg("failed to marshal outbound payload")
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Warn().Str("conn_id", c.ID).Msg("send buffer full, dropping payload")
	}
}

// Stats returns counts of active connections per room.
func (cm *ConnectionManager) Stats() (total int, rooms map[string]int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	rooms = make(map[string]int)
	for roomID, pool := range cm.roomConnections {
		rooms[roomID] = len(pool)
		total += len(pool)
	}
	return total, rooms
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("conn_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.touchPing()
		}
	}
}

// readPump handles reading messages from the WebSocket connection. On
// exit the connection is treated as a leave, which covers both clean
// closes and idle-connection disconnects.
func (c *Connection) readPump() {
	defer func() {
		if c.Manager.handler != nil {
			c.Manager.handler.HandleDisconnect(c)
		}
		c.Manager.closeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.touchPing()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("conn_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if c.Manager.handler != nil {
			c.Manager.handler.HandleMessage(c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
