// Package gateway is the WebSocket transport: it upgrades client connections,
// dispatches their commands to the room lifecycle layer, and serves as one of
// the broadcast publishers. The relay publisher covers clients subscribed
// through the hosted pub/sub channels instead.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/fokashive/fokashive/internal/broadcast"
)

// ConnectionManager owns every live WebSocket connection. Connections are
// keyed by transport session and grouped into per-room pools as clients join
// and leave rooms; global events go to every connection.
type ConnectionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Connection
	rooms    map[string]map[*Connection]bool

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	broadcastCh chan outboundMessage
}

// Connection is one client socket. Send is the buffered outbound queue; a
// full queue marks the client as dead and the connection is torn down.
type Connection struct {
	SessionID   string
	UserID      string
	DisplayName string
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time

	manager   *ConnectionManager
	onMessage func(*Connection, []byte)
	onClose   func(*Connection)
	closeOnce sync.Once

	// sendMu guards closed and every send into Send. The channel is only
	// closed under this mutex, so enqueue and close can never race.
	sendMu sync.Mutex
	closed bool
}

// trySend enqueues data unless the connection is already closed or its queue
// is full.
func (c *Connection) trySend(data []byte) (delivered, closed bool) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false, true
	}
	select {
	case c.Send <- data:
		return true, false
	default:
		return false, false
	}
}

// closeSend closes the outbound queue exactly once.
func (c *Connection) closeSend() {
	c.sendMu.Lock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
	c.sendMu.Unlock()
}

// ConnectionConfig holds socket tuning parameters.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns the standard socket tuning.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

type outboundMessage struct {
	roomID string // empty means every connection
	data   []byte
}

// NewConnectionManager creates an empty manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		sessions: make(map[string]*Connection),
		rooms:    make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan outboundMessage, 1000),
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
		case msg := <-cm.broadcastCh:
			cm.deliver(msg)
		}
	}
}

// Upgrade turns the HTTP request into a managed WebSocket connection. The
// caller supplies the dispatch callback for inbound messages and the teardown
// callback, which fires exactly once when the socket goes away.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, sessionID, userID, displayName string, onMessage func(*Connection, []byte), onClose func(*Connection)) (*Connection, error) {
	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade connection: %w", err)
	}

	conn := &Connection{
		SessionID:   sessionID,
		UserID:      userID,
		DisplayName: displayName,
		Conn:        ws,
		Send:        make(chan []byte, 256),
		ConnectedAt: time.Now(),
		manager:     cm,
		onMessage:   onMessage,
		onClose:     onClose,
	}

	cm.mu.Lock()
	cm.sessions[sessionID] = conn
	cm.mu.Unlock()

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("session_id", sessionID).
		Str("user_id", userID).
		Msg("websocket connection established")
	return conn, nil
}

// Subscribe adds the connection to a room's pool.
func (cm *ConnectionManager) Subscribe(conn *Connection, roomID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.rooms[roomID] == nil {
		cm.rooms[roomID] = make(map[*Connection]bool)
	}
	cm.rooms[roomID][conn] = true

	log.Debug().
		Str("session_id", conn.SessionID).
		Str("room_id", roomID).
		Int("pool_size", len(cm.rooms[roomID])).
		Msg("connection subscribed to room")
}

// Unsubscribe removes the connection from a room's pool.
func (cm *ConnectionManager) Unsubscribe(conn *Connection, roomID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.removeFromRoom(conn, roomID)
}

// removeFromRoom must be called with the write lock held.
func (cm *ConnectionManager) removeFromRoom(conn *Connection, roomID string) {
	pool, ok := cm.rooms[roomID]
	if !ok {
		return
	}
	delete(pool, conn)
	if len(pool) == 0 {
		delete(cm.rooms, roomID)
	}
}

// unregister removes the connection from the session table and every room
// pool, then fires the teardown callback once.
func (cm *ConnectionManager) unregister(conn *Connection) {
	cm.mu.Lock()
	_, registered := cm.sessions[conn.SessionID]
	if registered {
		delete(cm.sessions, conn.SessionID)
		for roomID := range cm.rooms {
			cm.removeFromRoom(conn, roomID)
		}
	}
	cm.mu.Unlock()
	if registered {
		conn.closeSend()
	}

	conn.closeOnce.Do(func() {
		log.Info().
			Str("session_id", conn.SessionID).
			Str("user_id", conn.UserID).
			Msg("websocket connection closed")
		if conn.onClose != nil {
			conn.onClose(conn)
		}
	})
}

// Name implements broadcast.Publisher.
func (cm *ConnectionManager) Name() string { return "websocket" }

// PublishRoom implements broadcast.Publisher: the event goes to every
// connection subscribed to the room. Enqueue only; a full queue drops the
// message rather than blocking the caller.
func (cm *ConnectionManager) PublishRoom(ctx context.Context, roomID string, event *broadcast.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	select {
	case cm.broadcastCh <- outboundMessage{roomID: roomID, data: data}:
		return nil
	default:
		return fmt.Errorf("broadcast queue full, dropping %s for room %s", event.Type, roomID)
	}
}

// PublishGlobal implements broadcast.Publisher: the event goes to every
// connection. The channel name is informational only on this transport; the
// relay uses it for routing.
func (cm *ConnectionManager) PublishGlobal(ctx context.Context, channel string, event *broadcast.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	select {
	case cm.broadcastCh <- outboundMessage{data: data}:
		return nil
	default:
		return fmt.Errorf("broadcast queue full, dropping %s on %s", event.Type, channel)
	}
}

func (cm *ConnectionManager) deliver(msg outboundMessage) {
	cm.mu.RLock()
	var targets []*Connection
	if msg.roomID == "" {
		targets = make([]*Connection, 0, len(cm.sessions))
		for _, conn := range cm.sessions {
			targets = append(targets, conn)
		}
	} else {
		for conn := range cm.rooms[msg.roomID] {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		if delivered, closed := conn.trySend(msg.data); !delivered && !closed {
			log.Warn().
				Str("session_id", conn.SessionID).
				Msg("send buffer full, closing connection")
			cm.unregister(conn)
			conn.Conn.Close()
		}
	}
}

// SendDirect writes a payload to a single connection, bypassing the broadcast
// queue. Used for command replies and errors.
func (cm *ConnectionManager) SendDirect(conn *Connection, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal direct message")
		return
	}
	if delivered, closed := conn.trySend(data); !delivered && !closed {
		log.Warn().
			Str("session_id", conn.SessionID).
			Msg("send buffer full on direct message, closing connection")
		cm.unregister(conn)
		conn.Conn.Close()
	}
}

// Stats reports connection counts for the health endpoint.
func (cm *ConnectionManager) Stats() (total int, rooms int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.sessions), len(cm.rooms)
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("session_id", c.SessionID).
					Msg("failed to write to websocket")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Debug().
					Err(err).
					Str("session_id", c.SessionID).
					Msg("unexpected websocket close")
			}
			return
		}
		if c.onMessage != nil {
			c.onMessage(c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}
