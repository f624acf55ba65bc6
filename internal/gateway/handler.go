package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/fokashive/fokashive/internal/auth"
	"github.com/fokashive/fokashive/internal/models"
	"github.com/fokashive/fokashive/internal/presence"
)

// RoomApp is what the gateway needs from the room lifecycle layer.
type RoomApp interface {
	Join(ctx context.Context, roomID uuid.UUID, user auth.Identity, sessionID string) (*models.RoomView, error)
	Leave(ctx context.Context, roomID uuid.UUID, user auth.Identity) error
	ListActive(ctx context.Context) ([]*models.RoomView, error)
	SendMessage(ctx context.Context, roomID uuid.UUID, user auth.Identity, text string) error
	StartTimer(ctx context.Context, roomID uuid.UUID, caller auth.Identity) error
	PauseTimer(ctx context.Context, roomID uuid.UUID, caller auth.Identity, clientRemaining *int) error
	ResetTimer(ctx context.Context, roomID uuid.UUID, caller auth.Identity) error
	ChangeTimerMode(ctx context.Context, roomID uuid.UUID, caller auth.Identity, mode models.TimerMode) error
	CompleteTimer(ctx context.Context, roomID uuid.UUID, caller auth.Identity) error
	HandleDisconnect(ctx context.Context, sessionID string)
}

// Client command names, kept compatible with the web frontend.
const (
	cmdJoinRoom        = "join-room"
	cmdLeaveRoom       = "leave-room"
	cmdGetActiveRooms  = "get-active-rooms"
	cmdSendMessage     = "send-message"
	cmdStartTimer      = "start-timer"
	cmdPauseTimer      = "pause-timer"
	cmdResetTimer      = "reset-timer"
	cmdChangeTimerMode = "change-timer-mode"
	cmdTimerCompleted  = "timer-completed"
)

// clientMessage is the inbound command envelope. Fields beyond Type are
// command-specific; unused ones stay zero.
type clientMessage struct {
	Type          string `json:"type"`
	RoomID        string `json:"roomId,omitempty"`
	Message       string `json:"message,omitempty"`
	TimeRemaining *int   `json:"timeRemaining,omitempty"`
	Mode          string `json:"mode,omitempty"`
}

// serverMessage is a direct reply to one socket. Broadcasts use the shared
// event envelope instead.
type serverMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// WebSocketHandler authenticates and upgrades client sockets and routes their
// commands into the room lifecycle layer.
type WebSocketHandler struct {
	cm       *ConnectionManager
	app      RoomApp
	verifier auth.Verifier
	tracker  presence.Tracker
	clock    clockwork.Clock
}

// NewWebSocketHandler creates the handler.
func NewWebSocketHandler(cm *ConnectionManager, app RoomApp, verifier auth.Verifier, tracker presence.Tracker, clock clockwork.Clock) *WebSocketHandler {
	return &WebSocketHandler{cm: cm, app: app, verifier: verifier, tracker: tracker, clock: clock}
}

// Register mounts the WebSocket endpoint on the mux.
func (h *WebSocketHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
}

// HandleConnection authenticates the handshake, assigns a fresh session ID,
// and hands the socket to the connection manager. Authentication happens
// before the upgrade so rejected clients get a plain 401.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromRequest(r, h.verifier)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := uuid.New().String()
	h.tracker.Register(sessionID, identity.UserID, identity.DisplayName, h.clock.Now())

	if _, err := h.cm.Upgrade(w, r, sessionID, identity.UserID, identity.DisplayName, h.dispatch, h.teardown); err != nil {
		h.tracker.Unregister(sessionID)
		log.Error().Err(err).Str("user_id", identity.UserID).Msg("websocket upgrade failed")
	}
}

// teardown runs once per closed socket: memberships held by the dead session
// are removed and the session is unregistered.
func (h *WebSocketHandler) teardown(conn *Connection) {
	h.app.HandleDisconnect(context.Background(), conn.SessionID)
}

// dispatch routes one inbound command. Command failures go back to the
// originating socket only; they are never broadcast.
func (h *WebSocketHandler) dispatch(conn *Connection, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(conn, "invalid message")
		return
	}

	ctx := context.Background()
	identity := auth.Identity{UserID: conn.UserID, DisplayName: conn.DisplayName}

	switch msg.Type {
	case cmdGetActiveRooms:
		views, err := h.app.ListActive(ctx)
		if err != nil {
			h.sendError(conn, "failed to load rooms")
			return
		}
		h.cm.SendDirect(conn, serverMessage{Type: "active-rooms", Data: views})
		return
	case "":
		h.sendError(conn, "missing command type")
		return
	}

	roomID, err := uuid.Parse(msg.RoomID)
	if err != nil {
		h.sendError(conn, "invalid room id")
		return
	}

	switch msg.Type {
	case cmdJoinRoom:
		view, err := h.app.Join(ctx, roomID, identity, conn.SessionID)
		if err != nil {
			h.sendError(conn, err.Error())
			return
		}
		h.cm.Subscribe(conn, view.ID)
		h.cm.SendDirect(conn, serverMessage{Type: "room-joined", Data: view})

	case cmdLeaveRoom:
		h.cm.Unsubscribe(conn, roomID.String())
		if err := h.app.Leave(ctx, roomID, identity); err != nil {
			h.sendError(conn, err.Error())
		}

	case cmdSendMessage:
		if err := h.app.SendMessage(ctx, roomID, identity, msg.Message); err != nil {
			h.sendError(conn, err.Error())
		}

	case cmdStartTimer:
		if err := h.app.StartTimer(ctx, roomID, identity); err != nil {
			h.sendError(conn, err.Error())
		}

	case cmdPauseTimer:
		if err := h.app.PauseTimer(ctx, roomID, identity, msg.TimeRemaining); err != nil {
			h.sendError(conn, err.Error())
		}

	case cmdResetTimer:
		if err := h.app.ResetTimer(ctx, roomID, identity); err != nil {
			h.sendError(conn, err.Error())
		}

	case cmdChangeTimerMode:
		if err := h.app.ChangeTimerMode(ctx, roomID, identity, models.TimerMode(msg.Mode)); err != nil {
			h.sendError(conn, err.Error())
		}

	case cmdTimerCompleted:
		if err := h.app.CompleteTimer(ctx, roomID, identity); err != nil {
			h.sendError(conn, err.Error())
		}

	default:
		log.Debug().
			Str("session_id", conn.SessionID).
			Str("type", msg.Type).
			Msg("unknown client command")
		h.sendError(conn, "unknown command: "+msg.Type)
	}
}

func (h *WebSocketHandler) sendError(conn *Connection, message string) {
	h.cm.SendDirect(conn, serverMessage{Type: "error", Data: map[string]string{"message": message}})
}
