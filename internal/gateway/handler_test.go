package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fokashive/fokashive/internal/auth"
	"github.com/fokashive/fokashive/internal/models"
	"github.com/fokashive/fokashive/internal/presence"
)

// stubRoomApp records the lifecycle calls the dispatcher makes.
type stubRoomApp struct {
	view  *models.RoomView
	left  []string
	sent  []string
	modes []models.TimerMode
}

func (s *stubRoomApp) Join(ctx context.Context, roomID uuid.UUID, user auth.Identity, sessionID string) (*models.RoomView, error) {
	return s.view, nil
}

func (s *stubRoomApp) Leave(ctx context.Context, roomID uuid.UUID, user auth.Identity) error {
	s.left = append(s.left, roomID.String())
	return nil
}

func (s *stubRoomApp) ListActive(ctx context.Context) ([]*models.RoomView, error) {
	return []*models.RoomView{s.view}, nil
}

func (s *stubRoomApp) SendMessage(ctx context.Context, roomID uuid.UUID, user auth.Identity, text string) error {
	s.sent = append(s.sent, text)
	return nil
}

func (s *stubRoomApp) StartTimer(ctx context.Context, roomID uuid.UUID, caller auth.Identity) error {
	return nil
}

func (s *stubRoomApp) PauseTimer(ctx context.Context, roomID uuid.UUID, caller auth.Identity, clientRemaining *int) error {
	return nil
}

func (s *stubRoomApp) ResetTimer(ctx context.Context, roomID uuid.UUID, caller auth.Identity) error {
	return nil
}

func (s *stubRoomApp) ChangeTimerMode(ctx context.Context, roomID uuid.UUID, caller auth.Identity, mode models.TimerMode) error {
	s.modes = append(s.modes, mode)
	return nil
}

func (s *stubRoomApp) CompleteTimer(ctx context.Context, roomID uuid.UUID, caller auth.Identity) error {
	return nil
}

func (s *stubRoomApp) HandleDisconnect(ctx context.Context, sessionID string) {}

func newTestHandler(t *testing.T, roomID uuid.UUID) (*WebSocketHandler, *ConnectionManager, *stubRoomApp, *Connection) {
	t.Helper()
	cm := NewConnectionManager(DefaultConnectionConfig())
	app := &stubRoomApp{view: &models.RoomView{ID: roomID.String(), Name: "Math"}}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	h := NewWebSocketHandler(cm, app, auth.NewJWTVerifier("secret"), presence.NewMemoryTracker(), clock)
	conn := newTestConnection(cm, "sess-1")
	conn.DisplayName = "Alice"
	return h, cm, app, conn
}

func subscribed(cm *ConnectionManager, roomID string, conn *Connection) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, ok := cm.rooms[roomID][conn]
	return ok
}

func TestJoinAndLeaveUseCanonicalRoomID(t *testing.T) {
	roomID := uuid.New()
	h, cm, app, conn := newTestHandler(t, roomID)

	// Clients may render the UUID however they like; pool membership is
	// keyed by the canonical form.
	upper := strings.ToUpper(roomID.String())
	h.dispatch(conn, []byte(`{"type":"join-room","roomId":"`+upper+`"}`))
	require.True(t, subscribed(cm, roomID.String(), conn))

	h.dispatch(conn, []byte(`{"type":"leave-room","roomId":"`+upper+`"}`))
	assert.False(t, subscribed(cm, roomID.String(), conn))
	require.Len(t, app.left, 1)
	assert.Equal(t, roomID.String(), app.left[0])
}

func TestDispatchRejectsMalformedInput(t *testing.T) {
	roomID := uuid.New()
	h, cm, _, conn := newTestHandler(t, roomID)

	h.dispatch(conn, []byte(`not json`))
	h.dispatch(conn, []byte(`{"roomId":"`+roomID.String()+`"}`))
	h.dispatch(conn, []byte(`{"type":"join-room","roomId":"not-a-uuid"}`))
	h.dispatch(conn, []byte(`{"type":"do-the-thing","roomId":"`+roomID.String()+`"}`))

	assert.False(t, subscribed(cm, roomID.String(), conn))
	// Each rejection went back to the socket as an error message.
	assert.Len(t, conn.Send, 4)
}

func TestDispatchRoutesCommands(t *testing.T) {
	roomID := uuid.New()
	h, _, app, conn := newTestHandler(t, roomID)
	id := roomID.String()

	h.dispatch(conn, []byte(`{"type":"send-message","roomId":"`+id+`","message":"hello"}`))
	h.dispatch(conn, []byte(`{"type":"change-timer-mode","roomId":"`+id+`","mode":"shortBreak"}`))
	h.dispatch(conn, []byte(`{"type":"get-active-rooms"}`))

	assert.Equal(t, []string{"hello"}, app.sent)
	assert.Equal(t, []models.TimerMode{models.TimerModeShortBreak}, app.modes)
	assert.Len(t, conn.Send, 1, "active rooms reply went to the socket")
}
