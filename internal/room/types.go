package room

import (
	"time"

	"github.com/fokashive/fokashive/internal/models"
)

// CreateRoomRequest carries the caller-supplied room parameters. Durations are
// in minutes, matching the public API; zero values fall back to the defaults.
type CreateRoomRequest struct {
	Name              string `json:"name"`
	FocusMinutes      int    `json:"focusDuration"`
	ShortBreakMinutes int    `json:"shortBreakDuration"`
	LongBreakMinutes  int    `json:"longBreakDuration"`
}

// Timer settings bounds, in seconds.
const (
	minDuration      = 60
	maxFocusDuration = 180 * 60
	maxShortBreak    = 60 * 60
	maxLongBreak     = 180 * 60
)

// PresencePayload announces a user joining or leaving a room.
type PresencePayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// RoomDeletedPayload announces an empty room's deletion.
type RoomDeletedPayload struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

// MessagePayload is a relayed chat message. Messages are not persisted.
type MessagePayload struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TimerCompletedPayload carries the checkpointed state plus the advisory next
// mode. The suggestion is never auto-applied.
type TimerCompletedPayload struct {
	TimerState        models.TimerState `json:"timerState"`
	SuggestedNextMode models.TimerMode  `json:"suggestedNextMode"`
}
