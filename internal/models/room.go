package models

import (
	"time"

	"github.com/google/uuid"
)

// TimerMode identifies which pomodoro phase the shared timer is in.
type TimerMode string

const (
	TimerModeFocus      TimerMode = "focus"
	TimerModeShortBreak TimerMode = "shortBreak"
	TimerModeLongBreak  TimerMode = "longBreak"
)

// Valid reports whether the mode is one of the three known phases.
func (m TimerMode) Valid() bool {
	switch m {
	case TimerModeFocus, TimerModeShortBreak, TimerModeLongBreak:
		return true
	}
	return false
}

// TimerSettings holds the per-room durations, in seconds. Fixed at creation.
type TimerSettings struct {
	FocusDuration      int `json:"focusDuration"`
	ShortBreakDuration int `json:"shortBreakDuration"`
	LongBreakDuration  int `json:"longBreakDuration"`
}

// Default timer durations in seconds (25 / 5 / 15 minutes).
const (
	DefaultFocusDuration      = 25 * 60
	DefaultShortBreakDuration = 5 * 60
	DefaultLongBreakDuration  = 15 * 60
)

// DefaultTimerSettings returns the standard pomodoro durations.
func DefaultTimerSettings() TimerSettings {
	return TimerSettings{
		FocusDuration:      DefaultFocusDuration,
		ShortBreakDuration: DefaultShortBreakDuration,
		LongBreakDuration:  DefaultLongBreakDuration,
	}
}

// DurationFor returns the configured duration in seconds for a mode.
func (s TimerSettings) DurationFor(mode TimerMode) int {
	switch mode {
	case TimerModeShortBreak:
		return s.ShortBreakDuration
	case TimerModeLongBreak:
		return s.LongBreakDuration
	default:
		return s.FocusDuration
	}
}

// TimerState is the persisted timer checkpoint for a room. TimeRemaining is
// only current as of the last state-changing event; while the timer is running
// the live value must be derived from StartedAt (see the timer package).
type TimerState struct {
	Mode          TimerMode  `json:"mode"`
	TimeRemaining int        `json:"timeRemaining"`
	IsRunning     bool       `json:"isRunning"`
	CycleCount    int        `json:"cycleCount"`
	StartedAt     *time.Time `json:"startedAt"`
	PausedAt      *time.Time `json:"pausedAt"`
}

// NewTimerState returns a stopped focus timer at full duration.
func NewTimerState(settings TimerSettings) TimerState {
	return TimerState{
		Mode:          TimerModeFocus,
		TimeRemaining: settings.FocusDuration,
	}
}

// Member is one user's membership entry in a room. SessionID is the transport
// session currently representing the user, empty when the member joined over
// HTTP and has not attached a live session yet.
type Member struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"name"`
	SessionID   string    `json:"sessionId,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Room is the authoritative persisted record for one study room.
type Room struct {
	ID            uuid.UUID     `json:"id"`
	Name          string        `json:"name"`
	HostID        string        `json:"hostId"`
	HostName      string        `json:"hostName"`
	TimerSettings TimerSettings `json:"timerSettings"`
	TimerState    TimerState    `json:"timerState"`
	Members       []Member      `json:"members"`
	Version       int64         `json:"version"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// MemberIndex returns the index of the member with the given user ID, or -1.
func (r *Room) MemberIndex(userID string) int {
	for i, m := range r.Members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the room. Repositories hand out clones so no
// caller ever mutates a shared record outside an atomic update.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Members = make([]Member, len(r.Members))
	copy(cp.Members, r.Members)
	if r.TimerState.StartedAt != nil {
		t := *r.TimerState.StartedAt
		cp.TimerState.StartedAt = &t
	}
	if r.TimerState.PausedAt != nil {
		t := *r.TimerState.PausedAt
		cp.TimerState.PausedAt = &t
	}
	return &cp
}
