// Package timer implements the pure transition logic for a room's shared
// pomodoro timer. Functions here never touch storage or transports; they take
// the persisted checkpoint plus the current wall-clock time and return the next
// checkpoint. Host authorization happens before any of these are invoked.
package timer

import (
	"time"

	"github.com/fokashive/fokashive/internal/models"
)

// Remaining derives the live countdown value from the stored checkpoint. While
// the timer runs, the checkpoint's TimeRemaining is the value at StartedAt and
// the elapsed wall-clock time is subtracted, clamped at zero.
func Remaining(state models.TimerState, now time.Time) int {
	if !state.IsRunning || state.StartedAt == nil {
		return state.TimeRemaining
	}
	elapsed := int(now.Sub(*state.StartedAt) / time.Second)
	remaining := state.TimeRemaining - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Derive returns the state with TimeRemaining replaced by the live value.
// Used when building broadcast payloads and list views.
func Derive(state models.TimerState, now time.Time) models.TimerState {
	state.TimeRemaining = Remaining(state, now)
	return state
}

// Start begins the countdown from the current checkpoint. Starting an already
// running timer is a no-op.
func Start(state models.TimerState, now time.Time) models.TimerState {
	if state.IsRunning {
		return state
	}
	state.IsRunning = true
	state.StartedAt = &now
	state.PausedAt = nil
	return state
}

// Pause stops the countdown and checkpoints the remaining time. When the
// client reports its locally counted remaining value it wins over the derived
// one, clamped at zero; pausing a stopped timer is a no-op.
func Pause(state models.TimerState, now time.Time, clientRemaining *int) models.TimerState {
	if !state.IsRunning {
		return state
	}
	remaining := Remaining(state, now)
	if clientRemaining != nil {
		remaining = *clientRemaining
	}
	if remaining < 0 {
		remaining = 0
	}
	state.IsRunning = false
	state.TimeRemaining = remaining
	state.StartedAt = nil
	state.PausedAt = &now
	return state
}

// Reset restores the full duration for the current mode and stops the timer.
// The cycle count is untouched.
func Reset(state models.TimerState, settings models.TimerSettings) models.TimerState {
	state.TimeRemaining = settings.DurationFor(state.Mode)
	state.IsRunning = false
	state.StartedAt = nil
	state.PausedAt = nil
	return state
}

// ChangeMode switches the timer to a new mode at full duration, stopped. The
// cycle count increments only when leaving focus for a break.
func ChangeMode(state models.TimerState, settings models.TimerSettings, mode models.TimerMode) (models.TimerState, error) {
	if !mode.Valid() {
		return state, &InvalidModeError{Mode: mode}
	}
	if state.Mode == models.TimerModeFocus && mode != models.TimerModeFocus {
		state.CycleCount++
	}
	state.Mode = mode
	state.TimeRemaining = settings.DurationFor(mode)
	state.IsRunning = false
	state.StartedAt = nil
	state.PausedAt = nil
	return state, nil
}

// Complete finishes the current session and suggests the next mode without
// applying it. Completing a focus session increments the cycle count and
// suggests a long break every fourth cycle; completing a break suggests focus.
// A timer that is neither running nor exhausted is left unchanged, reported by
// the third return value.
func Complete(state models.TimerState, now time.Time) (models.TimerState, models.TimerMode, bool) {
	if !state.IsRunning && Remaining(state, now) > 0 {
		return state, suggestNext(state.Mode, state.CycleCount), false
	}
	if state.Mode == models.TimerModeFocus {
		state.CycleCount++
	}
	suggested := suggestNext(state.Mode, state.CycleCount)
	state.IsRunning = false
	state.TimeRemaining = 0
	state.StartedAt = nil
	state.PausedAt = nil
	return state, suggested, true
}

func suggestNext(mode models.TimerMode, cycleCount int) models.TimerMode {
	if mode != models.TimerModeFocus {
		return models.TimerModeFocus
	}
	if cycleCount > 0 && cycleCount%4 == 0 {
		return models.TimerModeLongBreak
	}
	return models.TimerModeShortBreak
}
