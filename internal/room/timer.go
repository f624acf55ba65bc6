package room

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fokashive/fokashive/internal/auth"
	"github.com/fokashive/fokashive/internal/broadcast"
	"github.com/fokashive/fokashive/internal/models"
	"github.com/fokashive/fokashive/internal/timer"
)

// Timer commands. Each one authorizes the caller as host inside the registry's
// atomic update, so an unauthorized command aborts before any state changes,
// then broadcasts the resulting checkpoint with derived remaining time.

// StartTimer begins the room's countdown.
func (a *App) StartTimer(ctx context.Context, roomID uuid.UUID, caller auth.Identity) error {
	now := a.clock.Now()
	return a.applyTimerCommand(ctx, roomID, caller, broadcast.EventTimerStarted, func(r *models.Room) error {
		r.TimerState = timer.Start(r.TimerState, now)
		return nil
	})
}

// PauseTimer stops the countdown. When the client reports its locally counted
// remaining seconds that value is checkpointed instead of the derived one.
func (a *App) PauseTimer(ctx context.Context, roomID uuid.UUID, caller auth.Identity, clientRemaining *int) error {
	now := a.clock.Now()
	return a.applyTimerCommand(ctx, roomID, caller, broadcast.EventTimerPaused, func(r *models.Room) error {
		r.TimerState = timer.Pause(r.TimerState, now, clientRemaining)
		return nil
	})
}

// ResetTimer restores the full duration for the current mode, stopped.
func (a *App) ResetTimer(ctx context.Context, roomID uuid.UUID, caller auth.Identity) error {
	return a.applyTimerCommand(ctx, roomID, caller, broadcast.EventTimerReset, func(r *models.Room) error {
		r.TimerState = timer.Reset(r.TimerState, r.TimerSettings)
		return nil
	})
}

// ChangeTimerMode switches the timer to the given mode at full duration.
func (a *App) ChangeTimerMode(ctx context.Context, roomID uuid.UUID, caller auth.Identity, mode models.TimerMode) error {
	return a.applyTimerCommand(ctx, roomID, caller, broadcast.EventTimerModeChange, func(r *models.Room) error {
		next, err := timer.ChangeMode(r.TimerState, r.TimerSettings, mode)
		if err != nil {
			return err
		}
		r.TimerState = next
		return nil
	})
}

// CompleteTimer checkpoints a finished session and broadcasts the advisory
// next mode. The suggestion is never applied server-side; the host issues an
// explicit mode change to follow it. A completion claim against a timer that
// is stopped with time left changes nothing and broadcasts nothing.
func (a *App) CompleteTimer(ctx context.Context, roomID uuid.UUID, caller auth.Identity) error {
	now := a.clock.Now()
	var suggested models.TimerMode
	updated, err := a.repo.UpdateRoom(ctx, roomID, func(r *models.Room) error {
		if r.HostID != caller.UserID {
			return ErrNotHost
		}
		next, nextMode, completed := timer.Complete(r.TimerState, now)
		if !completed {
			return errNoEffect
		}
		r.TimerState = next
		suggested = nextMode
		return nil
	})
	if errors.Is(err, errNoEffect) {
		return nil
	}
	if err != nil {
		return err
	}

	a.bcast.Room(ctx, updated.ID.String(), updated.Version, broadcast.EventTimerCompleted, TimerCompletedPayload{
		TimerState:        timer.Derive(updated.TimerState, now),
		SuggestedNextMode: suggested,
	})
	log.Debug().
		Str("room_id", updated.ID.String()).
		Int("cycle_count", updated.TimerState.CycleCount).
		Str("suggested_mode", string(suggested)).
		Msg("timer completed")
	return nil
}

func (a *App) applyTimerCommand(ctx context.Context, roomID uuid.UUID, caller auth.Identity, eventType broadcast.EventType, fn func(*models.Room) error) error {
	updated, err := a.repo.UpdateRoom(ctx, roomID, func(r *models.Room) error {
		if r.HostID != caller.UserID {
			return ErrNotHost
		}
		return fn(r)
	})
	if err != nil {
		return err
	}

	a.bcast.Room(ctx, updated.ID.String(), updated.Version, eventType, timer.Derive(updated.TimerState, a.clock.Now()))
	return nil
}
