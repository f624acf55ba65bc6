package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fokashive/fokashive/internal/models"
)

func testSettings() models.TimerSettings {
	return models.TimerSettings{
		FocusDuration:      1500,
		ShortBreakDuration: 300,
		LongBreakDuration:  900,
	}
}

func TestRemainingWhileRunning(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state := models.TimerState{
		Mode:          models.TimerModeFocus,
		TimeRemaining: 100,
		IsRunning:     true,
		StartedAt:     &start,
	}

	assert.Equal(t, 100, Remaining(state, start))
	assert.Equal(t, 70, Remaining(state, start.Add(30*time.Second)))
	assert.Equal(t, 0, Remaining(state, start.Add(100*time.Second)))
	assert.Equal(t, 0, Remaining(state, start.Add(2*time.Hour)), "remaining never goes negative")
}

func TestRemainingWhileStopped(t *testing.T) {
	state := models.TimerState{
		Mode:          models.TimerModeFocus,
		TimeRemaining: 42,
	}
	// A stopped timer reports its checkpointed value regardless of time.
	assert.Equal(t, 42, Remaining(state, time.Now()))
	assert.Equal(t, 42, Remaining(state, time.Now().Add(time.Hour)))
}

func TestStartAndPauseRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state := models.NewTimerState(testSettings())

	started := Start(state, now)
	assert.True(t, started.IsRunning)
	require.NotNil(t, started.StartedAt)
	assert.Equal(t, now, *started.StartedAt)
	assert.Nil(t, started.PausedAt)

	later := now.Add(90 * time.Second)
	paused := Pause(started, later, nil)
	assert.False(t, paused.IsRunning)
	assert.Equal(t, 1410, paused.TimeRemaining)
	assert.Nil(t, paused.StartedAt)
	require.NotNil(t, paused.PausedAt)
	assert.Equal(t, later, *paused.PausedAt)
}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state := Start(models.NewTimerState(testSettings()), now)

	again := Start(state, now.Add(time.Minute))
	assert.Equal(t, state, again, "starting a running timer changes nothing")
}

func TestPauseStoppedTimerIsNoOp(t *testing.T) {
	state := models.NewTimerState(testSettings())
	paused := Pause(state, time.Now(), nil)
	assert.Equal(t, state, paused)
}

func TestPauseHonorsClientRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state := Start(models.NewTimerState(testSettings()), now)

	client := 1234
	paused := Pause(state, now.Add(10*time.Second), &client)
	assert.Equal(t, 1234, paused.TimeRemaining)

	negative := -5
	paused = Pause(state, now.Add(10*time.Second), &negative)
	assert.Equal(t, 0, paused.TimeRemaining, "client-reported value clamps at zero")
}

func TestResetRestoresModeDuration(t *testing.T) {
	settings := testSettings()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	state := Start(models.NewTimerState(settings), now)
	state.CycleCount = 2

	reset := Reset(state, settings)
	assert.False(t, reset.IsRunning)
	assert.Equal(t, settings.FocusDuration, reset.TimeRemaining)
	assert.Equal(t, 2, reset.CycleCount, "reset keeps the cycle count")
	assert.Nil(t, reset.StartedAt)
	assert.Nil(t, reset.PausedAt)
}

func TestChangeModeFromFocusIncrementsCycle(t *testing.T) {
	settings := testSettings()
	state := models.NewTimerState(settings)

	next, err := ChangeMode(state, settings, models.TimerModeShortBreak)
	require.NoError(t, err)
	assert.Equal(t, models.TimerModeShortBreak, next.Mode)
	assert.Equal(t, settings.ShortBreakDuration, next.TimeRemaining)
	assert.False(t, next.IsRunning)
	assert.Equal(t, 1, next.CycleCount)

	// Break to focus does not count a cycle.
	back, err := ChangeMode(next, settings, models.TimerModeFocus)
	require.NoError(t, err)
	assert.Equal(t, 1, back.CycleCount)

	// Break to break does not count a cycle either.
	long, err := ChangeMode(next, settings, models.TimerModeLongBreak)
	require.NoError(t, err)
	assert.Equal(t, 1, long.CycleCount)
}

func TestChangeModeRejectsUnknownMode(t *testing.T) {
	settings := testSettings()
	state := models.NewTimerState(settings)

	_, err := ChangeMode(state, settings, models.TimerMode("nap"))
	var invalid *InvalidModeError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.TimerMode("nap"), invalid.Mode)
}

func TestCompleteFocusSuggestsBreak(t *testing.T) {
	settings := testSettings()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	state := Start(models.NewTimerState(settings), now)
	done, suggested, completed := Complete(state, now.Add(1501*time.Second))

	assert.True(t, completed)
	assert.False(t, done.IsRunning)
	assert.Equal(t, 0, done.TimeRemaining)
	assert.Equal(t, 1, done.CycleCount)
	assert.Equal(t, models.TimerModeShortBreak, suggested)
}

func TestCompleteFourthFocusSuggestsLongBreak(t *testing.T) {
	settings := testSettings()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	state := Start(models.NewTimerState(settings), now)
	state.CycleCount = 3

	done, suggested, completed := Complete(state, now.Add(time.Hour))
	assert.True(t, completed)
	assert.Equal(t, 4, done.CycleCount)
	assert.Equal(t, models.TimerModeLongBreak, suggested)
}

func TestCompleteBreakSuggestsFocus(t *testing.T) {
	settings := testSettings()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	state := models.NewTimerState(settings)
	var err error
	state, err = ChangeMode(state, settings, models.TimerModeShortBreak)
	require.NoError(t, err)
	state = Start(state, now)

	done, suggested, completed := Complete(state, now.Add(time.Hour))
	assert.True(t, completed)
	assert.Equal(t, models.TimerModeFocus, suggested)
	assert.Equal(t, 1, done.CycleCount, "completing a break does not count a cycle")
}

func TestCompleteUnexhaustedStoppedTimerIsNoOp(t *testing.T) {
	settings := testSettings()
	state := models.NewTimerState(settings)

	done, suggested, completed := Complete(state, time.Now())
	assert.False(t, completed)
	assert.Equal(t, state, done)
	assert.Equal(t, models.TimerModeShortBreak, suggested)
}

func TestDeriveNeverNegativeAcrossSequence(t *testing.T) {
	settings := testSettings()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state := models.NewTimerState(settings)

	steps := []time.Duration{0, time.Second, time.Minute, 20 * time.Minute, 25 * time.Minute, 26 * time.Minute, 3 * time.Hour}
	state = Start(state, now)
	for _, step := range steps {
		at := now.Add(step)
		derived := Derive(state, at)
		assert.GreaterOrEqual(t, derived.TimeRemaining, 0, "remaining at +%s", step)
	}
}
