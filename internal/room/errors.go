package room

import (
	"errors"
	"fmt"
)

// ErrRoomNotFound is returned when the referenced room does not exist.
var ErrRoomNotFound = errors.New("room not found")

// ErrRoomNameTaken is returned when a room name collides with an existing
// room. Names are never silently renamed.
var ErrRoomNameTaken = errors.New("room name already in use")

// ErrNotHost is returned when a non-host user issues a timer command. The
// operation has no side effects.
var ErrNotHost = errors.New("only host can control timer")

// errNoEffect aborts an atomic update that would change nothing, so no
// version bump or broadcast happens. Never returned to callers.
var errNoEffect = errors.New("no effect")

// ValidationError reports a rejected input, naming the offending field. It is
// returned to the originating caller only and never broadcast.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
