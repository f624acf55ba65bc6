package timer

import (
	"fmt"

	"github.com/fokashive/fokashive/internal/models"
)

// InvalidModeError is returned when a mode change names an unknown mode.
type InvalidModeError struct {
	Mode models.TimerMode
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid timer mode %q", string(e.Mode))
}
