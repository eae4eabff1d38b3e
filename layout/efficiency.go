package layout

import (
	"fmt"

	"github.com/tanaylab/daf-go/internal/daferr"
	"github.com/tanaylab/daf-go/internal/dlog"
)

// Handling is the abnormal-condition policy dial: ignore, warn, error.
type Handling int

const (
	Ignore Handling = iota
	Warn
	Error
)

// ParseHandling recognizes the three policy names, defaulting to Warn per
// the default, Warn, when the string is empty.
func ParseHandling(s string) (Handling, error) {
	switch s {
	case "", "warn":
		return Warn, nil
	case "ignore":
		return Ignore, nil
	case "error":
		return Error, nil
	default:
		return Warn, fmt.Errorf("daf: unknown abnormal-condition handler %q", s)
	}
}

// CheckEfficiency implements the with-the-grain check: an action names the
// axis it would iterate along (requestedAxis); if that differs from the
// matrix's actual major axis, invoke the configured handler with a message
// naming the operand, the requested axis and the matrix's element type.
func CheckEfficiency(log *dlog.Logger, handling Handling, operand string, requestedAxis MajorAxis, m *Matrix) error {
	if m.Major() == requestedAxis {
		return nil
	}
	msg := fmt.Sprintf("inefficient access of %q against the grain: requested along %s, major axis is %s, element type %s",
		operand, requestedAxis, m.Major(), m.Kind())
	switch handling {
	case Ignore:
		return nil
	case Warn:
		log.Println(msg)
		return nil
	case Error:
		return fmt.Errorf("%w: %s", daferr.ErrInefficientAction, msg)
	default:
		return nil
	}
}
