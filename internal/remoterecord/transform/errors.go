package transform

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTransform is returned when a pipeline names an unregistered step
	ErrUnknownTransform = errors.New("unknown transform")

	// ErrNotMapping is returned when a step receives or produces something
	// other than the mapping it works on
	ErrNotMapping = errors.New("payload is not a mapping")

	// ErrMalformedParams is returned when a dot-params string cannot be parsed
	ErrMalformedParams = errors.New("malformed dot params")
)

// InvalidDirectionError is returned for any direction other than up or down
type InvalidDirectionError struct {
	Direction string
}

// Error implements the error interface
func (e *InvalidDirectionError) Error() string {
	return fmt.Sprintf("invalid transform direction %q: must be %q or %q", e.Direction, Up, Down)
}
