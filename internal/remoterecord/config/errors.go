package config

import (
	"errors"
	"fmt"
)

// ErrUnsupportedProducer is returned when authorization holds a function
// whose signature is not a recognized producer
var ErrUnsupportedProducer = errors.New("unsupported authorization producer")

// ConfigKeyError is returned when reading or writing an option that is not
// recognized, or reading a recognized option that was never set
type ConfigKeyError struct {
	Key   Key
	Unset bool
}

// Error implements the error interface
func (e *ConfigKeyError) Error() string {
	if e.Unset {
		return fmt.Sprintf("config key %q is not set", string(e.Key))
	}
	return fmt.Sprintf("unrecognized config key %q", string(e.Key))
}
