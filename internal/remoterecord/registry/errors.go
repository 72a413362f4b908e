package registry

import "fmt"

// HandlerNotFoundError is returned when no handler type is registered under
// the explicit or inferred name
type HandlerNotFoundError struct {
	Name          string
	ReferenceType string
	Inferred      bool
}

// Error implements the error interface
func (e *HandlerNotFoundError) Error() string {
	msg := fmt.Sprintf("handler type %s couldn't be found for %s", e.Name, e.ReferenceType)
	if e.Inferred {
		msg += "; perhaps you need to name the handler type explicitly?"
	}
	return msg
}

// HandlerContractError is returned when a registered handler type does not
// implement Retrieve
type HandlerContractError struct {
	Name string
	Type string
}

// Error implements the error interface
func (e *HandlerContractError) Error() string {
	return fmt.Sprintf("handler type %s (%s) does not implement Retrieve", e.Name, e.Type)
}
