package handler

import (
	"errors"
	"fmt"
)

// ErrNoRetriever is returned when a handler is built without a source
var ErrNoRetriever = errors.New("handler has no retriever")

// AttributeNotFoundError is returned when a fetched payload lacks a key
type AttributeNotFoundError struct {
	Name     string
	RemoteID string
}

// Error implements the error interface
func (e *AttributeNotFoundError) Error() string {
	return fmt.Sprintf("attribute %q not found on remote record %q", e.Name, e.RemoteID)
}

// AttributeTypeError is returned by Typed when the value has another type
type AttributeTypeError struct {
	Name string
	Want string
	Got  any
}

// Error implements the error interface
func (e *AttributeTypeError) Error() string {
	return fmt.Sprintf("attribute %q is %T, not %s", e.Name, e.Got, e.Want)
}

// IsAttributeNotFound reports whether err is an *AttributeNotFoundError
func IsAttributeNotFound(err error) bool {
	var target *AttributeNotFoundError
	return errors.As(err, &target)
}
