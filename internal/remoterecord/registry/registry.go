// Package registry maps handler type names to handler types
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/config"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/handler"
)

// ReferenceSuffix is trimmed from a reference type name to infer its handler
// type name: "TodoReference" resolves to "Todo"
const ReferenceSuffix = "Reference"

// HandlerType is a registered handler type together with the bulk
// capabilities it was found to implement
type HandlerType struct {
	Name      string
	Retriever handler.Retriever
	Lister    handler.Lister
	Finder    handler.Finder
	Defaults  config.Config
}

// SupportsListAll reports whether collections can use a single list call
func (t *HandlerType) SupportsListAll() bool {
	return t.Lister != nil
}

// SupportsFind reports whether collections can filter with a single call
func (t *HandlerType) SupportsFind() bool {
	return t.Finder != nil
}

type entry struct {
	impl     any
	defaults config.Config
}

// Registry holds handler types by name
type Registry struct {
	entries map[string]entry
	mu      sync.RWMutex
}

// New creates an empty registry
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a handler type. impl is validated when resolved, so a type
// missing Retrieve is still reported with a HandlerContractError at the point
// a reference type binds to it.
func (r *Registry) Register(name string, impl any, defaults config.Config) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("handler type name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("handler type %s is already registered", name)
	}
	r.entries[name] = entry{impl: impl, defaults: defaults}
	return nil
}

// MustRegister is Register for startup code that cannot continue on error
func (r *Registry) MustRegister(name string, impl any, defaults config.Config) {
	if err := r.Register(name, impl, defaults); err != nil {
		panic(err)
	}
}

// Resolve finds the handler type backing a reference type. A non-empty
// override names the handler type directly; otherwise the name is inferred
// by trimming the "Reference" suffix.
func (r *Registry) Resolve(referenceType, override string) (*HandlerType, error) {
	name := override
	if name == "" {
		name = InferName(referenceType)
	}

	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &HandlerNotFoundError{Name: name, ReferenceType: referenceType, Inferred: override == ""}
	}

	retriever, ok := e.impl.(handler.Retriever)
	if !ok || isNil(retriever) {
		return nil, &HandlerContractError{Name: name, Type: fmt.Sprintf("%T", e.impl)}
	}

	ht := &HandlerType{
		Name:      name,
		Retriever: retriever,
		Defaults:  e.defaults,
	}
	if lister, ok := e.impl.(handler.Lister); ok {
		ht.Lister = lister
	}
	if finder, ok := e.impl.(handler.Finder); ok {
		ht.Finder = finder
	}
	return ht, nil
}

// isNil also catches a typed nil, such as a nil pointer held in the interface
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Names returns the registered handler type names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InferName derives a handler type name from a reference type name
func InferName(referenceType string) string {
	return strings.TrimSuffix(referenceType, ReferenceSuffix)
}
