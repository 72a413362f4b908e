// Package config holds the layered options that decide how, when and as whom
// a remote record is fetched.
//
// A Config is a value: every method that changes it returns a new Config and
// leaves the receiver untouched, so defaults shared by many handler types can
// never be mutated through an alias.
package config

import (
	"fmt"
	"reflect"
	"sort"
)

// Key names a recognized option
type Key string

const (
	// KeyAuthorization is a credential value or a producer invoked lazily
	KeyAuthorization Key = "authorization"
	// KeyAuthorizationSource is the entity on whose behalf authorization is resolved
	KeyAuthorizationSource Key = "authorization_source"
	// KeyMemoize reuses cached attributes instead of refetching on each read
	KeyMemoize Key = "memoize"
	// KeyIDField is the local entity field holding the remote identifier
	KeyIDField Key = "id_field"
	// KeyTransform is the ordered list of transform step names
	KeyTransform Key = "transform"
)

// DefaultIDField is the id field used when nothing overrides it
const DefaultIDField = "remote_resource_id"

// Keys lists every recognized option in a stable order
var Keys = []Key{
	KeyAuthorization,
	KeyAuthorizationSource,
	KeyMemoize,
	KeyIDField,
	KeyTransform,
}

// IsRecognized reports whether key is a known option
func IsRecognized(key Key) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Config is an immutable set of options
type Config struct {
	options map[Key]any
}

// AuthorizationFunc produces a credential for a source entity on demand
type AuthorizationFunc func(source any, cfg Config) (any, error)

// Defaults returns a Config with every recognized key set
func Defaults() Config {
	return Config{options: map[Key]any{
		KeyAuthorization:       "",
		KeyAuthorizationSource: nil,
		KeyMemoize:             true,
		KeyIDField:             DefaultIDField,
		KeyTransform:           []string{},
	}}
}

// Empty returns a Config with no keys set
func Empty() Config {
	return Config{}
}

// New builds a partial Config from a map, rejecting unrecognized keys
func New(values map[Key]any) (Config, error) {
	c := Config{options: make(map[Key]any, len(values))}
	for k, v := range values {
		if !IsRecognized(k) {
			return Config{}, &ConfigKeyError{Key: k}
		}
		if err := checkValue(k, v); err != nil {
			return Config{}, err
		}
		c.options[k] = normalize(k, v)
	}
	return c, nil
}

// MustNew is New for literal configs known to be valid
func MustNew(values map[Key]any) Config {
	c, err := New(values)
	if err != nil {
		panic(err)
	}
	return c
}

// With returns a copy of c with key set to value
func (c Config) With(key Key, value any) (Config, error) {
	if !IsRecognized(key) {
		return c, &ConfigKeyError{Key: key}
	}
	if err := checkValue(key, value); err != nil {
		return c, err
	}
	next := c.clone(1)
	next.options[key] = normalize(key, value)
	return next, nil
}

// Merge returns a Config holding the keys of both c and other; values from
// other win for keys present in both
func (c Config) Merge(other Config) Config {
	next := c.clone(len(other.options))
	for k, v := range other.options {
		next.options[k] = v
	}
	return next
}

// WithDefaults fills every unset recognized key from Defaults
func (c Config) WithDefaults() Config {
	return Defaults().Merge(c)
}

// Has reports whether key is set
func (c Config) Has(key Key) bool {
	_, ok := c.options[key]
	return ok
}

// Keys returns the set keys in stable order
func (c Config) Keys() []Key {
	keys := make([]Key, 0, len(c.options))
	for k := range c.options {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Get reads a key. Unrecognized keys and recognized keys that were never set
// both fail with a *ConfigKeyError.
func (c Config) Get(key Key) (any, error) {
	if !IsRecognized(key) {
		return nil, &ConfigKeyError{Key: key}
	}
	v, ok := c.options[key]
	if !ok {
		return nil, &ConfigKeyError{Key: key, Unset: true}
	}
	return v, nil
}

// Authorization returns the stored authorization value or producer
func (c Config) Authorization() any {
	return c.lookup(KeyAuthorization)
}

// AuthorizationSource returns the entity authorization is resolved for
func (c Config) AuthorizationSource() any {
	return c.lookup(KeyAuthorizationSource)
}

// Memoize reports whether fetched attributes are reused
func (c Config) Memoize() bool {
	b, _ := c.lookup(KeyMemoize).(bool)
	return b
}

// IDField returns the local entity field holding the remote id
func (c Config) IDField() string {
	s, _ := c.lookup(KeyIDField).(string)
	if s == "" {
		return DefaultIDField
	}
	return s
}

// Transform returns a copy of the transform step names
func (c Config) Transform() []string {
	names, _ := c.lookup(KeyTransform).([]string)
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// ResolveAuthorization returns the credential to use for a remote call.
// Producers are invoked with the authorization source and the config as far
// as their signature takes them; any other value is returned verbatim.
func (c Config) ResolveAuthorization() (any, error) {
	authz := c.Authorization()
	if produce, ok := asProducer(authz); ok {
		return produce(c.AuthorizationSource(), c)
	}
	return authz, nil
}

// asProducer adapts every supported producer signature to AuthorizationFunc
func asProducer(v any) (AuthorizationFunc, bool) {
	switch fn := v.(type) {
	case AuthorizationFunc:
		return fn, true
	case func(source any, cfg Config) (any, error):
		return fn, true
	case func(source any, cfg Config) (string, error):
		return func(source any, cfg Config) (any, error) { return fn(source, cfg) }, true
	case func(source any) (any, error):
		return func(source any, _ Config) (any, error) { return fn(source) }, true
	case func(source any) (string, error):
		return func(source any, _ Config) (any, error) { return fn(source) }, true
	case func() (any, error):
		return func(any, Config) (any, error) { return fn() }, true
	case func() (string, error):
		return func(any, Config) (any, error) { return fn() }, true
	}
	return nil, false
}

// checkValue rejects functions stored under authorization that no producer
// signature matches; they would otherwise be sent as the credential itself
func checkValue(key Key, v any) error {
	if key != KeyAuthorization || v == nil {
		return nil
	}
	if _, ok := asProducer(v); ok {
		return nil
	}
	if reflect.TypeOf(v).Kind() == reflect.Func {
		return fmt.Errorf("%w: %T", ErrUnsupportedProducer, v)
	}
	return nil
}

// String renders the config for logs without invoking producers
func (c Config) String() string {
	s := "{"
	for i, k := range c.Keys() {
		if i > 0 {
			s += " "
		}
		v := c.options[k]
		if k == KeyAuthorization {
			v = redact(v)
		}
		s += fmt.Sprintf("%s:%v", k, v)
	}
	return s + "}"
}

// lookup reads a key falling back to its default
func (c Config) lookup(key Key) any {
	if v, ok := c.options[key]; ok {
		return v
	}
	return Defaults().options[key]
}

func (c Config) clone(extra int) Config {
	next := Config{options: make(map[Key]any, len(c.options)+extra)}
	for k, v := range c.options {
		next.options[k] = v
	}
	return next
}

// normalize copies slices so callers cannot mutate a stored value
func normalize(key Key, v any) any {
	if key != KeyTransform {
		return v
	}
	switch names := v.(type) {
	case []string:
		out := make([]string, len(names))
		copy(out, names)
		return out
	case []any:
		out := make([]string, 0, len(names))
		for _, n := range names {
			out = append(out, fmt.Sprint(n))
		}
		return out
	case nil:
		return []string{}
	default:
		return v
	}
}

func redact(v any) string {
	switch v.(type) {
	case nil:
		return "<nil>"
	case string:
		if v == "" {
			return `""`
		}
		return "[redacted]"
	default:
		return "<producer>"
	}
}
