// Package transform provides the named, directional steps applied to payloads
// as they move between a remote service and the local side.
//
// Direction Up runs remote→local (for example renaming camelCase keys to
// snake_case); Down runs local→remote. Steps are stateless and composed left
// to right, so an empty pipeline is the identity.
package transform

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Direction selects which way a step converts data
type Direction string

const (
	// Up converts remote data for local use
	Up Direction = "up"
	// Down converts local data for the remote service
	Down Direction = "down"
)

// ParseDirection validates a direction name
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Up, Down:
		return d, nil
	default:
		return "", &InvalidDirectionError{Direction: s}
	}
}

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	if d == Up {
		return Down
	}
	return Up
}

// Step converts data in one direction
type Step interface {
	Name() string
	Apply(data any, dir Direction) (any, error)
}

// Pipeline is an ordered list of steps bound to one direction
type Pipeline struct {
	steps []Step
	dir   Direction
}

var (
	stepsMu sync.RWMutex
	steps   = map[string]Step{
		"snake_case": SnakeCase{},
		"dot_params": DotParams{},
	}
)

// Register adds a named step to the lookup table used by NewPipeline
func Register(step Step) error {
	stepsMu.Lock()
	defer stepsMu.Unlock()

	if _, exists := steps[step.Name()]; exists {
		return fmt.Errorf("transform %s is already registered", step.Name())
	}
	steps[step.Name()] = step
	return nil
}

// Lookup finds a registered step by name
func Lookup(name string) (Step, bool) {
	stepsMu.RLock()
	defer stepsMu.RUnlock()
	step, ok := steps[name]
	return step, ok
}

// Names lists the registered step names
func Names() []string {
	stepsMu.RLock()
	defer stepsMu.RUnlock()

	names := make([]string, 0, len(steps))
	for name := range steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewPipeline resolves step names and validates the direction up front so
// that a bad pipeline fails at construction rather than on first use
func NewPipeline(names []string, dir Direction) (*Pipeline, error) {
	if dir != Up && dir != Down {
		return nil, &InvalidDirectionError{Direction: string(dir)}
	}

	p := &Pipeline{dir: dir, steps: make([]Step, 0, len(names))}
	for _, name := range names {
		step, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTransform, name)
		}
		p.steps = append(p.steps, step)
	}
	return p, nil
}

// Direction returns the pipeline's direction
func (p *Pipeline) Direction() Direction {
	return p.dir
}

// Len returns the number of steps
func (p *Pipeline) Len() int {
	return len(p.steps)
}

// Apply runs each step in order, feeding the output of one to the next
func (p *Pipeline) Apply(data any) (any, error) {
	if p == nil {
		return data, nil
	}
	out := data
	for _, step := range p.steps {
		var err error
		out, err = step.Apply(out, p.dir)
		if err != nil {
			return nil, fmt.Errorf("transform %s (%s): %w", step.Name(), p.dir, err)
		}
	}
	return out, nil
}

// ApplyMap runs the pipeline and requires the result to still be a mapping
func (p *Pipeline) ApplyMap(data map[string]any) (map[string]any, error) {
	out, err := p.Apply(data)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotMapping, out)
	}
	return m, nil
}

// Reverse returns the inverse pipeline: steps in reverse order, run in the
// opposite direction
func (p *Pipeline) Reverse() *Pipeline {
	rev := &Pipeline{dir: p.dir.Opposite(), steps: make([]Step, len(p.steps))}
	for i, step := range p.steps {
		rev.steps[len(p.steps)-1-i] = step
	}
	return rev
}
