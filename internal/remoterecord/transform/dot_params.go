package transform

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	pairSeparator  = ";"
	valueSeparator = ":"
	pathSeparator  = "."
)

// DotParams flattens nested mappings into "outer.inner" keys and serializes
// them as a single "key:value;key:value" string, the form some search
// endpoints expect as a query parameter. Down parses such a string back into
// nested mappings; values come back as strings.
type DotParams struct{}

// Name implements Step
func (DotParams) Name() string { return "dot_params" }

// Apply implements Step
func (d DotParams) Apply(data any, dir Direction) (any, error) {
	if dir == Down {
		s, ok := data.(string)
		if !ok {
			return nil, fmt.Errorf("%w: dot_params down expects a string, got %T", ErrNotMapping, data)
		}
		return ParseDotParams(s)
	}

	m, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: dot_params up expects a mapping, got %T", ErrNotMapping, data)
	}
	return EncodeDotParams(m), nil
}

// EncodeDotParams flattens and serializes m with keys in sorted order
func EncodeDotParams(m map[string]any) string {
	flat := make(map[string]any)
	flatten("", m, flat)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+valueSeparator+url.QueryEscape(formatValue(flat[k])))
	}
	return strings.Join(pairs, pairSeparator)
}

// ParseDotParams is the inverse of EncodeDotParams
func ParseDotParams(s string) (map[string]any, error) {
	out := make(map[string]any)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}

	for _, pair := range strings.Split(s, pairSeparator) {
		if pair == "" {
			continue
		}
		rawKey, rawValue, ok := strings.Cut(pair, valueSeparator)
		if !ok {
			return nil, fmt.Errorf("%w: pair %q has no %q", ErrMalformedParams, pair, valueSeparator)
		}
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedParams, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedParams, err)
		}
		if err := insertPath(out, strings.Split(key, pathSeparator), value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func flatten(prefix string, m map[string]any, into map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + pathSeparator + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, into)
			continue
		}
		into[key] = v
	}
}

func insertPath(m map[string]any, path []string, value string) error {
	head := path[0]
	if len(path) == 1 {
		if _, exists := m[head]; exists {
			return fmt.Errorf("%w: key %q given twice", ErrMalformedParams, head)
		}
		m[head] = value
		return nil
	}

	next, exists := m[head]
	if !exists {
		child := make(map[string]any)
		m[head] = child
		return insertPath(child, path[1:], value)
	}
	child, ok := next.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: key %q is both a value and a group", ErrMalformedParams, head)
	}
	return insertPath(child, path[1:], value)
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
