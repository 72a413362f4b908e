package reference

import "context"

// fetchingKey scopes the fetching mode to one reference type
type fetchingKey struct {
	typ *Type
}

// WithFetchingDisabled returns a context in which references of this type
// do not fetch. Building a reference does not populate its handler, and any
// read that would need a remote call fails with ErrFetchingDisabled.
// Attributes already assigned (for example by reconciliation) stay readable.
//
// The mode lives on the context, so scopes nest: the innermost scope wins and
// code holding the outer context still sees the outer mode. Concurrent
// requests with their own contexts never observe each other's mode.
func (t *Type) WithFetchingDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, fetchingKey{typ: t}, false)
}

// WithFetchingEnabled re-enables fetching inside a disabled scope
func (t *Type) WithFetchingEnabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, fetchingKey{typ: t}, true)
}

// FetchingEnabled reports the fetching mode for this type in ctx
func (t *Type) FetchingEnabled(ctx context.Context) bool {
	enabled, ok := ctx.Value(fetchingKey{typ: t}).(bool)
	if !ok {
		return true
	}
	return enabled
}

// WithoutFetching runs fn in a fetching-disabled scope and returns its error
func (t *Type) WithoutFetching(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(t.WithFetchingDisabled(ctx))
}
