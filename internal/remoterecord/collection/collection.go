// Package collection hydrates many references with as few remote calls as
// the handler type allows.
//
// When the handler type implements handler.Lister (or handler.Finder for
// Where), a collection makes one bulk call and matches the response to local
// entities in memory. Otherwise it falls back to one fetch per entity.
package collection

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/config"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/handler"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/metrics"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/reference"
)

var (
	// ErrWhereNotSupported is returned by Where when the handler type has no
	// Finder
	ErrWhereNotSupported = errors.New("handler type does not support filtered retrieval")

	// ErrNoCreator is returned when the response holds records with no local
	// entity and the collection cannot create one
	ErrNoCreator = errors.New("collection has no creator for unmatched remote records")
)

// Creator makes a local entity for a remote record that has none
type Creator interface {
	Create(ctx context.Context, remoteID string) (reference.Entity, error)
}

// CreatorFunc adapts a function to Creator
type CreatorFunc func(ctx context.Context, remoteID string) (reference.Entity, error)

// Create implements Creator
func (f CreatorFunc) Create(ctx context.Context, remoteID string) (reference.Entity, error) {
	return f(ctx, remoteID)
}

// Index looks up local entities by remote id, typically with one indexed
// query against persistent storage
type Index interface {
	FindByRemoteIDs(ctx context.Context, ids []string) ([]reference.Entity, error)
}

// Collection is a set of local entities of one reference type
type Collection struct {
	typ         *reference.Type
	entities    []reference.Entity
	creator     Creator
	index       Index
	overrides   config.Config
	remoteIDKey string
	logger      *zap.Logger
	metrics     *metrics.Collector

	result Result
}

// Option configures a Collection
type Option func(*Collection)

// WithCreator sets how new local entities are made for unmatched remote
// records
func WithCreator(c Creator) Option {
	return func(col *Collection) { col.creator = c }
}

// WithIndex looks up local entities for a bulk response through idx, in
// addition to the entities the collection was built with
func WithIndex(idx Index) Option {
	return func(col *Collection) { col.index = idx }
}

// WithConfig merges overrides into the bulk request and into every reference
// the collection builds
func WithConfig(cfg config.Config) Option {
	return func(col *Collection) { col.overrides = col.overrides.Merge(cfg) }
}

// WithRemoteIDKey sets the payload key holding the remote id
func WithRemoteIDKey(key string) Option {
	return func(col *Collection) { col.remoteIDKey = key }
}

// New builds a collection over entities. Logging and metrics default to the
// reference type's.
func New(typ *reference.Type, entities []reference.Entity, opts ...Option) *Collection {
	c := &Collection{
		typ:         typ,
		entities:    entities,
		overrides:   config.Empty(),
		remoteIDKey: DefaultRemoteIDKey,
		logger:      typ.Logger(),
		metrics:     typ.Metrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Len returns the number of local entities the collection was built with
func (c *Collection) Len() int {
	return len(c.entities)
}

// Result returns the partition from the last All or Where call
func (c *Collection) Result() Result {
	return c.result
}

// All hydrates every entity. With a Lister this is one bulk call followed by
// in-memory reconciliation, and remote records with no local entity are
// created. Without one, each entity with a remote id is fetched on its own.
func (c *Collection) All(ctx context.Context) ([]*reference.Reference, error) {
	ht := c.typ.HandlerType()
	if !ht.SupportsListAll() {
		return c.fetchEach(ctx)
	}

	payloads, err := ht.Lister.ListAll(ctx, c.request())
	c.metrics.BulkCall(ht.Name, "list_all", err)
	if err != nil {
		return nil, err
	}
	return c.reconcile(ctx, payloads)
}

// Where hydrates the entities matching params with one Find call
func (c *Collection) Where(ctx context.Context, params handler.Payload) ([]*reference.Reference, error) {
	ht := c.typ.HandlerType()
	if !ht.SupportsFind() {
		return nil, fmt.Errorf("%w: %s", ErrWhereNotSupported, ht.Name)
	}

	payloads, err := ht.Finder.Find(ctx, c.request(), params)
	c.metrics.BulkCall(ht.Name, "find", err)
	if err != nil {
		return nil, err
	}
	return c.reconcile(ctx, payloads)
}

func (c *Collection) request() *handler.Request {
	return &handler.Request{
		Handler: c.typ.HandlerType().Name,
		Config:  c.typ.Config().Merge(c.overrides),
	}
}

func (c *Collection) reconcile(ctx context.Context, payloads []handler.Payload) ([]*reference.Reference, error) {
	name := c.typ.HandlerType().Name

	local, err := c.localEntities(ctx, payloads)
	if err != nil {
		return nil, err
	}

	res := Reconcile(local, c.typ.IDField(), payloads, c.remoteIDKey)
	c.result = res

	if len(res.UnmatchedRemote) > 0 && c.creator == nil {
		return nil, fmt.Errorf("%w: %d records from %s", ErrNoCreator, len(res.UnmatchedRemote), name)
	}

	// Entities are built and hydrated from the response; nothing here may
	// reach the remote.
	quiet := c.typ.WithFetchingDisabled(ctx)
	refs := make([]*reference.Reference, 0, res.Size())

	for _, m := range res.Matched {
		ref, err := c.hydrate(quiet, m.Entity, m.Payload)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	for _, r := range res.UnmatchedRemote {
		entity, err := c.creator.Create(quiet, r.RemoteID)
		if err != nil {
			return nil, fmt.Errorf("failed to create local entity for %s %s: %w", name, r.RemoteID, err)
		}
		ref, err := c.hydrate(quiet, entity, r.Payload)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	for _, p := range res.Skipped {
		c.logger.Warn("skipped remote record without id",
			zap.String("handler", name),
			zap.String("id_key", c.remoteIDKey),
			zap.Int("attributes", len(p)))
	}

	c.metrics.Reconciled(name, metrics.ResultMatched, len(res.Matched))
	c.metrics.Reconciled(name, metrics.ResultCreated, len(res.UnmatchedRemote))
	c.metrics.Reconciled(name, metrics.ResultUnmatchedLocal, len(res.UnmatchedLocal))
	c.metrics.Reconciled(name, metrics.ResultSkipped, len(res.Skipped))

	c.logger.Info("reconciled collection",
		zap.String("handler", name),
		zap.Int("remote", len(payloads)),
		zap.Int("matched", len(res.Matched)),
		zap.Int("created", len(res.UnmatchedRemote)),
		zap.Int("unmatched_local", len(res.UnmatchedLocal)),
		zap.Int("skipped", len(res.Skipped)))

	return refs, nil
}

// localEntities returns the collection's entities plus those found through
// the index for ids not already present
func (c *Collection) localEntities(ctx context.Context, payloads []handler.Payload) ([]reference.Entity, error) {
	if c.index == nil {
		return c.entities, nil
	}

	idField := c.typ.IDField()
	present := make(map[string]bool, len(c.entities))
	for _, e := range c.entities {
		if id, ok := e.FieldValue(idField); ok {
			present[id] = true
		}
	}

	var missing []string
	for _, id := range remoteIDs(payloads, c.remoteIDKey) {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return c.entities, nil
	}

	found, err := c.index.FindByRemoteIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to look up local entities: %w", err)
	}

	local := make([]reference.Entity, 0, len(c.entities)+len(found))
	local = append(local, c.entities...)
	local = append(local, found...)
	return local, nil
}

func (c *Collection) hydrate(ctx context.Context, entity reference.Entity, payload handler.Payload) (*reference.Reference, error) {
	ref, err := c.typ.NewWithConfig(ctx, entity, c.overrides)
	if err != nil {
		return nil, err
	}
	if err := ref.AssignAttrs(payload); err != nil {
		return nil, err
	}
	return ref, nil
}

// fetchEach is the fallback for handler types without bulk retrieval: one
// Fresh per entity that has a remote id
func (c *Collection) fetchEach(ctx context.Context) ([]*reference.Reference, error) {
	name := c.typ.HandlerType().Name
	c.logger.Debug("handler type has no bulk retrieval, fetching each entity",
		zap.String("handler", name),
		zap.Int("entities", len(c.entities)))

	var res Result
	refs := make([]*reference.Reference, 0, len(c.entities))
	for _, entity := range c.entities {
		ref, err := c.typ.NewWithConfig(ctx, entity, c.overrides)
		if err != nil {
			return nil, err
		}
		if ref.RemoteID() == "" {
			res.UnmatchedLocal = append(res.UnmatchedLocal, entity)
			continue
		}

		c.metrics.FallbackFetch(name)
		if _, err := ref.Fresh(ctx); err != nil {
			return nil, err
		}
		res.Matched = append(res.Matched, Match{Entity: entity, Payload: ref.Attrs()})
		refs = append(refs, ref)
	}

	c.result = res
	c.metrics.Reconciled(name, metrics.ResultMatched, len(res.Matched))
	c.metrics.Reconciled(name, metrics.ResultUnmatchedLocal, len(res.UnmatchedLocal))
	return refs, nil
}
