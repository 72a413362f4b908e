package reference

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/config"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/handler"
)

var (
	// ErrFetchingDisabled is returned when a read needs a remote call inside a
	// fetching-disabled scope
	ErrFetchingDisabled = errors.New("fetching is disabled")

	// ErrNoRemoteID is returned when the entity's id field is empty
	ErrNoRemoteID = errors.New("entity has no remote id")
)

// Reference binds one local entity to its remote record. Like its handler, a
// Reference must not be used by more than one goroutine at a time.
type Reference struct {
	typ      *Type
	entity   Entity
	remoteID string
	cfg      config.Config
	handler  *handler.Handler
}

// New builds a reference for entity. The instance config adds the entity as
// the authorization source. With eager fetch declared and fetching enabled in
// ctx the remote record is fetched immediately.
func (t *Type) New(ctx context.Context, entity Entity) (*Reference, error) {
	return t.NewWithConfig(ctx, entity, config.Empty())
}

// NewWithConfig is New with extra per-instance overrides, such as an
// authorization override supplied by a collection
func (t *Type) NewWithConfig(ctx context.Context, entity Entity, overrides config.Config) (*Reference, error) {
	cfg, err := t.cfg.Merge(overrides).With(config.KeyAuthorizationSource, entity)
	if err != nil {
		return nil, err
	}

	remoteID, _ := entity.FieldValue(cfg.IDField())
	ref := &Reference{
		typ:      t,
		entity:   entity,
		remoteID: remoteID,
		cfg:      cfg,
	}

	if t.eager && t.FetchingEnabled(ctx) && remoteID != "" {
		if err := ref.Fetch(ctx); err != nil {
			return ref, err
		}
	}
	return ref, nil
}

// Type returns the reference type
func (r *Reference) Type() *Type {
	return r.typ
}

// Entity returns the bound local entity
func (r *Reference) Entity() Entity {
	return r.entity
}

// RemoteID returns the remote id read from the entity
func (r *Reference) RemoteID() string {
	return r.remoteID
}

// Config returns the instance config
func (r *Reference) Config() config.Config {
	return r.cfg
}

// HasHandler reports whether the handler has been created
func (r *Reference) HasHandler() bool {
	return r.handler != nil
}

// Handler returns the reference's handler, creating it on first use
func (r *Reference) Handler() (*handler.Handler, error) {
	if r.handler != nil {
		return r.handler, nil
	}
	if r.remoteID == "" {
		return nil, fmt.Errorf("%w: field %s", ErrNoRemoteID, r.cfg.IDField())
	}

	h, err := handler.New(r.remoteID, r.typ.handlerType.Retriever, r.cfg,
		handler.WithName(r.typ.handlerType.Name),
		handler.WithLogger(r.typ.logger),
		handler.WithMetrics(r.typ.metrics),
	)
	if err != nil {
		return nil, err
	}
	r.handler = h
	return h, nil
}

// Get reads an attribute of the remote record
func (r *Reference) Get(ctx context.Context, field string) (any, error) {
	h, err := r.readyHandler(ctx)
	if err != nil {
		return nil, err
	}
	return h.Attribute(ctx, field)
}

// Lookup reads an attribute, reporting a missing key with ok=false
func (r *Reference) Lookup(ctx context.Context, field string) (any, bool, error) {
	h, err := r.readyHandler(ctx)
	if err != nil {
		return nil, false, err
	}
	return h.Lookup(ctx, field)
}

// Fetch fetches the remote record
func (r *Reference) Fetch(ctx context.Context) error {
	if !r.typ.FetchingEnabled(ctx) {
		return r.disabled()
	}
	h, err := r.Handler()
	if err != nil {
		return err
	}
	return h.Fetch(ctx)
}

// Fresh forces a fetch and returns the reference for chaining
func (r *Reference) Fresh(ctx context.Context) (*Reference, error) {
	if err := r.Fetch(ctx); err != nil {
		return r, err
	}
	return r, nil
}

// AssignAttrs hydrates the handler from an already fetched payload
func (r *Reference) AssignAttrs(payload handler.Payload) error {
	h, err := r.Handler()
	if err != nil {
		return err
	}
	return h.AssignAttrs(payload)
}

// Fetched reports whether remote attributes are loaded
func (r *Reference) Fetched() bool {
	return r.handler != nil && r.handler.Fetched()
}

// Attrs returns a copy of the loaded attributes without fetching
func (r *Reference) Attrs() handler.Payload {
	if r.handler == nil {
		return handler.Payload{}
	}
	return r.handler.Attrs()
}

// readyHandler returns the handler when reading through it is allowed in ctx
func (r *Reference) readyHandler(ctx context.Context) (*handler.Handler, error) {
	h, err := r.Handler()
	if err != nil {
		return nil, err
	}
	if h.NeedsFetch() && !r.typ.FetchingEnabled(ctx) {
		return nil, r.disabled()
	}
	return h, nil
}

func (r *Reference) disabled() error {
	r.typ.logger.Debug("blocked fetch in fetching-disabled scope", zap.String("remote_id", r.remoteID))
	return fmt.Errorf("%w for %s (remote id %q)", ErrFetchingDisabled, r.typ.name, r.remoteID)
}
