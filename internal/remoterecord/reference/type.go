// Package reference binds local entities to remote records.
//
// A Type is declared once per kind of reference (for example
// "TodoReference") and resolves its handler type from a registry at
// declaration time. Each Reference built from a Type owns at most one
// handler, created on first use, and reads remote attributes through it.
//
//	typ, err := reference.Declare(reg, "TodoReference",
//		reference.WithConfig(config.MustNew(map[config.Key]any{config.KeyMemoize: true})))
//	ref, err := typ.New(ctx, record)
//	title, err := ref.Get(ctx, "title")
//
// Fetching can be disabled for a type within a context scope so that bulk
// code can build many references without triggering remote calls; see
// Type.WithFetchingDisabled.
package reference

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/config"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/metrics"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/registry"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/transform"
)

// Entity is a local record that holds the id of a remote record in one of
// its fields
type Entity interface {
	FieldValue(name string) (string, bool)
	SetFieldValue(name, value string) error
}

// Type is a declared kind of reference
type Type struct {
	name        string
	handlerType *registry.HandlerType
	cfg         config.Config
	eager       bool
	logger      *zap.Logger
	metrics     *metrics.Collector
}

type declaration struct {
	handlerName string
	overrides   config.Config
	field       string
	eager       bool
	logger      *zap.Logger
	metrics     *metrics.Collector
}

// DeclareOption configures a declaration
type DeclareOption func(*declaration)

// WithHandler names the handler type explicitly instead of inferring it
func WithHandler(name string) DeclareOption {
	return func(d *declaration) { d.handlerName = name }
}

// WithConfig layers overrides on top of the handler type's defaults
func WithConfig(cfg config.Config) DeclareOption {
	return func(d *declaration) { d.overrides = d.overrides.Merge(cfg) }
}

// WithField sets the entity field that holds the remote id
func WithField(name string) DeclareOption {
	return func(d *declaration) { d.field = name }
}

// WithEagerFetch fetches as soon as a reference is built, unless fetching is
// disabled in the constructing context
func WithEagerFetch() DeclareOption {
	return func(d *declaration) { d.eager = true }
}

// WithLogger sets the logger passed to handlers
func WithLogger(logger *zap.Logger) DeclareOption {
	return func(d *declaration) { d.logger = logger }
}

// WithMetrics sets the metrics collector passed to handlers
func WithMetrics(c *metrics.Collector) DeclareOption {
	return func(d *declaration) { d.metrics = c }
}

// Declare resolves the handler type for a reference type and fixes its
// config: handler type defaults, then declaration overrides. Registry errors
// are returned unwrapped so callers can match HandlerNotFoundError and
// HandlerContractError directly.
func Declare(reg *registry.Registry, name string, opts ...DeclareOption) (*Type, error) {
	d := &declaration{overrides: config.Empty()}
	for _, opt := range opts {
		opt(d)
	}

	ht, err := reg.Resolve(name, d.handlerName)
	if err != nil {
		return nil, err
	}

	cfg := config.Defaults().Merge(ht.Defaults).Merge(d.overrides)
	if d.field != "" {
		cfg, err = cfg.With(config.KeyIDField, d.field)
		if err != nil {
			return nil, err
		}
	}

	// Validate the pipeline once here rather than on every handler. Fetched
	// payloads merge into attributes, so the up pipeline must end in a mapping.
	up, err := transform.NewPipeline(cfg.Transform(), transform.Up)
	if err != nil {
		return nil, fmt.Errorf("reference type %s: %w", name, err)
	}
	if _, err := up.ApplyMap(map[string]any{}); err != nil {
		return nil, fmt.Errorf("reference type %s: %w", name, err)
	}

	logger := d.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Type{
		name:        name,
		handlerType: ht,
		cfg:         cfg,
		eager:       d.eager,
		logger:      logger.With(zap.String("reference_type", name)),
		metrics:     d.metrics,
	}, nil
}

// Name returns the reference type name
func (t *Type) Name() string {
	return t.name
}

// HandlerType returns the resolved handler type
func (t *Type) HandlerType() *registry.HandlerType {
	return t.handlerType
}

// Config returns the declaration-level config
func (t *Type) Config() config.Config {
	return t.cfg
}

// IDField returns the entity field holding the remote id
func (t *Type) IDField() string {
	return t.cfg.IDField()
}

// Logger returns the type's logger
func (t *Type) Logger() *zap.Logger {
	return t.logger
}

// Metrics returns the type's metrics collector, which may be nil
func (t *Type) Metrics() *metrics.Collector {
	return t.metrics
}
