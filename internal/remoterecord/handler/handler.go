// Package handler owns the fetch and memoize state for one remote record.
//
// A Handler pairs a remote id and a layered config with the Retriever of its
// handler type. Fetched payloads pass through the config's transform pipeline
// (direction up) and are cached on the handler; attribute reads either reuse
// the cache (memoize) or refetch on every read.
//
// A Handler is not safe for concurrent use. Each handler is owned by a single
// reference and must be used by one caller at a time; no lock guards the
// cached attributes.
package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/config"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/metrics"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/transform"
)

// Handler fetches, transforms and caches a single remote record
type Handler struct {
	name     string
	remoteID string
	cfg      config.Config
	source   Retriever
	pipeline *transform.Pipeline
	attrs    Payload
	fetched  bool
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// Option configures a Handler
type Option func(*Handler)

// WithName sets the handler type name used in logs, metrics and requests
func WithName(name string) Option {
	return func(h *Handler) { h.name = name }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(c *metrics.Collector) Option {
	return func(h *Handler) { h.metrics = c }
}

// New creates a handler. Unset config keys take their defaults; the
// transform pipeline is resolved here so an invalid pipeline fails before any
// remote call is made.
func New(remoteID string, source Retriever, cfg config.Config, opts ...Option) (*Handler, error) {
	if source == nil {
		return nil, ErrNoRetriever
	}

	cfg = cfg.WithDefaults()
	pipeline, err := transform.NewPipeline(cfg.Transform(), transform.Up)
	if err != nil {
		return nil, fmt.Errorf("failed to build transform pipeline: %w", err)
	}

	h := &Handler{
		remoteID: remoteID,
		cfg:      cfg,
		source:   source,
		pipeline: pipeline,
		attrs:    make(Payload),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// RemoteID returns the remote identifier
func (h *Handler) RemoteID() string {
	return h.remoteID
}

// Name returns the handler type name
func (h *Handler) Name() string {
	return h.name
}

// Config returns the layered config
func (h *Handler) Config() config.Config {
	return h.cfg
}

// Fetched reports whether attributes have been fetched or assigned
func (h *Handler) Fetched() bool {
	return h.fetched
}

// Request builds the request passed to the retriever
func (h *Handler) Request() *Request {
	return &Request{Handler: h.name, RemoteID: h.remoteID, Config: h.cfg}
}

// Fetch calls the retriever and merges the transformed payload into the
// cache. Errors from the retriever are returned as is; nothing is retried and
// the cache is left untouched.
func (h *Handler) Fetch(ctx context.Context) error {
	payload, err := h.source.Retrieve(ctx, h.Request())
	h.metrics.Retrieve(h.name, err)
	if err != nil {
		h.logger.Debug("retrieve failed",
			zap.String("handler", h.name),
			zap.String("remote_id", h.remoteID),
			zap.Error(err))
		return err
	}

	if err := h.merge(payload); err != nil {
		return err
	}

	h.logger.Debug("fetched remote record",
		zap.String("handler", h.name),
		zap.String("remote_id", h.remoteID),
		zap.Int("attributes", len(payload)))
	return nil
}

// AssignAttrs sets attributes from a payload obtained elsewhere, typically a
// bulk response, without calling the retriever
func (h *Handler) AssignAttrs(payload Payload) error {
	if err := h.merge(payload); err != nil {
		return err
	}
	h.metrics.Assign(h.name)
	return nil
}

// Fresh forces a fetch regardless of memoization
func (h *Handler) Fresh(ctx context.Context) (*Handler, error) {
	if err := h.Fetch(ctx); err != nil {
		return h, err
	}
	return h, nil
}

// NeedsFetch reports whether the next attribute read will call the retriever
func (h *Handler) NeedsFetch() bool {
	return !h.cfg.Memoize() || !h.fetched
}

// Attribute returns a fetched attribute, fetching first when the handler is
// not memoized or has never fetched
func (h *Handler) Attribute(ctx context.Context, name string) (any, error) {
	v, ok, err := h.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &AttributeNotFoundError{Name: name, RemoteID: h.remoteID}
	}
	return v, nil
}

// Lookup is Attribute with a found flag instead of an error for missing keys
func (h *Handler) Lookup(ctx context.Context, name string) (any, bool, error) {
	if h.NeedsFetch() {
		if err := h.Fetch(ctx); err != nil {
			return nil, false, err
		}
	}
	v, ok := h.attrs[name]
	return v, ok, nil
}

// Cached reads an attribute from the cache without ever fetching
func (h *Handler) Cached(name string) (any, bool) {
	v, ok := h.attrs[name]
	return v, ok
}

// Attrs returns a copy of the cached attributes
func (h *Handler) Attrs() Payload {
	return h.attrs.Clone()
}

func (h *Handler) merge(payload Payload) error {
	transformed, err := h.pipeline.ApplyMap(map[string]any(payload))
	if err != nil {
		return err
	}
	for k, v := range transformed {
		h.attrs[k] = v
	}
	h.fetched = true
	return nil
}

// Typed reads an attribute and asserts its type. A decoded json.Number
// converts to int, int64 or float64 when it fits.
func Typed[T any](ctx context.Context, h *Handler, name string) (T, error) {
	var zero T
	v, err := h.Attribute(ctx, name)
	if err != nil {
		return zero, err
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	if n, isNumber := v.(json.Number); isNumber {
		if typed, ok := fromNumber[T](n); ok {
			return typed, nil
		}
	}
	return zero, &AttributeTypeError{Name: name, Want: fmt.Sprintf("%T", zero), Got: v}
}

func fromNumber[T any](n json.Number) (T, bool) {
	var out T
	switch p := any(&out).(type) {
	case *int64:
		i, err := n.Int64()
		if err != nil {
			return out, false
		}
		*p = i
	case *int:
		i, err := n.Int64()
		if err != nil || int64(int(i)) != i {
			return out, false
		}
		*p = int(i)
	case *float64:
		f, err := n.Float64()
		if err != nil {
			return out, false
		}
		*p = f
	default:
		return out, false
	}
	return out, true
}
