package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/conduit-lang/remoterecord/internal/remoterecord/handler"
)

// Retriever is a read-through cache in front of a handler type's retriever.
// Payloads are cached by handler name, credential and remote id, so callers
// holding different authorizations never share entries. Numbers come back
// as json.Number whether or not the entry was cached. Errors from the
// wrapped retriever are returned unchanged and never cached. A failing
// cache is logged and bypassed.
type Retriever struct {
	inner  handler.Retriever
	cache  Cache
	ttl    time.Duration
	idKey  string
	logger *zap.Logger
}

// Option configures a Retriever
type Option func(*Retriever)

// WithTTL sets the entry lifetime; zero uses the backend default
func WithTTL(ttl time.Duration) Option {
	return func(r *Retriever) { r.ttl = ttl }
}

// WithIDKey sets the payload key ListAll results are cached under
func WithIDKey(key string) Option {
	return func(r *Retriever) { r.idKey = key }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Wrap returns inner behind a read-through cache. The result implements
// handler.Lister and handler.Finder exactly when inner does, so wrapping
// does not change what a registry finds a handler type capable of. ListAll
// always calls through and warms the per-record entries; Find is not cached.
func Wrap(inner handler.Retriever, c Cache, opts ...Option) handler.Retriever {
	r := &Retriever{
		inner:  inner,
		cache:  c,
		idKey:  "id",
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	lister, canList := inner.(handler.Lister)
	finder, canFind := inner.(handler.Finder)
	switch {
	case canList && canFind:
		return &listFinder{listing: listing{r, lister}, finder: finder}
	case canList:
		return &listing{r, lister}
	case canFind:
		return &finding{r, finder}
	}
	return r
}

// Retrieve returns the cached payload or calls through on a miss
func (r *Retriever) Retrieve(ctx context.Context, req *handler.Request) (handler.Payload, error) {
	scope, err := Scope(req)
	if err != nil {
		return nil, err
	}
	key := Key(req.Handler, scope, req.RemoteID)

	if raw, err := r.cache.Get(ctx, key); err == nil {
		if payload, err := decode(raw); err == nil {
			r.logger.Debug("payload cache hit", zap.String("key", key))
			return payload, nil
		}
		r.logger.Warn("dropping undecodable cache entry", zap.String("key", key))
		_ = r.cache.Delete(ctx, key)
	} else if !IsCacheMiss(err) {
		r.logger.Warn("payload cache unavailable", zap.String("key", key), zap.Error(err))
	}

	payload, err := r.inner.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.store(ctx, key, payload), nil
}

// Invalidate drops the cached payload for the request's remote record
func (r *Retriever) Invalidate(ctx context.Context, req *handler.Request) error {
	scope, err := Scope(req)
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, Key(req.Handler, scope, req.RemoteID))
}

// store caches payload and returns it as a cache hit would
func (r *Retriever) store(ctx context.Context, key string, payload handler.Payload) handler.Payload {
	raw, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("payload not cacheable", zap.String("key", key), zap.Error(err))
		return payload
	}
	if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
		r.logger.Warn("failed to cache payload", zap.String("key", key), zap.Error(err))
	}
	if normalized, err := decode(raw); err == nil {
		return normalized
	}
	return payload
}

func decode(raw []byte) (handler.Payload, error) {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	var payload handler.Payload
	if err := d.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Scope fingerprints the request's resolved authorization. It is empty for
// anonymous requests.
func Scope(req *handler.Request) (string, error) {
	authz, err := req.AuthorizationString()
	if err != nil || authz == "" {
		return "", err
	}
	sum := sha256.Sum256([]byte(authz))
	return hex.EncodeToString(sum[:8]), nil
}

// Key is the cache key for one remote record as seen under a credential
// scope
func Key(handlerName, scope, remoteID string) string {
	if scope == "" {
		return handlerName + ":" + remoteID
	}
	return handlerName + "@" + scope + ":" + remoteID
}

type listing struct {
	*Retriever
	lister handler.Lister
}

func (l *listing) ListAll(ctx context.Context, req *handler.Request) ([]handler.Payload, error) {
	scope, err := Scope(req)
	if err != nil {
		return nil, err
	}
	payloads, err := l.lister.ListAll(ctx, req)
	if err != nil {
		return nil, err
	}
	for i, p := range payloads {
		if id, ok := p.ID(l.idKey); ok {
			payloads[i] = l.store(ctx, Key(req.Handler, scope, id), p)
		}
	}
	return payloads, nil
}

type finding struct {
	*Retriever
	finder handler.Finder
}

func (f *finding) Find(ctx context.Context, req *handler.Request, params handler.Payload) ([]handler.Payload, error) {
	return f.finder.Find(ctx, req, params)
}

type listFinder struct {
	listing
	finder handler.Finder
}

func (lf *listFinder) Find(ctx context.Context, req *handler.Request, params handler.Payload) ([]handler.Payload, error) {
	return lf.finder.Find(ctx, req, params)
}
