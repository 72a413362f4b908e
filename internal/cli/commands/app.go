package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/conduit-lang/remoterecord/internal/cli/config"
	"github.com/conduit-lang/remoterecord/internal/cli/ui"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/cache"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/handler"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/httpsource"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/logging"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/metrics"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/reference"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/registry"
	"github.com/conduit-lang/remoterecord/internal/remoterecord/store"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	configPath string
	logLevel   string
	noColor    bool
}

// app is everything a subcommand needs, built from the project file
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *registry.Registry
	metrics  *metrics.Collector
	gatherer prometheus.Gatherer
	noColor  bool

	db      *sql.DB
	closers []io.Closer
}

func newApp(ctx context.Context, opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Log
	if opts.logLevel != "" {
		logCfg.Level = opts.logLevel
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(promReg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry.New(),
		metrics:  collector,
		gatherer: promReg,
		noColor:  opts.noColor,
	}

	payloads, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}

	for _, name := range cfg.HandlerNames() {
		h, _ := cfg.Handler(name)
		if err := a.registerHandler(name, h, payloads); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openCache(ctx context.Context) (cache.Cache, error) {
	settings := cache.DefaultConfig()
	if a.cfg.Cache.TTL > 0 {
		settings.DefaultTTL = a.cfg.Cache.TTL
	}

	switch a.cfg.Cache.Backend {
	case "memory":
		return cache.NewMemoryCache(settings), nil
	case "redis":
		rc, err := cache.DialRedis(ctx, cache.RedisConfig{
			Addr:     a.cfg.Cache.Addr,
			Password: a.cfg.Cache.Password,
			DB:       a.cfg.Cache.DB,
			Cache:    settings,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rc)
		return rc, nil
	}
	return nil, nil
}

func (a *app) registerHandler(name string, h config.HandlerConfig, payloads cache.Cache) error {
	opts := []httpsource.Option{httpsource.WithLogger(a.logger)}
	if h.Envelope != "" {
		opts = append(opts, httpsource.WithEnvelope(h.Envelope))
	}
	src, err := httpsource.New(h.BaseURL, h.Path, opts...)
	if err != nil {
		return fmt.Errorf("handler %s: %w", name, err)
	}

	defaults, err := h.Layer()
	if err != nil {
		return fmt.Errorf("handler %s: %w", name, err)
	}

	// memoize: false asks for a fresh read every time, cache included
	var impl handler.Retriever = src
	if payloads != nil && defaults.Memoize() {
		impl = cache.Wrap(src, payloads, cache.WithLogger(a.logger))
	}
	return a.registry.Register(name, impl, defaults)
}

// declare binds the reference type for a handler named on the command line.
// Unknown names are reported with the closest configured names.
func (a *app) declare(name string) (*reference.Type, error) {
	key := strings.ToLower(name)
	if _, ok := a.cfg.Handler(key); !ok {
		return nil, &problemError{
			err: fmt.Errorf("unknown handler %q", name),
			problem: ui.Problem{
				Title:       fmt.Sprintf("unknown handler %q", name),
				Detail:      "no handler with that name is declared in the project file",
				Suggestions: ui.Suggest(name, a.registry.Names(), 3, 3),
				Hint:        "run 'remoterecord handlers' to list declared handlers",
			},
		}
	}

	return reference.Declare(a.registry, key+registry.ReferenceSuffix,
		reference.WithLogger(a.logger),
		reference.WithMetrics(a.metrics))
}

// store opens the local record store for a reference type, creating its
// table on first use
func (a *app) store(ctx context.Context, typ *reference.Type) (*store.SQLStore, error) {
	if a.db == nil {
		db, err := store.Open(store.Dialect(a.cfg.Database.Dialect), a.cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.closers = append(a.closers, db)
	}

	s, err := store.New(a.db, store.Dialect(a.cfg.Database.Dialect), typ.HandlerType().Name,
		store.WithTable(a.cfg.Database.Table),
		store.WithRemoteIDColumn(typ.IDField()),
		store.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the database and cache connections
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	a.logger.Sync()
	return errors.Join(errs...)
}

// problemError carries a user-facing explanation for Execute to render
type problemError struct {
	err     error
	problem ui.Problem
}

func (e *problemError) Error() string { return e.err.Error() }
func (e *problemError) Unwrap() error { return e.err }
