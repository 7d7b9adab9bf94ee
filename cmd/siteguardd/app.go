package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/haukened/siteguard/internal/guard/common/clock"
	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/config"
	"github.com/haukened/siteguard/internal/guard/gateways/enforcement"
	"github.com/haukened/siteguard/internal/guard/repos/blockset"
	"github.com/haukened/siteguard/internal/guard/repos/blockset/bloom"
	"github.com/haukened/siteguard/internal/guard/repos/patterncache"
	"github.com/haukened/siteguard/internal/guard/repos/policy"
	"github.com/haukened/siteguard/internal/guard/repos/store"
	boltstore "github.com/haukened/siteguard/internal/guard/repos/store/bolt"
	filestore "github.com/haukened/siteguard/internal/guard/repos/store/file"
	redisstore "github.com/haukened/siteguard/internal/guard/repos/store/redis"
	"github.com/haukened/siteguard/internal/guard/services/engine"
	"github.com/haukened/siteguard/internal/guard/services/matcher"
	"github.com/haukened/siteguard/internal/guard/services/snooze"
	"github.com/haukened/siteguard/internal/guard/services/trigger"
	"github.com/haukened/siteguard/internal/guard/services/usage"
)

const defaultConnectTimeout = 5 * time.Second

// Application holds all the components of the guard.
type Application struct {
	config   *config.AppConfig
	clock    clock.Clock
	store    store.Store
	policy   *policy.Repository
	snooze   *snooze.Gate
	engine   *engine.Engine
	index    *blockset.Index
	enforcer enforcement.Enforcer
	trigger  *trigger.Trigger
}

// buildApplication constructs all components and wires them together.
func buildApplication(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	clk := clock.RealClock{}
	logger := log.GetLogger()

	st, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	cache, err := patterncache.New(cfg.Engine.PatternCacheSize)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create pattern cache: %w", err)
	}

	agg := usage.NewAggregator(cfg.Engine.Window(), nil)
	repo := policy.New(st, agg.Lookback, log.Component(logger, "policy"))
	gate := snooze.New(st, clk, log.Component(logger, "snooze"))
	eng := engine.New(engine.Options{
		Policy:     repo,
		Matcher:    matcher.New(cache, log.Component(logger, "matcher")),
		Snooze:     gate,
		WindowMode: cfg.Engine.Window(),
		Clock:      clk,
		Logger:     log.Component(logger, "engine"),
	})

	var enforcer enforcement.Enforcer = enforcement.NewMemoryEnforcer()
	if cfg.Enforcement.Output != "" {
		enforcer = enforcement.NewFileEnforcer(cfg.Enforcement.Output, log.Component(logger, "enforcement"))
	}

	index := blockset.New(bloom.NewFactory(), cfg.Engine.BloomFPRate)
	trig := trigger.New(trigger.Options{
		Store:          st,
		Engine:         eng,
		Index:          index,
		Enforcer:       enforcer,
		Snooze:         gate,
		Clock:          clk,
		Logger:         log.Component(logger, "trigger"),
		Debounce:       cfg.Engine.Debounce(),
		SnoozeBuffer:   cfg.Engine.SnoozeBuffer(),
		Tick:           cfg.Engine.Tick(),
		RedirectTarget: cfg.Enforcement.RedirectTarget,
	})

	log.Info(map[string]any{
		"backend":     cfg.Store.Backend,
		"window_mode": cfg.Engine.WindowMode,
		"cache_size":  cfg.Engine.PatternCacheSize,
		"output":      cfg.Enforcement.Output,
	}, "Application configured")

	return &Application{
		config:   cfg,
		clock:    clk,
		store:    st,
		policy:   repo,
		snooze:   gate,
		engine:   eng,
		index:    index,
		enforcer: enforcer,
		trigger:  trig,
	}, nil
}

// openStore creates the configured storage backend.
func openStore(ctx context.Context, cfg config.StoreConfig, logger log.Logger) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemory(), nil
	case "bolt":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		return boltstore.New(cfg.Path)
	case "file":
		return filestore.New(cfg.Path, filestore.Options{
			Watch:  cfg.Watch,
			Logger: log.Component(logger, "filestore"),
		})
	case "redis":
		ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
		return redisstore.New(ctx, redisstore.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Namespace: cfg.RedisNamespace,
			Logger:    log.Component(logger, "redisstore"),
		})
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}

// Run starts the rebuild trigger and blocks until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	if err := app.trigger.Start(ctx); err != nil {
		log.Warn(map[string]any{"error": err}, "Initial block set not installed")
	}
	stats := app.index.Stats()
	log.Info(map[string]any{
		"generation": stats.Generation,
		"domains":    stats.Domains,
	}, "Guard started")

	<-ctx.Done()
	log.Info(nil, "Shutdown initiated")
	app.trigger.Stop()
	return nil
}

// Close releases the store.
func (app *Application) Close() error {
	return app.store.Close()
}
