package custos

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/custos/plugin"
	"github.com/xraph/custos/store"
)

// Engine is the central access-control engine. It coordinates the
// permission/role catalog, role assignments, the request workflow, the
// audit log, and the alert tracker, and fires plugin hooks.
type Engine struct {
	store   store.Store
	cache   Cache
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config
	now     func() time.Time

	stopSweep chan struct{}
	sweepWG   sync.WaitGroup
	started   bool
}

// NewEngine creates a new Custos engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("custos: store is required")
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start launches the optional expiry sweep loop when
// Config.SweepInterval is set. Idempotent.
func (e *Engine) Start(_ context.Context) error {
	if e.started {
		return nil
	}
	e.started = true

	if e.config.SweepInterval <= 0 {
		return nil
	}

	e.stopSweep = make(chan struct{})
	e.sweepWG.Add(1)
	go e.sweepLoop()

	e.logger.Info("custos: sweep loop started",
		slog.Duration("interval", e.config.SweepInterval))
	return nil
}

// Stop halts the sweep loop and notifies Shutdown plugins.
func (e *Engine) Stop(ctx context.Context) error {
	if e.stopSweep != nil {
		close(e.stopSweep)
		e.sweepWG.Wait()
		e.stopSweep = nil
	}
	e.started = false

	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

func (e *Engine) sweepLoop() {
	defer e.sweepWG.Done()

	ticker := time.NewTicker(e.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopSweep:
			return
		case <-ticker.C:
			res, err := e.SweepExpired(context.Background())
			if err != nil {
				e.logger.Warn("custos: sweep failed", slog.String("error", err.Error()))
				continue
			}
			if res.ExpiredAssignments > 0 || res.ExpiredRequests > 0 {
				e.logger.Info("custos: sweep",
					slog.Int64("assignments", res.ExpiredAssignments),
					slog.Int64("requests", res.ExpiredRequests))
			}
		}
	}
}

// invalidatePrincipal drops cached decisions for one principal.
func (e *Engine) invalidatePrincipal(ctx context.Context, principalID string) {
	if e.cache != nil {
		e.cache.InvalidatePrincipal(ctx, principalID)
	}
}

// invalidateAll drops every cached decision. Used after catalog or
// grant mutations, which can change decisions for any principal.
func (e *Engine) invalidateAll(ctx context.Context) {
	if e.cache != nil {
		e.cache.InvalidateAll(ctx)
	}
}
