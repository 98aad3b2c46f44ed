// Package worker runs polling workers that drive order workflows forward.
//
// Workers are stateless: they poll the engine for runnable order ids and tick
// each one. Ownership of a tick is decided by the store's compare-and-swap,
// so any number of pools may run against the same store, in one process or
// many.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/sagaflow/pkg/api"
)

// Options configures a Pool. Zero values fall back to defaults.
type Options struct {
	// Concurrency is the number of worker goroutines. Default 1.
	Concurrency int

	// PollInterval is how long an idle worker sleeps when a poll returns no
	// runnable orders. Default 250ms.
	PollInterval time.Duration

	// BatchSize is the maximum number of order ids fetched per poll.
	// Default 16.
	BatchSize int

	// Logger receives worker lifecycle and error logs. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 16
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Pool polls an Engine for runnable orders and ticks them concurrently.
type Pool struct {
	id     string
	engine api.Engine
	opts   Options

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewPool creates a Pool driving the given engine.
func NewPool(engine api.Engine, opts Options) *Pool {
	return &Pool{
		id:     uuid.NewString(),
		engine: engine,
		opts:   opts.withDefaults(),
	}
}

// ID returns the pool's unique identifier, useful for log correlation when
// several pools share a store.
func (p *Pool) ID() string {
	return p.id
}

// Start launches the worker goroutines. They run until Stop is called or the
// given context is cancelled. Calling Start on a running pool is an error.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.New("worker: pool already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(p.opts.Concurrency)
	for i := 0; i < p.opts.Concurrency; i++ {
		go func() {
			defer p.wg.Done()
			p.loop(ctx)
		}()
	}

	p.opts.Logger.Info("worker pool started",
		slog.String("pool_id", p.id),
		slog.Int("concurrency", p.opts.Concurrency),
	)
	return nil
}

// Stop cancels all worker goroutines and waits for them to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	p.opts.Logger.Info("worker pool stopped", slog.String("pool_id", p.id))
}

func (p *Pool) loop(ctx context.Context) {
	for {
		processed, err := p.ProcessBatch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			// A bad poll or tick must not kill the loop.
			p.opts.Logger.Error("worker batch failed",
				slog.String("pool_id", p.id),
				slog.Any("error", err),
			)
		}
		if processed > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.opts.PollInterval):
		}
	}
}

// ProcessBatch polls once and ticks every returned order. It returns the
// number of orders ticked. Lost races and vanished orders are expected under
// worker competition and are not reported as errors.
func (p *Pool) ProcessBatch(ctx context.Context) (int, error) {
	ids, err := p.engine.PollRunnable(ctx, p.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if err := p.ProcessOne(ctx, id); err != nil {
			p.opts.Logger.Warn("tick failed",
				slog.String("pool_id", p.id),
				slog.String("order_id", id),
				slog.Any("error", err),
			)
			continue
		}
		processed++
	}
	return processed, nil
}

// ProcessOne ticks a single order. A lost compare-and-swap race or an order
// archived between poll and tick means another worker got there first; both
// are treated as success.
func (p *Pool) ProcessOne(ctx context.Context, orderID string) error {
	_, err := p.engine.Tick(ctx, orderID)
	if errors.Is(err, api.ErrVersionConflict) || errors.Is(err, api.ErrOrderNotFound) {
		return nil
	}
	return err
}
