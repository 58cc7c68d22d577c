package application

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/WangYihang/subprobe/pkg/domain/service"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// EngineConfig holds the validation engine configuration
type EngineConfig struct {
	// Concurrency is the maximum number of probes in flight
	Concurrency int
	// Rate caps probe admissions per second; 0 means unlimited
	Rate float64
}

// Hooks observe probes entering and leaving the engine.
// They are called from probe goroutines.
type Hooks interface {
	ProbeStarted(host entity.Hostname)
	ProbeFinished(host entity.Hostname)
}

// Engine validates hostnames with bounded concurrency
type Engine struct {
	config  EngineConfig
	prober  service.Prober
	hooks   []Hooks
	gate    *semaphore.Weighted
	limiter *rate.Limiter

	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewEngine creates a new validation engine
func NewEngine(config EngineConfig, prober service.Prober, hooks ...Hooks) (*Engine, error) {
	if config.Concurrency <= 0 {
		return nil, entity.ErrInvalidConcurrency
	}

	engine := &Engine{
		config: config,
		prober: prober,
		hooks:  hooks,
		gate:   semaphore.NewWeighted(int64(config.Concurrency)),
	}
	if config.Rate > 0 {
		engine.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}
	return engine, nil
}

// InFlight returns the number of probes currently running
func (e *Engine) InFlight() int64 {
	return e.inFlight.Load()
}

// Peak returns the highest number of probes observed in flight
func (e *Engine) Peak() int64 {
	return e.peak.Load()
}

// Run probes every host and streams outcomes as they complete.
// The channel is closed once admission stops and every in-flight probe
// has drained; the caller must read it until then. After ctx is
// cancelled no further host is admitted and probes abandoned by the
// cancellation produce no outcome.
func (e *Engine) Run(ctx context.Context, hosts []entity.Hostname) <-chan entity.ValidationOutcome {
	out := make(chan entity.ValidationOutcome, e.config.Concurrency)

	submit := func(task func()) error {
		go task()
		return nil
	}
	pool, err := ants.NewPool(e.config.Concurrency)
	if err == nil {
		submit = pool.Submit
	}

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(out)
			if pool != nil {
				pool.Release()
			}
		}()

		for _, host := range hosts {
			if ctx.Err() != nil {
				return
			}
			if e.limiter != nil {
				if err := e.limiter.Wait(ctx); err != nil {
					return
				}
			}
			if err := e.gate.Acquire(ctx, 1); err != nil {
				return
			}

			wg.Add(1)
			task := func() {
				defer wg.Done()
				defer e.gate.Release(1)
				e.probe(ctx, host, out)
			}
			if err := submit(task); err != nil {
				wg.Done()
				e.gate.Release(1)
				return
			}
		}
	}()

	return out
}

// probe runs one admitted host through its state machine
func (e *Engine) probe(ctx context.Context, host entity.Hostname, out chan<- entity.ValidationOutcome) {
	state, err := entity.Pending.Advance(entity.InFlight)
	if err != nil {
		return
	}

	e.enter(host)
	outcome, err := e.prober.Probe(ctx, host)
	e.leave(host)
	if err != nil {
		return
	}
	if outcome.Hostname == "" {
		outcome.Hostname = host
	}

	next := entity.Failed
	if outcome.Valid() {
		next = entity.Succeeded
	}
	if _, err := state.Advance(next); err != nil {
		return
	}

	out <- outcome
}

func (e *Engine) enter(host entity.Hostname) {
	n := e.inFlight.Add(1)
	for {
		peak := e.peak.Load()
		if n <= peak || e.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	for _, h := range e.hooks {
		h.ProbeStarted(host)
	}
}

func (e *Engine) leave(host entity.Hostname) {
	e.inFlight.Add(-1)
	for _, h := range e.hooks {
		h.ProbeFinished(host)
	}
}
