package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
)

// fakeProber answers from a table after an optional delay and records
// how many probes overlap
type fakeProber struct {
	delay    time.Duration
	valid    map[entity.Hostname]int
	reasons  map[entity.Hostname]entity.Reason
	block    map[entity.Hostname]bool
	inFlight atomic.Int64
	maxSeen  atomic.Int64
	calls    atomic.Int64
}

func (p *fakeProber) Ports() []int { return []int{80, 443} }

func (p *fakeProber) Probe(ctx context.Context, host entity.Hostname) (entity.ValidationOutcome, error) {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		m := p.maxSeen.Load()
		if n <= m || p.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	if p.block[host] {
		<-ctx.Done()
		return entity.ValidationOutcome{}, ctx.Err()
	}

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return entity.ValidationOutcome{}, ctx.Err()
		}
	}

	if port, ok := p.valid[host]; ok {
		return entity.NewValidOutcome(host, port, p.delay, nil), nil
	}
	reason := entity.ReasonConnectionRefused
	if r, ok := p.reasons[host]; ok {
		reason = r
	}
	return entity.NewInvalidOutcome(host, reason, p.delay, nil), nil
}

// countingHooks counts engine hook calls
type countingHooks struct {
	started  atomic.Int64
	finished atomic.Int64
}

func (h *countingHooks) ProbeStarted(entity.Hostname)  { h.started.Add(1) }
func (h *countingHooks) ProbeFinished(entity.Hostname) { h.finished.Add(1) }

func hostnames(n int) []entity.Hostname {
	hosts := make([]entity.Hostname, n)
	for i := range hosts {
		hosts[i] = entity.Hostname(fmt.Sprintf("h%02d.example.com", i))
	}
	return hosts
}

func drain(ch <-chan entity.ValidationOutcome) []entity.ValidationOutcome {
	var outcomes []entity.ValidationOutcome
	for o := range ch {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func TestNewEngine_InvalidConcurrency(t *testing.T) {
	for _, c := range []int{0, -1, -50} {
		if _, err := NewEngine(EngineConfig{Concurrency: c}, &fakeProber{}); !errors.Is(err, entity.ErrInvalidConcurrency) {
			t.Errorf("NewEngine(C=%d) error = %v, want ErrInvalidConcurrency", c, err)
		}
	}
}

func TestEngine_ConcurrencyBound(t *testing.T) {
	for _, c := range []int{1, 2, 5, 16} {
		t.Run(fmt.Sprintf("C=%d", c), func(t *testing.T) {
			prober := &fakeProber{delay: 5 * time.Millisecond}
			engine, err := NewEngine(EngineConfig{Concurrency: c}, prober)
			if err != nil {
				t.Fatal(err)
			}

			outcomes := drain(engine.Run(context.Background(), hostnames(40)))

			if len(outcomes) != 40 {
				t.Errorf("got %d outcomes, want 40", len(outcomes))
			}
			if seen := prober.maxSeen.Load(); seen > int64(c) {
				t.Errorf("observed %d concurrent probes, limit %d", seen, c)
			}
			if peak := engine.Peak(); peak > int64(c) || peak < 1 {
				t.Errorf("Peak = %d, want 1..%d", peak, c)
			}
			if engine.InFlight() != 0 {
				t.Errorf("InFlight = %d after drain", engine.InFlight())
			}
		})
	}
}

func TestEngine_ExactlyOneOutcomePerHost(t *testing.T) {
	hosts := hostnames(25)
	prober := &fakeProber{
		valid: map[entity.Hostname]int{hosts[3]: 443, hosts[7]: 80},
	}
	engine, err := NewEngine(EngineConfig{Concurrency: 4}, prober)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[entity.Hostname]int)
	for o := range engine.Run(context.Background(), hosts) {
		seen[o.Hostname]++
	}

	if len(seen) != len(hosts) {
		t.Fatalf("got outcomes for %d hosts, want %d", len(seen), len(hosts))
	}
	for host, n := range seen {
		if n != 1 {
			t.Errorf("%s reported %d times", host, n)
		}
	}
}

func TestEngine_WallClock(t *testing.T) {
	const unit = 40 * time.Millisecond

	prober := &fakeProber{delay: unit}
	engine, err := NewEngine(EngineConfig{Concurrency: 2}, prober)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	outcomes := drain(engine.Run(context.Background(), hostnames(10)))
	elapsed := time.Since(start)

	if len(outcomes) != 10 {
		t.Fatalf("got %d outcomes, want 10", len(outcomes))
	}
	// Five rounds of two probes each
	if elapsed < 5*unit-unit/2 {
		t.Errorf("elapsed %s is faster than 5 units; gate not enforced", elapsed)
	}
	if elapsed >= 9*unit {
		t.Errorf("elapsed %s is close to 10 units; probes are not concurrent", elapsed)
	}
}

func TestEngine_CancellationKeepsCompletedOutcomes(t *testing.T) {
	hosts := hostnames(10)
	block := make(map[entity.Hostname]bool)
	for _, h := range hosts[4:] {
		block[h] = true
	}
	prober := &fakeProber{block: block}

	engine, err := NewEngine(EngineConfig{Concurrency: 2}, prober)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var outcomes []entity.ValidationOutcome
	done := make(chan struct{})
	go func() {
		defer close(done)
		for o := range engine.Run(ctx, hosts) {
			outcomes = append(outcomes, o)
			if len(outcomes) == 4 {
				cancel()
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not drain after cancellation")
	}

	if len(outcomes) != 4 {
		t.Fatalf("got %d outcomes, want 4", len(outcomes))
	}
	for _, o := range outcomes {
		if !contains(hosts[:4], o.Hostname) {
			t.Errorf("unexpected outcome for %s", o.Hostname)
		}
	}
	if calls := prober.calls.Load(); calls > 4+2 {
		t.Errorf("%d probes started, want at most %d after cancellation", calls, 4+2)
	}
}

func contains(hosts []entity.Hostname, host entity.Hostname) bool {
	for _, h := range hosts {
		if h == host {
			return true
		}
	}
	return false
}

func TestEngine_CancelledBeforeRun(t *testing.T) {
	prober := &fakeProber{}
	engine, err := NewEngine(EngineConfig{Concurrency: 3}, prober)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if outcomes := drain(engine.Run(ctx, hostnames(5))); len(outcomes) != 0 {
		t.Errorf("got %d outcomes from a cancelled run", len(outcomes))
	}
	if prober.calls.Load() != 0 {
		t.Errorf("prober called %d times", prober.calls.Load())
	}
}

func TestEngine_EmptyWorklist(t *testing.T) {
	engine, err := NewEngine(EngineConfig{Concurrency: 1}, &fakeProber{})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case _, ok := <-engine.Run(context.Background(), nil):
		if ok {
			t.Error("received an outcome from an empty worklist")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed for empty worklist")
	}
}

func TestEngine_RateLimit(t *testing.T) {
	engine, err := NewEngine(EngineConfig{Concurrency: 5, Rate: 50}, &fakeProber{})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	outcomes := drain(engine.Run(context.Background(), hostnames(5)))
	elapsed := time.Since(start)

	if len(outcomes) != 5 {
		t.Fatalf("got %d outcomes, want 5", len(outcomes))
	}
	// 50/s with burst 1 spaces admissions 20ms apart
	if elapsed < 60*time.Millisecond {
		t.Errorf("elapsed %s, want at least 60ms under rate limit", elapsed)
	}
}

func TestEngine_Hooks(t *testing.T) {
	hooks := &countingHooks{}
	engine, err := NewEngine(EngineConfig{Concurrency: 3}, &fakeProber{}, hooks)
	if err != nil {
		t.Fatal(err)
	}

	drain(engine.Run(context.Background(), hostnames(12)))

	if hooks.started.Load() != 12 || hooks.finished.Load() != 12 {
		t.Errorf("hooks started=%d finished=%d, want 12/12", hooks.started.Load(), hooks.finished.Load())
	}
}

func TestEngine_ConcurrentRunsShareNothing(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine, err := NewEngine(EngineConfig{Concurrency: 2}, &fakeProber{})
			if err != nil {
				t.Error(err)
				return
			}
			if n := len(drain(engine.Run(context.Background(), hostnames(10)))); n != 10 {
				t.Errorf("got %d outcomes, want 10", n)
			}
		}()
	}
	wg.Wait()
}
