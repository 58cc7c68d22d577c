package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/WangYihang/subprobe/pkg/domain/service"
	"github.com/WangYihang/subprobe/pkg/infrastructure/domainservice"
	"github.com/WangYihang/subprobe/pkg/infrastructure/storage"
	mapset "github.com/deckarep/golang-set/v2"
)

type staticSource struct {
	candidates []string
	err        error
}

func (s *staticSource) Candidates(ctx context.Context, apex entity.ApexDomain) ([]string, error) {
	return s.candidates, s.err
}

type staticArchive struct {
	hosts []entity.Hostname
	err   error
	calls int
}

func (a *staticArchive) Fetch(ctx context.Context, apex entity.ApexDomain) (mapset.Set[entity.Hostname], error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return mapset.NewSet(a.hosts...), nil
}

type memoryWriter struct {
	mu      sync.Mutex
	hosts   []entity.Hostname
	flushed bool
	closed  bool
}

func (w *memoryWriter) Write(host entity.Hostname) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hosts = append(w.hosts, host)
	return nil
}

func (w *memoryWriter) Flush() error { w.flushed = true; return nil }
func (w *memoryWriter) Close() error { w.closed = true; return nil }

type memoryLog struct {
	records []*entity.ProbeLog
}

func (l *memoryLog) WriteProbeLog(record *entity.ProbeLog) error {
	l.records = append(l.records, record)
	return nil
}

func (l *memoryLog) Close() error { return nil }

// recorder keeps every reported event
type recorder struct {
	events []entity.Event
}

func (r *recorder) Report(event entity.Event) {
	r.events = append(r.events, event)
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, e := range r.events {
		if strings.HasSuffix(fmt.Sprintf("%T", e), "."+kind) {
			n++
		}
	}
	return n
}

func newUseCase(config Config, source service.CandidateSource, archive service.ArchiveSource, prober service.Prober) (*ScanUseCase, *memoryWriter, *memoryLog, *recorder) {
	writer := &memoryWriter{}
	log := &memoryLog{}
	rec := &recorder{}

	uc := NewScanUseCase(
		config,
		domainservice.NewNormalizer(),
		source,
		archive,
		prober,
		storage.NewEventQueue(16),
		writer,
		log,
	)
	uc.RegisterReporter(rec)
	return uc, writer, log, rec
}

func TestScanUseCase_Scenario(t *testing.T) {
	source := &staticSource{candidates: []string{"www.example.com", "mail.example.com", "ftp.example.com"}}
	prober := &fakeProber{valid: map[entity.Hostname]int{"www.example.com": 443}}

	uc, writer, log, rec := newUseCase(Config{Apex: "example.com", Concurrency: 50}, source, nil, prober)

	stats, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if stats.Total != 3 || stats.Valid != 1 || stats.Invalid != 2 {
		t.Errorf("stats = %+v, want total=3 valid=1 invalid=2", stats)
	}
	if stats.Interrupted {
		t.Error("run marked interrupted")
	}
	if len(writer.hosts) != 1 || writer.hosts[0] != "www.example.com" || !writer.flushed {
		t.Errorf("written = %v (flushed=%v)", writer.hosts, writer.flushed)
	}
	if len(log.records) != 3 {
		t.Errorf("probe log has %d records, want 3", len(log.records))
	}

	if _, ok := rec.events[0].(entity.RunStarted); !ok {
		t.Errorf("first event = %T, want RunStarted", rec.events[0])
	}
	if _, ok := rec.events[len(rec.events)-1].(entity.RunFinished); !ok {
		t.Errorf("last event = %T, want RunFinished", rec.events[len(rec.events)-1])
	}
	if n := rec.count("ProbeCompleted"); n != 3 {
		t.Errorf("ProbeCompleted events = %d, want 3", n)
	}
}

func TestScanUseCase_Preconditions(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		err    error
	}{
		{"empty apex", Config{Concurrency: 5}, entity.ErrEmptyApex},
		{"zero concurrency", Config{Apex: "example.com"}, entity.ErrInvalidConcurrency},
		{"negative concurrency", Config{Apex: "example.com", Concurrency: -1}, entity.ErrInvalidConcurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &fakeProber{}
			uc, _, _, _ := newUseCase(tt.config, &staticSource{candidates: []string{"www.example.com"}}, nil, prober)

			if _, err := uc.Execute(context.Background()); !errors.Is(err, tt.err) {
				t.Errorf("Execute error = %v, want %v", err, tt.err)
			}
			if prober.calls.Load() != 0 {
				t.Error("probes started despite failed precondition")
			}
		})
	}
}

func TestScanUseCase_ArchiveSoleSourceFails(t *testing.T) {
	archive := &staticArchive{err: fmt.Errorf("%w: status 503", entity.ErrArchiveUnavailable)}
	prober := &fakeProber{}

	uc, writer, _, _ := newUseCase(Config{Apex: "example.com", Concurrency: 5, UseArchive: true}, nil, archive, prober)

	_, err := uc.Execute(context.Background())
	if !errors.Is(err, entity.ErrArchiveUnavailable) {
		t.Fatalf("Execute error = %v, want ErrArchiveUnavailable", err)
	}
	if prober.calls.Load() != 0 {
		t.Error("probes started after fatal archive failure")
	}
	if len(writer.hosts) != 0 {
		t.Errorf("results written: %v", writer.hosts)
	}
}

func TestScanUseCase_ArchiveFailureDegrades(t *testing.T) {
	source := &staticSource{candidates: []string{"www.example.com"}}
	archive := &staticArchive{err: fmt.Errorf("%w: status 503", entity.ErrArchiveUnavailable)}

	uc, _, _, rec := newUseCase(Config{Apex: "example.com", Concurrency: 5, UseArchive: true}, source, archive, &fakeProber{})

	stats, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("Total = %d, want 1", stats.Total)
	}
	if n := rec.count("ArchiveWarning"); n != 1 {
		t.Errorf("ArchiveWarning events = %d, want 1", n)
	}
}

func TestScanUseCase_ArchiveMerged(t *testing.T) {
	source := &staticSource{candidates: []string{"example.com", "www.example.com"}}
	archive := &staticArchive{hosts: []entity.Hostname{"www.example.com", "dev.example.com"}}
	prober := &fakeProber{valid: map[entity.Hostname]int{"dev.example.com": 80, "example.com": 443}}

	uc, writer, _, rec := newUseCase(Config{Apex: "example.com", Concurrency: 2, UseArchive: true}, source, archive, prober)

	stats, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3 unique hosts", stats.Total)
	}
	if archive.calls != 1 {
		t.Errorf("archive fetched %d times, want 1", archive.calls)
	}

	expected := []entity.Hostname{"dev.example.com", "example.com"}
	if len(writer.hosts) != 2 || writer.hosts[0] != expected[0] || writer.hosts[1] != expected[1] {
		t.Errorf("written = %v, want sorted %v", writer.hosts, expected)
	}

	started := rec.events[0].(entity.RunStarted)
	if started.Candidates != 3 || started.FromArchive != 2 {
		t.Errorf("RunStarted = %+v", started)
	}
}

func TestScanUseCase_ArchiveDisabled(t *testing.T) {
	source := &staticSource{candidates: []string{"www.example.com"}}
	archive := &staticArchive{hosts: []entity.Hostname{"dev.example.com"}}

	uc, _, _, _ := newUseCase(Config{Apex: "example.com", Concurrency: 2}, source, archive, &fakeProber{})

	if _, err := uc.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if archive.calls != 0 {
		t.Error("archive fetched without UseArchive")
	}
}

func TestScanUseCase_NoCandidates(t *testing.T) {
	source := &staticSource{candidates: []string{"other.org", "bad host"}}

	uc, _, _, _ := newUseCase(Config{Apex: "example.com", Concurrency: 2}, source, nil, &fakeProber{})

	if _, err := uc.Execute(context.Background()); !errors.Is(err, entity.ErrNoCandidates) {
		t.Errorf("Execute error = %v, want ErrNoCandidates", err)
	}
}

func TestScanUseCase_DroppedCounted(t *testing.T) {
	source := &staticSource{candidates: []string{"www.example.com", "WWW.EXAMPLE.COM", "_srv.example.com", "evil-example.com"}}

	uc, _, _, rec := newUseCase(Config{Apex: "example.com", Concurrency: 2}, source, nil, &fakeProber{})

	stats, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("Total = %d, want 1", stats.Total)
	}
	started := rec.events[0].(entity.RunStarted)
	if started.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", started.Dropped)
	}
}

func TestScanUseCase_SourceError(t *testing.T) {
	source := &staticSource{err: errors.New("wordlist missing")}

	uc, _, _, _ := newUseCase(Config{Apex: "example.com", Concurrency: 2}, source, nil, &fakeProber{})

	if _, err := uc.Execute(context.Background()); err == nil || !strings.Contains(err.Error(), "wordlist missing") {
		t.Errorf("Execute error = %v", err)
	}
}

func TestScanUseCase_Cancellation(t *testing.T) {
	hosts := hostnames(10)
	candidates := make([]string, len(hosts))
	block := make(map[entity.Hostname]bool)
	valid := make(map[entity.Hostname]int)
	for i, h := range hosts {
		candidates[i] = h.String()
		if i >= 4 {
			block[h] = true
		}
		if i%2 == 0 {
			valid[h] = 80
		}
	}
	prober := &fakeProber{block: block, valid: valid}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	uc, writer, _, rec := newUseCase(Config{Apex: "example.com", Concurrency: 2}, &staticSource{candidates: candidates}, nil, prober)
	uc.RegisterReporter(&cancelAfter{n: 4, cancel: cancel})

	stats, err := uc.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute returned error on cancellation: %v", err)
	}
	if !stats.Interrupted {
		t.Error("stats not marked interrupted")
	}
	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if n := rec.count("ProbeCompleted"); n != 4 {
		t.Errorf("ProbeCompleted events = %d, want 4", n)
	}
	finished := rec.events[len(rec.events)-1].(entity.RunFinished)
	if !finished.Statistics.Interrupted {
		t.Error("RunFinished not marked interrupted")
	}
	if len(writer.hosts) != 2 || writer.hosts[0] != hosts[0] || writer.hosts[1] != hosts[2] {
		t.Errorf("written = %v, want the valid hosts among the first 4", writer.hosts)
	}
}

// cancelAfter cancels the run after n completed probes
type cancelAfter struct {
	n      int
	seen   int
	cancel context.CancelFunc
}

func (c *cancelAfter) Report(event entity.Event) {
	if _, ok := event.(entity.ProbeCompleted); ok {
		c.seen++
		if c.seen == c.n {
			c.cancel()
		}
	}
}

func TestScanUseCase_Wildcard(t *testing.T) {
	tests := []struct {
		name      string
		reachable bool
		warnings  int
	}{
		{"wildcard dns", true, 1},
		{"no wildcard", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &wildcardProber{fakeProber: &fakeProber{}, reachable: tt.reachable}
			uc, _, _, rec := newUseCase(Config{Apex: "example.com", Concurrency: 2, WildcardCheck: true},
				&staticSource{candidates: []string{"www.example.com"}}, nil, prober)

			if _, err := uc.Execute(context.Background()); err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if n := rec.count("WildcardWarning"); n != tt.warnings {
				t.Errorf("WildcardWarning events = %d, want %d", n, tt.warnings)
			}
		})
	}
}

// wildcardProber treats every name it was not told about as reachable
type wildcardProber struct {
	*fakeProber
	reachable bool
}

func (p *wildcardProber) Probe(ctx context.Context, host entity.Hostname) (entity.ValidationOutcome, error) {
	if host != "www.example.com" && p.reachable {
		return entity.NewValidOutcome(host, 80, 0, nil), nil
	}
	return p.fakeProber.Probe(ctx, host)
}

func TestScanUseCase_Close(t *testing.T) {
	uc, writer, _, _ := newUseCase(Config{Apex: "example.com", Concurrency: 1}, nil, nil, &fakeProber{})
	if err := uc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !writer.closed {
		t.Error("result writer not closed")
	}
}
