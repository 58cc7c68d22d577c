package application

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/WangYihang/subprobe/pkg/domain/repository"
	"github.com/WangYihang/subprobe/pkg/domain/service"
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"
)

// ScanUseCase orchestrates one discovery run for an apex domain
type ScanUseCase struct {
	config Config

	// Services
	normalizer service.HostnameNormalizer
	source     service.CandidateSource
	archive    service.ArchiveSource
	prober     service.Prober

	// Repositories
	events       repository.EventQueue
	resultWriter repository.ResultWriter
	logWriter    repository.LogWriter

	reporters []Reporter
	hooks     []Hooks
}

// Config holds the use case configuration
type Config struct {
	Apex        entity.ApexDomain
	Concurrency int
	// Rate caps probe admissions per second; 0 means unlimited
	Rate float64
	// UseArchive merges archive hostnames into the worklist
	UseArchive bool
	// WildcardCheck probes a random label before the run
	WildcardCheck bool
}

// Reporter receives run events from a single dispatcher goroutine
type Reporter interface {
	Report(event entity.Event)
}

// NewScanUseCase creates a new scan use case.
// source, archive, resultWriter and logWriter may be nil.
func NewScanUseCase(
	config Config,
	normalizer service.HostnameNormalizer,
	source service.CandidateSource,
	archive service.ArchiveSource,
	prober service.Prober,
	events repository.EventQueue,
	resultWriter repository.ResultWriter,
	logWriter repository.LogWriter,
) *ScanUseCase {
	return &ScanUseCase{
		config:       config,
		normalizer:   normalizer,
		source:       source,
		archive:      archive,
		prober:       prober,
		events:       events,
		resultWriter: resultWriter,
		logWriter:    logWriter,
	}
}

// RegisterReporter registers an event reporter
func (uc *ScanUseCase) RegisterReporter(reporter Reporter) {
	uc.reporters = append(uc.reporters, reporter)
}

// RegisterHooks registers engine hooks
func (uc *ScanUseCase) RegisterHooks(hooks Hooks) {
	uc.hooks = append(uc.hooks, hooks)
}

// Execute runs the scan once. Cancelling ctx stops admission and returns
// partial statistics with Interrupted set and no error.
func (uc *ScanUseCase) Execute(ctx context.Context) (*entity.RunStatistics, error) {
	if uc.config.Apex == "" {
		return nil, entity.ErrEmptyApex
	}
	if uc.config.Concurrency <= 0 {
		return nil, entity.ErrInvalidConcurrency
	}

	done := make(chan struct{})
	go uc.dispatch(done)
	defer func() {
		uc.events.Close()
		<-done
	}()

	start := time.Now()
	apex := uc.config.Apex

	inputs, err := uc.collect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return uc.interrupted(start), nil
		}
		return nil, err
	}
	archived, archiveErr := inputs.archived, inputs.archiveErr

	base, dropped := NormalizeAll(inputs.raw, apex, uc.normalizer)

	if archiveErr != nil {
		if ctx.Err() != nil {
			return uc.interrupted(start), nil
		}
		if base.Cardinality() == 0 {
			return nil, fmt.Errorf("archive lookup failed and no other candidates: %w", archiveErr)
		}
		uc.events.Send(entity.ArchiveWarning{Reason: archiveErr.Error()})
	}

	hosts := Worklist(Aggregate(base, archived))
	if len(hosts) == 0 {
		return nil, entity.ErrNoCandidates
	}

	if uc.config.WildcardCheck {
		uc.checkWildcard(ctx)
	}

	engine, err := NewEngine(EngineConfig{
		Concurrency: uc.config.Concurrency,
		Rate:        uc.config.Rate,
	}, uc.prober, uc.hooks...)
	if err != nil {
		return nil, err
	}

	fromArchive := 0
	if archived != nil {
		fromArchive = archived.Cardinality()
	}
	uc.events.Send(entity.RunStarted{
		Apex:        apex,
		Candidates:  len(hosts),
		Dropped:     dropped,
		FromArchive: fromArchive,
		Concurrency: uc.config.Concurrency,
		Ports:       uc.prober.Ports(),
	})

	stats := entity.NewRunStatistics()
	var valid []entity.Hostname
	for outcome := range engine.Run(ctx, hosts) {
		stats.Add(outcome)
		if outcome.Valid() {
			valid = append(valid, outcome.Hostname)
		}
		uc.events.Send(entity.ProbeCompleted{Outcome: outcome})
		if uc.logWriter != nil {
			// Log error but continue
			_ = uc.logWriter.WriteProbeLog(entity.NewProbeLog(outcome, time.Now().UnixMilli()))
		}
	}
	stats.Duration = time.Since(start)
	stats.Interrupted = ctx.Err() != nil && stats.Total < int64(len(hosts))

	uc.events.Send(entity.RunFinished{Statistics: *stats})

	if err := uc.writeResults(valid); err != nil {
		return stats, err
	}
	return stats, nil
}

// seeds holds the raw inputs of a run
type seeds struct {
	raw      []string
	archived mapset.Set[entity.Hostname]
	// archiveErr is only fatal when raw yields no candidates
	archiveErr error
}

// collect loads base candidates and the archive set concurrently
func (uc *ScanUseCase) collect(ctx context.Context) (*seeds, error) {
	result := &seeds{}

	g, gctx := errgroup.WithContext(ctx)
	if uc.source != nil {
		g.Go(func() error {
			candidates, err := uc.source.Candidates(gctx, uc.config.Apex)
			if err != nil {
				return fmt.Errorf("failed to load candidates: %w", err)
			}
			result.raw = candidates
			return nil
		})
	}
	if uc.config.UseArchive && uc.archive != nil {
		g.Go(func() error {
			result.archived, result.archiveErr = uc.archive.Fetch(gctx, uc.config.Apex)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// checkWildcard probes a label that should not exist under the apex
func (uc *ScanUseCase) checkWildcard(ctx context.Context) {
	host := entity.Hostname(fmt.Sprintf("%s.%s", randomLabel(16), uc.config.Apex))
	outcome, err := uc.prober.Probe(ctx, host)
	if err != nil {
		return
	}
	if outcome.Valid() {
		uc.events.Send(entity.WildcardWarning{Hostname: host})
	}
}

func randomLabel(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

// interrupted publishes and returns the statistics of a run cancelled before probing
func (uc *ScanUseCase) interrupted(start time.Time) *entity.RunStatistics {
	stats := entity.NewRunStatistics()
	stats.Duration = time.Since(start)
	stats.Interrupted = true
	uc.events.Send(entity.RunFinished{Statistics: *stats})
	return stats
}

// writeResults writes valid hostnames in sorted order
func (uc *ScanUseCase) writeResults(valid []entity.Hostname) error {
	if uc.resultWriter == nil {
		return nil
	}

	slices.Sort(valid)
	for _, host := range valid {
		if err := uc.resultWriter.Write(host); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
	}
	if err := uc.resultWriter.Flush(); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// dispatch delivers queued events to every reporter
func (uc *ScanUseCase) dispatch(done chan<- struct{}) {
	defer close(done)
	for {
		event, ok := uc.events.Receive()
		if !ok {
			return
		}
		for _, reporter := range uc.reporters {
			reporter.Report(event)
		}
	}
}

// Close closes the result and probe log writers
func (uc *ScanUseCase) Close() error {
	var errs []error
	if uc.resultWriter != nil {
		errs = append(errs, uc.resultWriter.Close())
	}
	if uc.logWriter != nil {
		errs = append(errs, uc.logWriter.Close())
	}
	return errors.Join(errs...)
}
