package cli

import (
	"fmt"

	"github.com/WangYihang/subprobe/pkg/application"
	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/WangYihang/subprobe/pkg/domain/repository"
	"github.com/WangYihang/subprobe/pkg/domain/service"
	"github.com/WangYihang/subprobe/pkg/infrastructure/archive"
	"github.com/WangYihang/subprobe/pkg/infrastructure/dns"
	"github.com/WangYihang/subprobe/pkg/infrastructure/domainservice"
	"github.com/WangYihang/subprobe/pkg/infrastructure/http"
	"github.com/WangYihang/subprobe/pkg/infrastructure/metrics"
	"github.com/WangYihang/subprobe/pkg/infrastructure/probe"
	"github.com/WangYihang/subprobe/pkg/infrastructure/storage"
)

// eventQueueSize bounds events waiting for the reporters
const eventQueueSize = 1024

// Assembler assembles all components for the application
type Assembler struct {
	config    *Config
	collector *metrics.Collector
}

// NewAssembler creates a new assembler
func NewAssembler(config *Config) *Assembler {
	return &Assembler{config: config}
}

// Collector returns the metrics collector, or nil when metrics are disabled.
// It is only populated by AssembleUseCase.
func (a *Assembler) Collector() *metrics.Collector {
	return a.collector
}

// AssembleUseCase assembles the scan use case with all dependencies
func (a *Assembler) AssembleUseCase() (*application.ScanUseCase, error) {
	apex, err := domainservice.ParseApex(a.config.Domain)
	if err != nil {
		return nil, err
	}

	normalizer := domainservice.NewNormalizer()

	source, err := a.assembleSource()
	if err != nil {
		return nil, err
	}

	var archiveSource service.ArchiveSource
	if a.config.Wayback {
		fetcher := http.NewFetcher(http.Config{
			Timeout:         a.config.HTTPTimeoutDuration(),
			MaxResponseSize: 256 << 20,
			UserAgent:       a.config.UserAgent,
		})
		archiveSource = archive.NewWayback(archive.Config{
			Endpoint: a.config.ArchiveURL,
			Limit:    a.config.ArchiveLimit,
		}, fetcher, normalizer)
	}

	proberConfig := probe.Config{
		Ports:   a.config.PortList,
		Timeout: a.config.ProbeTimeout(),
	}
	if len(a.config.Resolvers) > 0 {
		proberConfig.Resolver = dns.NewResolver(dns.Config{
			Servers: a.config.Resolvers,
			Timeout: a.config.ProbeTimeout(),
		})
	}
	prober := probe.NewTCPProber(proberConfig)

	var resultWriter repository.ResultWriter
	if a.config.OutputFile != "" {
		resultWriter, err = storage.NewResultWriter(a.config.OutputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create result writer: %w", err)
		}
	}

	var logWriter repository.LogWriter
	if a.config.ProbeLog != "" {
		logWriter, err = storage.NewLogWriter(a.config.ProbeLog)
		if err != nil {
			if resultWriter != nil {
				resultWriter.Close()
			}
			return nil, fmt.Errorf("failed to create probe log writer: %w", err)
		}
	}

	useCase := application.NewScanUseCase(
		application.Config{
			Apex:          apex,
			Concurrency:   a.config.Concurrency,
			Rate:          a.config.Rate,
			UseArchive:    a.config.Wayback,
			WildcardCheck: a.config.WildcardCheck,
		},
		normalizer,
		source,
		archiveSource,
		prober,
		storage.NewEventQueue(eventQueueSize),
		resultWriter,
		logWriter,
	)

	if a.config.MetricsAddr != "" {
		a.collector = metrics.NewCollector()
		useCase.RegisterReporter(a.collector)
		useCase.RegisterHooks(a.collector)
	}

	return useCase, nil
}

// assembleSource combines the prefix expansion and the host list input
func (a *Assembler) assembleSource() (service.CandidateSource, error) {
	var sources domainservice.MultiSource

	// With --no-wordlist only the input file and the archive supply hosts
	switch {
	case a.config.NoWordlist:
	case a.config.Wordlist != "":
		words, err := domainservice.LoadWordlist(a.config.Wordlist)
		if err != nil {
			return nil, err
		}
		if len(words) == 0 {
			return nil, fmt.Errorf("%w: wordlist %s is empty", entity.ErrNoCandidates, a.config.Wordlist)
		}
		sources = append(sources, domainservice.NewExpander(words))
	default:
		sources = append(sources, domainservice.NewExpander(nil))
	}

	if a.config.InputFile != "" {
		sources = append(sources, domainservice.NewHostListSource(a.config.InputFile))
	}

	return sources, nil
}
