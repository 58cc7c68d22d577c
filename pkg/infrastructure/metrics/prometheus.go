package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "subprobe"

// Collector exports run progress as Prometheus metrics.
// It is both an event reporter and an engine hook.
type Collector struct {
	registry *prometheus.Registry

	candidates      prometheus.Gauge
	inFlight        prometheus.Gauge
	probes          *prometheus.CounterVec
	probeDuration   prometheus.Histogram
	archiveWarnings prometheus.Counter
	wildcard        prometheus.Gauge
	runDuration     prometheus.Gauge
	interrupted     prometheus.Gauge
}

// NewCollector creates a collector on its own registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		candidates: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidates",
			Help:      "Number of hostnames in the worklist",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probes_in_flight",
			Help:      "Number of probes currently running",
		}),
		probes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Completed probes by status and reason",
		}, []string{"status", "reason"}),
		probeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Time to reach a verdict for one hostname",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		archiveWarnings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_warnings_total",
			Help:      "Archive lookups that failed without aborting the run",
		}),
		wildcard: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wildcard_detected",
			Help:      "1 when a random label under the apex was reachable",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the finished run",
		}),
		interrupted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_interrupted",
			Help:      "1 when the run was cancelled before every probe finished",
		}),
	}
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ProbeStarted records a probe admission
func (c *Collector) ProbeStarted(host entity.Hostname) {
	c.inFlight.Inc()
}

// ProbeFinished records a probe leaving the engine
func (c *Collector) ProbeFinished(host entity.Hostname) {
	c.inFlight.Dec()
}

// Report records an event
func (c *Collector) Report(event entity.Event) {
	switch e := event.(type) {
	case entity.RunStarted:
		c.candidates.Set(float64(e.Candidates))
	case entity.ProbeCompleted:
		c.probes.WithLabelValues(string(e.Outcome.Status), string(e.Outcome.Reason)).Inc()
		c.probeDuration.Observe(e.Outcome.Elapsed.Seconds())
	case entity.ArchiveWarning:
		c.archiveWarnings.Inc()
	case entity.WildcardWarning:
		c.wildcard.Set(1)
	case entity.RunFinished:
		c.runDuration.Set(e.Statistics.Duration.Seconds())
		if e.Statistics.Interrupted {
			c.interrupted.Set(1)
		}
	}
}

// Handler returns the /metrics handler for this collector
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (c *Collector) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return c.serve(ctx, listener)
}

func (c *Collector) serve(ctx context.Context, listener net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
