// Package observability implements the ports.Observability interface on top
// of Prometheus and slog. Every pipeline instance owns its own registry so
// tests can run multiple pipelines in-process without collector collisions.
package observability

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/ports"
)

// Metric names shared across the pipeline.
const (
	MetricPacketsReceived    = "apex_packets_received_total"
	MetricPacketsMalformed   = "apex_packets_malformed_total"
	MetricSocketErrors       = "apex_socket_errors_total"
	MetricQueueDropped       = "apex_queue_dropped_total"
	MetricQueueLength        = "apex_queue_length"
	MetricWorkerShed         = "apex_worker_shed_total"
	MetricSamplesValidated   = "apex_samples_validated_total"
	MetricSensorDisagreement = "apex_sensor_disagreement_total"
	MetricViolations         = "apex_violations_total"
	MetricVehiclesTracked    = "apex_vehicles_tracked"
	MetricOutboundDropped    = "apex_outbound_dropped_total"
	MetricForwardSuccess     = "apex_forward_success_total"
	MetricForwardRetries     = "apex_forward_retries_total"
	MetricForwardExhausted   = "apex_forward_exhausted_total"
	MetricQueueWaitSeconds   = "apex_queue_wait_seconds"
	MetricForwardLatency     = "apex_forward_latency_seconds"
)

// PromObs is the default observability backend: Prometheus metrics plus
// structured logs with per-class throttling for failure diagnostics.
type PromObs struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer

	throttleEvery time.Duration
	throttleMu    sync.Mutex
	throttles     map[string]*rate.Limiter
}

// NewPromObs builds the adapter with its own metric registry. throttleEvery
// bounds throttled diagnostics to one line per class per interval.
func NewPromObs(logger *slog.Logger, throttleEvery time.Duration) *PromObs {
	if logger == nil {
		logger = slog.Default()
	}
	if throttleEvery <= 0 {
		throttleEvery = 5 * time.Second
	}

	registry := prometheus.NewRegistry()

	counters := make(map[string]prometheus.Counter)
	for name, help := range map[string]string{
		MetricPacketsReceived:    "Total UDP datagrams received.",
		MetricPacketsMalformed:   "Datagrams rejected by the wire decoder.",
		MetricSocketErrors:       "UDP socket read errors.",
		MetricQueueDropped:       "Samples evicted from the ingestion queue under saturation.",
		MetricWorkerShed:         "Samples shed from a saturated gate worker channel.",
		MetricSamplesValidated:   "Samples evaluated by the compliance gate.",
		MetricSensorDisagreement: "Escalations suppressed by the dual-sensor cross-check.",
		MetricViolations:         "Violation events emitted on transitions into CRITICAL.",
		MetricOutboundDropped:    "Events evicted from the forwarder's outbound buffer.",
		MetricForwardSuccess:     "Events accepted by the collector.",
		MetricForwardRetries:     "Forward attempts retried after a transient failure.",
		MetricForwardExhausted:   "Events dropped after exhausting forward retries.",
	} {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		registry.MustRegister(c)
		counters[name] = c
	}

	gauges := make(map[string]prometheus.Gauge)
	for name, help := range map[string]string{
		MetricQueueLength:     "Current depth of the ingestion queue.",
		MetricVehiclesTracked: "Distinct vehicles with compliance state.",
	} {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
		registry.MustRegister(g)
		gauges[name] = g
	}

	histos := make(map[string]prometheus.Observer)
	for name, help := range map[string]string{
		MetricQueueWaitSeconds: "Delay between sample enqueue and gate evaluation.",
		MetricForwardLatency:   "Duration of successful forward attempts.",
	} {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		})
		registry.MustRegister(h)
		histos[name] = h
	}

	return &PromObs{
		registry:      registry,
		logger:        logger,
		counters:      counters,
		gauges:        gauges,
		histos:        histos,
		throttleEvery: throttleEvery,
		throttles:     make(map[string]*rate.Limiter),
	}
}

// Handler serves this instance's metrics.
func (p *PromObs) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(nil, fields)...)
}

func (p *PromObs) LogWarn(msg string, err error, fields ...ports.Field) {
	p.logger.Warn(msg, attrs(err, fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, attrs(err, fields)...)
}

// LogThrottled logs at most once per class per throttle interval. Suppressed
// lines are simply discarded; counters remain the complete record.
func (p *PromObs) LogThrottled(class, msg string, err error, fields ...ports.Field) {
	if !p.allow(class) {
		return
	}
	f := append(fields, ports.Field{Key: "class", Value: class})
	if err != nil {
		p.logger.Warn(msg, attrs(err, f)...)
		return
	}
	p.logger.Info(msg, attrs(nil, f)...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) allow(class string) bool {
	p.throttleMu.Lock()
	lim, ok := p.throttles[class]
	if !ok {
		lim = rate.NewLimiter(rate.Every(p.throttleEvery), 1)
		p.throttles[class] = lim
	}
	p.throttleMu.Unlock()
	return lim.Allow()
}

func attrs(err error, fields []ports.Field) []any {
	out := make([]any, 0, 2*len(fields)+2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	if err != nil {
		out = append(out, "error", err)
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
