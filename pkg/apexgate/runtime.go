package apexgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/hec"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/observability"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/queue"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/udp"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/app/pipeline"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/gate"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collector     Collector
	queue         SampleQueue
	forwarder     Forwarder
	observability Observability
	logger        *slog.Logger
}

// WithCollector injects a custom collector (replay files, simulators, etc.).
func WithCollector(col Collector) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.collector = col
	}
}

// WithSampleQueue swaps the in-memory ingestion queue for a caller-provided
// implementation.
func WithSampleQueue(q SampleQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithForwarder replaces the Splunk HEC forwarder so violations can be sent
// to any downstream system.
func WithForwarder(f Forwarder) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.forwarder = f
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger sets the slog logger used by the default observability stack.
// Ignored when WithObservability is also given.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// Runtime wires the UDP receiver, ingestion queue, compliance engine and HEC
// forwarder together and exposes simple lifecycle hooks for embedding the
// validator inside any Go service.
type Runtime struct {
	cfg       *Config
	obs       ports.Observability
	queue     ports.SampleQueue
	collector ports.Collector
	forwarder Forwarder
	engine    *gate.Engine
	pipe      *pipeline.Pipeline

	metricsSrv *http.Server
	cancelRun  context.CancelFunc
	doneCh     chan error
}

// NewRuntime bootstraps the default adapters (UDP receiver, drop-oldest
// queue, Splunk HEC forwarder, Prometheus observability). Callers can use
// RuntimeOption values to override any dependency.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		logger := overrides.logger
		if logger == nil {
			logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
		}
		obs = observability.NewPromObs(logger, cfg.LogThrottle.ErrorInterval)
	}

	q := overrides.queue
	if q == nil {
		q = queue.NewIngestQueue(cfg.Pipeline.QueueCapacity)
	}

	col := overrides.collector
	if col == nil {
		var err error
		col, err = udp.NewReceiver(cfg.Listen, q, obs)
		if err != nil {
			return nil, err
		}
	}

	fwd := overrides.forwarder
	if fwd == nil {
		var err error
		fwd, err = hec.NewForwarder(cfg.Collector, obs)
		if err != nil {
			return nil, err
		}
	}

	eng := gate.NewEngine(cfg.Gate, q, fwd, obs)

	return &Runtime{
		cfg:       cfg,
		obs:       obs,
		queue:     q,
		collector: col,
		forwarder: fwd,
		engine:    eng,
		pipe: &pipeline.Pipeline{
			Collector: col,
			Queue:     q,
			Engine:    eng,
			Forwarder: fwd,
			Obs:       obs,
		},
	}, nil
}

// VehiclesTracked reports how many vehicles have compliance state.
func (r *Runtime) VehiclesTracked() int {
	return r.engine.Registry().Size()
}

// Start launches the pipeline and the metrics endpoint. It returns
// immediately; call Run to block on a context instead.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancelRun = cancel

	r.startMetrics()

	r.doneCh = make(chan error, 1)
	go func() {
		r.doneCh <- r.pipe.Run(ctx)
	}()
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled
// or the pipeline fails. Upon cancellation it performs a graceful drain.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}

	select {
	case err := <-r.doneCh:
		// Pipeline stopped on its own (startup failure). Tear down metrics
		// and surface the cause.
		r.doneCh = nil
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return errors.Join(err, r.Shutdown(shutdownCtx))
	case <-ctx.Done():
	}

	grace := r.cfg.Pipeline.ShutdownGrace + 5*time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown cancels the pipeline, waits for the buffered telemetry to drain,
// and stops the metrics server.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.cancelRun != nil {
		r.cancelRun()
	}

	if r.doneCh != nil {
		select {
		case err := <-r.doneCh:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}

	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Runtime) startMetrics() {
	mux := http.NewServeMux()
	if h, ok := r.obs.(interface{ Handler() http.Handler }); ok {
		mux.Handle("/metrics", h.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:    r.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics server exited", err)
		}
	}()
}
