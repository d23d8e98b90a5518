package apexgate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/queue"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/gate"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/ports"
)

// ErrValidatorClosed indicates a publish after Close.
var ErrValidatorClosed = errors.New("apexgate: validator closed")

// ValidatorConfig tunes an in-process validator.
type ValidatorConfig struct {
	Gate          GateConfig
	QueueCapacity int
	EventBuffer   int
	Observability Observability
}

func (c *ValidatorConfig) applyDefaults() {
	if c.Gate == (GateConfig{}) {
		c.Gate = DefaultGateConfig()
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 2048
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
	if c.Observability == nil {
		c.Observability = nopObservability{}
	}
}

// Validator runs the compliance engine in-process without any network edge.
// Callers push samples with Publish and receive violations through the
// handler; it suits tests, replay tooling, and services that already have
// telemetry in hand.
type Validator struct {
	queue  *queue.IngestQueue
	engine *gate.Engine
	fwd    Forwarder

	cancelFwd context.CancelFunc
	doneCh    chan error
	closeOnce sync.Once
	closed    chan struct{}
}

// NewValidator starts an engine fed by a bounded drop-oldest queue and
// delivers violations to the handler from a dedicated goroutine.
func NewValidator(cfg ValidatorConfig, handler ViolationHandler) (*Validator, error) {
	if handler == nil {
		return nil, fmt.Errorf("violation handler is required")
	}
	cfg.applyDefaults()

	q := queue.NewIngestQueue(cfg.QueueCapacity)
	fwd := NewCallbackForwarder("validator", cfg.EventBuffer, handler)
	eng := gate.NewEngine(cfg.Gate, q, fwd, cfg.Observability)

	fwdCtx, cancelFwd := context.WithCancel(context.Background())

	v := &Validator{
		queue:     q,
		engine:    eng,
		fwd:       fwd,
		cancelFwd: cancelFwd,
		doneCh:    make(chan error, 1),
		closed:    make(chan struct{}),
	}

	fwdDone := make(chan error, 1)
	go func() { fwdDone <- fwd.Run(fwdCtx) }()

	go func() {
		err := eng.Run()
		// Engine has drained; release the forwarder to flush its backlog.
		cancelFwd()
		v.doneCh <- errors.Join(err, <-fwdDone)
	}()

	return v, nil
}

// Publish enqueues one sample for evaluation. It never blocks; when the queue
// is at capacity the oldest buffered sample is shed and Publish returns false.
func (v *Validator) Publish(s TelemetrySample) (bool, error) {
	select {
	case <-v.closed:
		return false, ErrValidatorClosed
	default:
	}
	return v.queue.Enqueue(s), nil
}

// Pending reports how many samples are buffered awaiting evaluation.
func (v *Validator) Pending() int { return v.queue.Len() }

// VehiclesTracked reports how many vehicles have compliance state.
func (v *Validator) VehiclesTracked() int { return v.engine.Registry().Size() }

// Close stops intake, waits for every buffered sample to be evaluated and
// every resulting violation to be handed off, then returns.
func (v *Validator) Close(ctx context.Context) error {
	v.closeOnce.Do(func() {
		close(v.closed)
		v.queue.Close()
	})

	select {
	case err := <-v.doneCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type nopObservability struct{}

func (nopObservability) LogInfo(string, ...ports.Field)                     {}
func (nopObservability) LogWarn(string, error, ...ports.Field)              {}
func (nopObservability) LogError(string, error, ...ports.Field)             {}
func (nopObservability) LogThrottled(string, string, error, ...ports.Field) {}
func (nopObservability) IncCounter(string, float64)                         {}
func (nopObservability) SetGauge(string, float64)                           {}
func (nopObservability) ObserveLatency(string, float64)                     {}
