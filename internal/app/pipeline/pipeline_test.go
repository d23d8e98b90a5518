package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/queue"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/domain"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/gate"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/ports"
)

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)                       {}
func (nopObs) LogWarn(string, error, ...ports.Field)                {}
func (nopObs) LogError(string, error, ...ports.Field)               {}
func (nopObs) LogThrottled(string, string, error, ...ports.Field)   {}
func (nopObs) IncCounter(string, float64)                           {}
func (nopObs) SetGauge(string, float64)                             {}
func (nopObs) ObserveLatency(string, float64)                       {}

// feedCollector pushes a fixed set of samples into the queue on Start.
type feedCollector struct {
	queue   ports.SampleQueue
	samples []domain.TelemetrySample
	failure error
	stopped atomic.Bool
}

func (c *feedCollector) Start(ctx context.Context) error {
	if c.failure != nil {
		return c.failure
	}
	for _, s := range c.samples {
		c.queue.Enqueue(s)
	}
	return nil
}

func (c *feedCollector) Stop() error {
	c.stopped.Store(true)
	return nil
}

// recordingForwarder satisfies both the engine's submission port and the
// pipeline's runner, and records everything it sees.
type recordingForwarder struct {
	mu      sync.Mutex
	events  []domain.ViolationEvent
	drained atomic.Bool
}

func (f *recordingForwarder) Name() string { return "recording" }

func (f *recordingForwarder) Submit(ev domain.ViolationEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return true
}

func (f *recordingForwarder) Run(ctx context.Context) error {
	<-ctx.Done()
	f.drained.Store(true)
	return nil
}

func (f *recordingForwarder) Events() []domain.ViolationEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ViolationEvent, len(f.events))
	copy(out, f.events)
	return out
}

const samplePeriod = time.Second / 60

// breachingSamples builds n in-order samples whose oscillation energy exceeds
// the nominal limit with an accelerometer that corroborates the velocity.
func breachingSamples(vehicle string, n int, energyJ float64) []domain.TelemetrySample {
	cfg := gate.DefaultConfig()
	vz := math.Sqrt(2 * energyJ / cfg.EffectiveMassKg)
	base := time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC)

	out := make([]domain.TelemetrySample, n)
	for i := range out {
		out[i] = domain.TelemetrySample{
			VehicleID:        vehicle,
			Timestamp:        base.Add(time.Duration(i+1) * samplePeriod),
			EngineOilTempC:   92.0,
			RearRideHeightMM: 31.5,
			VerticalVelocity: vz,
			VerticalAccel:    vz / samplePeriod.Seconds(),
		}
	}
	return out
}

func TestPipelineValidatesBufferedSamplesOnShutdown(t *testing.T) {
	q := queue.NewIngestQueue(2048)
	fwd := &recordingForwarder{}
	eng := gate.NewEngine(gate.DefaultConfig(), q, fwd, nopObs{})
	col := &feedCollector{queue: q, samples: breachingSamples("CAR_55", 10, 130.0)}

	p := &Pipeline{
		Collector: col,
		Queue:     q,
		Engine:    eng,
		Forwarder: fwd,
		Obs:       nopObs{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// Let the collector's samples land, then request shutdown. Everything
	// buffered must still be evaluated before Run returns.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not shut down")
	}

	if !col.stopped.Load() {
		t.Fatal("collector was not stopped")
	}
	if !fwd.drained.Load() {
		t.Fatal("forwarder was never released to drain")
	}

	events := fwd.Events()
	if len(events) != 1 {
		t.Fatalf("violation events = %d, want exactly 1 for a sustained breach", len(events))
	}
	if events[0].VehicleID != "CAR_55" {
		t.Fatalf("event vehicle = %q", events[0].VehicleID)
	}
	if events[0].Classification != domain.ViolationThermalSquat {
		t.Fatalf("classification = %q, want %q", events[0].Classification, domain.ViolationThermalSquat)
	}
	if q.Len() != 0 {
		t.Fatalf("queue not drained, %d samples left", q.Len())
	}
}

func TestPipelineCollectorStartFailure(t *testing.T) {
	q := queue.NewIngestQueue(16)
	fwd := &recordingForwarder{}
	eng := gate.NewEngine(gate.DefaultConfig(), q, fwd, nopObs{})
	boom := errors.New("bind refused")
	col := &feedCollector{queue: q, failure: boom}

	p := &Pipeline{
		Collector: col,
		Queue:     q,
		Engine:    eng,
		Forwarder: fwd,
		Obs:       nopObs{},
	}

	if err := p.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
}
