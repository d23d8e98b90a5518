package gate

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/observability"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/domain"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/ports"
)

// workerChanCapacity bounds each worker's routing channel. A saturated
// worker sheds its oldest pending sample, mirroring the ingestion queue's
// freshness policy.
const workerChanCapacity = 256

// Engine drains the ingestion queue and evaluates samples against the
// compliance state machine. Work is partitioned across a fixed worker pool
// by vehicle id, so one vehicle's samples are never reordered or evaluated
// concurrently while distinct vehicles proceed in parallel.
type Engine struct {
	cfg      Config
	registry *Registry
	queue    ports.SampleQueue
	fwd      ports.Forwarder
	obs      ports.Observability
	now      func() time.Time
}

func NewEngine(cfg Config, q ports.SampleQueue, fwd ports.Forwarder, obs ports.Observability) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	return &Engine{
		cfg:      cfg,
		registry: NewRegistry(cfg.Workers),
		queue:    q,
		fwd:      fwd,
		obs:      obs,
		now:      time.Now,
	}
}

// Registry exposes the vehicle state registry for gauges and inspection.
func (e *Engine) Registry() *Registry { return e.registry }

// Run blocks until the ingestion queue is closed and every routed sample has
// been evaluated. Shutdown is driven by closing the queue, not by a context,
// so queued telemetry is still validated during the drain.
func (e *Engine) Run() error {
	chans := make([]chan ports.QueuedSample, e.cfg.Workers)
	for i := range chans {
		chans[i] = make(chan ports.QueuedSample, workerChanCapacity)
	}

	var wg sync.WaitGroup
	for i := range chans {
		wg.Add(1)
		go func(ch chan ports.QueuedSample) {
			defer wg.Done()
			for entry := range ch {
				e.evaluate(entry.Sample)
			}
		}(chans[i])
	}

	for {
		entry, ok := e.queue.Dequeue()
		if !ok {
			break
		}
		e.obs.ObserveLatency(observability.MetricQueueWaitSeconds, e.now().Sub(entry.EnqueuedAt).Seconds())

		ch := chans[e.registry.ShardIndex(entry.Sample.VehicleID)]
		for {
			select {
			case ch <- entry:
			default:
				// Shed the worker's oldest pending sample to admit this one.
				select {
				case <-ch:
					e.obs.IncCounter(observability.MetricWorkerShed, 1)
				default:
				}
				continue
			}
			break
		}
	}

	for _, ch := range chans {
		close(ch)
	}
	wg.Wait()
	return nil
}

func (e *Engine) evaluate(s domain.TelemetrySample) {
	var out outcome
	var ev *domain.ViolationEvent

	e.registry.WithState(s.VehicleID, func(st *VehicleState) {
		out = st.update(e.cfg, s, e.now())
		if out.enteredCritical {
			ev = e.buildEvent(s, st, out)
		}
	})

	e.obs.IncCounter(observability.MetricSamplesValidated, 1)

	if out.disagreement {
		e.obs.IncCounter(observability.MetricSensorDisagreement, 1)
		e.obs.LogThrottled("sensor_disagreement", "escalation suppressed: accelerometer disagrees with velocity channel", nil,
			ports.Field{Key: "vehicle_id", Value: s.VehicleID},
			ports.Field{Key: "energy_j", Value: out.energyJ},
			ports.Field{Key: "estimate_j", Value: out.estimateJ},
		)
		return
	}

	if ev != nil {
		e.obs.IncCounter(observability.MetricViolations, 1)
		e.obs.LogWarn("compliance violation", nil,
			ports.Field{Key: "vehicle_id", Value: ev.VehicleID},
			ports.Field{Key: "classification", Value: ev.Classification},
			ports.Field{Key: "energy_j", Value: ev.EnergyJoules},
			ports.Field{Key: "engine_temp_c", Value: ev.EngineOilTempC},
		)
		e.fwd.Submit(*ev)
	}
}

func (e *Engine) buildEvent(s domain.TelemetrySample, st *VehicleState, out outcome) *domain.ViolationEvent {
	classification := domain.ViolationThermalSquat
	if out.mode == domain.ThermalHighCompression {
		classification = domain.ViolationTorqueAnomaly
	}
	return &domain.ViolationEvent{
		EventID:           uuid.NewString(),
		VehicleID:         s.VehicleID,
		Timestamp:         s.Timestamp,
		Classification:    classification,
		ThermalMode:       out.mode,
		EngineOilTempC:    s.EngineOilTempC,
		EnergyJoules:      out.energyJ,
		RideHeightDeltaMM: st.RideHeightDeltaMM(s.RearRideHeightMM),
	}
}
