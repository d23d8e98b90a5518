package apexgate

import (
	"context"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/domain"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/ports"
)

// TelemetrySample is one decoded suspension telemetry reading. It mirrors the
// internal domain type so custom collectors can produce samples directly.
type TelemetrySample = domain.TelemetrySample

// ViolationEvent is an enriched compliance violation emitted when a vehicle
// enters the CRITICAL classification.
type ViolationEvent = domain.ViolationEvent

// QueuedSample is an item buffered inside the bounded ingestion queue.
type QueuedSample = ports.QueuedSample

// Collector streams telemetry from any source (UDP, replay files, simulators)
// into the pipeline.
type Collector = ports.Collector

// SampleQueue is the bounded drop-oldest queue decoupling the collector from
// the compliance engine.
type SampleQueue = ports.SampleQueue

// Observability emits metrics and structured logs for the pipeline.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Policy controls queue capacities, worker count, and shutdown grace.
type Policy = ports.Policy

// Forwarder delivers violation events downstream. Submit must never block
// the compliance engine; Run drains until its context is cancelled and then
// flushes whatever it can.
type Forwarder interface {
	ports.Forwarder
	Run(ctx context.Context) error
}
