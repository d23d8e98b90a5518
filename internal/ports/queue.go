package ports

import (
	"time"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/domain"
)

// QueuedSample wraps a decoded sample with its enqueue time so consumers can
// observe queueing delay.
type QueuedSample struct {
	Sample     domain.TelemetrySample
	EnqueuedAt time.Time
}

// SampleQueue decouples the receive path from validation. Enqueue never
// blocks: at capacity the oldest entry is evicted to admit the newest, and
// the drop counter increments. Dequeue blocks until an entry is available or
// the queue is closed; after Close it drains the remaining entries and then
// reports ok=false.
type SampleQueue interface {
	Enqueue(s domain.TelemetrySample) bool
	Dequeue() (QueuedSample, bool)
	Close()
	Len() int
	Drops() uint64
}
