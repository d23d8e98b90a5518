package queue

import (
	"time"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/domain"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/ports"
)

// IngestQueue is the bounded ingestion queue between the UDP receiver and the
// compliance gate. At 60 Hz per car the reference capacity of 2048 buffers
// roughly half a minute of single-car telemetry.
type IngestQueue struct {
	ring *Ring[ports.QueuedSample]
	now  func() time.Time
}

func NewIngestQueue(capacity int) *IngestQueue {
	return &IngestQueue{
		ring: NewRing[ports.QueuedSample](capacity),
		now:  time.Now,
	}
}

func (q *IngestQueue) Enqueue(s domain.TelemetrySample) bool {
	return q.ring.Enqueue(ports.QueuedSample{Sample: s, EnqueuedAt: q.now()})
}

func (q *IngestQueue) Dequeue() (ports.QueuedSample, bool) {
	return q.ring.Dequeue()
}

func (q *IngestQueue) Close()        { q.ring.Close() }
func (q *IngestQueue) Len() int      { return q.ring.Len() }
func (q *IngestQueue) Drops() uint64 { return q.ring.Drops() }

var _ ports.SampleQueue = (*IngestQueue)(nil)
