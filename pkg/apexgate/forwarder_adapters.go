package apexgate

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/queue"
)

// ViolationHandler consumes violation events delivered by a callback
// forwarder.
type ViolationHandler func(ViolationEvent) error

// NewCallbackForwarder adapts a function into a full Forwarder so callers can
// route violations anywhere without defining structs. Events are buffered in
// a bounded drop-oldest ring and delivered from Run's goroutine, so the
// handler never blocks the compliance engine.
func NewCallbackForwarder(name string, buffer int, fn ViolationHandler) Forwarder {
	if name == "" {
		name = "callback"
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &callbackForwarder{
		name: name,
		fn:   fn,
		ring: queue.NewRing[ViolationEvent](buffer),
	}
}

type callbackForwarder struct {
	name string
	fn   ViolationHandler
	ring *queue.Ring[ViolationEvent]
}

func (f *callbackForwarder) Name() string { return f.name }

func (f *callbackForwarder) Submit(ev ViolationEvent) bool {
	return f.ring.Enqueue(ev)
}

func (f *callbackForwarder) Run(ctx context.Context) error {
	if f.fn == nil {
		return fmt.Errorf("callback forwarder %q: nil handler", f.name)
	}

	go func() {
		<-ctx.Done()
		f.ring.Close()
	}()

	for {
		ev, ok := f.ring.Dequeue()
		if !ok {
			return nil
		}
		if err := f.fn(ev); err != nil {
			// The handler owns its own retry policy; a failed event is gone.
			continue
		}
	}
}

// NewChannelForwarder exposes violation events via a channel. It returns the
// forwarder, the read-only channel, and a close function the caller should
// invoke during shutdown.
func NewChannelForwarder(name string, buffer int) (Forwarder, <-chan ViolationEvent, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan ViolationEvent, buffer)
	f := &channelForwarder{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return f, ch, func() { f.close() }
}

type channelForwarder struct {
	name   string
	ch     chan ViolationEvent
	closed chan struct{}
	once   sync.Once
}

func (f *channelForwarder) Name() string { return f.name }

// Submit never blocks: a full or closed channel drops the event.
func (f *channelForwarder) Submit(ev ViolationEvent) bool {
	select {
	case <-f.closed:
		return false
	default:
	}

	select {
	case <-f.closed:
		return false
	case f.ch <- ev:
		return true
	default:
		return false
	}
}

func (f *channelForwarder) Run(ctx context.Context) error {
	<-ctx.Done()
	f.close()
	return nil
}

func (f *channelForwarder) close() {
	f.once.Do(func() {
		close(f.closed)
		close(f.ch)
	})
}

// NewFanoutForwarder delivers every event to all children. Submit reports
// acceptance when at least one child buffered the event; each child drains
// independently under Run.
func NewFanoutForwarder(children ...Forwarder) Forwarder {
	return &fanoutForwarder{children: children}
}

type fanoutForwarder struct {
	children []Forwarder
}

func (f *fanoutForwarder) Name() string { return "fanout" }

func (f *fanoutForwarder) Submit(ev ViolationEvent) bool {
	var accepted bool
	for _, c := range f.children {
		if c.Submit(ev) {
			accepted = true
		}
	}
	return accepted
}

func (f *fanoutForwarder) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range f.children {
		c := c
		g.Go(func() error { return c.Run(ctx) })
	}
	return g.Wait()
}
