// Package pipeline wires the receiver, ingestion queue, compliance engine
// and forwarder into one supervised unit with ordered shutdown.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/observability"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/gate"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/ports"
)

// Runner runs until its context is cancelled, drains, and returns.
type Runner interface {
	Run(ctx context.Context) error
}

type Pipeline struct {
	Collector ports.Collector
	Queue     ports.SampleQueue
	Engine    *gate.Engine
	Forwarder Runner
	Obs       ports.Observability

	// GaugeInterval controls how often queue depth and tracked-vehicle
	// gauges are sampled. Zero selects a 5s default.
	GaugeInterval time.Duration
}

// Run blocks until ctx is cancelled and the pipeline has drained. Shutdown
// is ordered: the receiver stops first so no new packets arrive, the queue
// closes so the engine validates everything already buffered, and only once
// the engine returns is the forwarder released to flush its backlog.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Collector.Start(ctx); err != nil {
		return err
	}

	fwdCtx, stopForwarder := context.WithCancel(context.Background())
	defer stopForwarder()

	g := new(errgroup.Group)

	g.Go(func() error {
		return p.Forwarder.Run(fwdCtx)
	})

	g.Go(func() error {
		err := p.Engine.Run()
		stopForwarder()
		return err
	})

	g.Go(func() error {
		p.sampleGauges(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		if err := p.Collector.Stop(); err != nil {
			p.Obs.LogError("receiver stop failed", err)
		}
		p.Queue.Close()
		return nil
	})

	return g.Wait()
}

func (p *Pipeline) sampleGauges(ctx context.Context) {
	interval := p.GaugeInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Obs.SetGauge(observability.MetricQueueLength, float64(p.Queue.Len()))
			p.Obs.SetGauge(observability.MetricVehiclesTracked, float64(p.Engine.Registry().Size()))
		}
	}
}
