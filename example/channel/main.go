package main

import (
	"context"
	"fmt"
	"log"
	"time"

	apexgate "github.com/SecurityCyberGeek/project-apex-telemetry"
)

func main() {
	flow, err := apexgate.Conf("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fwd, events, closeEvents := apexgate.NewChannelForwarder("fanout", 32)
	defer closeEvents()

	go fanoutWorker("race-control", events)

	if err := flow.Run(ctx, apexgate.WithForwarder(fwd)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

func fanoutWorker(name string, events <-chan apexgate.ViolationEvent) {
	for ev := range events {
		fmt.Printf("[%s] %s %s at %s\n", name, ev.VehicleID, ev.Classification, time.Now().Format(time.RFC3339))
	}
}
