package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/SecurityCyberGeek/project-apex-telemetry/pkg/apexgate"
)

func main() {
	flow, err := apexgate.Conf("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(ev apexgate.ViolationEvent) error {
		fmt.Printf("%s %s %s energy=%.1fJ temp=%.1fC squat=%.2fmm\n",
			ev.Timestamp.Format(time.RFC3339Nano),
			ev.VehicleID,
			ev.Classification,
			ev.EnergyJoules,
			ev.EngineOilTempC,
			ev.RideHeightDeltaMM,
		)
		return nil
	}

	fwd := apexgate.NewCallbackForwarder("stdout", 64, handler)
	if err := flow.Run(ctx, apexgate.WithForwarder(fwd)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
