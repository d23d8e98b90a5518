package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	apexgate "github.com/SecurityCyberGeek/project-apex-telemetry"
)

func main() {
	flow, err := apexgate.Conf("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("edge validator exited: %v", err)
	}
}
