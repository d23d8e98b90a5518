package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	apexgate "github.com/SecurityCyberGeek/project-apex-telemetry"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// A local .env is the usual way to carry SPLUNK_HEC_URL and SPLUNK_TOKEN
	// on trackside nodes; its absence is not an error.
	_ = godotenv.Load()

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("apex-edge %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to edge configuration file (optional; env fills the rest)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := apexgate.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := apexgate.LoadConfig(*cfgPath); err != nil {
		return err
	}
	if *cfgPath == "" {
		fmt.Println("environment configuration looks good")
	} else {
		fmt.Printf("config %s looks good\n", *cfgPath)
	}
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := map[string]float64{
		"apex_packets_received_total":   0,
		"apex_samples_validated_total":  0,
		"apex_queue_length":             0,
		"apex_queue_dropped_total":      0,
		"apex_violations_total":         0,
		"apex_forward_success_total":    0,
		"apex_vehicles_tracked":         0,
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %f", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] rx=%.0f validated=%.0f queue=%.0f dropped=%.0f violations=%.0f forwarded=%.0f vehicles=%.0f\n",
		time.Now().Format(time.RFC3339),
		targets["apex_packets_received_total"],
		targets["apex_samples_validated_total"],
		targets["apex_queue_length"],
		targets["apex_queue_dropped_total"],
		targets["apex_violations_total"],
		targets["apex_forward_success_total"],
		targets["apex_vehicles_tracked"],
	)
	return nil
}

func printUsage() {
	fmt.Printf(`Project Apex edge validator

Usage:
  apex-edge <command> [flags]

Commands:
  run        Start the edge validator (config file optional, env fills the rest)
  validate   Load and validate configuration without starting the validator
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  apex-edge run -config ./config.yaml
  apex-edge validate -config ./config.yaml
  apex-edge stats -url http://localhost:9100/metrics -interval 1s
`)
}
