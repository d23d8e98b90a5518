package apexgate

import (
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/hec"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/udp"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/app/config"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/gate"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/retry"
)

// Config re-exports the root configuration so embedding projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// ListenConfig holds the UDP bind address and port.
	ListenConfig = udp.Config
	// CollectorConfig configures the Splunk HEC forwarder.
	CollectorConfig = hec.Config
	// GateConfig holds the compliance gate's physics and hysteresis tuning.
	GateConfig = gate.Config
	// RetryConfig bounds the forwarder's delivery attempts.
	RetryConfig = retry.Config
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// ThrottleConfig bounds repeated error log volume.
	ThrottleConfig = config.ThrottleConfig
)

// LoadConfig reads an optional YAML file, applies environment overrides, and
// validates. An empty path configures purely from environment and defaults.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultGateConfig returns the MCL40 reference tuning.
func DefaultGateConfig() GateConfig {
	return gate.DefaultConfig()
}
