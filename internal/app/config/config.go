// Package config loads and validates the edge node configuration. Invalid
// configuration is fatal: the process must not start accepting telemetry
// with broken thresholds or missing credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/hec"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/udp"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/gate"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/ports"
)

// Environment variables honored after the file is read. Credentials come in
// through these so they never live in a config file on disk.
const (
	EnvCollectorURL   = "SPLUNK_HEC_URL"
	EnvCollectorToken = "SPLUNK_TOKEN"
	EnvListenIP       = "LISTEN_IP"
	EnvListenPort     = "LISTEN_PORT"
)

type Config struct {
	Listen      udp.Config     `yaml:"listen"`
	Collector   hec.Config     `yaml:"collector"`
	Pipeline    ports.Policy   `yaml:"pipeline"`
	Gate        gate.Config    `yaml:"gate"`
	Metrics     MetricsConfig  `yaml:"metrics"`
	LogThrottle ThrottleConfig `yaml:"log_throttle"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type ThrottleConfig struct {
	// ErrorInterval bounds throttled diagnostics to one line per error
	// class per interval.
	ErrorInterval time.Duration `yaml:"error_interval"`
}

// Load reads an optional YAML file, applies environment overrides, fills
// defaults, and validates. An empty path configures purely from environment
// and defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvCollectorURL); v != "" {
		c.Collector.URL = v
	}
	if v := os.Getenv(EnvCollectorToken); v != "" {
		c.Collector.Token = v
	}
	if v := os.Getenv(EnvListenIP); v != "" {
		c.Listen.Bind = v
	}
	if v := os.Getenv(EnvListenPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvListenPort, err)
		}
		c.Listen.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Listen.ApplyDefaults()
	if c.Listen.Port == 0 {
		c.Listen.Port = 20777
	}

	c.Collector.ApplyDefaults()

	if c.Pipeline.QueueCapacity == 0 {
		c.Pipeline.QueueCapacity = 2048
	}
	if c.Pipeline.OutboundCapacity == 0 {
		c.Pipeline.OutboundCapacity = 256
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = gate.DefaultConfig().Workers
	}
	if c.Pipeline.ShutdownGrace == 0 {
		c.Pipeline.ShutdownGrace = 3 * time.Second
	}
	// The forwarder's backlog and drain budget follow the pipeline policy.
	c.Collector.OutboundCapacity = c.Pipeline.OutboundCapacity
	c.Collector.DrainGrace = c.Pipeline.ShutdownGrace

	def := gate.DefaultConfig()
	if c.Gate.ThermalThresholdC == 0 {
		c.Gate.ThermalThresholdC = def.ThermalThresholdC
	}
	if c.Gate.NominalLimitJ == 0 {
		c.Gate.NominalLimitJ = def.NominalLimitJ
	}
	if c.Gate.HighCompressionLimitJ == 0 {
		c.Gate.HighCompressionLimitJ = def.HighCompressionLimitJ
	}
	if c.Gate.EffectiveMassKg == 0 {
		c.Gate.EffectiveMassKg = def.EffectiveMassKg
	}
	if c.Gate.CrossCheckTolerance == 0 {
		c.Gate.CrossCheckTolerance = def.CrossCheckTolerance
	}
	if c.Gate.CriticalAfter == 0 {
		c.Gate.CriticalAfter = def.CriticalAfter
	}
	if c.Gate.RecoverAfter == 0 {
		c.Gate.RecoverAfter = def.RecoverAfter
	}
	c.Gate.Workers = c.Pipeline.Workers

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.LogThrottle.ErrorInterval == 0 {
		c.LogThrottle.ErrorInterval = 5 * time.Second
	}
}

// Validate reports the first fatal configuration problem.
func (c *Config) Validate() error {
	if err := c.Listen.Validate(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if err := c.Collector.Validate(); err != nil {
		return fmt.Errorf("collector: %w", err)
	}
	if c.Collector.Token == "" || c.Collector.Token == hec.PlaceholderToken {
		return fmt.Errorf("collector: auth token is required; set %s", EnvCollectorToken)
	}

	if c.Pipeline.QueueCapacity < 1 {
		return fmt.Errorf("pipeline: queue_capacity must be positive")
	}
	if c.Pipeline.OutboundCapacity < 1 {
		return fmt.Errorf("pipeline: outbound_capacity must be positive")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline: workers must be positive")
	}

	g := c.Gate
	if g.ThermalThresholdC <= 0 {
		return fmt.Errorf("gate: thermal_threshold_c must be positive")
	}
	if g.NominalLimitJ <= 0 || g.HighCompressionLimitJ <= 0 {
		return fmt.Errorf("gate: energy limits must be positive")
	}
	if g.HighCompressionLimitJ > g.NominalLimitJ {
		return fmt.Errorf("gate: high_compression_limit_j (%.1f) must not exceed nominal_limit_j (%.1f)",
			g.HighCompressionLimitJ, g.NominalLimitJ)
	}
	if g.EffectiveMassKg <= 0 {
		return fmt.Errorf("gate: effective_mass_kg must be positive")
	}
	if g.CrossCheckTolerance <= 0 || g.CrossCheckTolerance > 1 {
		return fmt.Errorf("gate: cross_check_tolerance must be in (0, 1]")
	}
	if g.CriticalAfter < 1 || g.RecoverAfter < 1 {
		return fmt.Errorf("gate: hysteresis counts must be positive")
	}

	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics: addr is required")
	}
	return nil
}
