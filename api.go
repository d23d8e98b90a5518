// Package apexgate validates vehicle suspension telemetry at the edge and
// forwards compliance violations to Splunk. This file re-exports the public
// surface so consumers can import the module path directly.
package apexgate

import (
	"log/slog"

	base "github.com/SecurityCyberGeek/project-apex-telemetry/pkg/apexgate"
)

// Re-exported errors for convenience.
var (
	ErrValidatorClosed = base.ErrValidatorClosed
)

// Type aliases so consumers can import the module root directly.
type (
	Config           = base.Config
	ListenConfig     = base.ListenConfig
	CollectorConfig  = base.CollectorConfig
	GateConfig       = base.GateConfig
	RetryConfig      = base.RetryConfig
	MetricsConfig    = base.MetricsConfig
	ThrottleConfig   = base.ThrottleConfig
	Policy           = base.Policy
	Flow             = base.Flow
	Runtime          = base.Runtime
	RuntimeOption    = base.RuntimeOption
	TelemetrySample  = base.TelemetrySample
	ViolationEvent   = base.ViolationEvent
	ViolationHandler = base.ViolationHandler
	Collector        = base.Collector
	Forwarder        = base.Forwarder
	SampleQueue      = base.SampleQueue
	QueuedSample     = base.QueuedSample
	Observability    = base.Observability
	Field            = base.Field
	Validator        = base.Validator
	ValidatorConfig  = base.ValidatorConfig
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultGateConfig() GateConfig {
	return base.DefaultGateConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...RuntimeOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...RuntimeOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithCollector(col Collector) RuntimeOption {
	return base.WithCollector(col)
}

func WithSampleQueue(q SampleQueue) RuntimeOption {
	return base.WithSampleQueue(q)
}

func WithForwarder(f Forwarder) RuntimeOption {
	return base.WithForwarder(f)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithLogger(l *slog.Logger) RuntimeOption {
	return base.WithLogger(l)
}

// Forwarder adapters.
func NewCallbackForwarder(name string, buffer int, fn ViolationHandler) Forwarder {
	return base.NewCallbackForwarder(name, buffer, fn)
}

func NewChannelForwarder(name string, buffer int) (Forwarder, <-chan ViolationEvent, func()) {
	return base.NewChannelForwarder(name, buffer)
}

func NewFanoutForwarder(children ...Forwarder) Forwarder {
	return base.NewFanoutForwarder(children...)
}

// In-process validator.
func NewValidator(cfg ValidatorConfig, handler ViolationHandler) (*Validator, error) {
	return base.NewValidator(cfg, handler)
}
