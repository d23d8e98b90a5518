package ports

import "time"

// Policy holds the pipeline's capacity and shutdown tuning. Overload is
// answered by dropping, never by blocking the receive path.
type Policy struct {
	QueueCapacity    int           `yaml:"queue_capacity"`
	OutboundCapacity int           `yaml:"outbound_capacity"`
	Workers          int           `yaml:"workers"`
	ShutdownGrace    time.Duration `yaml:"shutdown_grace"`
}
