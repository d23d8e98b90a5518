package ports

import "github.com/SecurityCyberGeek/project-apex-telemetry/internal/domain"

// Forwarder hands classified violations to the external collector. Submit
// must never block the caller beyond a bounded enqueue; it reports false when
// the event was shed instead of accepted.
type Forwarder interface {
	Submit(ev domain.ViolationEvent) bool
	Name() string
}
