// Package hec forwards violation events to a Splunk-HEC-style collector over
// HTTPS. It is the only component talking to the outside world, and it is
// built so collector unavailability can never stall or crash ingestion:
// bounded buffer, bounded retries, rate-limited diagnostics.
package hec

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/observability"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/queue"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/domain"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/ports"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/retry"
)

// PlaceholderToken is the shipped default. The forwarder refuses to send
// while it is in effect so a misdeployed node cannot leak telemetry to a
// collector it was never authorized against.
const PlaceholderToken = "REPLACE_WITH_SECURE_TOKEN"

// ErrExhausted wraps a forward failure that survived every retry attempt.
var ErrExhausted = errors.New("hec: forward retries exhausted")

type Config struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`

	// InsecureSkipVerify disables TLS certificate verification. Only for
	// explicitly non-production setups with self-signed collectors.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	Timeout           time.Duration `yaml:"timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	Retry             retry.Config  `yaml:"retry"`
	OutboundCapacity  int           `yaml:"outbound_capacity"`
	DrainGrace        time.Duration `yaml:"drain_grace"`

	// HEC envelope metadata.
	Host       string `yaml:"host"`
	Source     string `yaml:"source"`
	SourceType string `yaml:"sourcetype"`
	Index      string `yaml:"index"`
}

func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 60 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.DefaultConfig()
	}
	if c.OutboundCapacity <= 0 {
		c.OutboundCapacity = 256
	}
	if c.DrainGrace <= 0 {
		c.DrainGrace = 3 * time.Second
	}
	if c.Host == "" {
		c.Host = "mtc-edge-node"
	}
	if c.Source == "" {
		c.Source = "atlas_edge_bridge"
	}
	if c.SourceType == "" {
		c.SourceType = "mcl_telemetry"
	}
	if c.Index == "" {
		c.Index = "project_apex"
	}
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("collector url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("collector url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("collector url scheme %q not supported", u.Scheme)
	}
	return nil
}

// hecEnvelope is the wire shape the collector ingests.
type hecEnvelope struct {
	Time       float64               `json:"time"`
	Host       string                `json:"host"`
	Source     string                `json:"source"`
	SourceType string                `json:"sourcetype"`
	Index      string                `json:"index,omitempty"`
	Event      domain.ViolationEvent `json:"event"`
}

// Forwarder owns a keep-alive HTTP client and a bounded outbound ring.
// Submit never blocks the compliance gate; the drain loop runs as its own
// task.
type Forwarder struct {
	cfg    Config
	client *http.Client
	ring   *queue.Ring[domain.ViolationEvent]
	obs    ports.Observability

	heartbeat *rate.Limiter
	now       func() time.Time
}

func NewForwarder(cfg Config, obs ports.Observability) (*Forwarder, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Forwarder{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		ring:      queue.NewRing[domain.ViolationEvent](cfg.OutboundCapacity),
		obs:       obs,
		heartbeat: rate.NewLimiter(rate.Every(cfg.HeartbeatInterval), 1),
		now:       time.Now,
	}, nil
}

func (f *Forwarder) Name() string { return "splunk-hec" }

// Submit enqueues an event for forwarding. At capacity the oldest pending
// event is shed, same freshness policy as the ingestion queue.
func (f *Forwarder) Submit(ev domain.ViolationEvent) bool {
	ok := f.ring.Enqueue(ev)
	if !ok {
		f.obs.IncCounter(observability.MetricOutboundDropped, 1)
	}
	return ok
}

// Pending reports the outbound buffer depth.
func (f *Forwarder) Pending() int { return f.ring.Len() }

// Run drains the outbound buffer until ctx is cancelled, then keeps draining
// already-buffered events within the configured grace period. It always
// returns nil: forwarding failures are observational, never fatal to the
// pipeline.
func (f *Forwarder) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		f.ring.Close()
	}()

	var flushDeadline time.Time
	for {
		ev, ok := f.ring.Dequeue()
		if !ok {
			return nil
		}

		sendCtx := ctx
		var cancel context.CancelFunc
		if ctx.Err() != nil {
			if flushDeadline.IsZero() {
				flushDeadline = f.now().Add(f.cfg.DrainGrace)
			}
			if !f.now().Before(flushDeadline) {
				f.obs.IncCounter(observability.MetricForwardExhausted, 1)
				continue
			}
			sendCtx, cancel = context.WithDeadline(context.Background(), flushDeadline)
		}

		f.send(sendCtx, ev)
		if cancel != nil {
			cancel()
		}
	}
}

func (f *Forwarder) send(ctx context.Context, ev domain.ViolationEvent) {
	if f.cfg.Token == "" || f.cfg.Token == PlaceholderToken {
		f.obs.LogThrottled("hec_token", "security alert: default collector token in use, refusing to forward", nil)
		f.obs.IncCounter(observability.MetricForwardExhausted, 1)
		return
	}

	body, err := json.Marshal(hecEnvelope{
		Time:       float64(ev.Timestamp.UnixNano()) / float64(time.Second),
		Host:       f.cfg.Host,
		Source:     f.cfg.Source,
		SourceType: f.cfg.SourceType,
		Index:      f.cfg.Index,
		Event:      ev,
	})
	if err != nil {
		f.obs.LogError("marshal violation event", err,
			ports.Field{Key: "vehicle_id", Value: ev.VehicleID})
		return
	}

	start := f.now()
	attempt := 0
	err = retry.Do(ctx, f.cfg.Retry, func() error {
		attempt++
		if attempt > 1 {
			f.obs.IncCounter(observability.MetricForwardRetries, 1)
		}
		return f.post(ctx, body)
	})
	if err != nil {
		f.obs.IncCounter(observability.MetricForwardExhausted, 1)
		f.obs.LogThrottled("hec_unreachable", "event dropped: collector unreachable", fmt.Errorf("%w: %v", ErrExhausted, err),
			ports.Field{Key: "vehicle_id", Value: ev.VehicleID},
			ports.Field{Key: "attempts", Value: attempt})
		return
	}

	f.obs.IncCounter(observability.MetricForwardSuccess, 1)
	f.obs.ObserveLatency(observability.MetricForwardLatency, f.now().Sub(start).Seconds())
	if f.heartbeat.Allow() {
		f.obs.LogInfo("collector ingestion active",
			ports.Field{Key: "collector", Value: f.cfg.URL},
			ports.Field{Key: "last_vehicle", Value: ev.VehicleID})
	}
}

func (f *Forwarder) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Splunk "+f.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// Drain so the keep-alive connection is reusable.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector rejected event: %s", resp.Status)
	}
	return nil
}

var _ ports.Forwarder = (*Forwarder)(nil)
