// Package udp implements the ingestion collector: a single UDP socket fed by
// the ATLAS forwarder and any simulator speaking the same wire contract.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/observability"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/ports"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/wire"
)

// readBufferSize is the OS receive buffer. 1 MiB absorbs multi-car bursts
// between successive reads at 60 Hz.
const readBufferSize = 1 << 20

type Config struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

func (c *Config) ApplyDefaults() {
	// Port 0 is left alone: the OS assigns an ephemeral port, which tests
	// rely on. The production default lives in the app config.
	if c.Bind == "" {
		c.Bind = "0.0.0.0"
	}
}

func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("listen port %d out of range", c.Port)
	}
	return nil
}

// Receiver reads datagrams, decodes them, and enqueues samples. It performs
// no business logic and holds no vehicle state; a decode failure increments
// a counter and never terminates the loop.
type Receiver struct {
	cfg   Config
	queue ports.SampleQueue
	obs   ports.Observability

	mu      sync.Mutex
	conn    *net.UDPConn
	wg      sync.WaitGroup
	running atomic.Bool
}

func NewReceiver(cfg Config, q ports.SampleQueue, obs ports.Observability) (*Receiver, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Receiver{cfg: cfg, queue: q, obs: obs}, nil
}

// Start binds the socket and launches the receive loop. It is idempotent.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return nil
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", r.cfg.Bind, r.cfg.Port))
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("bind ingestion socket: %w", err)
	}
	if err := conn.SetReadBuffer(readBufferSize); err != nil {
		// Some systems cap SO_RCVBUF; run with whatever the OS grants.
		r.obs.LogWarn("could not set UDP receive buffer", err,
			ports.Field{Key: "requested_bytes", Value: readBufferSize})
	}

	r.conn = conn
	r.running.Store(true)

	r.obs.LogInfo("telemetry validator active",
		ports.Field{Key: "listen", Value: conn.LocalAddr().String()},
		ports.Field{Key: "packet_size", Value: wire.PacketSize})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.readLoop()
	}()

	return nil
}

// Stop closes the socket, which unblocks the pending read, and waits for the
// loop to exit.
func (r *Receiver) Stop() error {
	r.mu.Lock()
	if !r.running.Load() {
		r.mu.Unlock()
		return nil
	}
	r.running.Store(false)
	err := r.conn.Close()
	r.mu.Unlock()

	r.wg.Wait()
	return err
}

// LocalAddr reports the bound address; useful when the configured port is 0.
func (r *Receiver) LocalAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

func (r *Receiver) readLoop() {
	// Oversized relative to the contract so a too-long datagram is read
	// whole and rejected by length instead of silently truncated.
	buf := make([]byte, 4*wire.PacketSize)

	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || !r.running.Load() {
				return
			}
			r.obs.IncCounter(observability.MetricSocketErrors, 1)
			r.obs.LogThrottled("udp_read", "socket read failed", err)
			continue
		}

		r.obs.IncCounter(observability.MetricPacketsReceived, 1)

		sample, err := wire.Decode(buf[:n])
		if err != nil {
			r.obs.IncCounter(observability.MetricPacketsMalformed, 1)
			continue
		}

		if !r.queue.Enqueue(sample) {
			r.obs.IncCounter(observability.MetricQueueDropped, 1)
		}
	}
}

var _ ports.Collector = (*Receiver)(nil)
