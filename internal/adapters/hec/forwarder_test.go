package hec

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/adapters/observability"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/domain"
	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/retry"
)

func testConfig(url string) Config {
	return Config{
		URL:     url,
		Token:   "test-token-1234",
		Timeout: time.Second,
		Retry:   retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}
}

func testEvent(vehicle string) domain.ViolationEvent {
	return domain.ViolationEvent{
		EventID:        "evt-1",
		VehicleID:      vehicle,
		Timestamp:      time.Unix(1756500000, 0),
		Classification: domain.ViolationTorqueAnomaly,
		ThermalMode:    domain.ThermalHighCompression,
		EngineOilTempC: 110,
		EnergyJoules:   85,
	}
}

func startForwarder(t *testing.T, f *Forwarder) (context.CancelFunc, chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.Run(ctx)
		close(done)
	}()
	return cancel, done
}

func TestForwardSuccessCarriesEnvelopeAndAuth(t *testing.T) {
	var got atomic.Pointer[http.Request]
	var body atomic.Pointer[hecEnvelope]

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Clone(context.Background()))
		var env hecEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err == nil {
			body.Store(&env)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	obs := observability.NewPromObs(slog.Default(), time.Second)
	f, err := NewForwarder(testConfig(srv.URL), obs)
	require.NoError(t, err)

	cancel, done := startForwarder(t, f)
	require.True(t, f.Submit(testEvent("CAR_81")))

	require.Eventually(t, func() bool { return body.Load() != nil }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	req := got.Load()
	assert.Equal(t, "Splunk test-token-1234", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	env := body.Load()
	assert.Equal(t, "CAR_81", env.Event.VehicleID)
	assert.Equal(t, domain.ViolationTorqueAnomaly, env.Event.Classification)
	assert.Equal(t, "mtc-edge-node", env.Host)
	assert.InDelta(t, 1756500000, env.Time, 0.001)
}

func TestForwardExhaustsBoundedRetriesThenDrops(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	obs := observability.NewPromObs(slog.Default(), time.Hour)
	cfg := testConfig(srv.URL)
	f, err := NewForwarder(cfg, obs)
	require.NoError(t, err)

	cancel, done := startForwarder(t, f)
	f.Submit(testEvent("CAR_1"))

	require.Eventually(t, func() bool {
		return hits.Load() >= int64(cfg.Retry.MaxAttempts)
	}, 2*time.Second, 10*time.Millisecond)

	// Attempts are bounded; there is no durable retry queue.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(cfg.Retry.MaxAttempts), hits.Load())

	cancel()
	<-done
}

func TestForwardErrorLogVolumeIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	obs := observability.NewPromObs(slog.New(slog.NewTextHandler(&buf, nil)), time.Hour)

	f, err := NewForwarder(testConfig(srv.URL), obs)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 25; i++ {
		f.send(ctx, testEvent("CAR_1"))
	}

	// Sustained outage: one line for the whole window, not one per event.
	assert.Equal(t, 1, strings.Count(buf.String(), "collector unreachable"))
}

func TestPlaceholderTokenNeverTouchesNetwork(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Token = PlaceholderToken
	f, err := NewForwarder(cfg, observability.NewPromObs(slog.Default(), time.Hour))
	require.NoError(t, err)

	f.send(context.Background(), testEvent("CAR_1"))
	assert.Equal(t, int64(0), hits.Load())
}

func TestSubmitShedsOldestWhenOutboundFull(t *testing.T) {
	cfg := testConfig("https://collector.invalid/services/collector/event")
	cfg.OutboundCapacity = 2

	f, err := NewForwarder(cfg, observability.NewPromObs(slog.Default(), time.Hour))
	require.NoError(t, err)

	require.True(t, f.Submit(testEvent("CAR_1")))
	require.True(t, f.Submit(testEvent("CAR_2")))
	assert.False(t, f.Submit(testEvent("CAR_3")), "third submit evicts the oldest")
	assert.Equal(t, 2, f.Pending())
}

func TestNewForwarderValidatesURL(t *testing.T) {
	_, err := NewForwarder(Config{Token: "t"}, observability.NewPromObs(slog.Default(), time.Hour))
	assert.Error(t, err)

	_, err = NewForwarder(Config{URL: "ftp://nope", Token: "t"}, observability.NewPromObs(slog.Default(), time.Hour))
	assert.Error(t, err)
}
