// Package gate implements the per-vehicle compliance state machine and the
// partitioned worker pool that drives it.
package gate

import (
	"math"
	"time"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/domain"
)

// Config holds the gate's physics and hysteresis tuning. All values arrive
// from configuration; nothing here is a compile-time constant.
type Config struct {
	// ThermalThresholdC switches a vehicle into HIGH_COMPRESSION mode, which
	// lowers the permitted oscillation energy. Thermal expansion raises
	// effective compression and shifts the safe envelope downward.
	ThermalThresholdC     float64 `yaml:"thermal_threshold_c"`
	NominalLimitJ         float64 `yaml:"nominal_limit_j"`
	HighCompressionLimitJ float64 `yaml:"high_compression_limit_j"`

	// EffectiveMassKg scales the kinetic-energy proxy 0.5*m*v². It is an
	// approximation of the sprung mass term, not a certified physical
	// constant, and needs empirical calibration per chassis.
	EffectiveMassKg float64 `yaml:"effective_mass_kg"`

	// CrossCheckTolerance is the permitted fractional disagreement between
	// the velocity-derived energy and the accelerometer-derived estimate.
	CrossCheckTolerance float64 `yaml:"cross_check_tolerance"`

	// CriticalAfter breaches escalate WATCH to CRITICAL; RecoverAfter clear
	// samples step the classification back down. Both exist to keep
	// single-sample spikes and flapping out of the violation stream.
	CriticalAfter int `yaml:"critical_after"`
	RecoverAfter  int `yaml:"recover_after"`

	Workers int `yaml:"workers"`
}

// DefaultConfig returns the MCL40 reference tuning.
func DefaultConfig() Config {
	return Config{
		ThermalThresholdC:     105.0,
		NominalLimitJ:         100.0,
		HighCompressionLimitJ: 80.0,
		EffectiveMassKg:       798.0,
		CrossCheckTolerance:   0.35,
		CriticalAfter:         3,
		RecoverAfter:          5,
		Workers:               4,
	}
}

// crossCheckMaxGap bounds the inter-sample gap used to integrate the
// accelerometer. Past this the estimate is meaningless and the check passes
// vacuously rather than suppressing on garbage.
const crossCheckMaxGap = 500 * time.Millisecond

// VehicleState is one vehicle's compliance state, created on first sample
// and retained for the process lifetime. It is mutated only via the registry
// shard that owns the vehicle.
type VehicleState struct {
	ThermalMode    domain.ThermalMode
	Classification domain.Classification
	LastTransition time.Time
	LastEnergyJ    float64

	breachStreak int
	clearStreak  int

	lastSampleAt   time.Time
	haveLastSample bool

	baselineRideHeightMM float64
	haveBaseline         bool
}

func newVehicleState() *VehicleState {
	return &VehicleState{
		ThermalMode:    domain.ThermalNominal,
		Classification: domain.ClassStable,
	}
}

// outcome reports what a single sample did to the state machine.
type outcome struct {
	enteredCritical bool
	disagreement    bool
	energyJ         float64
	estimateJ       float64
	mode            domain.ThermalMode
	limitJ          float64
}

// update applies one sample. Samples for a vehicle arrive in order by
// construction (consistent worker routing), so consecutive-sample counting
// is sound.
func (st *VehicleState) update(cfg Config, s domain.TelemetrySample, now time.Time) outcome {
	if !st.haveBaseline {
		st.baselineRideHeightMM = s.RearRideHeightMM
		st.haveBaseline = true
	}

	mode := domain.ThermalNominal
	limit := cfg.NominalLimitJ
	if s.EngineOilTempC > cfg.ThermalThresholdC {
		mode = domain.ThermalHighCompression
		limit = cfg.HighCompressionLimitJ
	}
	st.ThermalMode = mode

	energy := 0.5 * cfg.EffectiveMassKg * s.VerticalVelocity * s.VerticalVelocity
	st.LastEnergyJ = energy

	out := outcome{energyJ: energy, mode: mode, limitJ: limit}

	gap := s.Timestamp.Sub(st.lastSampleAt)
	hadPrev := st.haveLastSample
	st.lastSampleAt = s.Timestamp
	st.haveLastSample = true

	if energy <= limit {
		st.breachStreak = 0
		st.clearStreak++
		if st.clearStreak >= cfg.RecoverAfter {
			switch st.Classification {
			case domain.ClassCritical:
				st.transition(domain.ClassWatch, now)
			case domain.ClassWatch:
				st.transition(domain.ClassStable, now)
			}
			st.clearStreak = 0
		}
		return out
	}

	// Threshold breached: before escalating, the independent accelerometer
	// must corroborate the velocity-derived energy. A single noisy sensor
	// must never produce a CRITICAL.
	if hadPrev && gap > 0 && gap <= crossCheckMaxGap {
		vEst := math.Abs(s.VerticalAccel) * gap.Seconds()
		est := 0.5 * cfg.EffectiveMassKg * vEst * vEst
		out.estimateJ = est
		if disagreementRatio(energy, est) > cfg.CrossCheckTolerance {
			out.disagreement = true
			st.breachStreak = 0
			return out
		}
	}

	st.clearStreak = 0
	st.breachStreak++

	switch st.Classification {
	case domain.ClassStable:
		st.transition(domain.ClassWatch, now)
	case domain.ClassWatch:
		if st.breachStreak >= cfg.CriticalAfter {
			st.transition(domain.ClassCritical, now)
			out.enteredCritical = true
		}
	}

	return out
}

func (st *VehicleState) transition(to domain.Classification, now time.Time) {
	st.Classification = to
	st.LastTransition = now
}

// RideHeightDeltaMM is the squat relative to the first observed ride height;
// positive means the rear has compressed.
func (st *VehicleState) RideHeightDeltaMM(current float64) float64 {
	if !st.haveBaseline {
		return 0
	}
	return st.baselineRideHeightMM - current
}

func disagreementRatio(a, b float64) float64 {
	max := math.Max(a, b)
	if max <= 0 {
		return 0
	}
	return math.Abs(a-b) / max
}
