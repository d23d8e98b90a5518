package domain

import "time"

// TelemetrySample is the canonical unit of car telemetry in Project Apex.
// One sample corresponds to one decoded UDP datagram from the ATLAS forwarder.
type TelemetrySample struct {
	VehicleID        string    `json:"vehicle_id"`
	Timestamp        time.Time `json:"ts"`
	EngineOilTempC   float64   `json:"engine_oil_temp_c"`
	RearRideHeightMM float64   `json:"rear_rh_mm"`
	VerticalVelocity float64   `json:"vertical_velocity"`
	VerticalAccel    float64   `json:"vertical_accel"`
}

// ThermalMode classifies the compliance threshold regime for a vehicle based
// on observed engine oil temperature. It is a threshold selector, not a
// statement about the physical engine state.
type ThermalMode string

const (
	ThermalNominal         ThermalMode = "NOMINAL"
	ThermalHighCompression ThermalMode = "HIGH_COMPRESSION"
)

// Classification is the per-vehicle compliance state.
type Classification string

const (
	ClassStable   Classification = "STABLE"
	ClassWatch    Classification = "WATCH"
	ClassCritical Classification = "CRITICAL"
)
