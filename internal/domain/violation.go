package domain

import "time"

// Violation labels distinguish which threshold regime the breach occurred in.
const (
	ViolationTorqueAnomaly = "CRITICAL: TORQUE_ANOMALY"
	ViolationThermalSquat  = "CRITICAL: THERMAL_SQUAT"
)

// ViolationEvent is emitted exactly once per transition into CRITICAL and
// handed to the forwarder. Events are never persisted; delivery is
// best-effort end to end.
type ViolationEvent struct {
	EventID           string      `json:"event_id"`
	VehicleID         string      `json:"vehicle_id"`
	Timestamp         time.Time   `json:"ts"`
	Classification    string      `json:"classification"`
	ThermalMode       ThermalMode `json:"thermal_mode"`
	EngineOilTempC    float64     `json:"engine_temp_c"`
	EnergyJoules      float64     `json:"energy_joules"`
	RideHeightDeltaMM float64     `json:"ride_height_delta_mm"`
}
