// Package wire implements the fixed-layout binary telemetry contract shared
// with the ATLAS forwarder. Producer and consumer must agree on this layout
// bit for bit; anything else is rejected outright.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/SecurityCyberGeek/project-apex-telemetry/internal/domain"
)

// ErrMalformedPacket is returned for any datagram whose length or field
// encoding does not match the contract. Truncated or spoofed input is an
// expected case and must never be partially interpreted.
var ErrMalformedPacket = errors.New("wire: malformed packet")

// Datagram layout, little-endian:
//
//	[0:8)   timestamp, unix seconds (float64)
//	[8:18)  vehicle id, NUL-padded ASCII
//	[18:22) engine oil temperature, °C (float32)
//	[22:26) rear ride height, mm (float32)
//	[26:30) vertical velocity, m/s (float32)
//	[30:34) vertical acceleration, m/s² (float32)
const (
	PacketSize   = 34
	vehicleIDLen = 10
)

// Decode parses one datagram into a TelemetrySample. It allocates only the
// vehicle id string and performs no reflection; the receive loop calls it for
// every packet at 60 Hz per car.
func Decode(b []byte) (domain.TelemetrySample, error) {
	if len(b) != PacketSize {
		return domain.TelemetrySample{}, fmt.Errorf("%w: length %d, want %d", ErrMalformedPacket, len(b), PacketSize)
	}

	ts := math.Float64frombits(binary.LittleEndian.Uint64(b[0:8]))
	id, err := decodeVehicleID(b[8 : 8+vehicleIDLen])
	if err != nil {
		return domain.TelemetrySample{}, err
	}

	oilTemp := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[18:22])))
	rideHeight := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[22:26])))
	vertVel := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[26:30])))
	vertAccel := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[30:34])))

	for _, v := range [...]float64{ts, oilTemp, rideHeight, vertVel, vertAccel} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.TelemetrySample{}, fmt.Errorf("%w: non-finite field value", ErrMalformedPacket)
		}
	}

	sec, frac := math.Modf(ts)
	return domain.TelemetrySample{
		VehicleID:        id,
		Timestamp:        time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC(),
		EngineOilTempC:   oilTemp,
		RearRideHeightMM: rideHeight,
		VerticalVelocity: vertVel,
		VerticalAccel:    vertAccel,
	}, nil
}

// Encode serializes a sample into the wire layout. Producers (simulators,
// tests) share this with the decoder so the two cannot drift.
func Encode(s domain.TelemetrySample) ([]byte, error) {
	if len(s.VehicleID) == 0 || len(s.VehicleID) > vehicleIDLen {
		return nil, fmt.Errorf("%w: vehicle id %q must be 1-%d bytes", ErrMalformedPacket, s.VehicleID, vehicleIDLen)
	}

	b := make([]byte, PacketSize)
	ts := float64(s.Timestamp.UnixNano()) / float64(time.Second)
	binary.LittleEndian.PutUint64(b[0:8], math.Float64bits(ts))
	copy(b[8:8+vehicleIDLen], s.VehicleID)
	binary.LittleEndian.PutUint32(b[18:22], math.Float32bits(float32(s.EngineOilTempC)))
	binary.LittleEndian.PutUint32(b[22:26], math.Float32bits(float32(s.RearRideHeightMM)))
	binary.LittleEndian.PutUint32(b[26:30], math.Float32bits(float32(s.VerticalVelocity)))
	binary.LittleEndian.PutUint32(b[30:34], math.Float32bits(float32(s.VerticalAccel)))
	return b, nil
}

func decodeVehicleID(raw []byte) (string, error) {
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	if end == 0 {
		return "", fmt.Errorf("%w: empty vehicle id", ErrMalformedPacket)
	}
	for _, c := range raw[:end] {
		if c < 0x21 || c > 0x7e {
			return "", fmt.Errorf("%w: vehicle id contains non-printable byte 0x%02x", ErrMalformedPacket, c)
		}
	}
	return string(raw[:end]), nil
}
