package bs1200

import "math"

const (
	// VoltsPerCount is the weight of one raw voltage count (0.1 mV).
	VoltsPerCount = 0.0001
	// AmpsPerCount is the weight of one raw current count (0.1 mA).
	AmpsPerCount = 0.0001
	// CurrentZeroOffset is the raw reading that represents 0 A in telemetry.
	CurrentZeroOffset = 32768

	// Documented device limits. The codec does not enforce them, callers
	// clamp before sending.
	MaxCellVolts = 5.0
	MaxCellAmps  = 0.5

	countsPerUnit = 10000
)

// saturate converts a rounded count to the wire type. NaN and anything
// below zero become 0, anything above the 16 bit range becomes 0xFFFF.
func saturate(counts float64) uint16 {
	switch {
	case math.IsNaN(counts) || counts <= 0:
		return 0
	case counts >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(counts)
}

// ToRawVoltage scales volts to device counts, 0..6.5535 V.
func ToRawVoltage(volts float64) uint16 {
	return saturate(math.Round(volts * countsPerUnit))
}

func FromRawVoltage(raw uint16) float64 {
	return float64(raw) / countsPerUnit
}

// ToRawCurrent scales amps to the offset binary representation used by
// current telemetry, -3.2768..3.2767 A.
func ToRawCurrent(amps float64) uint16 {
	return saturate(math.Round(amps*countsPerUnit) + CurrentZeroOffset)
}

// FromRawCurrent converts a current readback count to amps.
func FromRawCurrent(raw uint16) float64 {
	return (float64(raw)/10 - 3276.8) / 1000
}

// ToRawCurrentLimit scales a sink or source limit in amps for setpoint
// frames. Limits are magnitudes and carry no offset.
func ToRawCurrentLimit(amps float64) uint16 {
	return saturate(math.Round(amps * countsPerUnit))
}

func FromRawCurrentLimit(raw uint16) float64 {
	return float64(raw) / countsPerUnit
}
