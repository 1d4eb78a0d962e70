package bs1200

import (
	"math"
	"testing"
)

func TestToRawVoltage(t *testing.T) {
	tests := []struct {
		name  string
		volts float64
		want  uint16
	}{
		{"zero", 0, 0},
		{"2.50 V", 2.50, 25000},
		{"max cell", MaxCellVolts, 50000},
		{"sub count rounds", 1.23456, 12346},
		{"negative saturates", -1, 0},
		{"above range saturates", 7, math.MaxUint16},
		{"NaN", math.NaN(), 0},
		{"+Inf", math.Inf(1), math.MaxUint16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToRawVoltage(tt.volts); got != tt.want {
				t.Errorf("ToRawVoltage(%v) = %d, want %d", tt.volts, got, tt.want)
			}
		})
	}
}

func TestVoltageRoundTrip(t *testing.T) {
	for raw := 0; raw <= 50000; raw += 7 {
		if got := ToRawVoltage(FromRawVoltage(uint16(raw))); got != uint16(raw) {
			t.Fatalf("round trip %d -> %d", raw, got)
		}
	}
	for _, v := range []float64{0, 0.0001, 1.5, 2.5, 3.3333, 4.9999, 5} {
		if got := FromRawVoltage(ToRawVoltage(v)); math.Abs(got-v) > VoltsPerCount/2 {
			t.Errorf("FromRawVoltage(ToRawVoltage(%v)) = %v", v, got)
		}
	}
}

func TestCurrentTelemetry(t *testing.T) {
	if got := FromRawCurrent(CurrentZeroOffset); math.Abs(got) > 1e-12 {
		t.Errorf("zero offset reads %v A", got)
	}
	if got := ToRawCurrent(0); got != CurrentZeroOffset {
		t.Errorf("ToRawCurrent(0) = %d", got)
	}
	for _, a := range []float64{-0.5, -0.1234, 0, 0.0001, 0.25, 0.5} {
		if got := FromRawCurrent(ToRawCurrent(a)); math.Abs(got-a) > AmpsPerCount/2 {
			t.Errorf("FromRawCurrent(ToRawCurrent(%v)) = %v", a, got)
		}
	}
	if got := ToRawCurrent(-10); got != 0 {
		t.Errorf("ToRawCurrent(-10) = %d, want 0", got)
	}
	if got := ToRawCurrent(10); got != math.MaxUint16 {
		t.Errorf("ToRawCurrent(10) = %d, want max", got)
	}
}

func TestCurrentLimit(t *testing.T) {
	if got := ToRawCurrentLimit(MaxCellAmps); got != 5000 {
		t.Errorf("ToRawCurrentLimit(0.5) = %d, want 5000", got)
	}
	if got := FromRawCurrentLimit(ToRawCurrentLimit(0.1234)); math.Abs(got-0.1234) > 1e-9 {
		t.Errorf("limit round trip = %v", got)
	}
	if got := ToRawCurrentLimit(-0.1); got != 0 {
		t.Errorf("negative limit = %d", got)
	}
}
