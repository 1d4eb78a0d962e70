package bs1200

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameValidate(t *testing.T) {
	tests := []struct {
		name    string
		frame   *Frame
		wantErr bool
	}{
		{"standard", NewFrame(0x7FF, make([]byte, 8), Outgoing), false},
		{"empty", NewFrame(0x100, nil, Outgoing), false},
		{"std id too large", NewFrame(0x800, nil, Outgoing), true},
		{"extended", NewExtendedFrame(0x1FFFFFFF, nil, Outgoing), false},
		{"ext id too large", NewExtendedFrame(0x20000000, nil, Outgoing), true},
		{"too long", NewFrame(0x100, make([]byte, 9), Outgoing), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewFrameCopiesData(t *testing.T) {
	data := []byte{1, 2}
	f := NewFrame(0x100, data, Outgoing)
	data[0] = 9
	assert.Equal(t, []byte{1, 2}, f.Data)
}

func TestFrameString(t *testing.T) {
	f := NewFrame(0x141, []byte{3, 0xA8, 0x61}, Outgoing)
	s := f.String()
	assert.True(t, strings.HasPrefix(s, "<o> || 0x141 || 3 || 03 A8 61"))
	assert.Contains(t, s, "00000011 10101000 01100001")
	assert.Contains(t, f.ColorString(), "CellVoltageSetpoint #1")
}

func TestReadingFormat(t *testing.T) {
	readings := []Reading{
		newReading(1, CellVoltage, 1, 25000),
		newReading(1, CellCurrent, 2, CurrentZeroOffset),
		digitalReading(1, 3, true),
	}
	assert.Equal(t, "Cell 1: 2.50000 V", readings[0].String())
	assert.Equal(t, "Cell 2: 0.00000 A", readings[1].String())
	assert.Equal(t, "DIO 3: 1", readings[2].String())

	table := FormatTable(readings, 2)
	lines := strings.Split(strings.TrimSuffix(table, "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "2.500000 V")
	assert.True(t, strings.HasSuffix(lines[1], " |"))
}

func TestSystemStatus(t *testing.T) {
	ok := SystemStatus{Unit: 2, FanRaw: fanNoFault, Temperatures: [3]int{31, 33, 30}}
	assert.False(t, ok.FanFault())
	assert.Contains(t, ok.String(), "Fan Status: No Fault")
	assert.Contains(t, ok.String(), "Temp Sensor 2: 33 °C")

	bad := SystemStatus{Unit: 2, FanRaw: 0x00}
	assert.True(t, bad.FanFault())
	assert.Contains(t, bad.String(), "Fan Failure Detected")
}
