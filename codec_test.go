package bs1200

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArbitrationIDsUnique(t *testing.T) {
	seen := make(map[uint32]string)
	for k := CommandKind(0); k < numKinds; k++ {
		for u := UnitID(MinUnitID); u <= MaxUnitID; u++ {
			id := ArbitrationID(k, u)
			require.LessOrEqual(t, id, uint32(maxStdID), "%s unit %d", k, u)
			if prev, dup := seen[id]; dup {
				t.Fatalf("0x%03X used by %s and %s unit %d", id, prev, k, u)
			}
			seen[id] = k.String()

			gotKind, gotUnit, ok := UnitOf(id)
			require.True(t, ok)
			assert.Equal(t, k, gotKind)
			assert.Equal(t, u, gotUnit)
		}
	}
}

func TestUnitOfForeign(t *testing.T) {
	for _, id := range []uint32{0x000, 0x100, 0x7FF, 0x2A1, 0x5E8} {
		_, _, ok := UnitOf(id)
		assert.False(t, ok, "0x%03X", id)
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name   string
		cmd    Command
		unit   UnitID
		wantID uint32
		want   []byte
	}{
		{"hil on", HILModeTrigger{Enable: true}, 1, 0x101, []byte{0x01}},
		{"hil off", HILModeTrigger{}, 15, 0x10F, []byte{0x00}},
		{"publish", PublishConfig{DIOHILSet: true, DIOBroadcast: true, CalibrationMode: true}, 2, 0x112, []byte{0b100101}},
		{"cell enable", CellEnable{Channel: 7, Enable: true}, 1, 0x121, []byte{7, 1}},
		{"enable pattern", CellEnableAll{Cells: [12]bool{0: true, 8: true, 11: true}}, 1, 0x131, []byte{0x01, 0x09}},
		{"cell volts", CellVoltageSetpoint{Channel: 3, Raw: ToRawVoltage(2.5)}, 1, 0x141, []byte{3, 0xA8, 0x61}},
		{"all volts", CellVoltageSetAll{Raw: ToRawVoltage(4)}, 3, 0x153, []byte{0x40, 0x9C}},
		{"sink", CellCurrentSinkSetpoint{Channel: 12, Raw: ToRawCurrentLimit(0.5)}, 1, 0x161, []byte{12, 0x88, 0x13}},
		{"source", CellCurrentSourceSetpoint{Channel: 1, Raw: 1}, 1, 0x171, []byte{1, 0x01, 0x00}},
		{"all currents", CellCurrentSetAll{SinkRaw: 0x0102, SourceRaw: 0x0304}, 1, 0x181, []byte{0x02, 0x01, 0x04, 0x03}},
		{"ao", AnalogOutputSet{AO1Raw: 0x1234, AO2Raw: 0xABCD}, 1, 0x191, []byte{0x34, 0x12, 0xCD, 0xAB}},
		{"dio", DigitalIOSet{Enable: [8]bool{0: true, 2: true}, Output: [8]bool{0: true, 1: true, 2: true, 3: true}}, 1, 0x1A1, []byte{0x05, 0x0F}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Encode(tt.cmd, tt.unit)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, f.Identifier)
			assert.Equal(t, tt.want, f.Data)
			assert.Equal(t, tt.cmd.Kind().Len(), f.DLC())
			assert.Equal(t, Outgoing, f.Direction)
			assert.False(t, f.Extended)
		})
	}
}

func TestEncodeRejects(t *testing.T) {
	_, err := Encode(HILModeTrigger{}, 0)
	assert.ErrorIs(t, err, ErrInvalidUnitID)
	_, err = Encode(HILModeTrigger{}, 16)
	assert.ErrorIs(t, err, ErrInvalidUnitID)

	for _, cmd := range []Command{
		CellEnable{Channel: 0},
		CellEnable{Channel: 13},
		CellVoltageSetpoint{Channel: 13},
		CellCurrentSinkSetpoint{Channel: -1},
		CellCurrentSourceSetpoint{Channel: 100},
	} {
		_, err := Encode(cmd, 1)
		assert.ErrorIs(t, err, ErrInvalidChannel, "%#v", cmd)
		assert.ErrorIs(t, err, ErrPrecondition, "%#v", cmd)
	}
}

func TestDecodeCommandsRoundTrip(t *testing.T) {
	cmds := []Command{
		HILModeTrigger{Enable: true},
		PublishConfig{AOHILSet: true, AI1to4Broadcast: true, AI5to8Broadcast: true},
		CellEnable{Channel: 12, Enable: true},
		CellEnableAll{Cells: [12]bool{1: true, 10: true}},
		CellVoltageSetpoint{Channel: 5, Raw: 31337},
		CellCurrentSinkSetpoint{Channel: 2, Raw: 42},
		DigitalIOSet{Enable: [8]bool{7: true}, Output: [8]bool{0: true, 7: true}},
	}
	for _, cmd := range cmds {
		f, err := Encode(cmd, 4)
		require.NoError(t, err)
		got, err := Decode(f, cmd.Kind())
		require.NoError(t, err)
		assert.Equal(t, cmd, got)
	}
}

func TestDecodeVoltageGroup(t *testing.T) {
	// cells 5-8 at 2.50 V, 0 V, 5.00 V and 1 count
	f := NewFrame(ArbitrationID(KindCellVoltage5to8, 1), []byte{0xA8, 0x61, 0x00, 0x00, 0x50, 0xC3, 0x01, 0x00}, Incoming)
	p, err := Decode(f, KindCellVoltage5to8)
	require.NoError(t, err)
	g, ok := p.(ChannelGroup)
	require.True(t, ok)
	assert.Equal(t, 5, g.First)
	assert.Equal(t, [4]uint16{25000, 0, 50000, 1}, g.Raw)

	r := newReading(1, CellVoltage, g.First, g.Raw[0])
	assert.InDelta(t, 2.5, r.Value, 1e-9)
	assert.Equal(t, "Cell 5", r.Name())
}

func TestDecodeDigitalIO(t *testing.T) {
	// DIO 1 and 3 high
	f := NewFrame(ArbitrationID(KindDigitalIOReadback, 2), []byte{0b00000101}, Incoming)
	p, err := Decode(f, KindDigitalIOReadback)
	require.NoError(t, err)
	assert.Equal(t, [8]bool{0: true, 2: true}, p.(DigitalIOState).States)
}

func TestDecodeStatus(t *testing.T) {
	f := NewFrame(ArbitrationID(KindSystemStatusQuery, 1), []byte{0x10, 25, 40, 61}, Incoming)
	p, err := Decode(f, KindSystemStatusQuery)
	require.NoError(t, err)
	assert.Equal(t, StatusPayload{Fan: 0x10, Temperatures: [3]uint8{25, 40, 61}}, p)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		f    *Frame
		kind CommandKind
	}{
		{"short group", NewFrame(0x201, make([]byte, 7), Incoming), KindCellVoltage1to4},
		{"long group", NewFrame(0x201, make([]byte, 9), Incoming), KindCellVoltage1to4},
		{"empty dio", NewFrame(0x281, nil, Incoming), KindDigitalIOReadback},
		{"wrong kind", NewFrame(0x211, make([]byte, 8), Incoming), KindCellVoltage1to4},
		{"foreign id", NewFrame(0x7DF, make([]byte, 8), Incoming), KindCellVoltage1to4},
		{"unit 0", NewFrame(0x200, make([]byte, 8), Incoming), KindCellVoltage1to4},
		{"channel out of range", NewFrame(0x141, []byte{13, 0, 0}, Outgoing), KindCellVoltageSetpoint},
		{"nil", nil, KindSystemStatusQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.f, tt.kind)
			require.Error(t, err)
			var me *MalformedPayloadError
			assert.True(t, errors.As(err, &me))
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestBitPacking(t *testing.T) {
	for v := 0; v <= math.MaxUint8; v++ {
		bits := unpackBits(byte(v))
		require.Equal(t, byte(v), packBits(bits[:]), "0x%02X", v)
	}
	assert.Equal(t, [8]bool{0: true}, unpackBits(0x01))
	assert.Equal(t, [8]bool{7: true}, unpackBits(0x80))
	for _, v := range []uint16{0, 1, 0x0FFF, 0x0801, 0xA5A} {
		assert.Equal(t, v, packBits16(unpackBits16(v)))
	}
}

func TestGroupOf(t *testing.T) {
	tests := []struct {
		kind    ChannelKind
		channel int
		want    CommandKind
	}{
		{CellVoltage, 1, KindCellVoltage1to4},
		{CellVoltage, 4, KindCellVoltage1to4},
		{CellVoltage, 5, KindCellVoltage5to8},
		{CellVoltage, 12, KindCellVoltage9to12},
		{CellCurrent, 9, KindCellCurrent9to12},
		{AnalogInput, 8, KindAnalogInput5to8},
		{DigitalIO, 3, KindDigitalIOReadback},
	}
	for _, tt := range tests {
		got, err := tt.kind.GroupOf(tt.channel)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %d", tt.kind, tt.channel)
	}
	_, err := AnalogInput.GroupOf(9)
	assert.ErrorIs(t, err, ErrInvalidChannel)
	_, err = CellVoltage.GroupOf(0)
	assert.ErrorIs(t, err, ErrInvalidChannel)
}
