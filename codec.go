package bs1200

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Encode builds the frame carrying cmd to unit.
func Encode(cmd Command, unit UnitID) (*Frame, error) {
	if !unit.Valid() {
		return nil, &UnitIDError{ID: int(unit)}
	}
	if cmd == nil {
		return nil, errors.New("nil command")
	}
	data := make([]byte, cmd.Kind().Len())
	switch c := cmd.(type) {
	case HILModeTrigger:
		data[0] = boolByte(c.Enable)
	case PublishConfig:
		data[0] = packBits([]bool{c.DIOHILSet, c.AOHILSet, c.DIOBroadcast, c.AI1to4Broadcast, c.AI5to8Broadcast, c.CalibrationMode})
	case CellEnable:
		if err := CellVoltage.check(c.Channel); err != nil {
			return nil, err
		}
		data[0] = byte(c.Channel)
		data[1] = boolByte(c.Enable)
	case CellEnableAll:
		binary.LittleEndian.PutUint16(data, packBits16(c.Cells[:]))
	case CellVoltageSetpoint:
		if err := putChannelValue(data, c.Channel, c.Raw); err != nil {
			return nil, err
		}
	case CellVoltageSetAll:
		binary.LittleEndian.PutUint16(data, c.Raw)
	case CellCurrentSinkSetpoint:
		if err := putChannelValue(data, c.Channel, c.Raw); err != nil {
			return nil, err
		}
	case CellCurrentSourceSetpoint:
		if err := putChannelValue(data, c.Channel, c.Raw); err != nil {
			return nil, err
		}
	case CellCurrentSetAll:
		binary.LittleEndian.PutUint16(data[0:2], c.SinkRaw)
		binary.LittleEndian.PutUint16(data[2:4], c.SourceRaw)
	case AnalogOutputSet:
		binary.LittleEndian.PutUint16(data[0:2], c.AO1Raw)
		binary.LittleEndian.PutUint16(data[2:4], c.AO2Raw)
	case DigitalIOSet:
		data[0] = packBits(c.Enable[:])
		data[1] = packBits(c.Output[:])
	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}
	return NewFrame(ArbitrationID(cmd.Kind(), unit), data, Outgoing), nil
}

func putChannelValue(data []byte, channel int, raw uint16) error {
	if err := CellVoltage.check(channel); err != nil {
		return err
	}
	data[0] = byte(channel)
	binary.LittleEndian.PutUint16(data[1:3], raw)
	return nil
}

// Decode parses frame as a payload of the expected kind. It never looks at
// anything but the frame, matching frames to requests is the session's job.
func Decode(frame *Frame, expected CommandKind) (Payload, error) {
	if !expected.valid() {
		return nil, fmt.Errorf("unknown command kind %d", expected)
	}
	if frame == nil {
		return nil, &MalformedPayloadError{Kind: expected, Reason: "nil frame"}
	}
	malformed := func(reason string) error {
		return &MalformedPayloadError{Kind: expected, Identifier: frame.Identifier, Want: expected.Len(), Got: len(frame.Data), Reason: reason}
	}
	if kind, _, ok := UnitOf(frame.Identifier); !ok || kind != expected {
		return nil, malformed(fmt.Sprintf("identifier is not a %s frame", expected))
	}
	if len(frame.Data) != expected.Len() {
		return nil, malformed("")
	}
	d := frame.Data
	switch expected {
	case KindSystemStatusQuery:
		return StatusPayload{Fan: d[0], Temperatures: [3]uint8{d[1], d[2], d[3]}}, nil
	case KindHILModeTrigger:
		return HILModeTrigger{Enable: d[0] != 0}, nil
	case KindPublishConfig:
		b := unpackBits(d[0])
		return PublishConfig{
			DIOHILSet:       b[0],
			AOHILSet:        b[1],
			DIOBroadcast:    b[2],
			AI1to4Broadcast: b[3],
			AI5to8Broadcast: b[4],
			CalibrationMode: b[5],
		}, nil
	case KindCellEnable:
		if CellVoltage.check(int(d[0])) != nil {
			return nil, malformed(fmt.Sprintf("channel %d out of range", d[0]))
		}
		return CellEnable{Channel: int(d[0]), Enable: d[1] != 0}, nil
	case KindCellEnableAll:
		var c CellEnableAll
		copy(c.Cells[:], unpackBits16(binary.LittleEndian.Uint16(d)))
		return c, nil
	case KindCellVoltageSetpoint, KindCellCurrentSinkSetpoint, KindCellCurrentSourceSetpoint:
		ch, raw := int(d[0]), binary.LittleEndian.Uint16(d[1:3])
		if CellVoltage.check(ch) != nil {
			return nil, malformed(fmt.Sprintf("channel %d out of range", ch))
		}
		switch expected {
		case KindCellVoltageSetpoint:
			return CellVoltageSetpoint{Channel: ch, Raw: raw}, nil
		case KindCellCurrentSinkSetpoint:
			return CellCurrentSinkSetpoint{Channel: ch, Raw: raw}, nil
		}
		return CellCurrentSourceSetpoint{Channel: ch, Raw: raw}, nil
	case KindCellVoltageSetAll:
		return CellVoltageSetAll{Raw: binary.LittleEndian.Uint16(d)}, nil
	case KindCellCurrentSetAll:
		return CellCurrentSetAll{
			SinkRaw:   binary.LittleEndian.Uint16(d[0:2]),
			SourceRaw: binary.LittleEndian.Uint16(d[2:4]),
		}, nil
	case KindAnalogOutputSet:
		return AnalogOutputSet{
			AO1Raw: binary.LittleEndian.Uint16(d[0:2]),
			AO2Raw: binary.LittleEndian.Uint16(d[2:4]),
		}, nil
	case KindDigitalIOSet:
		return DigitalIOSet{Enable: unpackBits(d[0]), Output: unpackBits(d[1])}, nil
	case KindCellVoltage1to4, KindCellVoltage5to8, KindCellVoltage9to12,
		KindCellCurrent1to4, KindCellCurrent5to8, KindCellCurrent9to12,
		KindAnalogInput1to4, KindAnalogInput5to8:
		g := ChannelGroup{Group: expected, First: kindTable[expected].first}
		for i := range g.Raw {
			g.Raw[i] = binary.LittleEndian.Uint16(d[i*2 : i*2+2])
		}
		return g, nil
	case KindDigitalIOReadback:
		return DigitalIOState{States: unpackBits(d[0])}, nil
	}
	return nil, fmt.Errorf("unhandled command kind %s", expected)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// packBits puts bits[i] into bit i, so channel 1 lands in the least
// significant bit.
func packBits(bits []bool) byte {
	var b byte
	for i, set := range bits {
		if set && i < 8 {
			b |= 1 << i
		}
	}
	return b
}

// unpackBits reads b most significant bit first, the way the device lists
// its lines, and reverses the result so index 0 is channel 1.
func unpackBits(b byte) [8]bool {
	var msbFirst [8]bool
	for i := range msbFirst {
		msbFirst[i] = b&(0x80>>i) != 0
	}
	var out [8]bool
	for i := range out {
		out[i] = msbFirst[len(msbFirst)-1-i]
	}
	return out
}

func packBits16(bits []bool) uint16 {
	lo := packBits(bits[:min(len(bits), 8)])
	var hi byte
	if len(bits) > 8 {
		hi = packBits(bits[8:])
	}
	return uint16(hi)<<8 | uint16(lo)
}

func unpackBits16(v uint16) []bool {
	lo, hi := unpackBits(byte(v)), unpackBits(byte(v>>8))
	return append(lo[:], hi[:]...)
}
