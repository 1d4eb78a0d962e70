package bs1200

import "fmt"

// UnitID addresses one BS1200 box on the bus.
type UnitID uint8

const (
	MinUnitID = 1
	MaxUnitID = 15
)

func (u UnitID) Valid() bool {
	return u >= MinUnitID && u <= MaxUnitID
}

// CommandKind enumerates every frame the BS1200 protocol defines. Each
// readback group is its own kind.
type CommandKind uint8

const (
	KindSystemStatusQuery CommandKind = iota
	KindHILModeTrigger
	KindPublishConfig
	KindCellEnable
	KindCellEnableAll
	KindCellVoltageSetpoint
	KindCellVoltageSetAll
	KindCellCurrentSinkSetpoint
	KindCellCurrentSourceSetpoint
	KindCellCurrentSetAll
	KindAnalogOutputSet
	KindDigitalIOSet
	KindCellVoltage1to4
	KindCellVoltage5to8
	KindCellVoltage9to12
	KindCellCurrent1to4
	KindCellCurrent5to8
	KindCellCurrent9to12
	KindAnalogInput1to4
	KindAnalogInput5to8
	KindDigitalIOReadback
	numKinds
)

type kindInfo struct {
	name   string
	base   uint32
	length int
	dir    Direction // Outgoing = host to device
	group  ChannelKind
	first  int // first channel carried by a readback group
}

var kindTable = [numKinds]kindInfo{
	KindSystemStatusQuery:         {"SystemStatus", 0x290, 4, Incoming, noChannel, 0},
	KindHILModeTrigger:            {"HILModeTrigger", 0x100, 1, Outgoing, noChannel, 0},
	KindPublishConfig:             {"PublishConfig", 0x110, 1, Outgoing, noChannel, 0},
	KindCellEnable:                {"CellEnable", 0x120, 2, Outgoing, noChannel, 0},
	KindCellEnableAll:             {"CellEnableAll", 0x130, 2, Outgoing, noChannel, 0},
	KindCellVoltageSetpoint:       {"CellVoltageSetpoint", 0x140, 3, Outgoing, noChannel, 0},
	KindCellVoltageSetAll:         {"CellVoltageSetAll", 0x150, 2, Outgoing, noChannel, 0},
	KindCellCurrentSinkSetpoint:   {"CellCurrentSinkSetpoint", 0x160, 3, Outgoing, noChannel, 0},
	KindCellCurrentSourceSetpoint: {"CellCurrentSourceSetpoint", 0x170, 3, Outgoing, noChannel, 0},
	KindCellCurrentSetAll:         {"CellCurrentSetAll", 0x180, 4, Outgoing, noChannel, 0},
	KindAnalogOutputSet:           {"AnalogOutputSet", 0x190, 4, Outgoing, noChannel, 0},
	KindDigitalIOSet:              {"DigitalIOSet", 0x1A0, 2, Outgoing, noChannel, 0},
	KindCellVoltage1to4:           {"CellVoltage1-4", 0x200, 8, Incoming, CellVoltage, 1},
	KindCellVoltage5to8:           {"CellVoltage5-8", 0x210, 8, Incoming, CellVoltage, 5},
	KindCellVoltage9to12:          {"CellVoltage9-12", 0x220, 8, Incoming, CellVoltage, 9},
	KindCellCurrent1to4:           {"CellCurrent1-4", 0x230, 8, Incoming, CellCurrent, 1},
	KindCellCurrent5to8:           {"CellCurrent5-8", 0x240, 8, Incoming, CellCurrent, 5},
	KindCellCurrent9to12:          {"CellCurrent9-12", 0x250, 8, Incoming, CellCurrent, 9},
	KindAnalogInput1to4:           {"AnalogInput1-4", 0x260, 8, Incoming, AnalogInput, 1},
	KindAnalogInput5to8:           {"AnalogInput5-8", 0x270, 8, Incoming, AnalogInput, 5},
	KindDigitalIOReadback:         {"DigitalIOReadback", 0x280, 1, Incoming, DigitalIO, 1},
}

var baseToKind = func() map[uint32]CommandKind {
	m := make(map[uint32]CommandKind, numKinds)
	for k := CommandKind(0); k < numKinds; k++ {
		m[kindTable[k].base] = k
	}
	return m
}()

func (k CommandKind) valid() bool { return k < numKinds }

func (k CommandKind) String() string {
	if !k.valid() {
		return fmt.Sprintf("CommandKind(%d)", uint8(k))
	}
	return kindTable[k].name
}

// Base is the arbitration id of the kind for unit 0, the unit id is added on top.
func (k CommandKind) Base() uint32 { return kindTable[k].base }

// Len is the exact payload length of the kind.
func (k CommandKind) Len() int { return kindTable[k].length }

// Direction is Outgoing for commands and Incoming for telemetry.
func (k CommandKind) Direction() Direction { return kindTable[k].dir }

func (k CommandKind) Readback() bool { return kindTable[k].dir == Incoming }

// ArbitrationID derives the bus identifier for kind addressed to or from unit.
func ArbitrationID(kind CommandKind, unit UnitID) uint32 {
	return kind.Base() + uint32(unit)
}

// UnitOf is the inverse of ArbitrationID.
func UnitOf(id uint32) (CommandKind, UnitID, bool) {
	unit := UnitID(id & 0xF)
	if !unit.Valid() {
		return 0, 0, false
	}
	kind, ok := baseToKind[id&^0xF]
	if !ok {
		return 0, 0, false
	}
	return kind, unit, true
}

// ChannelKind names a family of I/O channels on the box.
type ChannelKind uint8

const (
	noChannel ChannelKind = iota
	CellVoltage
	CellCurrent
	AnalogInput
	DigitalIO
)

func (c ChannelKind) String() string {
	switch c {
	case CellVoltage:
		return "cell voltage"
	case CellCurrent:
		return "cell current"
	case AnalogInput:
		return "analog input"
	case DigitalIO:
		return "digital io"
	}
	return "none"
}

func (c ChannelKind) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Channels is the number of channels of the kind, numbered from 1.
func (c ChannelKind) Channels() int {
	switch c {
	case CellVoltage, CellCurrent:
		return 12
	case AnalogInput, DigitalIO:
		return 8
	}
	return 0
}

// Unit is the engineering unit symbol of a reading of this kind.
func (c ChannelKind) Unit() string {
	switch c {
	case CellVoltage, AnalogInput:
		return "V"
	case CellCurrent:
		return "A"
	}
	return ""
}

func (c ChannelKind) check(channel int) error {
	if channel < 1 || channel > c.Channels() {
		return &ChannelError{Kind: c, Channel: channel}
	}
	return nil
}

// Groups lists the readback kinds that together carry every channel of c.
func (c ChannelKind) Groups() []CommandKind {
	switch c {
	case CellVoltage:
		return []CommandKind{KindCellVoltage1to4, KindCellVoltage5to8, KindCellVoltage9to12}
	case CellCurrent:
		return []CommandKind{KindCellCurrent1to4, KindCellCurrent5to8, KindCellCurrent9to12}
	case AnalogInput:
		return []CommandKind{KindAnalogInput1to4, KindAnalogInput5to8}
	case DigitalIO:
		return []CommandKind{KindDigitalIOReadback}
	}
	return nil
}

// GroupOf returns the readback kind carrying channel.
func (c ChannelKind) GroupOf(channel int) (CommandKind, error) {
	if err := c.check(channel); err != nil {
		return 0, err
	}
	if c == DigitalIO {
		return KindDigitalIOReadback, nil
	}
	return c.Groups()[(channel-1)/channelsPerGroup], nil
}

const channelsPerGroup = 4

// Payload is anything Decode can produce.
type Payload interface {
	Kind() CommandKind
}

// Command is a host to device frame body. The set is closed, Encode
// switches over every implementation.
type Command interface {
	Payload
	command()
}

type HILModeTrigger struct {
	Enable bool
}

type PublishConfig struct {
	DIOHILSet       bool
	AOHILSet        bool
	DIOBroadcast    bool
	AI1to4Broadcast bool
	AI5to8Broadcast bool
	CalibrationMode bool
}

type CellEnable struct {
	Channel int
	Enable  bool
}

// CellEnableAll sets the enable state of every cell at once, index 0 is cell 1.
type CellEnableAll struct {
	Cells [12]bool
}

type CellVoltageSetpoint struct {
	Channel int
	Raw     uint16
}

type CellVoltageSetAll struct {
	Raw uint16
}

type CellCurrentSinkSetpoint struct {
	Channel int
	Raw     uint16
}

type CellCurrentSourceSetpoint struct {
	Channel int
	Raw     uint16
}

type CellCurrentSetAll struct {
	SinkRaw   uint16
	SourceRaw uint16
}

type AnalogOutputSet struct {
	AO1Raw uint16
	AO2Raw uint16
}

// DigitalIOSet configures the eight DIO lines, index 0 is DIO 1. A line is
// driven high when both Output and Enable are set.
type DigitalIOSet struct {
	Enable [8]bool
	Output [8]bool
}

func (HILModeTrigger) Kind() CommandKind            { return KindHILModeTrigger }
func (PublishConfig) Kind() CommandKind             { return KindPublishConfig }
func (CellEnable) Kind() CommandKind                { return KindCellEnable }
func (CellEnableAll) Kind() CommandKind             { return KindCellEnableAll }
func (CellVoltageSetpoint) Kind() CommandKind       { return KindCellVoltageSetpoint }
func (CellVoltageSetAll) Kind() CommandKind         { return KindCellVoltageSetAll }
func (CellCurrentSinkSetpoint) Kind() CommandKind   { return KindCellCurrentSinkSetpoint }
func (CellCurrentSourceSetpoint) Kind() CommandKind { return KindCellCurrentSourceSetpoint }
func (CellCurrentSetAll) Kind() CommandKind         { return KindCellCurrentSetAll }
func (AnalogOutputSet) Kind() CommandKind           { return KindAnalogOutputSet }
func (DigitalIOSet) Kind() CommandKind              { return KindDigitalIOSet }

func (HILModeTrigger) command()            {}
func (PublishConfig) command()             {}
func (CellEnable) command()                {}
func (CellEnableAll) command()             {}
func (CellVoltageSetpoint) command()       {}
func (CellVoltageSetAll) command()         {}
func (CellCurrentSinkSetpoint) command()   {}
func (CellCurrentSourceSetpoint) command() {}
func (CellCurrentSetAll) command()         {}
func (AnalogOutputSet) command()           {}
func (DigitalIOSet) command()              {}

// ChannelGroup is one decoded readback group: four raw values starting at
// channel First.
type ChannelGroup struct {
	Group CommandKind
	First int
	Raw   [channelsPerGroup]uint16
}

func (g ChannelGroup) Kind() CommandKind { return g.Group }

type DigitalIOState struct {
	States [8]bool
}

func (DigitalIOState) Kind() CommandKind { return KindDigitalIOReadback }

type StatusPayload struct {
	Fan          byte
	Temperatures [3]uint8
}

func (StatusPayload) Kind() CommandKind { return KindSystemStatusQuery }
