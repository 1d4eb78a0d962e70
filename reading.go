package bs1200

import (
	"fmt"
	"strings"
)

// Reading is one channel value in engineering units. For digital io
// channels State holds the line state and Value is 0 or 1.
type Reading struct {
	Unit    UnitID      `json:"unit"`
	Kind    ChannelKind `json:"kind"`
	Channel int         `json:"channel"`
	Value   float64     `json:"value"`
	State   bool        `json:"state,omitempty"`
	Raw     uint16      `json:"raw"`
}

// Name is the channel label used on the front panel, e.g. "Cell 5".
func (r Reading) Name() string {
	switch r.Kind {
	case CellVoltage, CellCurrent:
		return fmt.Sprintf("Cell %d", r.Channel)
	case AnalogInput:
		return fmt.Sprintf("AI %d", r.Channel)
	case DigitalIO:
		return fmt.Sprintf("DIO %d", r.Channel)
	}
	return fmt.Sprintf("CH %d", r.Channel)
}

func (r Reading) String() string {
	if r.Kind == DigitalIO {
		return fmt.Sprintf("%s: %d", r.Name(), int(boolByte(r.State)))
	}
	return fmt.Sprintf("%s: %.5f %s", r.Name(), r.Value, r.Kind.Unit())
}

func newReading(unit UnitID, kind ChannelKind, channel int, raw uint16) Reading {
	r := Reading{Unit: unit, Kind: kind, Channel: channel, Raw: raw}
	switch kind {
	case CellVoltage, AnalogInput:
		r.Value = FromRawVoltage(raw)
	case CellCurrent:
		r.Value = FromRawCurrent(raw)
	}
	return r
}

func digitalReading(unit UnitID, channel int, state bool) Reading {
	r := Reading{Unit: unit, Kind: DigitalIO, Channel: channel, State: state}
	if state {
		r.Value, r.Raw = 1, 1
	}
	return r
}

// FormatTable lays readings out perRow to a line, separated by "|".
func FormatTable(readings []Reading, perRow int) string {
	if perRow <= 0 {
		perRow = 4
	}
	var out strings.Builder
	for i, r := range readings {
		out.WriteString(fmt.Sprintf("%-8s\t", r.Name()+":"))
		if r.Kind == DigitalIO {
			out.WriteString(fmt.Sprintf("%d", boolByte(r.State)))
		} else {
			out.WriteString(fmt.Sprintf("%f %s", r.Value, r.Kind.Unit()))
		}
		if (i+1)%perRow == 0 || i == len(readings)-1 {
			out.WriteString(" |\n")
		} else {
			out.WriteString("\t| ")
		}
	}
	return out.String()
}

// fanNoFault is the fan status byte reported when every fan is running.
const fanNoFault = 0x10

type SystemStatus struct {
	Unit         UnitID
	FanRaw       byte
	Temperatures [3]int // °C
}

func (s SystemStatus) FanFault() bool {
	return s.FanRaw != fanNoFault
}

func (s SystemStatus) String() string {
	var out strings.Builder
	fan := "No Fault"
	if s.FanFault() {
		fan = "Fan Failure Detected"
	}
	out.WriteString(fmt.Sprintf("Unit %d\nFan Status: %s\n", s.Unit, fan))
	for i, t := range s.Temperatures {
		out.WriteString(fmt.Sprintf("Temp Sensor %d: %d °C\n", i+1, t))
	}
	return out.String()
}
