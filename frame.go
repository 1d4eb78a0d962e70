package bs1200

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// Direction tells if a frame was received from or sent to the bus.
type Direction int

const (
	Incoming Direction = iota
	Outgoing
)

func (d Direction) String() string {
	switch d {
	case Incoming:
		return "<i>"
	case Outgoing:
		return "<o>"
	default:
		return "<?>"
	}
}

const (
	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF
)

// Frame is a single classical CAN message as seen by a transport.
type Frame struct {
	Identifier uint32
	Extended   bool
	Data       []byte
	Direction  Direction
}

// NewFrame creates a new standard id Frame and copies the data slice
func NewFrame(identifier uint32, data []byte, dir Direction) *Frame {
	d := make([]byte, len(data))
	copy(d, data)
	return &Frame{
		Identifier: identifier,
		Data:       d,
		Direction:  dir,
	}
}

// NewExtendedFrame creates a new 29-bit id Frame and copies the data slice
func NewExtendedFrame(identifier uint32, data []byte, dir Direction) *Frame {
	f := NewFrame(identifier, data, dir)
	f.Extended = true
	return f
}

// DLC returns the length of the data
func (f *Frame) DLC() int {
	return len(f.Data)
}

// Validate reports frames that cannot be put on a classical CAN bus.
func (f *Frame) Validate() error {
	if len(f.Data) > 8 {
		return fmt.Errorf("invalid data length %d", len(f.Data))
	}
	if f.Extended && f.Identifier > maxExtID || !f.Extended && f.Identifier > maxStdID {
		return fmt.Errorf("invalid identifier 0x%X", f.Identifier)
	}
	return nil
}

var (
	yellow = color.New(color.FgHiBlue).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
)

func (f *Frame) String() string {
	var out strings.Builder
	out.WriteString(f.Direction.String() + " || ")
	out.WriteString(fmt.Sprintf("0x%03X", f.Identifier) + " || ")
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")
	out.WriteString(fmt.Sprintf("%-23s", hexView(f.Data)))
	out.WriteString(" || ")
	out.WriteString(fmt.Sprintf("%-71s", binView(f.Data)))
	return out.String()
}

// ColorString is String with the id, bits and annotation colored for terminals.
func (f *Frame) ColorString() string {
	var out strings.Builder
	out.WriteString(f.Direction.String() + " || ")
	out.WriteString(green("0x%03X", f.Identifier) + " || ")
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")
	out.WriteString(fmt.Sprintf("%-23s", hexView(f.Data)))
	out.WriteString(" || ")
	out.WriteString(red(fmt.Sprintf("%-71s", binView(f.Data))))
	if kind, unit, ok := UnitOf(f.Identifier); ok {
		out.WriteString(" || ")
		out.WriteString(yellow("%s #%d", kind, unit))
	}
	return out.String()
}

func hexView(data []byte) string {
	var out strings.Builder
	for i, b := range data {
		out.WriteString(fmt.Sprintf("%02X", b))
		if i != len(data)-1 {
			out.WriteString(" ")
		}
	}
	return out.String()
}

func binView(data []byte) string {
	var out strings.Builder
	for i, b := range data {
		out.WriteString(fmt.Sprintf("%08b", b))
		if i != len(data)-1 {
			out.WriteString(" ")
		}
	}
	return out.String()
}
