package bs1200

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidUnitID      = errors.New("invalid unit id")
	ErrInvalidChannel     = errors.New("invalid channel")
	ErrPrecondition       = errors.New("precondition violation")
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrCorrelationTimeout = errors.New("correlation timeout")
	ErrTransport          = errors.New("transport error")
	ErrAdapterClosed      = errors.New("adapter closed")
	ErrDroppedFrame       = errors.New("adapter incoming channel full")
	ErrNilAdapter         = errors.New("adapter is nil")
)

// UnitIDError is returned for unit ids outside 1..15 or not registered
// with the session.
type UnitIDError struct {
	ID int
}

func (e *UnitIDError) Error() string {
	if e.ID >= MinUnitID && e.ID <= MaxUnitID {
		return fmt.Sprintf("unit %d is not registered", e.ID)
	}
	return fmt.Sprintf("unit id %d out of range %d..%d", e.ID, MinUnitID, MaxUnitID)
}

func (e *UnitIDError) Is(target error) bool { return target == ErrInvalidUnitID }

type ChannelError struct {
	Kind    ChannelKind
	Channel int
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s channel %d out of range 1..%d", e.Kind, e.Channel, e.Kind.Channels())
}

// A bad channel is caught before the bus is touched, like every other
// precondition.
func (e *ChannelError) Is(target error) bool {
	return target == ErrInvalidChannel || target == ErrPrecondition
}

type PreconditionError struct {
	Unit   UnitID
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("unit %d: %s rejected: %s", e.Unit, e.Op, e.Reason)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// TransportError wraps link level failures. They are never retried by the session.
type TransportError struct {
	Op      string
	Adapter string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Adapter, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

type MalformedPayloadError struct {
	Kind       CommandKind
	Identifier uint32
	Want       int
	Got        int
	Reason     string
}

func (e *MalformedPayloadError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("malformed %s frame 0x%03X: %s", e.Kind, e.Identifier, e.Reason)
	}
	return fmt.Sprintf("malformed %s frame 0x%03X: want %d bytes, got %d", e.Kind, e.Identifier, e.Want, e.Got)
}

func (e *MalformedPayloadError) Is(target error) bool { return target == ErrMalformedPayload }

// CorrelationTimeoutError is returned when a readback scan hits its bound
// before every expected frame was seen.
type CorrelationTimeoutError struct {
	Frames    []uint32
	Missing   []uint32
	Inspected int
	MaxFrames int
	Timeout   time.Duration
}

func (e *CorrelationTimeoutError) Error() string {
	if e.MaxFrames > 0 && e.Inspected >= e.MaxFrames {
		return fmt.Sprintf("correlation gave up after %d frames waiting for 0x%03X", e.Inspected, e.Missing)
	}
	return fmt.Sprintf("correlation timeout (%dms) waiting for 0x%03X, inspected %d frames", e.Timeout.Milliseconds(), e.Missing, e.Inspected)
}

func (e *CorrelationTimeoutError) Is(target error) bool { return target == ErrCorrelationTimeout }
