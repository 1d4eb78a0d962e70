package bs1200

import (
	"context"
	"encoding/binary"
	"strconv"
	"strings"
	"sync"
	"time"
)

func init() {
	if err := RegisterAdapter(&AdapterInfo{
		Name:               "Virtual",
		Description:        "In memory bus, optionally simulating BS1200 units",
		RequiresSerialPort: false,
		New:                NewVirtual,
	}); err != nil {
		panic(err)
	}
}

// Virtual is an in memory adapter. Frames sent are recorded, frames
// injected are delivered as if they came from the bus. With the "simulate"
// option set to a unit list, e.g. "1,2", it answers like real boxes
// by broadcasting telemetry that follows the setpoints it was sent.
type Virtual struct {
	*BaseAdapter

	mu       sync.Mutex
	sent     []*Frame
	sendErr  error
	openErrs []error
	hungUp   bool

	sim      map[UnitID]*simUnit
	interval time.Duration
	wg       sync.WaitGroup
}

func NewVirtual(cfg *AdapterConfig) (Adapter, error) {
	v := &Virtual{
		BaseAdapter: NewBaseAdapter("Virtual", cfg),
		sim:         make(map[UnitID]*simUnit),
		interval:    10 * time.Millisecond,
	}
	if s := v.cfg.option("simulate", ""); s != "" {
		for _, f := range strings.Split(s, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil || n < MinUnitID || n > MaxUnitID {
				return nil, &UnitIDError{ID: n}
			}
			v.sim[UnitID(n)] = newSimUnit()
		}
	}
	if s := v.cfg.option("interval", ""); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, err
		}
		v.interval = d
	}
	return v, nil
}

func (v *Virtual) Open(ctx context.Context) error {
	v.mu.Lock()
	if len(v.openErrs) > 0 {
		err := v.openErrs[0]
		v.openErrs = v.openErrs[1:]
		v.mu.Unlock()
		return err
	}
	v.mu.Unlock()
	if len(v.sim) > 0 {
		v.wg.Add(1)
		go v.simulate(ctx)
	}
	v.Debug("virtual bus up")
	return nil
}

func (v *Virtual) Close() error {
	v.BaseAdapter.Close()
	v.wg.Wait()
	return nil
}

func (v *Virtual) Send(ctx context.Context, frame *Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.closed() {
		return ErrAdapterClosed
	}
	if err := frame.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sendErr != nil {
		return v.sendErr
	}
	f := NewFrame(frame.Identifier, frame.Data, Outgoing)
	f.Extended = frame.Extended
	v.sent = append(v.sent, f)
	if kind, unit, ok := UnitOf(f.Identifier); ok && !kind.Readback() {
		if u, found := v.sim[unit]; found {
			if p, err := Decode(f, kind); err == nil {
				u.apply(p)
			}
		}
	}
	return nil
}

// Inject delivers frames to the receive channel in order.
func (v *Virtual) Inject(frames ...*Frame) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.hungUp {
		return
	}
	for _, f := range frames {
		c := NewFrame(f.Identifier, f.Data, Incoming)
		c.Extended = f.Extended
		v.Deliver(c)
	}
}

// Sent returns a copy of every frame accepted so far.
func (v *Virtual) Sent() []*Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*Frame, len(v.sent))
	copy(out, v.sent)
	return out
}

// FailSends makes every following Send return err. nil restores normal operation.
func (v *Virtual) FailSends(err error) {
	v.mu.Lock()
	v.sendErr = err
	v.mu.Unlock()
}

// FailOpens makes the next len(errs) calls to Open fail with errs in order.
func (v *Virtual) FailOpens(errs ...error) {
	v.mu.Lock()
	v.openErrs = append(v.openErrs, errs...)
	v.mu.Unlock()
}

// Hangup closes the receive channel, like a transport whose reader died.
func (v *Virtual) Hangup() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.hungUp {
		v.hungUp = true
		close(v.recvChan)
	}
}

func (v *Virtual) simulate(ctx context.Context) {
	defer v.wg.Done()
	t := time.NewTicker(v.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.closeChan:
			return
		case <-t.C:
			// an idle session does not drain, keep the backlog short
			if len(v.recvChan) > simBacklog {
				continue
			}
			v.mu.Lock()
			var frames []*Frame
			for unit, u := range v.sim {
				frames = append(frames, u.telemetry(unit)...)
			}
			v.mu.Unlock()
			v.Inject(frames...)
		}
	}
}

const simBacklog = 64

type simUnit struct {
	hil     bool
	enabled [12]bool
	volts   [12]uint16
	ao      [2]uint16
	dioEn   [8]bool
	dioOut  [8]bool
}

func newSimUnit() *simUnit {
	return &simUnit{}
}

func (u *simUnit) apply(p Payload) {
	switch c := p.(type) {
	case HILModeTrigger:
		u.hil = c.Enable
	case CellEnable:
		u.enabled[c.Channel-1] = c.Enable
	case CellEnableAll:
		u.enabled = c.Cells
	case CellVoltageSetpoint:
		u.volts[c.Channel-1] = c.Raw
	case CellVoltageSetAll:
		for i := range u.volts {
			u.volts[i] = c.Raw
		}
	case AnalogOutputSet:
		u.ao = [2]uint16{c.AO1Raw, c.AO2Raw}
	case DigitalIOSet:
		u.dioEn, u.dioOut = c.Enable, c.Output
	}
}

// telemetry renders the unit as the device would broadcast it. Disabled
// cells read 0 V, every cell idles at 0 A, AI 1 and 2 loop back the
// analog outputs.
func (u *simUnit) telemetry(unit UnitID) []*Frame {
	var frames []*Frame
	group := func(kind CommandKind, raw [channelsPerGroup]uint16) {
		data := make([]byte, kind.Len())
		for i, r := range raw {
			binary.LittleEndian.PutUint16(data[i*2:], r)
		}
		frames = append(frames, NewFrame(ArbitrationID(kind, unit), data, Incoming))
	}
	for gi, kind := range CellVoltage.Groups() {
		var raw [channelsPerGroup]uint16
		for i := range raw {
			ch := gi*channelsPerGroup + i
			if u.enabled[ch] {
				raw[i] = u.volts[ch]
			}
		}
		group(kind, raw)
	}
	idle := ToRawCurrent(0)
	for _, kind := range CellCurrent.Groups() {
		group(kind, [channelsPerGroup]uint16{idle, idle, idle, idle})
	}
	group(KindAnalogInput1to4, [channelsPerGroup]uint16{u.ao[0], u.ao[1]})
	group(KindAnalogInput5to8, [channelsPerGroup]uint16{})

	var lines [8]bool
	for i := range lines {
		lines[i] = u.dioEn[i] && u.dioOut[i]
	}
	frames = append(frames,
		NewFrame(ArbitrationID(KindDigitalIOReadback, unit), []byte{packBits(lines[:])}, Incoming),
		NewFrame(ArbitrationID(KindSystemStatusQuery, unit), []byte{fanNoFault, 31, 33, 30}, Incoming),
	)
	return frames
}
