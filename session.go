package bs1200

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type HILMode int

const (
	HILDisabled HILMode = iota
	HILEnabled
)

func (m HILMode) String() string {
	if m == HILEnabled {
		return "enabled"
	}
	return "disabled"
}

type unitState struct {
	hil HILMode
}

// Session owns one transport and drives every registered unit on it.
// Calls are serialized, one operation is on the bus at a time.
type Session struct {
	id       string
	adapter  Adapter
	registry *Registry
	logger   *logrus.Logger
	log      *logrus.Entry
	metrics  *Metrics
	tap      func(*Frame)

	maxScanFrames int
	scanTimeout   time.Duration
	openAttempts  uint
	openDelay     time.Duration

	mu    sync.Mutex
	units map[UnitID]*unitState
	fatal error

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open creates the named adapter, brings it up and returns a session for units.
// The unit list is validated before the transport is touched.
func Open(ctx context.Context, adapterName string, cfg *AdapterConfig, units []int, opts ...Option) (*Session, error) {
	reg, err := NewRegistry(units...)
	if err != nil {
		return nil, err
	}
	dev, err := NewAdapter(adapterName, cfg)
	if err != nil {
		return nil, err
	}
	return newSession(ctx, dev, reg, opts...)
}

// NewSession opens an already created adapter. The session takes ownership
// of it and closes it on Close or on a failed open.
func NewSession(ctx context.Context, dev Adapter, units []int, opts ...Option) (*Session, error) {
	if dev == nil {
		return nil, ErrNilAdapter
	}
	reg, err := NewRegistry(units...)
	if err != nil {
		return nil, err
	}
	return newSession(ctx, dev, reg, opts...)
}

// WithSession runs fn with an open session and closes it on every exit
// path, panics included.
func WithSession(ctx context.Context, adapterName string, cfg *AdapterConfig, units []int, fn func(*Session) error, opts ...Option) (err error) {
	s, err := Open(ctx, adapterName, cfg, units, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

func newSession(ctx context.Context, dev Adapter, reg *Registry, opts ...Option) (*Session, error) {
	s := &Session{
		id:            uuid.NewString(),
		adapter:       dev,
		registry:      reg,
		logger:        logrus.StandardLogger(),
		maxScanFrames: DefaultMaxScanFrames,
		scanTimeout:   DefaultScanTimeout,
		openAttempts:  1,
		units:         make(map[UnitID]*unitState),
		done:          make(chan struct{}),
	}
	for _, o := range opts {
		if err := o(s); err != nil {
			dev.Close()
			return nil, err
		}
	}
	if s.maxScanFrames == 0 && s.scanTimeout == 0 {
		dev.Close()
		return nil, &PreconditionError{Op: "open", Reason: "readback scans need a frame or time bound"}
	}
	for _, u := range reg.Units() {
		s.units[u] = &unitState{hil: HILDisabled}
	}
	s.log = s.logger.WithFields(logrus.Fields{
		"session": s.id,
		"adapter": dev.Name(),
	})

	err := retry.Do(
		func() error {
			return dev.Open(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(s.openAttempts),
		retry.Delay(s.openDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.log.WithError(err).Warnf("open attempt #%d failed", n+1)
		}),
	)
	if err != nil {
		if cerr := dev.Close(); cerr != nil {
			s.log.WithError(cerr).Debug("close after failed open")
		}
		return nil, &TransportError{Op: "open", Adapter: dev.Name(), Err: err}
	}
	go s.pumpEvents()
	s.log.WithField("units", reg.Units()).Info("session opened")
	return s, nil
}

func (s *Session) pumpEvents() {
	events := s.adapter.Event()
	for {
		select {
		case <-s.done:
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			s.log.Log(evt.Type.Level(), evt.Details)
		}
	}
}

// Close releases the transport. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.adapter.Close(); err != nil {
			s.closeErr = &TransportError{Op: "close", Adapter: s.adapter.Name(), Err: err}
		}
		s.log.Info("session closed")
	})
	return s.closeErr
}

func (s *Session) ID() string { return s.id }

func (s *Session) Units() []UnitID { return s.registry.Units() }

// HILMode reports the locally tracked HIL state of unit.
func (s *Session) HILMode(unit UnitID) (HILMode, error) {
	if err := s.registry.Check(unit); err != nil {
		return HILDisabled, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.units[unit].hil, nil
}

// usable must be called with s.mu held.
func (s *Session) usable() error {
	select {
	case <-s.done:
		return &TransportError{Op: "use", Adapter: s.adapter.Name(), Err: ErrAdapterClosed}
	default:
	}
	if s.fatal != nil {
		return &TransportError{Op: "use", Adapter: s.adapter.Name(), Err: s.fatal}
	}
	return nil
}

// send puts one command on the bus. Success means the transport accepted
// the frame, the device has no application level ack. Never retried.
func (s *Session) send(ctx context.Context, unit UnitID, cmd Command) error {
	frame, err := Encode(cmd, unit)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(ctx, cmd.Kind(), frame)
}

func (s *Session) sendLocked(ctx context.Context, kind CommandKind, frame *Frame) error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.tap != nil {
		s.tap(frame)
	}
	if err := s.adapter.Send(ctx, frame); err != nil {
		s.metrics.sendFailed(kind)
		return &TransportError{Op: "send " + kind.String(), Adapter: s.adapter.Name(), Err: err}
	}
	s.metrics.sent(kind)
	s.log.WithField("kind", kind.String()).Debug(frame.String())
	return nil
}

// SetHILMode sends the HIL trigger. The local state only changes once the
// frame was accepted by the transport.
func (s *Session) SetHILMode(ctx context.Context, unit UnitID, enable bool) error {
	if err := s.registry.Check(unit); err != nil {
		return err
	}
	cmd := HILModeTrigger{Enable: enable}
	frame, err := Encode(cmd, unit)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sendLocked(ctx, cmd.Kind(), frame); err != nil {
		return err
	}
	st := s.units[unit]
	if enable {
		st.hil = HILEnabled
	} else {
		st.hil = HILDisabled
	}
	s.log.WithField("unit", unit).Infof("HIL mode %s", st.hil)
	return nil
}

// ConfigurePublishing sends the configuration frame. The device does not
// accept it in HIL mode, so it is refused locally while HIL is enabled.
func (s *Session) ConfigurePublishing(ctx context.Context, unit UnitID, cfg PublishConfig) error {
	if err := s.registry.Check(unit); err != nil {
		return err
	}
	frame, err := Encode(cfg, unit)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.units[unit].hil == HILEnabled {
		return &PreconditionError{Unit: unit, Op: KindPublishConfig.String(), Reason: "HIL mode is enabled"}
	}
	return s.sendLocked(ctx, cfg.Kind(), frame)
}

func (s *Session) EnableCell(ctx context.Context, unit UnitID, channel int, enable bool) error {
	if err := s.registry.Check(unit); err != nil {
		return err
	}
	return s.send(ctx, unit, CellEnable{Channel: channel, Enable: enable})
}

func (s *Session) EnableAllCells(ctx context.Context, unit UnitID, enable bool) error {
	var cells [12]bool
	for i := range cells {
		cells[i] = enable
	}
	return s.SetCellEnablePattern(ctx, unit, cells)
}

// SetCellEnablePattern enables exactly the cells set in cells, index 0 is cell 1.
func (s *Session) SetCellEnablePattern(ctx context.Context, unit UnitID, cells [12]bool) error {
	if err := s.registry.Check(unit); err != nil {
		return err
	}
	return s.send(ctx, unit, CellEnableAll{Cells: cells})
}

// SetCellVoltage sets one cell, valid device range is 0.00 to 5.00 V.
func (s *Session) SetCellVoltage(ctx context.Context, unit UnitID, channel int, volts float64) error {
	if err := s.registry.Check(unit); err != nil {
		return err
	}
	return s.send(ctx, unit, CellVoltageSetpoint{Channel: channel, Raw: ToRawVoltage(volts)})
}

func (s *Session) SetAllCellVoltages(ctx context.Context, unit UnitID, volts float64) error {
	if err := s.registry.Check(unit); err != nil {
		return err
	}
	return s.send(ctx, unit, CellVoltageSetAll{Raw: ToRawVoltage(volts)})
}

func (s *Session) SetCellSinkCurrent(ctx context.Context, unit UnitID, channel int, amps float64) error {
	if err := s.registry.Check(unit); err != nil {
		return err
	}
	return s.send(ctx, unit, CellCurrentSinkSetpoint{Channel: channel, Raw: ToRawCurrentLimit(amps)})
}

func (s *Session) SetCellSourceCurrent(ctx context.Context, unit UnitID, channel int, amps float64) error {
	if err := s.registry.Check(unit); err != nil {
		return err
	}
	return s.send(ctx, unit, CellCurrentSourceSetpoint{Channel: channel, Raw: ToRawCurrentLimit(amps)})
}

// SetAllCellCurrents sets the sink and source limits of every cell, 0 to 0.5 A.
func (s *Session) SetAllCellCurrents(ctx context.Context, unit UnitID, sink, source float64) error {
	if err := s.registry.Check(unit); err != nil {
		return err
	}
	return s.send(ctx, unit, CellCurrentSetAll{SinkRaw: ToRawCurrentLimit(sink), SourceRaw: ToRawCurrentLimit(source)})
}

// SetAnalogOutputs sets both analog outputs, 0 to 5 V.
func (s *Session) SetAnalogOutputs(ctx context.Context, unit UnitID, ao1, ao2 float64) error {
	if err := s.registry.Check(unit); err != nil {
		return err
	}
	return s.send(ctx, unit, AnalogOutputSet{AO1Raw: ToRawVoltage(ao1), AO2Raw: ToRawVoltage(ao2)})
}

// SetDigitalIO configures direction (true = output) and enable state of DIO 1-8.
func (s *Session) SetDigitalIO(ctx context.Context, unit UnitID, output, enable [8]bool) error {
	if err := s.registry.Check(unit); err != nil {
		return err
	}
	return s.send(ctx, unit, DigitalIOSet{Enable: enable, Output: output})
}
