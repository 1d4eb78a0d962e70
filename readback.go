package bs1200

import (
	"context"
	"errors"
	"time"
)

// Readbacks are passive. The device broadcasts telemetry on its own
// schedule once publishing is configured, a readback waits for the next
// frame of every group it needs and never puts anything on the bus.

func (s *Session) readGroups(ctx context.Context, op string, unit UnitID, kinds ...CommandKind) (map[CommandKind]Payload, error) {
	if err := s.registry.Check(unit); err != nil {
		return nil, err
	}
	ids := make([]uint32, len(kinds))
	for i, k := range kinds {
		ids[i] = ArbitrationID(k, unit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	frames, err := s.correlate(ctx, ids...)
	s.metrics.observe(op, time.Since(start))
	if err != nil {
		if errors.Is(err, ErrCorrelationTimeout) {
			s.metrics.timedOut(op)
			s.log.WithField("unit", unit).WithError(err).Warnf("%s readback", op)
		}
		return nil, err
	}
	out := make(map[CommandKind]Payload, len(kinds))
	for i, k := range kinds {
		p, err := Decode(frames[ids[i]], k)
		if err != nil {
			return nil, err
		}
		out[k] = p
	}
	return out, nil
}

func (s *Session) readChannel(ctx context.Context, unit UnitID, kind ChannelKind, channel int) (Reading, error) {
	if err := s.registry.Check(unit); err != nil {
		return Reading{}, err
	}
	group, err := kind.GroupOf(channel)
	if err != nil {
		return Reading{}, err
	}
	payloads, err := s.readGroups(ctx, group.String(), unit, group)
	if err != nil {
		return Reading{}, err
	}
	g := payloads[group].(ChannelGroup)
	return newReading(unit, kind, channel, g.Raw[channel-g.First]), nil
}

func (s *Session) readAll(ctx context.Context, unit UnitID, kind ChannelKind) ([]Reading, error) {
	groups := kind.Groups()
	payloads, err := s.readGroups(ctx, kind.String(), unit, groups...)
	if err != nil {
		return nil, err
	}
	readings := make([]Reading, 0, kind.Channels())
	for _, k := range groups {
		g := payloads[k].(ChannelGroup)
		for i, raw := range g.Raw {
			readings = append(readings, newReading(unit, kind, g.First+i, raw))
		}
	}
	return readings, nil
}

// SystemStatus waits for the next status broadcast of unit.
func (s *Session) SystemStatus(ctx context.Context, unit UnitID) (SystemStatus, error) {
	payloads, err := s.readGroups(ctx, "status", unit, KindSystemStatusQuery)
	if err != nil {
		return SystemStatus{}, err
	}
	p := payloads[KindSystemStatusQuery].(StatusPayload)
	st := SystemStatus{Unit: unit, FanRaw: p.Fan}
	for i, t := range p.Temperatures {
		st.Temperatures[i] = int(t)
	}
	return st, nil
}

func (s *Session) ReadCellVoltage(ctx context.Context, unit UnitID, channel int) (Reading, error) {
	return s.readChannel(ctx, unit, CellVoltage, channel)
}

// ReadAllCellVoltages returns cells 1 to 12 in order. The three group frames
// may arrive in any order.
func (s *Session) ReadAllCellVoltages(ctx context.Context, unit UnitID) ([]Reading, error) {
	return s.readAll(ctx, unit, CellVoltage)
}

func (s *Session) ReadCellCurrent(ctx context.Context, unit UnitID, channel int) (Reading, error) {
	return s.readChannel(ctx, unit, CellCurrent, channel)
}

func (s *Session) ReadAllCellCurrents(ctx context.Context, unit UnitID) ([]Reading, error) {
	return s.readAll(ctx, unit, CellCurrent)
}

func (s *Session) ReadAnalogInput(ctx context.Context, unit UnitID, channel int) (Reading, error) {
	return s.readChannel(ctx, unit, AnalogInput, channel)
}

func (s *Session) ReadAllAnalogInputs(ctx context.Context, unit UnitID) ([]Reading, error) {
	return s.readAll(ctx, unit, AnalogInput)
}

// ReadDigitalIO returns the state of DIO 1 to 8.
func (s *Session) ReadDigitalIO(ctx context.Context, unit UnitID) ([]Reading, error) {
	payloads, err := s.readGroups(ctx, DigitalIO.String(), unit, KindDigitalIOReadback)
	if err != nil {
		return nil, err
	}
	st := payloads[KindDigitalIOReadback].(DigitalIOState)
	readings := make([]Reading, len(st.States))
	for i, on := range st.States {
		readings[i] = digitalReading(unit, i+1, on)
	}
	return readings, nil
}
