package bs1200

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// correlate consumes the inbound stream in arrival order until one frame for
// every id has been seen. Frames for other ids, and repeats of an id already
// matched, are dropped. Must be called with s.mu held.
func (s *Session) correlate(ctx context.Context, ids ...uint32) (map[uint32]*Frame, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	want := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	found := make(map[uint32]*Frame, len(want))

	if s.scanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.scanTimeout)
		defer cancel()
	}

	inspected := 0
	timeout := func() error {
		e := &CorrelationTimeoutError{
			Inspected: inspected,
			MaxFrames: s.maxScanFrames,
			Timeout:   s.scanTimeout,
		}
		for id := range want {
			e.Frames = append(e.Frames, id)
			if _, ok := found[id]; !ok {
				e.Missing = append(e.Missing, id)
			}
		}
		sort.Slice(e.Frames, func(i, j int) bool { return e.Frames[i] < e.Frames[j] })
		sort.Slice(e.Missing, func(i, j int) bool { return e.Missing[i] < e.Missing[j] })
		return e
	}

	recv := s.adapter.Recv()
	var adapterDone <-chan struct{}
	if d, ok := s.adapter.(interface{ Done() <-chan struct{} }); ok {
		adapterDone = d.Done()
	}
	closed := func() error {
		return &TransportError{Op: "receive", Adapter: s.adapter.Name(), Err: ErrAdapterClosed}
	}
	for {
		select {
		case <-s.done:
			return nil, closed()
		case <-adapterDone:
			return nil, closed()
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, timeout()
			}
			return nil, fmt.Errorf("readback aborted: %w", ctx.Err())
		case err := <-s.adapter.Err():
			if err == nil {
				err = ErrAdapterClosed
			}
			s.fatal = err
			return nil, &TransportError{Op: "receive", Adapter: s.adapter.Name(), Err: err}
		case frame, ok := <-recv:
			if !ok {
				return nil, closed()
			}
			inspected++
			s.metrics.inspected()
			if s.tap != nil {
				s.tap(frame)
			}
			_, wanted := want[frame.Identifier]
			if _, seen := found[frame.Identifier]; wanted && !seen && !frame.Extended {
				found[frame.Identifier] = frame
				if len(found) == len(want) {
					return found, nil
				}
			} else {
				s.metrics.ignored()
			}
			if s.maxScanFrames > 0 && inspected >= s.maxScanFrames {
				return nil, timeout()
			}
		}
	}
}
