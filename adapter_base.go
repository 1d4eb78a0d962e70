package bs1200

import (
	"context"
	"log"
	"path/filepath"
	"runtime"
	"sync"
)

// BaseAdapter holds the channels and close bookkeeping shared by all adapters.
type BaseAdapter struct {
	name     string
	cfg      *AdapterConfig
	recvChan chan *Frame

	errOnce sync.Once
	errChan chan error

	evtChan chan Event

	closeOnce sync.Once
	closeChan chan struct{}
}

func NewBaseAdapter(name string, cfg *AdapterConfig) *BaseAdapter {
	if cfg == nil {
		cfg = &AdapterConfig{}
	}
	if cfg.OnMessage == nil {
		cfg.OnMessage = func(string) {}
	}
	return &BaseAdapter{
		name:      name,
		cfg:       cfg,
		recvChan:  make(chan *Frame, 1024),
		errChan:   make(chan error, 1),
		evtChan:   make(chan Event, 100),
		closeChan: make(chan struct{}),
	}
}

// Name returns the adapter name.
func (base *BaseAdapter) Name() string {
	return base.name
}

// Return the receive channel for the adapter
func (base *BaseAdapter) Recv() <-chan *Frame {
	return base.recvChan
}

// Return the error channel for the adapter
func (base *BaseAdapter) Err() <-chan error {
	return base.errChan
}

func (base *BaseAdapter) Event() <-chan Event {
	return base.evtChan
}

func (base *BaseAdapter) closed() bool {
	select {
	case <-base.closeChan:
		return true
	default:
		return false
	}
}

func (base *BaseAdapter) Close() {
	base.closeOnce.Do(func() {
		close(base.closeChan)
	})
}

// Done is closed when the adapter is closed.
func (base *BaseAdapter) Done() <-chan struct{} {
	return base.closeChan
}

// Deliver queues an inbound frame, never blocking the reader goroutine.
func (base *BaseAdapter) Deliver(frame *Frame) {
	if !base.cfg.accepts(frame.Identifier) {
		return
	}
	frame.Direction = Incoming
	select {
	case base.recvChan <- frame:
	default:
		base.Warn(ErrDroppedFrame.Error())
	}
}

// DeliverWait queues an inbound frame, waiting for room in the receive
// channel. For sources that can be paused, like a file.
func (base *BaseAdapter) DeliverWait(ctx context.Context, frame *Frame) error {
	if !base.cfg.accepts(frame.Identifier) {
		return nil
	}
	frame.Direction = Incoming
	select {
	case base.recvChan <- frame:
		return nil
	case <-base.closeChan:
		return ErrAdapterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Set a fatal adapter error, meaning communication is broken and cannot continue.
func (base *BaseAdapter) Fatal(err error) {
	base.errOnce.Do(func() {
		select {
		case base.errChan <- err:
		default:
			_, file, no, ok := runtime.Caller(1)
			if ok {
				log.Printf("%s:%d error channel full: %v\n", filepath.Base(file), no, err)
			} else {
				log.Printf("error channel full: %v", err)
			}
		}
	})
}

func (base *BaseAdapter) sendEvent(eventType EventType, details string) {
	select {
	case base.evtChan <- Event{Type: eventType, Details: details}:
	default:
		base.cfg.OnMessage("event channel full: " + details)
	}
}

// Send an error event
func (base *BaseAdapter) Error(err error) {
	base.sendEvent(EventTypeError, err.Error())
}

// Send a warning event
func (base *BaseAdapter) Warn(warn string) {
	base.sendEvent(EventTypeWarning, warn)
}

// Send an info event
func (base *BaseAdapter) Info(info string) {
	base.sendEvent(EventTypeInfo, info)
}

// Send a debug event
func (base *BaseAdapter) Debug(debug string) {
	if base.cfg.Debug {
		base.sendEvent(EventTypeDebug, debug)
	}
}
