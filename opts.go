package bs1200

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxScanFrames = 4096
	DefaultScanTimeout   = 2 * time.Second
)

type Option func(s *Session) error

func WithLogger(l *logrus.Logger) Option {
	return func(s *Session) error {
		if l == nil {
			return fmt.Errorf("nil logger")
		}
		s.logger = l
		return nil
	}
}

// WithMaxScanFrames bounds every readback by the number of inbound frames
// it may inspect. 0 leaves only the time bound.
func WithMaxScanFrames(n int) Option {
	return func(s *Session) error {
		if n < 0 {
			return fmt.Errorf("invalid max scan frames: %d", n)
		}
		s.maxScanFrames = n
		return nil
	}
}

// WithScanTimeout bounds every readback by wall clock time. 0 leaves only
// the frame count bound.
func WithScanTimeout(d time.Duration) Option {
	return func(s *Session) error {
		if d < 0 {
			return fmt.Errorf("invalid scan timeout: %s", d)
		}
		s.scanTimeout = d
		return nil
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Session) error {
		s.metrics = m
		return nil
	}
}

// WithOpenRetry retries bringing the transport up. Sends are never retried.
func WithOpenRetry(attempts uint, delay time.Duration) Option {
	return func(s *Session) error {
		if attempts == 0 {
			return fmt.Errorf("open attempts must be at least 1")
		}
		s.openAttempts = attempts
		s.openDelay = delay
		return nil
	}
}

// WithFrameTap calls fn with every frame the session sends and every frame
// it inspects while correlating. fn runs on the caller's goroutine.
func WithFrameTap(fn func(*Frame)) Option {
	return func(s *Session) error {
		s.tap = fn
		return nil
	}
}
