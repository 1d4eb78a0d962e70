package bs1200

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts bus traffic of a session. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	FramesSent      *prometheus.CounterVec
	SendErrors      *prometheus.CounterVec
	FramesInspected prometheus.Counter
	FramesIgnored   prometheus.Counter
	Timeouts        *prometheus.CounterVec
	ReadbackLatency *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bs1200_frames_sent_total",
			Help: "Frames handed to the transport, by command kind",
		}, []string{"kind"}),
		SendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bs1200_send_errors_total",
			Help: "Frames the transport refused, by command kind",
		}, []string{"kind"}),
		FramesInspected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bs1200_frames_inspected_total",
			Help: "Inbound frames looked at while correlating readbacks",
		}),
		FramesIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bs1200_frames_ignored_total",
			Help: "Inbound frames that matched no pending readback",
		}),
		Timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bs1200_readback_timeouts_total",
			Help: "Readbacks that hit their frame or time bound",
		}, []string{"readback"}),
		ReadbackLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bs1200_readback_duration_seconds",
			Help:    "Time spent waiting for readback frames",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"readback"}),
	}
	for _, c := range []prometheus.Collector{m.FramesSent, m.SendErrors, m.FramesInspected, m.FramesIgnored, m.Timeouts, m.ReadbackLatency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) sent(kind CommandKind) {
	if m != nil {
		m.FramesSent.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) sendFailed(kind CommandKind) {
	if m != nil {
		m.SendErrors.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) inspected() {
	if m != nil {
		m.FramesInspected.Inc()
	}
}

func (m *Metrics) ignored() {
	if m != nil {
		m.FramesIgnored.Inc()
	}
}

func (m *Metrics) timedOut(readback string) {
	if m != nil {
		m.Timeouts.WithLabelValues(readback).Inc()
	}
}

func (m *Metrics) observe(readback string, d time.Duration) {
	if m != nil {
		m.ReadbackLatency.WithLabelValues(readback).Observe(d.Seconds())
	}
}
