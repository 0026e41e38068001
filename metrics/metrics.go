// Package metrics exposes pipeline activity as Prometheus metrics, adapted
// from the teacher's metrics package (itself a thin wrapper around
// client_golang) to the frame/dispatch vocabulary of this module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skipperproto/pipeline/frame"
)

// Set is the collection of metrics a Pipeline reports into. The zero value
// is not usable; use NewSet. A nil *Set is safe to use everywhere a method
// is called on it: every method is a no-op on a nil receiver, so metrics
// stay optional for callers who only want a bare Pipeline.
type Set struct {
	framesWritten *prometheus.CounterVec
	framesRead    *prometheus.CounterVec
	inFlight      prometheus.Gauge
	flushes       prometheus.Counter
	peerErrors    prometheus.Counter
	transportErr  prometheus.Counter
}

// NewSet creates a Set and registers its collectors with reg. Pass
// prometheus.DefaultRegisterer to publish on the default /metrics handler.
func NewSet(reg prometheus.Registerer, namespace string) *Set {
	s := &Set{
		framesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_written_total",
			Help:      "Frames written to the transport, by kind.",
		}, []string{"kind"}),
		framesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_read_total",
			Help:      "Frames read from the transport, by kind.",
		}, []string{"kind"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight",
			Help:      "Requests or responses currently awaiting completion.",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_total",
			Help:      "Transport Flush calls made by the pipeline driver.",
		}),
		peerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_errors_total",
			Help:      "Error frames received from the peer.",
		}),
		transportErr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Terminal errors observed by the pipeline driver (transport, protocol, or dispatch).",
		}),
	}

	reg.MustRegister(s.framesWritten, s.framesRead, s.inFlight, s.flushes, s.peerErrors, s.transportErr)
	return s
}

func (s *Set) FrameWritten(k frame.Kind) {
	if s == nil {
		return
	}
	s.framesWritten.WithLabelValues(k.String()).Inc()
}

func (s *Set) FrameRead(k frame.Kind) {
	if s == nil {
		return
	}
	s.framesRead.WithLabelValues(k.String()).Inc()
}

func (s *Set) SetInFlight(n int) {
	if s == nil {
		return
	}
	s.inFlight.Set(float64(n))
}

func (s *Set) Flushed() {
	if s == nil {
		return
	}
	s.flushes.Inc()
}

func (s *Set) PeerError() {
	if s == nil {
		return
	}
	s.peerErrors.Inc()
}

func (s *Set) TransportError() {
	if s == nil {
		return
	}
	s.transportErr.Inc()
}
