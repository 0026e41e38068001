package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/skipperproto/pipeline/frame"
)

func TestSetCountsObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewSet(reg, "pipeline_test")

	s.FrameWritten(frame.KindMessage)
	s.FrameWritten(frame.KindMessage)
	s.FrameRead(frame.KindBody)
	s.SetInFlight(3)
	s.Flushed()
	s.PeerError()
	s.TransportError()

	assert.Equal(t, float64(2), testutil.ToFloat64(s.framesWritten.WithLabelValues(frame.KindMessage.String())))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.framesRead.WithLabelValues(frame.KindBody.String())))
	assert.Equal(t, float64(3), testutil.ToFloat64(s.inFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.flushes))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.peerErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.transportErr))
}

func TestNewSetRegistersEveryCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewSet(reg, "pipeline_test")
	// A CounterVec with no label values yet is left out of Gather, so give
	// both vectors one child each.
	s.FrameWritten(frame.KindMessage)
	s.FrameRead(frame.KindMessage)

	mfs, err := reg.Gather()
	assert.NoError(t, err)
	assert.Len(t, mfs, 6)
}

func TestNilSetIsNoOp(t *testing.T) {
	var s *Set
	s.FrameWritten(frame.KindMessage)
	s.FrameRead(frame.KindMessage)
	s.SetInFlight(5)
	s.Flushed()
	s.PeerError()
	s.TransportError()
}
