package audioio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/metrocore/pkg/clicksynth"
)

func TestOutputOpenClose(t *testing.T) {
	var o Output
	require.NoError(t, o.Open(44100))
	assert.True(t, o.IsOpen())
	assert.Equal(t, 0.0, o.AudioClockNow())

	o.Close()
	assert.False(t, o.IsOpen())
}

func TestOutputScheduleAndRenderProducesSound(t *testing.T) {
	var o Output
	require.NoError(t, o.Open(44100))

	o.ScheduleClick(clicksynth.KindAccent, 0)
	buf := make([]float64, 2000)
	o.RenderFloat64(buf)

	nonZero := false
	for _, s := range buf {
		if s != 0 {
			nonZero = true
			break
		}
	}
	assert.True(t, nonZero, "scheduled click at t=0 should render audible samples")
}

func TestOutputAudioClockAdvances(t *testing.T) {
	var o Output
	require.NoError(t, o.Open(44100))

	buf := make([]float64, 4410) // 100ms
	o.RenderFloat64(buf)
	assert.InDelta(t, 0.1, o.AudioClockNow(), 1e-9)
}

func TestOutputPastScheduleStillPlays(t *testing.T) {
	var o Output
	require.NoError(t, o.Open(44100))

	buf := make([]float64, 1000)
	o.RenderFloat64(buf) // advance clock past 0

	o.ScheduleClick(clicksynth.KindNormal, -1) // already "in the past"
	more := make([]float64, 1000)
	o.RenderFloat64(more)

	nonZero := false
	for _, s := range more {
		if s != 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero, "a click scheduled in the past must still play, not be dropped")
}

func TestOutputPendingCountDrainsAfterActivation(t *testing.T) {
	var o Output
	require.NoError(t, o.Open(44100))
	o.ScheduleClick(clicksynth.KindAccent, 0)
	assert.Equal(t, 1, o.PendingCount())

	buf := make([]float64, 10)
	o.RenderFloat64(buf)
	assert.Equal(t, 0, o.PendingCount())
}
