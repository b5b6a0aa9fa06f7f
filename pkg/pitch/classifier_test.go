package pitch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyA440(t *testing.T) {
	h, ok := Classify(440, 440)
	require.True(t, ok)
	assert.Equal(t, 69, h.MIDINumber)
	assert.Equal(t, "A", h.Name)
	assert.Equal(t, 4, h.Octave)
	assert.InDelta(t, 0, h.CentOffset, 1e-9)
	assert.Equal(t, AccuracyInTune, h.Accuracy)
}

func TestClassifyCentSymmetry(t *testing.T) {
	for _, m := range []int{40, 60, 69, 90, 110} {
		freq := FrequencyForMIDI(m, 440)
		h, ok := Classify(freq, 440)
		require.True(t, ok)
		assert.Equal(t, m, h.MIDINumber)
		assert.InDelta(t, 0, h.CentOffset, 1e-6)
	}
}

func TestClassifyAccuracyBuckets(t *testing.T) {
	// A4 slightly sharp by 10 cents: freq = 440 * 2^(10/1200)
	freq := 440 * math.Pow(2, 10.0/1200)
	h, ok := Classify(freq, 440)
	require.True(t, ok)
	assert.Equal(t, AccuracyClose, h.Accuracy)

	freq = 440 * math.Pow(2, 30.0/1200)
	h, ok = Classify(freq, 440)
	require.True(t, ok)
	assert.Equal(t, AccuracyFar, h.Accuracy)
}

func TestClassifyOutOfMIDIRangeRejected(t *testing.T) {
	_, ok := Classify(1, 440) // absurdly low, midi would be deeply negative
	assert.False(t, ok)
}
