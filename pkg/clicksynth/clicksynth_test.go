package clicksynth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDurations(t *testing.T) {
	bs := Build(44100)
	require.Len(t, bs.Accent, int(44100*0.030))
	require.Len(t, bs.Normal, int(44100*0.025))
	require.Len(t, bs.Subdivision, int(44100*0.015))
}

func TestBuildNoClipping(t *testing.T) {
	bs := Build(44100)
	for _, buf := range [][]int16{bs.Accent, bs.Normal, bs.Subdivision} {
		for _, s := range buf {
			assert.LessOrEqual(t, s, int16(32767))
			assert.GreaterOrEqual(t, s, int16(-32768))
		}
	}
}

func TestBuildDecaysToNearSilence(t *testing.T) {
	bs := Build(44100)
	// Tail of the longest buffer should have decayed substantially from
	// its peak given exp(-80t) over 30ms.
	peak := int16(0)
	for _, s := range bs.Accent {
		if s > peak {
			peak = s
		}
	}
	tail := bs.Accent[len(bs.Accent)-1]
	assert.Less(t, abs16(tail), peak/4)
}

func abs16(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "accent", KindAccent.String())
	assert.Equal(t, "normal", KindNormal.String())
	assert.Equal(t, "subdivision", KindSubdivision.String())
}
