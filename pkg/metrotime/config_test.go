package metrotime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{-10, MinBPM},
		{19, MinBPM},
		{20, 20},
		{150, 150},
		{300, 300},
		{301, MaxBPM},
		{1000, MaxBPM},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Clamp(c.in))
	}
}

func TestAccentPatternInvariant(t *testing.T) {
	p := NewAccentPattern(4)
	require.True(t, p.HasAccent())

	p.Toggle(0)
	assert.True(t, p.HasAccent(), "toggling off the only true entry must re-assert beat 0")
	assert.True(t, p[0])

	p2 := NewAccentPattern(4)
	p2.Toggle(1)
	p2.Toggle(2)
	p2.Toggle(3)
	p2.Toggle(0) // now all false
	assert.True(t, p2.HasAccent())
	assert.True(t, p2[0])
}

func TestAccentPatternResized(t *testing.T) {
	p := AccentPattern{true, false, true}
	grown := p.Resized(5)
	require.Len(t, grown, 5)
	assert.Equal(t, AccentPattern{true, false, true, false, false}, grown)

	shrunk := p.Resized(1)
	require.Len(t, shrunk, 1)
	assert.True(t, shrunk.HasAccent())
}

func TestAccentPresetDjent(t *testing.T) {
	cases := []struct {
		beats int
		want  AccentPattern
	}{
		{4, AccentPattern{true, false, false, true}},
		{7, AccentPattern{true, false, false, true, false, true, false}},
		{8, AccentPattern{true, false, false, true, false, false, true, false}},
	}
	for _, c := range cases {
		got := PresetDjent.Resolve(c.beats)
		assert.Equal(t, c.want, got, "beats=%d", c.beats)
	}
}

func TestAccentPresetBackbeat(t *testing.T) {
	got := PresetBackbeat.Resolve(4)
	assert.Equal(t, AccentPattern{false, true, false, true}, got)
}

func TestAccentPresetAllAccent(t *testing.T) {
	got := PresetAllAccent.Resolve(3)
	assert.Equal(t, AccentPattern{true, true, true}, got)
}

func TestSubdivisionFromWire(t *testing.T) {
	assert.Equal(t, SubdivisionNone, SubdivisionFromWire(false, 4))
	assert.Equal(t, SubdivisionEighth, SubdivisionFromWire(true, 2))
	assert.Equal(t, SubdivisionTriplet, SubdivisionFromWire(true, 3))
	assert.Equal(t, SubdivisionSixteenth, SubdivisionFromWire(true, 4))
	assert.Equal(t, SubdivisionNone, SubdivisionFromWire(true, 7), "unknown divisor falls back to none rather than erroring")
}

func TestNewTimeSignatureValidation(t *testing.T) {
	_, err := NewTimeSignature(0, BeatUnitQuarter)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewTimeSignature(4, 3)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	ts, err := NewTimeSignature(7, BeatUnitEighth)
	require.NoError(t, err)
	assert.Equal(t, 7, ts.BeatsPerBar)
}
