// Package clicksynth renders the three fixed-length click transients
// (accent, normal, subdivision) once per audio session, as 16-bit PCM
// buffers ready for allocation-free playback. This mirrors the
// teacher's pattern of pre-rendering oscillator waveforms instead of
// building them on the audio callback thread (spec.md §9,
// "audio-callback safety").
package clicksynth

import (
	"math"
	"math/rand"
)

// Kind identifies which of the three click transients a buffer is.
type Kind int

const (
	KindAccent Kind = iota
	KindNormal
	KindSubdivision
)

func (k Kind) String() string {
	switch k {
	case KindAccent:
		return "accent"
	case KindSubdivision:
		return "subdivision"
	default:
		return "normal"
	}
}

type spec struct {
	durationSeconds float64
	frequencyHz     float64
	peakGain        float64
}

var specs = map[Kind]spec{
	KindAccent:      {durationSeconds: 0.030, frequencyHz: 1200, peakGain: 0.40},
	KindNormal:      {durationSeconds: 0.025, frequencyHz: 900, peakGain: 0.25},
	KindSubdivision: {durationSeconds: 0.015, frequencyHz: 800, peakGain: 0.10},
}

// BufferSet holds the three immutable, sample-rate-matched PCM buffers.
// Built once per audio session start, dropped on stop.
type BufferSet struct {
	SampleRate  int
	Accent      []int16
	Normal      []int16
	Subdivision []int16
}

// Buffer returns the rendered buffer for the requested kind.
func (b *BufferSet) Buffer(k Kind) []int16 {
	switch k {
	case KindAccent:
		return b.Accent
	case KindSubdivision:
		return b.Subdivision
	default:
		return b.Normal
	}
}

// Build synthesizes all three click buffers at sampleRate.
//
// Each sample is envelope(t) * (sin(2*pi*f*t) + 0.5*sin(2*pi*2f*t) +
// 0.25*sin(2*pi*3f*t) + 0.3*noise*exp(-200t)), scaled by peakGain, where
// envelope(t) = exp(-80t). The fast primary decay gives a percussive
// transient rather than a tonal beep; the faster-decaying noise term
// supplies attack energy without coloring the tail.
func Build(sampleRate int) *BufferSet {
	rng := rand.New(rand.NewSource(1))
	bs := &BufferSet{SampleRate: sampleRate}
	bs.Accent = renderClick(sampleRate, specs[KindAccent], rng)
	bs.Normal = renderClick(sampleRate, specs[KindNormal], rng)
	bs.Subdivision = renderClick(sampleRate, specs[KindSubdivision], rng)
	return bs
}

func renderClick(sampleRate int, s spec, rng *rand.Rand) []int16 {
	n := int(float64(sampleRate) * s.durationSeconds)
	out := make([]int16, n)
	w := 2 * math.Pi * s.frequencyHz

	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-80 * t)
		noise := rng.Float64()*2 - 1
		harmonics := math.Sin(w*t) + 0.5*math.Sin(2*w*t) + 0.25*math.Sin(3*w*t)
		attack := 0.3 * noise * math.Exp(-200*t)

		sample := s.peakGain * envelope * (harmonics + attack)
		out[i] = floatToPCM16(sample)
	}
	return out
}

func floatToPCM16(sample float64) int16 {
	if sample > 1.0 {
		sample = 1.0
	}
	if sample < -1.0 {
		sample = -1.0
	}
	return int16(sample * 32767)
}
