// Package metrotime implements the drift-free scheduling core: time
// signatures, subdivisions, accent patterns, the live metronome
// configuration, and the TimingEngine that turns a configuration plus
// an anchor instant into a stream of absolute-time beat/subdivision
// events.
package metrotime

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks a configuration value that a programmer pushed
// past the boundary check instead of letting the clamp do its job.
// Reaching this at runtime is a bug in the caller, per spec ("InvalidConfig
// is prevented at the boundary; reaching this state internally is a
// programmer error").
var ErrInvalidConfig = errors.New("metrotime: invalid config")

const (
	MinBPM = 20
	MaxBPM = 300

	MinBeatsPerBar = 1
	MaxBeatsPerBar = 32
)

// BeatUnit enumerates the denominator of a time signature.
type BeatUnit int

const (
	BeatUnitHalf       BeatUnit = 2
	BeatUnitQuarter    BeatUnit = 4
	BeatUnitEighth     BeatUnit = 8
	BeatUnitSixteenth  BeatUnit = 16
)

func validBeatUnit(u BeatUnit) bool {
	switch u {
	case BeatUnitHalf, BeatUnitQuarter, BeatUnitEighth, BeatUnitSixteenth:
		return true
	default:
		return false
	}
}

// TimeSignature is (beatsPerBar, beatUnit). Immutable once constructed;
// a user change replaces the whole value.
type TimeSignature struct {
	BeatsPerBar int
	BeatUnit    BeatUnit
}

// NewTimeSignature validates and constructs a TimeSignature.
func NewTimeSignature(beatsPerBar int, unit BeatUnit) (TimeSignature, error) {
	if beatsPerBar < MinBeatsPerBar || beatsPerBar > MaxBeatsPerBar {
		return TimeSignature{}, fmt.Errorf("%w: beatsPerBar %d out of [%d,%d]", ErrInvalidConfig, beatsPerBar, MinBeatsPerBar, MaxBeatsPerBar)
	}
	if !validBeatUnit(unit) {
		return TimeSignature{}, fmt.Errorf("%w: beatUnit %d not in {2,4,8,16}", ErrInvalidConfig, unit)
	}
	return TimeSignature{BeatsPerBar: beatsPerBar, BeatUnit: unit}, nil
}

// DefaultTimeSignature is 4/4.
func DefaultTimeSignature() TimeSignature {
	return TimeSignature{BeatsPerBar: 4, BeatUnit: BeatUnitQuarter}
}

// Subdivision is the even division applied within each beat.
type Subdivision int

const (
	SubdivisionNone Subdivision = iota
	SubdivisionEighth
	SubdivisionTriplet
	SubdivisionSixteenth
)

// Divisor returns the number of ticks one beat is split into.
func (s Subdivision) Divisor() int {
	switch s {
	case SubdivisionEighth:
		return 2
	case SubdivisionTriplet:
		return 3
	case SubdivisionSixteenth:
		return 4
	default:
		return 1
	}
}

// SubdivisionFromWire reconstructs a Subdivision from the persisted/wire
// enabled+divisor pair spec.md §6 uses (subdivisionEnabled,
// subdivisionType ∈ {2,3,4}), the inverse of Subdivision.Divisor().
func SubdivisionFromWire(enabled bool, divisor int) Subdivision {
	if !enabled {
		return SubdivisionNone
	}
	switch divisor {
	case 2:
		return SubdivisionEighth
	case 3:
		return SubdivisionTriplet
	case 4:
		return SubdivisionSixteenth
	default:
		return SubdivisionNone
	}
}

func (s Subdivision) String() string {
	switch s {
	case SubdivisionEighth:
		return "eighth"
	case SubdivisionTriplet:
		return "triplet"
	case SubdivisionSixteenth:
		return "sixteenth"
	default:
		return "none"
	}
}

// AccentPattern is an ordered sequence of accented-or-not beats, one
// entry per beat in the bar.
type AccentPattern []bool

// NewAccentPattern creates a pattern of the given length with the first
// beat accented, matching the "Standard" preset and the invariant that
// at least one entry is true.
func NewAccentPattern(beatsPerBar int) AccentPattern {
	p := make(AccentPattern, beatsPerBar)
	if beatsPerBar > 0 {
		p[0] = true
	}
	return p
}

// Resized returns a copy of p adjusted to length n: truncated or padded
// with false. If the result would have no true entry, the first beat is
// re-asserted true.
func (p AccentPattern) Resized(n int) AccentPattern {
	out := make(AccentPattern, n)
	copy(out, p)
	out.ensureNonEmpty()
	return out
}

// Toggle flips the entry at index and enforces the at-least-one-true
// invariant by re-asserting beat 0 if the toggle would empty it.
func (p AccentPattern) Toggle(index int) {
	if index < 0 || index >= len(p) {
		return
	}
	p[index] = !p[index]
	p.ensureNonEmpty()
}

func (p AccentPattern) ensureNonEmpty() {
	for _, v := range p {
		if v {
			return
		}
	}
	if len(p) > 0 {
		p[0] = true
	}
}

// HasAccent reports whether any beat is accented. Always true for a
// well-formed pattern; exposed for tests of the invariant.
func (p AccentPattern) HasAccent() bool {
	for _, v := range p {
		if v {
			return true
		}
	}
	return false
}

// Clamp pins x into [MinBPM, MaxBPM].
func Clamp(x int) int {
	if x < MinBPM {
		return MinBPM
	}
	if x > MaxBPM {
		return MaxBPM
	}
	return x
}

// AccentPreset enumerates the built-in accent pattern generators.
type AccentPreset int

const (
	PresetStandard AccentPreset = iota
	PresetBackbeat
	PresetAllAccent
	PresetDjent
)

// Resolve builds the AccentPattern for a preset given beatsPerBar = B.
func (preset AccentPreset) Resolve(beatsPerBar int) AccentPattern {
	b := beatsPerBar
	pat := make(AccentPattern, b)
	switch preset {
	case PresetStandard:
		if b > 0 {
			pat[0] = true
		}
	case PresetBackbeat:
		for i := 0; i < b; i++ {
			if (i+1)%2 == 0 {
				pat[i] = true
			}
		}
	case PresetAllAccent:
		for i := range pat {
			pat[i] = true
		}
	case PresetDjent:
		switch b {
		case 4:
			for _, i := range []int{0, 3} {
				pat[i] = true
			}
		case 7:
			for _, i := range []int{0, 3, 5} {
				pat[i] = true
			}
		case 8:
			for _, i := range []int{0, 3, 6} {
				pat[i] = true
			}
		default:
			if b > 0 {
				pat[0] = true
			}
			if b > 3 {
				pat[b/2] = true
			}
		}
	}
	pat.ensureNonEmpty()
	return pat
}

// Config is the authoritative, validated metronome configuration.
// Every mutation clamps BPM and stamps a new Revision.
type Config struct {
	BPM           int
	TimeSignature TimeSignature
	AccentPattern AccentPattern
	Subdivision   Subdivision
	ReferenceHz   float64
	Revision      uint64
}

// DefaultConfig returns 120 BPM, 4/4, standard accent, no subdivision.
func DefaultConfig() *Config {
	ts := DefaultTimeSignature()
	return &Config{
		BPM:           120,
		TimeSignature: ts,
		AccentPattern: NewAccentPattern(ts.BeatsPerBar),
		Subdivision:   SubdivisionNone,
		ReferenceHz:   440,
		Revision:      0,
	}
}

// Clone returns a deep copy suitable for publishing as an immutable
// snapshot to reader timelines.
func (c *Config) Clone() *Config {
	cp := *c
	cp.AccentPattern = make(AccentPattern, len(c.AccentPattern))
	copy(cp.AccentPattern, c.AccentPattern)
	return &cp
}
