package pitch

import "math"

// Accuracy buckets the deviation of a reading from its nearest note.
type Accuracy int

const (
	AccuracyInTune Accuracy = iota
	AccuracyClose
	AccuracyFar
)

func (a Accuracy) String() string {
	switch a {
	case AccuracyInTune:
		return "in-tune"
	case AccuracyClose:
		return "close"
	default:
		return "far"
	}
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteHypothesis is the nearest well-tempered note to a detected
// frequency, plus how far off it is.
type NoteHypothesis struct {
	MIDINumber     int
	Name           string
	Octave         int
	ReferencePitch float64
	CentOffset     float64
	Accuracy       Accuracy
}

// Classify maps freq to the nearest MIDI note given referenceHz (A4's
// frequency), per spec.md §4.6. ok is false if the nearest MIDI number
// falls outside the representable 0..=127 range.
func Classify(freq, referenceHz float64) (NoteHypothesis, bool) {
	if freq <= 0 || referenceHz <= 0 {
		return NoteHypothesis{}, false
	}

	m := 69 + 12*math.Log2(freq/referenceHz)
	midi := int(math.Round(m))
	if midi < 0 || midi > 127 {
		return NoteHypothesis{}, false
	}

	expected := referenceHz * math.Pow(2, float64(midi-69)/12)
	centOffset := 1200 * math.Log2(freq/expected)

	return NoteHypothesis{
		MIDINumber:     midi,
		Name:           noteNames[midi%12],
		Octave:         midi/12 - 1,
		ReferencePitch: referenceHz,
		CentOffset:     centOffset,
		Accuracy:       accuracyFor(centOffset),
	}, true
}

func accuracyFor(centOffset float64) Accuracy {
	abs := math.Abs(centOffset)
	switch {
	case abs < 5:
		return AccuracyInTune
	case abs < 20:
		return AccuracyClose
	default:
		return AccuracyFar
	}
}

// FrequencyForMIDI is the inverse of Classify's rounding step: the exact
// frequency a given MIDI number represents under referenceHz.
func FrequencyForMIDI(midi int, referenceHz float64) float64 {
	return referenceHz * math.Pow(2, float64(midi-69)/12)
}
