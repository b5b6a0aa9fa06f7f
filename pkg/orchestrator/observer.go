package orchestrator

import (
	"github.com/halcyon-audio/metrocore/pkg/metrotime"
	"github.com/halcyon-audio/metrocore/pkg/pitch"
)

// Observer is the host callback surface spec.md §6 names. A host (the
// TUI, PeerSync) registers one; nil methods are skipped.
type Observer struct {
	OnBeat        func(bar uint64, beat uint32, accent bool, absoluteAudioTime float64)
	OnSubdivision func(index uint32)
	OnStateChange func(cfg *metrotime.Config, playing bool)
	OnPitch       func(reading pitch.Reading, note pitch.NoteHypothesis, centOffset float64, accuracy pitch.Accuracy)
}
