package orchestrator

import "github.com/halcyon-audio/metrocore/pkg/clock"

// PlaybackState mirrors spec.md §3's PlaybackState entity: the live,
// mutated-only-by-the-scheduler-timeline counters that track where the
// transport currently is. It is cleared on Stop and rebuilt on Start.
type PlaybackState struct {
	Playing            bool
	CurrentBar         uint64
	CurrentBeatInBar   uint32
	CurrentSubdivIndex uint32
	Anchor             clock.Instant
	NextTickIndex      uint64
}
