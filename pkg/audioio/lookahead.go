package audioio

import (
	"time"

	"github.com/halcyon-audio/metrocore/pkg/clicksynth"
	"github.com/halcyon-audio/metrocore/pkg/clock"
	"github.com/halcyon-audio/metrocore/pkg/metrotime"
)

// LookaheadWindow is the interval ahead of the device clock within which
// ScheduledClicks must be primed (spec.md §4.3).
const LookaheadWindow = 100 * time.Millisecond

// LoopCadence is how often the lookahead driver loop runs.
const LoopCadence = 25 * time.Millisecond

// TickSource is the read-only projection TimingEngine exposes for the
// lookahead loop: "what ticks are due by this instant", without
// consuming them the way Tick does for the real-time observer dispatch.
type TickSource interface {
	Peek(until clock.Instant) []metrotime.DueEvent
}

// LookaheadScheduler fills Output's ScheduledClick queue ahead of the
// audible time, decoupled from the real-time onBeat/onSubdivision
// dispatch that the Orchestrator drives off TimingEngine.Tick. Worst
// case perceptual latency is bounded by LookaheadWindow; callback
// jitter up to LookaheadWindow does not disrupt timing, per spec.md
// §4.3.
type LookaheadScheduler struct {
	clockSource     clock.Source
	output          *Output
	engine          TickSource
	monotonicOrigin clock.Instant // instant corresponding to device clock 0
	scheduledThru   uint64        // highest tick index already enqueued
	haveScheduled   bool

	subdivisionEnabled func() bool
	muted              func(barIndex uint64) bool
}

// NewLookaheadScheduler creates a scheduler anchored so that
// clockSource.Now() at construction time corresponds to device clock 0.
// subdivisionEnabled reports whether the live config currently wants
// subdivision clicks played (suppressed at index 0 by construction, per
// spec.md §9). muted, if non-nil, reports whether a tick's bar falls
// within a count-in window that must stay haptic-only: ScheduleClick is
// skipped for those ticks, but lookahead bookkeeping still advances so
// they are never reconsidered once the window has passed.
func NewLookaheadScheduler(clockSource clock.Source, output *Output, engine TickSource, subdivisionEnabled func() bool, muted func(barIndex uint64) bool) *LookaheadScheduler {
	return &LookaheadScheduler{
		clockSource:        clockSource,
		output:             output,
		engine:             engine,
		monotonicOrigin:    clockSource.Now(),
		subdivisionEnabled: subdivisionEnabled,
		muted:              muted,
	}
}

// AudioTimeOf converts a monotonic Instant to device-clock seconds,
// using the same origin the scheduler primes ScheduledClicks against.
// Exported so the Orchestrator can stamp onBeat's absoluteAudioTime
// without maintaining a second calibration anchor.
func (s *LookaheadScheduler) AudioTimeOf(i clock.Instant) float64 {
	return i.Sub(s.monotonicOrigin).Seconds()
}

// RunOnce performs one lookahead iteration: every tick whose scheduled
// time falls within [now, now+LookaheadWindow] and has not already been
// enqueued gets a corresponding ScheduledClick.
func (s *LookaheadScheduler) RunOnce() {
	now := s.clockSource.Now()
	until := now.Add(LookaheadWindow)

	for _, ev := range s.engine.Peek(until) {
		if s.haveScheduled && ev.TickIndex <= s.scheduledThru {
			continue
		}
		s.scheduleClickFor(ev)
		s.scheduledThru = ev.TickIndex
		s.haveScheduled = true
	}
}

func (s *LookaheadScheduler) scheduleClickFor(ev metrotime.DueEvent) {
	if s.muted != nil && s.muted(ev.BarIndex) {
		return
	}
	audioTime := s.AudioTimeOf(ev.AbsoluteTime)
	switch {
	case ev.IsOnBeat && ev.IsAccent:
		s.output.ScheduleClick(clicksynth.KindAccent, audioTime)
	case ev.IsOnBeat:
		s.output.ScheduleClick(clicksynth.KindNormal, audioTime)
	case s.subdivisionEnabled != nil && s.subdivisionEnabled():
		s.output.ScheduleClick(clicksynth.KindSubdivision, audioTime)
	}
}
