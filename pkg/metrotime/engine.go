package metrotime

import (
	"time"

	"github.com/halcyon-audio/metrocore/pkg/clock"
)

// State is the TimingEngine's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateRunning
)

// DueEvent describes one emitted beat or subdivision tick.
type DueEvent struct {
	AbsoluteTime      clock.Instant
	TickIndex         uint64
	BarIndex          uint64
	BeatInBar         uint32
	SubdivIndexInBeat uint32
	IsOnBeat          bool
	IsAccent          bool
}

// TimingEngine is the absolute-time beat/subdivision scheduler described
// in spec.md §4.2. It holds (anchor, tickInterval, nextTickIndex) and
// never drifts: every tick's scheduled time is anchor + k*tickInterval,
// computed from the absolute index k, never accumulated by repeated
// addition.
type TimingEngine struct {
	state State

	anchor        clock.Instant
	tickInterval  time.Duration
	nextTickIndex uint64

	config *Config // immutable snapshot, rebuilt on Arm/Reconfigure
}

// NewTimingEngine constructs an idle engine.
func NewTimingEngine() *TimingEngine {
	return &TimingEngine{state: StateIdle}
}

// State reports the engine's current lifecycle state.
func (e *TimingEngine) State() State {
	return e.state
}

func tickIntervalFor(cfg *Config) time.Duration {
	secondsPerBeat := 60.0 / float64(cfg.BPM)
	secondsPerTick := secondsPerBeat / float64(cfg.Subdivision.Divisor())
	return time.Duration(secondsPerTick * float64(time.Second))
}

// Arm sets the next-tick grid so that tick 0 occurs at anchor.
func (e *TimingEngine) Arm(cfg *Config, anchor clock.Instant) {
	e.config = cfg.Clone()
	e.anchor = anchor
	e.tickInterval = tickIntervalFor(e.config)
	e.nextTickIndex = 0
	e.state = StateArmed
}

// Disarm returns the engine to Idle. Any pending schedule is discarded.
func (e *TimingEngine) Disarm() {
	e.state = StateIdle
	e.config = nil
}

func (e *TimingEngine) ticksPerBar() int {
	return e.config.TimeSignature.BeatsPerBar * e.config.Subdivision.Divisor()
}

func (e *TimingEngine) eventForIndex(k uint64) DueEvent {
	divisor := uint64(e.config.Subdivision.Divisor())
	ticksPerBar := uint64(e.ticksPerBar())
	barIndex := k / ticksPerBar
	kInBar := k % ticksPerBar
	beatInBar := uint32(kInBar / divisor)
	subdivIndex := uint32(kInBar % divisor)
	isOnBeat := subdivIndex == 0
	isAccent := isOnBeat && int(beatInBar) < len(e.config.AccentPattern) && e.config.AccentPattern[beatInBar]

	return DueEvent{
		AbsoluteTime:      e.timeForIndex(k),
		TickIndex:         k,
		BarIndex:          barIndex,
		BeatInBar:         beatInBar,
		SubdivIndexInBeat: subdivIndex,
		IsOnBeat:          isOnBeat,
		IsAccent:          isAccent,
	}
}

func (e *TimingEngine) timeForIndex(k uint64) clock.Instant {
	return e.anchor.Add(time.Duration(k) * e.tickInterval)
}

// Tick returns every DueEvent whose scheduled time is <= now, advancing
// nextTickIndex by exactly that many. It never skips or doubles a tick,
// and if multiple ticks are due (e.g. after a stall) all are returned in
// order, none coalesced. The first call after Arm transitions the
// engine to Running.
func (e *TimingEngine) Tick(now clock.Instant) []DueEvent {
	if e.state == StateIdle {
		return nil
	}
	e.state = StateRunning

	var due []DueEvent
	for !e.timeForIndex(e.nextTickIndex).After(now) {
		due = append(due, e.eventForIndex(e.nextTickIndex))
		e.nextTickIndex++
	}
	return due
}

// NextDueTime returns the absolute time of the next not-yet-emitted tick.
func (e *TimingEngine) NextDueTime() clock.Instant {
	return e.timeForIndex(e.nextTickIndex)
}

// Peek returns every DueEvent from the current schedule whose absolute
// time is <= until, without consuming them: nextTickIndex is left
// unchanged. This lets the audio lookahead loop look further ahead than
// the real-time observer dispatch without the two interfering with each
// other (spec.md §4.3 describes the lookahead loop as independent of
// the tick() driven beat dispatch).
func (e *TimingEngine) Peek(until clock.Instant) []DueEvent {
	if e.state == StateIdle {
		return nil
	}
	var due []DueEvent
	for k := e.nextTickIndex; !e.timeForIndex(k).After(until); k++ {
		due = append(due, e.eventForIndex(k))
	}
	return due
}

// Reconfigure installs newConfig without losing phase: the fraction of
// the current tick interval remaining at `now` is preserved under the
// new tempo/subdivision, per spec.md §4.2 and the "phase preservation"
// testable property. Ticks already due at or before now are first
// folded into nextTickIndex (silently, emitting nothing) so the
// recomputed anchor is relative to the correct next index.
func (e *TimingEngine) Reconfigure(newConfig *Config, now clock.Instant) {
	if e.state == StateIdle {
		e.config = newConfig.Clone()
		return
	}

	// Fold in any ticks already due under the old grid without emitting.
	for !e.timeForIndex(e.nextTickIndex).After(now) {
		e.nextTickIndex++
	}

	oldNextDue := e.timeForIndex(e.nextTickIndex)
	remaining := oldNextDue.Sub(now) // >= 0, < oldInterval
	remainingFraction := float64(remaining) / float64(e.tickInterval)

	newCfg := newConfig.Clone()
	newInterval := tickIntervalFor(newCfg)
	newNextDue := now.Add(time.Duration(remainingFraction * float64(newInterval)))

	e.config = newCfg
	e.tickInterval = newInterval
	e.anchor = newNextDue.Add(-time.Duration(e.nextTickIndex) * newInterval)
}

// Snapshot returns a read-only copy of the engine's active config, or
// nil if the engine is idle.
func (e *TimingEngine) Snapshot() *Config {
	if e.config == nil {
		return nil
	}
	return e.config.Clone()
}
