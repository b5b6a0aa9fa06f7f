package audioio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/metrocore/pkg/clock"
	"github.com/halcyon-audio/metrocore/pkg/metrotime"
)

func TestLookaheadSchedulerPrimesWithinWindow(t *testing.T) {
	fc := clock.NewFake()
	engine := metrotime.NewTimingEngine()
	ts, err := metrotime.NewTimeSignature(4, metrotime.BeatUnitQuarter)
	require.NoError(t, err)
	cfg := &metrotime.Config{
		BPM:           120,
		TimeSignature: ts,
		AccentPattern: metrotime.PresetStandard.Resolve(4),
		Subdivision:   metrotime.SubdivisionNone,
	}
	engine.Arm(cfg, fc.Now())

	var o Output
	require.NoError(t, o.Open(44100))

	sched := NewLookaheadScheduler(fc, &o, engine, func() bool { return false }, nil)

	// At t=0, the lookahead window is [0, 100ms]; beat interval is 500ms
	// so only tick 0 (on-beat) should be primed.
	sched.RunOnce()
	assert.Equal(t, 1, o.PendingCount())

	// Advance close to the second beat; the window [450ms, 550ms] now
	// reaches tick 1 at 500ms, so it is primed alongside tick 0.
	fc.Advance(450 * time.Millisecond)
	sched.RunOnce()
	assert.Equal(t, 2, o.PendingCount(), "tick 0 already scheduled, tick 1 at 500ms now within window")

	fc.Advance(60 * time.Millisecond) // now at 510ms: beat at 500ms already scheduled, not enqueued again; beat at 1000ms not yet in window
	sched.RunOnce()
	assert.Equal(t, 2, o.PendingCount())
}

func TestLookaheadSchedulerSuppressesSubdivisionAtIndexZero(t *testing.T) {
	fc := clock.NewFake()
	engine := metrotime.NewTimingEngine()
	ts, _ := metrotime.NewTimeSignature(4, metrotime.BeatUnitQuarter)
	cfg := &metrotime.Config{
		BPM:           120,
		TimeSignature: ts,
		AccentPattern: metrotime.PresetStandard.Resolve(4),
		Subdivision:   metrotime.SubdivisionEighth,
	}
	engine.Arm(cfg, fc.Now())

	var o Output
	require.NoError(t, o.Open(44100))
	sched := NewLookaheadScheduler(fc, &o, engine, func() bool { return true }, nil)

	sched.RunOnce()
	// Tick 0 is on-beat; its co-located subdivision is suppressed, so
	// exactly one click (the on-beat one) should be queued.
	assert.Equal(t, 1, o.PendingCount())
}

func TestLookaheadSchedulerMutesDuringCountIn(t *testing.T) {
	fc := clock.NewFake()
	engine := metrotime.NewTimingEngine()
	ts, err := metrotime.NewTimeSignature(4, metrotime.BeatUnitQuarter)
	require.NoError(t, err)
	cfg := &metrotime.Config{
		BPM:           120,
		TimeSignature: ts,
		AccentPattern: metrotime.PresetStandard.Resolve(4),
		Subdivision:   metrotime.SubdivisionNone,
	}
	engine.Arm(cfg, fc.Now())

	var o Output
	require.NoError(t, o.Open(44100))

	muted := func(barIndex uint64) bool { return barIndex < 1 }
	sched := NewLookaheadScheduler(fc, &o, engine, func() bool { return false }, muted)

	// Bar 0's beats fall within the muted count-in window: no audible
	// clicks get enqueued even though they are within the lookahead
	// window and due.
	sched.RunOnce()
	assert.Equal(t, 0, o.PendingCount())

	// Advance past bar 0 (4 beats at 500ms = 2s) into bar 1, which is no
	// longer muted.
	fc.Advance(2 * time.Second)
	sched.RunOnce()
	assert.Equal(t, 1, o.PendingCount())
}
