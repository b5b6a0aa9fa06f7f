package metrotime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/metrocore/pkg/clock"
)

func configAt(bpm int, beatsPerBar int, sub Subdivision) *Config {
	ts, _ := NewTimeSignature(beatsPerBar, BeatUnitQuarter)
	return &Config{
		BPM:           bpm,
		TimeSignature: ts,
		AccentPattern: PresetStandard.Resolve(beatsPerBar),
		Subdivision:   sub,
	}
}

func TestTimingEngine4_4At120BPM(t *testing.T) {
	fc := clock.NewFake()
	e := NewTimingEngine()
	cfg := configAt(120, 4, SubdivisionNone)
	anchor := fc.Now()
	e.Arm(cfg, anchor)
	require.Equal(t, StateArmed, e.State())

	var onBeats []DueEvent
	// Drive in small steps to emulate a real scheduler loop: 80 x 25ms =
	// 2s, which covers on-beats at 0, 0.5, 1.0, 1.5 and 2.0s.
	for i := 0; i < 80; i++ {
		fc.Advance(25 * time.Millisecond)
		due := e.Tick(fc.Now())
		onBeats = append(onBeats, due...)
	}
	require.Equal(t, StateRunning, e.State())
	require.GreaterOrEqual(t, len(onBeats), 5)

	// Beat interval at 120bpm = 0.5s.
	for i, ev := range onBeats[:5] {
		wantOffset := time.Duration(i) * 500 * time.Millisecond
		gotOffset := ev.AbsoluteTime.Sub(anchor)
		assert.InDelta(t, float64(wantOffset), float64(gotOffset), float64(100*time.Microsecond))
		assert.True(t, ev.IsOnBeat)
	}
	assert.Equal(t, []bool{true, false, false, false, true}, []bool{onBeats[0].IsAccent, onBeats[1].IsAccent, onBeats[2].IsAccent, onBeats[3].IsAccent, onBeats[4].IsAccent})
}

func TestTimingEngineDriftFree(t *testing.T) {
	fc := clock.NewFake()
	e := NewTimingEngine()
	cfg := configAt(150, 4, SubdivisionNone)
	anchor := fc.Now()
	e.Arm(cfg, anchor)

	const n = 200
	var events []DueEvent
	for len(events) < n {
		fc.Advance(7 * time.Millisecond) // jittery, non-aligned cadence
		events = append(events, e.Tick(fc.Now())...)
	}
	events = events[:n]

	first := events[0].AbsoluteTime
	last := events[n-1].AbsoluteTime
	elapsed := last.Sub(first)
	expected := time.Duration(n-1) * (60 * time.Second / 150)

	tolerance := 100*time.Microsecond + time.Duration(float64(expected)*10e-6)
	assert.InDelta(t, float64(expected), float64(elapsed), float64(tolerance))
}

func TestTimingEngineSubdivisionOrdering(t *testing.T) {
	fc := clock.NewFake()
	e := NewTimingEngine()
	cfg := configAt(140, 7, SubdivisionSixteenth)
	cfg.AccentPattern = PresetDjent.Resolve(7)
	anchor := fc.Now()
	e.Arm(cfg, anchor)

	var all []DueEvent
	for len(all) < 28 {
		fc.Advance(10 * time.Millisecond)
		all = append(all, e.Tick(fc.Now())...)
	}
	all = all[:28]

	onBeatIdx := []int{0, 4, 8, 12, 16, 20, 24}
	wantAccent := []bool{true, false, false, true, false, true, false}
	for i, ev := range all {
		isOnBeatExpected := false
		for _, ob := range onBeatIdx {
			if i == ob {
				isOnBeatExpected = true
			}
		}
		assert.Equal(t, isOnBeatExpected, ev.IsOnBeat, "tick %d", i)
	}
	for j, ob := range onBeatIdx {
		assert.Equal(t, wantAccent[j], all[ob].IsAccent, "onbeat %d", ob)
	}
}

func TestTimingEngineReconfigurePreservesPhase(t *testing.T) {
	fc := clock.NewFake()
	e := NewTimingEngine()
	cfg := configAt(120, 4, SubdivisionNone)
	anchor := fc.Now()
	e.Arm(cfg, anchor)

	// Advance partway into the first tick interval (0.5s at 120bpm).
	fc.Advance(300 * time.Millisecond)
	now := fc.Now()
	e.Tick(now) // tick 0 has been emitted; the next due tick is at 0.5s

	oldNext := e.NextDueTime()
	remaining := oldNext.Sub(now)
	remainingFraction := float64(remaining) / float64(500*time.Millisecond)

	newCfg := configAt(90, 4, SubdivisionNone) // new interval = 60/90 = 0.6667s
	e.Reconfigure(newCfg, now)

	newInterval := 60.0 / 90.0
	wantOffset := time.Duration(remainingFraction * newInterval * float64(time.Second))
	gotOffset := e.NextDueTime().Sub(now)

	assert.InDelta(t, float64(wantOffset), float64(gotOffset), float64(200*time.Microsecond))
}

func TestTimingEngineArmDisarm(t *testing.T) {
	fc := clock.NewFake()
	e := NewTimingEngine()
	assert.Equal(t, StateIdle, e.State())

	cfg := configAt(120, 4, SubdivisionNone)
	e.Arm(cfg, fc.Now())
	assert.Equal(t, StateArmed, e.State())

	e.Tick(fc.Now())
	assert.Equal(t, StateRunning, e.State())

	e.Disarm()
	assert.Equal(t, StateIdle, e.State())
	assert.Nil(t, e.Tick(fc.Now()))
}
