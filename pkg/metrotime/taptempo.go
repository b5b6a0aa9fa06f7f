package metrotime

import "time"

// maxTapAge is how long a tap instant remains eligible before it expires
// out of the ring buffer.
const maxTapAge = 2 * time.Second

// maxTaps bounds the ring buffer to the 4 most recent taps.
const maxTaps = 4

// TapTempoEstimator implements the tap-tempo feature: feed it wall-clock
// tap instants, get back a clamped BPM once at least two taps remain
// after expiry. Tap tempo measures human intervals, so it deliberately
// uses wall time rather than the monotonic clock.Source used for
// scheduling (spec.md §9, "Strict monotonic clock").
type TapTempoEstimator struct {
	taps []time.Time
}

// NewTapTempoEstimator creates an empty estimator.
func NewTapTempoEstimator() *TapTempoEstimator {
	return &TapTempoEstimator{}
}

// Tap records a tap at `now` and returns the estimated BPM and whether
// enough taps were available to produce one.
func (t *TapTempoEstimator) Tap(now time.Time) (bpm int, ok bool) {
	cutoff := now.Add(-maxTapAge)
	fresh := t.taps[:0]
	for _, tm := range t.taps {
		if tm.After(cutoff) {
			fresh = append(fresh, tm)
		}
	}
	t.taps = fresh

	t.taps = append(t.taps, now)
	if len(t.taps) > maxTaps {
		t.taps = t.taps[len(t.taps)-maxTaps:]
	}

	if len(t.taps) < 2 {
		return 0, false
	}

	var totalMs float64
	for i := 1; i < len(t.taps); i++ {
		totalMs += float64(t.taps[i].Sub(t.taps[i-1]).Milliseconds())
	}
	meanMs := totalMs / float64(len(t.taps)-1)
	if meanMs <= 0 {
		return 0, false
	}

	estimate := int(60000.0/meanMs + 0.5)
	return Clamp(estimate), true
}

// Reset clears all recorded taps.
func (t *TapTempoEstimator) Reset() {
	t.taps = nil
}
