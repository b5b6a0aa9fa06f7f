// Package haptic implements the transient haptic pattern player described
// in spec.md §4.4: a fixed (intensity, sharpness) table keyed by event
// kind, an extra reinforcement pulse for accents, and a rate limit that
// applies only to the tuner's in-tune confirmation so it cannot buzz
// continuously while a note is held. The dispatch-by-kind shape mirrors
// the teacher's effect-table switch in audio.Player.applyEffect; here the
// table is data instead of a switch because every kind maps to the same
// two fields.
package haptic

import "time"

// Kind enumerates the events that can trigger a haptic transient.
type Kind int

const (
	KindAccent Kind = iota
	KindNormal
	KindSubdivision
	KindGhost
	KindInTune
)

func (k Kind) String() string {
	switch k {
	case KindAccent:
		return "accent"
	case KindNormal:
		return "normal"
	case KindSubdivision:
		return "subdivision"
	case KindGhost:
		return "ghost"
	case KindInTune:
		return "in-tune"
	default:
		return "unknown"
	}
}

// TransientDuration is the fixed length of every haptic pulse.
const TransientDuration = 50 * time.Millisecond

// inTuneRateLimit bounds how often KindInTune may re-fire; no other kind
// is rate-limited.
const inTuneRateLimit = 500 * time.Millisecond

// accentReinforcementDelay is how long after the initial Accent pulse the
// second, reinforcing pulse fires.
const accentReinforcementDelay = 25 * time.Millisecond

// pattern is one row of the fixed intensity/sharpness table.
type pattern struct {
	intensity float64
	sharpness float64
}

var patterns = map[Kind]pattern{
	KindAccent:      {intensity: 1.0, sharpness: 0.9},
	KindNormal:      {intensity: 0.6, sharpness: 0.6},
	KindSubdivision: {intensity: 0.3, sharpness: 0.3},
	KindGhost:       {intensity: 0.15, sharpness: 0.2},
	KindInTune:      {intensity: 0.8, sharpness: 0.4},
}

// Device is the minimal surface a haptic backend must provide. A real
// implementation wraps platform haptic APIs; Noop satisfies it as a
// fallback when no hardware is present.
type Device interface {
	Prepare() error
	Release()
	Play(intensity, sharpness float64, duration time.Duration) error
}

// Noop is a Device that does nothing, used when hardware haptics are
// unavailable. Play never returns an error so callers never need to
// branch on availability (spec.md §7: haptics degrade silently).
type Noop struct{}

func (Noop) Prepare() error { return nil }
func (Noop) Release()       {}
func (Noop) Play(float64, float64, time.Duration) error {
	return nil
}

// clockFunc and afterFunc type the Engine's now and after fields, which
// tests override to make the rate limit and the accent reinforcement
// delay deterministic.
type clockFunc func() time.Time
type afterFunc func(d time.Duration, f func())

// Engine dispatches haptic transients by Kind, rate-limiting only
// KindInTune and firing a delayed reinforcement pulse for KindAccent.
type Engine struct {
	device Device

	now   clockFunc
	after afterFunc

	lastInTune     time.Time
	haveLastInTune bool
}

// NewEngine constructs an Engine over device, using real wall-clock
// timing. device may be Noop{} when hardware is unavailable; the engine
// behaves identically either way.
func NewEngine(device Device) *Engine {
	return &Engine{
		device: device,
		now:    time.Now,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Prepare readies the underlying device for playback.
func (e *Engine) Prepare() error {
	return e.device.Prepare()
}

// Release frees the underlying device.
func (e *Engine) Release() {
	e.device.Release()
}

// Play triggers the transient for kind, subject to kind's rate limit (if
// any). It returns false if the event was suppressed by the rate limit.
func (e *Engine) Play(kind Kind) bool {
	p, ok := patterns[kind]
	if !ok {
		return false
	}

	if kind == KindInTune {
		now := e.now()
		if e.haveLastInTune && now.Sub(e.lastInTune) < inTuneRateLimit {
			return false
		}
		e.lastInTune = now
		e.haveLastInTune = true
	}

	e.device.Play(p.intensity, p.sharpness, TransientDuration)

	if kind == KindAccent {
		reinforce := patterns[KindAccent]
		e.after(accentReinforcementDelay, func() {
			e.device.Play(reinforce.intensity, reinforce.sharpness, TransientDuration)
		})
	}

	return true
}
