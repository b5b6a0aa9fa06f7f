// Package audioio implements the sample-accurate, allocation-free click
// renderer and its lookahead scheduling loop (spec.md §4.3). Output owns
// the ScheduledClick queue and the ClickBufferSet; rendering walks frame
// indices rather than wall-clock samples so the "device clock" is
// exactly sample count / sample rate, matching real audio hardware.
package audioio

import (
	"errors"
	"sync"

	"github.com/halcyon-audio/metrocore/pkg/clicksynth"
)

// ErrAudioUnavailable is returned by Open when the device cannot be
// acquired. The metronome keeps running on haptic/visual feedback alone
// when this happens (spec.md §7).
var ErrAudioUnavailable = errors.New("audioio: device unavailable")

// ScheduledClick is one click enqueued to play at an absolute device-clock
// time.
type ScheduledClick struct {
	AudioTime float64 // seconds, device clock
	Kind      clicksynth.Kind
}

type activePlayback struct {
	buf []int16
	pos int
}

// Output renders pre-synthesized click buffers into an output sample
// stream at requested device-clock times.
type Output struct {
	SampleRate int
	Buffers    *clicksynth.BufferSet

	mu             sync.Mutex
	queue          []ScheduledClick
	active         []activePlayback
	framesRendered uint64
	open           bool
}

// Open acquires the ClickBufferSet for sampleRate. There is no real
// device acquisition failure mode in this pure-Go renderer (that risk
// lives in the oto-backed RealtimeOutput which wraps this type), but the
// method keeps the ErrAudioUnavailable contract for callers that want to
// treat Output uniformly with a hardware backend.
func (o *Output) Open(sampleRate int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.SampleRate = sampleRate
	o.Buffers = clicksynth.Build(sampleRate)
	o.queue = nil
	o.active = nil
	o.framesRendered = 0
	o.open = true
	return nil
}

// Close drains the queue and releases the buffers.
func (o *Output) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = nil
	o.active = nil
	o.Buffers = nil
	o.open = false
}

// IsOpen reports whether the device session is active.
func (o *Output) IsOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

// AudioClockNow returns the device's monotonic clock, defined as frames
// rendered so far divided by sample rate. This is the clock that
// ScheduleClick's audioTime argument is expressed in.
func (o *Output) AudioClockNow() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.SampleRate == 0 {
		return 0
	}
	return float64(o.framesRendered) / float64(o.SampleRate)
}

// ScheduleClick enqueues a click to play at audioTime (device clock
// seconds). If audioTime has already passed, it plays on the very next
// rendered frame instead of being dropped (spec.md §4.3 failure
// semantics: "if a schedule falls in the past, it is played
// immediately").
func (o *Output) ScheduleClick(kind clicksynth.Kind, audioTime float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, ScheduledClick{AudioTime: audioTime, Kind: kind})
}

// PendingCount reports how many clicks are queued but not yet started,
// useful for tests and diagnostics.
func (o *Output) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// RenderFloat64 fills buf with the next len(buf) mono samples in
// [-1,1], advancing the device clock by len(buf) frames. This is the
// allocation-free hot path: no buffer in the call graph below here is
// allocated per call.
func (o *Output) RenderFloat64(buf []float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sr := float64(o.SampleRate)
	for i := range buf {
		frame := o.framesRendered + uint64(i)
		t := float64(frame) / sr

		o.activateDue(t)

		var sample float64
		for j := 0; j < len(o.active); j++ {
			a := &o.active[j]
			if a.pos < len(a.buf) {
				sample += float64(a.buf[a.pos]) / 32768.0
				a.pos++
			}
		}
		buf[i] = sample
		o.pruneFinished()
	}
	o.framesRendered += uint64(len(buf))
}

// activateDue moves any queued click whose audioTime has arrived (<= t)
// into the active playback list. Queue order is preserved (FIFO); a
// click scheduled in the past starts immediately from its buffer's
// first sample, per the "played immediately" failure rule.
func (o *Output) activateDue(t float64) {
	if len(o.queue) == 0 || o.Buffers == nil {
		return
	}
	kept := o.queue[:0]
	for _, c := range o.queue {
		if c.AudioTime <= t {
			o.active = append(o.active, activePlayback{buf: o.Buffers.Buffer(c.Kind)})
		} else {
			kept = append(kept, c)
		}
	}
	o.queue = kept
}

func (o *Output) pruneFinished() {
	if len(o.active) == 0 {
		return
	}
	kept := o.active[:0]
	for _, a := range o.active {
		if a.pos < len(a.buf) {
			kept = append(kept, a)
		}
	}
	o.active = kept
}
