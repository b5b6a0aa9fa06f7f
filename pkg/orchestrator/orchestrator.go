// Package orchestrator ties the timing, audio, haptic, pitch, and peer
// subsystems together behind the single public contract spec.md §4.9
// names. It supervises the scheduler and audio-capture timelines as
// goroutines in a golang.org/x/sync/errgroup.Group (a peer's receive
// loop is run by the host, outside that group), the idiom SPEC_FULL.md's
// concurrency section commits to, and publishes configuration through
// an atomic.Pointer read-copy so the scheduler timeline never blocks on
// a writer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/halcyon-audio/metrocore/pkg/audioio"
	"github.com/halcyon-audio/metrocore/pkg/clock"
	"github.com/halcyon-audio/metrocore/pkg/haptic"
	"github.com/halcyon-audio/metrocore/pkg/metrotime"
	"github.com/halcyon-audio/metrocore/pkg/peersync"
	"github.com/halcyon-audio/metrocore/pkg/pitch"
)

// schedulerCadence is the real-time dispatch and lookahead-priming tick
// rate, matching spec.md §5's "~25 ms cadence".
const schedulerCadence = 25 * time.Millisecond

// CaptureSource supplies raw capture blocks for pitch detection. A nil
// CaptureSource leaves the tuner in Idle, matching spec.md §7's
// microphone-unavailable behavior.
type CaptureSource interface {
	ReadBlock(buf []float32) error
}

// ErrNotRunning is the error for a not-running Orchestrator. No method of
// Orchestrator returns it: when idle, Stop is a no-op and Toggle starts.
var ErrNotRunning = errors.New("orchestrator: not running")

// Orchestrator owns MetronomeConfig and PlaybackState and is the single
// entry point a host (CLI, TUI) drives.
type Orchestrator struct {
	clockSource clock.Source
	output      *audioio.Output // nil if AudioUnavailable
	haptics     *haptic.Engine
	capture     CaptureSource
	detector    *pitch.Detector
	logger      *log.Logger

	engine    *metrotime.TimingEngine
	lookahead *audioio.LookaheadScheduler
	realtime  *audioio.RealtimeOutput
	tapTempo  *metrotime.TapTempoEstimator
	peer      *peersync.Peer

	mu     sync.Mutex
	config *metrotime.Config
	state  PlaybackState

	configPtr atomic.Pointer[metrotime.Config]

	observers []Observer

	// countInBars is the number of leading bars (starting at BarIndex 0,
	// set once per Start/StartWithCountIn and never mutated while
	// running) that play haptic-only: no observer OnBeat/OnSubdivision
	// dispatch and no audible ScheduledClick. Guarded by mu like the
	// rest of playback state.
	countInBars uint64

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New constructs an idle Orchestrator. output and capture may be nil
// (device/microphone unavailable); haptics may be haptic.NewEngine(haptic.Noop{})
// when no hardware haptic device exists.
func New(clockSource clock.Source, output *audioio.Output, haptics *haptic.Engine, capture CaptureSource, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	cfg := metrotime.DefaultConfig()
	return &Orchestrator{
		clockSource: clockSource,
		output:      output,
		haptics:     haptics,
		capture:     capture,
		detector:    pitch.NewDetector(44100),
		logger:      logger,
		engine:      metrotime.NewTimingEngine(),
		tapTempo:    metrotime.NewTapTempoEstimator(),
		config:      cfg,
	}
}

// RegisterObserver adds obs to the set notified on beat/subdivision/
// state-change/pitch events.
func (o *Orchestrator) RegisterObserver(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, obs)
}

// AttachPeer wires peer into the orchestrator: inbound commands are
// applied as local actions, inbound snapshots overwrite local config,
// and every locally-originated mutation republishes a snapshot to the
// peer. Adopting an inbound snapshot does not itself republish — see
// publishLocked.
func (o *Orchestrator) AttachPeer(peer *peersync.Peer) {
	o.mu.Lock()
	o.peer = peer
	o.mu.Unlock()
}

// Snapshot returns the current config as a peersync.StateSnapshot, the
// SnapshotProvider peersync.NewPeer requires.
func (o *Orchestrator) Snapshot() peersync.StateSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() peersync.StateSnapshot {
	cfg := o.config
	return peersync.StateSnapshot{
		BPM:                cfg.BPM,
		IsPlaying:          o.state.Playing,
		TimeSignatureBeats: cfg.TimeSignature.BeatsPerBar,
		TimeSignatureUnit:  int(cfg.TimeSignature.BeatUnit),
		AccentPattern:      append([]bool(nil), cfg.AccentPattern...),
		SubdivisionEnabled: cfg.Subdivision != metrotime.SubdivisionNone,
		SubdivisionType:    cfg.Subdivision.Divisor(),
	}
}

// ApplyRemoteCommand maps an inbound peersync.Command onto the local
// public contract, per spec.md §4.8 ("applied as a request, semantically
// equivalent to a local user action").
func (o *Orchestrator) ApplyRemoteCommand(cmd peersync.Command) {
	switch cmd {
	case peersync.CommandPlay:
		_ = o.Start()
	case peersync.CommandStop:
		o.Stop()
	case peersync.CommandToggle:
		o.Toggle()
	case peersync.CommandIncrementBPM:
		o.mu.Lock()
		bpm := o.config.BPM + 1
		o.mu.Unlock()
		o.SetBPM(bpm)
	case peersync.CommandDecrementBPM:
		o.mu.Lock()
		bpm := o.config.BPM - 1
		o.mu.Unlock()
		o.SetBPM(bpm)
	case peersync.CommandResetToDefaults:
		o.mu.Lock()
		o.config = metrotime.DefaultConfig()
		o.publishConfigLocked()
		o.mu.Unlock()
	}
}

// ApplyRemoteSnapshot overwrites local config from an inbound
// peersync.StateSnapshot that has already won replication.
func (o *Orchestrator) ApplyRemoteSnapshot(snap peersync.StateSnapshot) {
	ts, err := metrotime.NewTimeSignature(snap.TimeSignatureBeats, metrotime.BeatUnit(snap.TimeSignatureUnit))
	if err != nil {
		o.logger.Warn("rejected remote snapshot with invalid time signature", "err", err)
		return
	}
	sub := metrotime.SubdivisionFromWire(snap.SubdivisionEnabled, snap.SubdivisionType)

	o.mu.Lock()
	o.config = &metrotime.Config{
		BPM:           metrotime.Clamp(snap.BPM),
		TimeSignature: ts,
		AccentPattern: metrotime.AccentPattern(append([]bool(nil), snap.AccentPattern...)).Resized(ts.BeatsPerBar),
		Subdivision:   sub,
		ReferenceHz:   o.config.ReferenceHz,
	}
	// Adopting a snapshot the peer already won replication for is not a
	// new authoritative mutation — it must not be re-Publish-ed back to
	// the peer it came from, or two reachable peers ping-pong the same
	// state forever, each side's revision counter climbing without
	// bound (spec.md §4.8's replication rules describe inbound
	// snapshots as terminal, applied wholesale, not as a trigger for a
	// further broadcast).
	o.publishLocked(false)
	playingWanted := snap.IsPlaying
	o.mu.Unlock()

	if playingWanted && !o.isPlaying() {
		_ = o.Start()
	} else if !playingWanted && o.isPlaying() {
		o.Stop()
	}
}

func (o *Orchestrator) isPlaying() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Playing
}

// mutedByCountIn reports whether a tick at barIndex falls within the
// current session's leading count-in bars and must therefore stay
// silent: haptic-only, no audible ScheduledClick (SPEC_FULL.md §6.2).
// Passed to the LookaheadScheduler so its priming loop honors the same
// count-in window dispatch() uses for observer suppression.
func (o *Orchestrator) mutedByCountIn(barIndex uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return barIndex < o.countInBars
}

// publishConfigLocked must be called with o.mu held. It bumps the
// revision, swaps the atomic read-copy, reconfigures the live engine if
// running (preserving phase), notifies observers, and republishes to
// the peer. Use this for every locally-originated mutation (setters,
// presets, local commands).
func (o *Orchestrator) publishConfigLocked() {
	o.publishLocked(true)
}

// publishLocked is publishConfigLocked's implementation, parameterized
// on whether the new config should be rebroadcast to the peer. toPeer
// must be false when the mutation itself came from the peer (an
// inbound StateSnapshot already won replication on both ends; echoing
// it back is not a new authoritative edit and would make two reachable
// peers republish each other's state forever).
func (o *Orchestrator) publishLocked(toPeer bool) {
	o.config.Revision++
	published := o.config.Clone()
	o.configPtr.Store(published)

	if o.state.Playing {
		o.engine.Reconfigure(published, o.clockSource.Now())
	}

	for _, obs := range o.observers {
		if obs.OnStateChange != nil {
			obs.OnStateChange(published, o.state.Playing)
		}
	}
	if toPeer && o.peer != nil {
		o.peer.Publish(o.snapshotLocked())
	}
}

// SetBPM clamps and applies a new tempo.
func (o *Orchestrator) SetBPM(bpm int) {
	o.mu.Lock()
	o.config.BPM = metrotime.Clamp(bpm)
	o.publishConfigLocked()
	o.mu.Unlock()
}

// SetTimeSignature validates and applies a new time signature, resizing
// the current accent pattern to match.
func (o *Orchestrator) SetTimeSignature(beatsPerBar int, unit metrotime.BeatUnit) error {
	ts, err := metrotime.NewTimeSignature(beatsPerBar, unit)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.config.TimeSignature = ts
	o.config.AccentPattern = o.config.AccentPattern.Resized(beatsPerBar)
	o.publishConfigLocked()
	o.mu.Unlock()
	return nil
}

// SetAccentPattern sets beat index's accent flag directly.
func (o *Orchestrator) SetAccentPattern(index int, value bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if index < 0 || index >= len(o.config.AccentPattern) {
		return
	}
	o.config.AccentPattern[index] = value
	if !o.config.AccentPattern.HasAccent() {
		o.config.AccentPattern[0] = true
	}
	o.publishConfigLocked()
}

// ApplyPreset replaces the whole accent pattern with preset's resolution
// for the current beatsPerBar (spec.md §4.9: applying a preset always
// replaces the whole pattern).
func (o *Orchestrator) ApplyPreset(preset metrotime.AccentPreset) {
	o.mu.Lock()
	o.config.AccentPattern = preset.Resolve(o.config.TimeSignature.BeatsPerBar)
	o.publishConfigLocked()
	o.mu.Unlock()
}

// LoadConfig replaces the entire live configuration in one revision bump,
// the way a saved preset or a cold-start restore applies its full state
// at once rather than through a sequence of individual setters.
func (o *Orchestrator) LoadConfig(cfg *metrotime.Config) {
	o.mu.Lock()
	o.config = cfg.Clone()
	o.publishConfigLocked()
	o.mu.Unlock()
}

// SetSubdivision changes the active subdivision.
func (o *Orchestrator) SetSubdivision(s metrotime.Subdivision) {
	o.mu.Lock()
	o.config.Subdivision = s
	o.publishConfigLocked()
	o.mu.Unlock()
}

// Tap feeds the tap-tempo estimator and, once it has enough samples,
// applies the estimated BPM.
func (o *Orchestrator) Tap() (int, bool) {
	bpm, ok := o.tapTempo.Tap(time.Now())
	if ok {
		o.SetBPM(bpm)
	}
	return bpm, ok
}

// Start arms the timing engine and launches the scheduler timeline and,
// when a CaptureSource is set, the capture timeline. It is idempotent:
// calling Start while already running is a no-op.
func (o *Orchestrator) Start() error {
	return o.startWithCountIn(0)
}

// StartWithCountIn plays countInBars silent (haptic-only) bars before
// the first onBeat reaches observers, per SPEC_FULL.md §6.2.
func (o *Orchestrator) StartWithCountIn(countInBars int) error {
	return o.startWithCountIn(countInBars)
}

func (o *Orchestrator) startWithCountIn(countInBars int) error {
	o.mu.Lock()
	if o.state.Playing {
		o.mu.Unlock()
		return nil
	}

	if o.output != nil && !o.output.IsOpen() {
		if err := o.output.Open(44100); err != nil {
			o.logger.Warn("audio device unavailable, continuing haptic/visual-only", "err", err)
		} else if rt, err := audioio.NewRealtimeOutput(o.output); err != nil {
			o.logger.Warn("audio device unavailable, continuing haptic/visual-only", "err", err)
		} else {
			o.realtime = rt
		}
	}
	if err := o.haptics.Prepare(); err != nil {
		o.logger.Warn("haptic hardware unavailable", "err", err)
	}

	now := o.clockSource.Now()
	o.engine.Arm(o.config, now)
	o.state = PlaybackState{Playing: true, Anchor: now}

	o.countInBars = uint64(countInBars)

	if o.output != nil && o.output.IsOpen() {
		o.lookahead = audioio.NewLookaheadScheduler(o.clockSource, o.output, o.engine, func() bool {
			o.mu.Lock()
			defer o.mu.Unlock()
			return o.config.Subdivision != metrotime.SubdivisionNone
		}, o.mutedByCountIn)
	}

	published := o.config.Clone()
	o.configPtr.Store(published)
	for _, obs := range o.observers {
		if obs.OnStateChange != nil {
			obs.OnStateChange(published, true)
		}
	}
	o.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	o.cancel = cancel
	o.group = group

	group.Go(func() error { return o.schedulerLoop(gctx) })
	if o.capture != nil {
		group.Go(func() error { return o.captureLoop(gctx) })
	}

	return nil
}

// Stop is synchronous: it cancels the shared context, waits for the
// scheduler's final iteration to drain, and disarms the engine.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.state.Playing {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	group := o.group
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if group != nil {
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Warn("orchestrator timeline exited with error", "err", err)
		}
	}

	o.mu.Lock()
	o.engine.Disarm()
	if o.realtime != nil {
		o.realtime.Close()
		o.realtime = nil
	}
	if o.output != nil {
		o.output.Close()
	}
	o.haptics.Release()
	o.state = PlaybackState{}
	o.lookahead = nil
	o.countInBars = 0
	playing := false
	published := o.config.Clone()
	for _, obs := range o.observers {
		if obs.OnStateChange != nil {
			obs.OnStateChange(published, playing)
		}
	}
	o.mu.Unlock()
}

// Toggle starts if stopped, stops if running.
func (o *Orchestrator) Toggle() {
	o.mu.Lock()
	playing := o.state.Playing
	o.mu.Unlock()
	if playing {
		o.Stop()
	} else {
		_ = o.Start()
	}
}

func (o *Orchestrator) schedulerLoop(ctx context.Context) error {
	ticker := time.NewTicker(schedulerCadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.drainOnce()
			return ctx.Err()
		case <-ticker.C:
			o.runSchedulerIteration()
		}
	}
}

func (o *Orchestrator) runSchedulerIteration() {
	now := o.clockSource.Now()

	o.mu.Lock()
	lookahead := o.lookahead
	o.mu.Unlock()
	if lookahead != nil {
		lookahead.RunOnce()
	}

	due := o.engine.Tick(now)
	for _, ev := range due {
		o.dispatch(ev, lookahead)
	}
}

// drainOnce lets one last iteration run synchronously after cancellation
// so any tick due at the cancel instant is not lost mid-flight, matching
// spec.md §5's "waits for one final iteration to drain the queue".
func (o *Orchestrator) drainOnce() {
	o.runSchedulerIteration()
}

func (o *Orchestrator) dispatch(ev metrotime.DueEvent, lookahead *audioio.LookaheadScheduler) {
	o.mu.Lock()
	o.state.CurrentBar = ev.BarIndex
	o.state.CurrentBeatInBar = ev.BeatInBar
	o.state.CurrentSubdivIndex = ev.SubdivIndexInBeat
	o.state.NextTickIndex = ev.TickIndex + 1

	suppressed := ev.BarIndex < o.countInBars
	observers := o.observers
	o.mu.Unlock()

	if ev.IsOnBeat {
		kind := haptic.KindNormal
		if ev.IsAccent {
			kind = haptic.KindAccent
		}
		o.haptics.Play(kind)
	} else {
		o.haptics.Play(haptic.KindSubdivision)
	}

	if suppressed {
		return
	}

	if ev.IsOnBeat {
		audioTime := 0.0
		if lookahead != nil {
			audioTime = lookahead.AudioTimeOf(ev.AbsoluteTime)
		}
		for _, obs := range observers {
			if obs.OnBeat != nil {
				obs.OnBeat(ev.BarIndex, ev.BeatInBar, ev.IsAccent, audioTime)
			}
		}
	} else {
		for _, obs := range observers {
			if obs.OnSubdivision != nil {
				obs.OnSubdivision(ev.SubdivIndexInBeat)
			}
		}
	}
}

func (o *Orchestrator) captureLoop(ctx context.Context) error {
	buf := make([]float32, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := o.capture.ReadBlock(buf); err != nil {
			o.logger.Warn("capture read failed", "err", err)
			return fmt.Errorf("orchestrator: capture: %w", err)
		}
		reading, ok := o.detector.Process(buf)
		if !ok || !reading.Valid() {
			continue
		}
		o.mu.Lock()
		refHz := o.config.ReferenceHz
		observers := o.observers
		o.mu.Unlock()

		note, ok := pitch.Classify(reading.FrequencyHz, refHz)
		if !ok {
			continue
		}
		for _, obs := range observers {
			if obs.OnPitch != nil {
				obs.OnPitch(reading, note, note.CentOffset, note.Accuracy)
			}
		}
	}
}
