package audioio

import (
	"fmt"

	"github.com/ebitengine/oto/v3"
)

// RealtimeOutput drives Output through an actual audio device via
// ebitengine/oto, the same real-time playback library the teacher uses
// (pkg/audio/realtime.go). The device's oto.Player pulls from Output's
// Reader on its own callback thread, so Output.RenderFloat64 must stay
// allocation-free — see output.go.
type RealtimeOutput struct {
	output    *Output
	otoCtx    *oto.Context
	otoPlayer *oto.Player
	reader    *Reader
}

// NewRealtimeOutput opens the device at output.SampleRate and starts
// playback. Returns ErrAudioUnavailable (wrapped) if the device cannot
// be acquired; the caller is expected to continue running haptic/visual
// feedback per spec.md §7.
func NewRealtimeOutput(output *Output) (*RealtimeOutput, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   output.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}

	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	<-ready

	reader := NewReader(output, output.SampleRate/10)
	rt := &RealtimeOutput{
		output: output,
		otoCtx: otoCtx,
		reader: reader,
	}
	rt.otoPlayer = otoCtx.NewPlayer(reader)
	rt.otoPlayer.SetBufferSize(output.SampleRate / 10) // 100ms buffer
	rt.otoPlayer.Play()
	return rt, nil
}

// Close stops playback and releases the device.
func (rt *RealtimeOutput) Close() {
	if rt.otoPlayer != nil {
		rt.otoPlayer.Close()
	}
}
