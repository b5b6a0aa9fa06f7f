package peersync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	sent   []SyncEnvelope
	failOn int // 1-indexed send call number to fail, 0 = never
	calls  int
}

func (c *fakeChannel) Send(env SyncEnvelope) error {
	c.calls++
	if c.failOn != 0 && c.calls == c.failOn {
		return errors.New("boom")
	}
	c.sent = append(c.sent, env)
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func baseSnapshot() StateSnapshot {
	return StateSnapshot{BPM: 120, IsPlaying: true, TimeSignatureBeats: 4, TimeSignatureUnit: 4, AccentPattern: []bool{true, false, false, false}}
}

func TestPeerPublishBumpsRevision(t *testing.T) {
	ch := &fakeChannel{}
	r := NewPeer("device-a", ch, baseSnapshot, nil, nil)

	r.Publish(baseSnapshot())
	r.Publish(baseSnapshot())

	require.Len(t, ch.sent, 2)
	assert.Equal(t, uint64(1), ch.sent[0].Revision)
	assert.Equal(t, uint64(2), ch.sent[1].Revision)
	assert.True(t, r.IsReachable())
}

func TestPeerSendFailureMarksUnreachableButProceeds(t *testing.T) {
	ch := &fakeChannel{failOn: 1}
	r := NewPeer("device-a", ch, baseSnapshot, nil, nil)

	assert.NotPanics(t, func() { r.Publish(baseSnapshot()) })
	assert.False(t, r.IsReachable())
}

func TestPeerAppliesNewerRevision(t *testing.T) {
	ch := &fakeChannel{}
	var applied *StateSnapshot
	r := NewPeer("device-a", ch, baseSnapshot, func(s StateSnapshot) { applied = &s }, nil)

	env := NewStateSnapshotEnvelope("device-b", StateSnapshot{BPM: 140}, 1, time.Now())
	r.HandleInbound(env)

	require.NotNil(t, applied)
	assert.Equal(t, 140, applied.BPM)
}

func TestPeerDropsStaleRevision(t *testing.T) {
	ch := &fakeChannel{}
	var applyCount int
	r := NewPeer("device-a", ch, baseSnapshot, func(StateSnapshot) { applyCount++ }, nil)

	now := time.Now()
	r.HandleInbound(NewStateSnapshotEnvelope("device-b", StateSnapshot{BPM: 140}, 5, now))
	assert.Equal(t, 1, applyCount)

	r.HandleInbound(NewStateSnapshotEnvelope("device-b", StateSnapshot{BPM: 90}, 3, now))
	assert.Equal(t, 1, applyCount, "a lower revision must be dropped")
}

func TestPeerTieBreaksOnLaterTimestamp(t *testing.T) {
	ch := &fakeChannel{}
	var applied StateSnapshot
	r := NewPeer("device-a", ch, baseSnapshot, func(s StateSnapshot) { applied = s }, nil)

	base := time.Unix(1000, 0)
	r.HandleInbound(NewStateSnapshotEnvelope("device-b", StateSnapshot{BPM: 100}, 2, base))
	assert.Equal(t, 100, applied.BPM)

	// same revision, later timestamp: applies
	r.HandleInbound(NewStateSnapshotEnvelope("device-b", StateSnapshot{BPM: 110}, 2, base.Add(time.Second)))
	assert.Equal(t, 110, applied.BPM)

	// same revision, same timestamp: exact tie, dropped
	r.HandleInbound(NewStateSnapshotEnvelope("device-b", StateSnapshot{BPM: 999}, 2, base.Add(time.Second)))
	assert.Equal(t, 110, applied.BPM, "an exact tie on revision and timestamp is dropped")
}

func TestPeerCommandAppliesThenRepublishes(t *testing.T) {
	ch := &fakeChannel{}
	var gotCmd Command
	r := NewPeer("device-a", ch, baseSnapshot, nil, func(c Command) { gotCmd = c })

	r.HandleInbound(SyncEnvelope{Type: TypeCommand, Command: CommandToggle})

	assert.Equal(t, CommandToggle, gotCmd)
	require.Len(t, ch.sent, 1, "applying a command republishes a fresh snapshot")
	assert.Equal(t, TypeStateSnapshot, ch.sent[0].Type)
}

func TestPeerRespondsToPingWithPong(t *testing.T) {
	ch := &fakeChannel{}
	r := NewPeer("device-a", ch, baseSnapshot, nil, nil)

	r.HandleInbound(NewPingEnvelope("device-b", time.Now()))

	require.Len(t, ch.sent, 1)
	assert.Equal(t, TypePong, ch.sent[0].Type)
	require.NotNil(t, ch.sent[0].Snapshot)
	assert.Equal(t, 120, ch.sent[0].Snapshot.BPM)
}

func TestPeerIgnoresUnknownEnvelopeType(t *testing.T) {
	ch := &fakeChannel{}
	r := NewPeer("device-a", ch, baseSnapshot, nil, nil)

	r.HandleInbound(SyncEnvelope{Type: "mystery"})
	assert.Empty(t, ch.sent)
}
