// Package peersync replicates authoritative metronome state to a single
// paired peer over a duplex channel (spec.md §4.8). Its envelope/command
// shape is grounded on the tagged dispatch style the teacher uses for
// tracker effects (pkg/tracker/types.go's Fx* constants, pkg/audio's
// switch-on-effect-type), generalized from a byte-coded effect to a
// string-tagged wire envelope because the channel crosses a process
// boundary and needs to survive schema drift.
package peersync

import "time"

// EnvelopeType tags which payload a SyncEnvelope carries.
type EnvelopeType string

const (
	TypeStateSnapshot EnvelopeType = "stateSync"
	TypeCommand       EnvelopeType = "command"
	TypePing          EnvelopeType = "ping"
	TypePong          EnvelopeType = "pong"
)

// Command enumerates the remote-actionable requests a peer may send.
type Command string

const (
	CommandPlay            Command = "play"
	CommandStop            Command = "stop"
	CommandToggle          Command = "toggle"
	CommandIncrementBPM    Command = "incrementBPM"
	CommandDecrementBPM    Command = "decrementBPM"
	CommandResetToDefaults Command = "resetToDefaults"
)

// StateSnapshot mirrors the authoritative metronome configuration plus
// play/pause status, serialized on the wire exactly as spec.md §6
// describes.
type StateSnapshot struct {
	BPM                int    `json:"bpm"`
	IsPlaying          bool   `json:"isPlaying"`
	TimeSignatureBeats int    `json:"timeSignatureBeats"`
	TimeSignatureUnit  int    `json:"timeSignatureUnit"`
	AccentPattern      []bool `json:"accentPattern"`
	SubdivisionEnabled bool   `json:"subdivisionEnabled"`
	SubdivisionType    int    `json:"subdivisionType"`
}

// SyncEnvelope is the tagged union carried over the peer channel. At most
// one of Snapshot/Command is populated, per Type: Snapshot for stateSync
// and pong, Command for command, neither for ping.
type SyncEnvelope struct {
	Type      EnvelopeType   `json:"type"`
	Timestamp float64        `json:"timestamp"` // seconds since epoch
	Revision  uint64         `json:"revision"`
	DeviceID  string         `json:"deviceId"`
	Snapshot  *StateSnapshot `json:"snapshot,omitempty"`
	Command   Command        `json:"command,omitempty"`
}

// NewStateSnapshotEnvelope builds a StateSnapshot envelope stamped with
// now and revision.
func NewStateSnapshotEnvelope(deviceID string, snap StateSnapshot, revision uint64, now time.Time) SyncEnvelope {
	return SyncEnvelope{
		Type:      TypeStateSnapshot,
		Timestamp: float64(now.UnixNano()) / 1e9,
		Revision:  revision,
		DeviceID:  deviceID,
		Snapshot:  &snap,
	}
}

// NewPingEnvelope builds a Ping envelope with no payload.
func NewPingEnvelope(deviceID string, now time.Time) SyncEnvelope {
	return SyncEnvelope{
		Type:      TypePing,
		Timestamp: float64(now.UnixNano()) / 1e9,
		DeviceID:  deviceID,
	}
}

// NewPongEnvelope answers a Ping with the current snapshot.
func NewPongEnvelope(deviceID string, snap StateSnapshot, revision uint64, now time.Time) SyncEnvelope {
	return SyncEnvelope{
		Type:      TypePong,
		Timestamp: float64(now.UnixNano()) / 1e9,
		Revision:  revision,
		DeviceID:  deviceID,
		Snapshot:  &snap,
	}
}
