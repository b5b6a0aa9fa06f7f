package peersync

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrUnreachable marks a send that failed because the peer channel is
// currently down. It is observational only: callers log it and continue,
// per spec.md §7's PeerUnreachable error kind.
var ErrUnreachable = errors.New("peersync: peer unreachable")

// Channel is the duplex transport a Peer sends and receives
// SyncEnvelopes over. At-most-once delivery, no cross-send ordering
// guarantee (spec.md §4.8) — callers rely on Revision/Timestamp, not
// transport order.
type Channel interface {
	Send(SyncEnvelope) error
	Close() error
}

// SnapshotProvider returns the caller's current authoritative state, used
// to answer Ping and to re-publish after an inbound Command is applied.
type SnapshotProvider func() StateSnapshot

// Peer implements the replication rules of spec.md §4.8 on top of an
// arbitrary Channel. It is transport-agnostic; WebsocketChannel is the
// concrete production transport.
type Peer struct {
	deviceID string
	channel  Channel
	snapshot SnapshotProvider
	onApply  func(StateSnapshot)
	onCmd    func(Command)
	now      func() time.Time

	mu            sync.Mutex
	revision      uint64
	lastTimestamp float64
	reachable     bool
}

// NewPeer constructs a Peer. onApply is invoked whenever an
// inbound StateSnapshot (or Pong carrying one) wins replication; onCmd is
// invoked for an inbound Command, after which Peer automatically
// re-publishes snapshot() as a new outbound StateSnapshot.
func NewPeer(deviceID string, channel Channel, snapshot SnapshotProvider, onApply func(StateSnapshot), onCmd func(Command)) *Peer {
	return &Peer{
		deviceID: deviceID,
		channel:  channel,
		snapshot: snapshot,
		onApply:  onApply,
		onCmd:    onCmd,
		now:      time.Now,
		reachable: true,
	}
}

// IsReachable reports whether the last send attempt succeeded.
func (r *Peer) IsReachable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reachable
}

// Publish bumps the local revision, stamps a new StateSnapshot envelope,
// and broadcasts it. Send failures are logged and do not block the
// caller; the last-known-context (revision/timestamp) is still updated
// so a reconnect can resync (spec.md: "failure semantics: delivery
// errors are logged and the sender proceeds").
func (r *Peer) Publish(snap StateSnapshot) {
	r.mu.Lock()
	r.revision++
	rev := r.revision
	now := r.now()
	r.lastTimestamp = float64(now.UnixNano()) / 1e9
	r.mu.Unlock()

	env := NewStateSnapshotEnvelope(r.deviceID, snap, rev, now)
	r.send(env)
}

func (r *Peer) send(env SyncEnvelope) {
	err := r.channel.Send(env)
	r.mu.Lock()
	r.reachable = err == nil
	r.mu.Unlock()
	if err != nil {
		log.Warn("peer send failed", "err", err, "cause", ErrUnreachable)
	}
}

// HandleInbound applies the replication rule for env and, for Command
// and Ping envelopes, performs the side effects spec.md §4.8 describes.
func (r *Peer) HandleInbound(env SyncEnvelope) {
	switch env.Type {
	case TypeStateSnapshot, TypePong:
		if env.Snapshot == nil {
			return
		}
		r.applyIfNewer(*env.Snapshot, env.Revision, env.Timestamp)

	case TypeCommand:
		if r.onCmd != nil {
			r.onCmd(env.Command)
		}
		r.Publish(r.snapshot())

	case TypePing:
		r.mu.Lock()
		rev := r.revision
		r.mu.Unlock()
		pong := NewPongEnvelope(r.deviceID, r.snapshot(), rev, r.now())
		r.send(pong)

	default:
		// Unknown types are ignored (spec.md §6).
	}
}

// applyIfNewer implements the tie-break rule: revision strictly greater
// wins; on equal revision the later timestamp wins; exact ties (equal
// revision and equal timestamp) are dropped.
func (r *Peer) applyIfNewer(snap StateSnapshot, revision uint64, timestamp float64) {
	r.mu.Lock()
	apply := false
	switch {
	case revision > r.revision:
		apply = true
	case revision == r.revision && timestamp > r.lastTimestamp:
		apply = true
	}
	if apply {
		r.revision = revision
		r.lastTimestamp = timestamp
	}
	r.mu.Unlock()

	if apply && r.onApply != nil {
		r.onApply(snap)
	}
}
