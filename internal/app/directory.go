package app

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/dkeye/voicerelay/internal/metrics"
	"github.com/rs/zerolog/log"
)

var ErrDuplicatePeer = errors.New("peer id already registered")

// Presence mirrors directory membership somewhere outside the process.
// Implementations must bound their own latency.
type Presence interface {
	Joined(ctx context.Context, id domain.PeerID)
	Left(ctx context.Context, id domain.PeerID)
}

type RelayResult int

const (
	RelayDelivered RelayResult = iota
	RelayUnroutable
	RelayBackpressure
	RelayClosed
)

func (r RelayResult) String() string {
	switch r {
	case RelayDelivered:
		return "delivered"
	case RelayUnroutable:
		return "unroutable"
	case RelayBackpressure:
		return "backpressure"
	case RelayClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Directory maps peer ids to their open signaling connection.
type Directory struct {
	mu    sync.RWMutex
	peers map[domain.PeerID]core.SignalConnection

	policy   JoinPolicy
	presence Presence
	metrics  *metrics.Metrics

	// mirrorMu orders presence updates; each one writes the id's state as
	// it is at that moment.
	mirrorMu sync.Mutex
}

type Option func(*Directory)

func WithJoinPolicy(p JoinPolicy) Option {
	return func(d *Directory) {
		if p != nil {
			d.policy = p
		}
	}
}

func WithPresence(p Presence) Option {
	return func(d *Directory) { d.presence = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Directory) { d.metrics = m }
}

func NewDirectory(opts ...Option) *Directory {
	d := &Directory{
		peers:  make(map[domain.PeerID]core.SignalConnection),
		policy: ReplacePolicy{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Join registers conn under id. A duplicate id from another connection is
// resolved by the join policy.
func (d *Directory) Join(id domain.PeerID, conn core.SignalConnection) error {
	d.mu.Lock()
	cur, exists := d.peers[id]
	if exists && cur != conn && d.policy.OnDuplicateJoin(id) == RejectJoin {
		d.mu.Unlock()
		log.Warn().Str("module", "app.directory").Str("peer_id", string(id)).Msg("duplicate join rejected")
		return ErrDuplicatePeer
	}
	d.peers[id] = conn
	d.mu.Unlock()

	d.metrics.PeerJoined(exists)
	if !exists {
		d.mirror(id)
	}
	log.Info().Str("module", "app.directory").Str("peer_id", string(id)).Bool("replaced", exists && cur != conn).Msg("peer joined")
	return nil
}

// Leave removes id only while it still belongs to conn, so a stale
// connection never evicts a newer registration.
func (d *Directory) Leave(id domain.PeerID, conn core.SignalConnection) bool {
	d.mu.Lock()
	cur, ok := d.peers[id]
	if !ok || cur != conn {
		d.mu.Unlock()
		return false
	}
	delete(d.peers, id)
	d.mu.Unlock()

	d.metrics.PeerLeft()
	d.mirror(id)
	log.Info().Str("module", "app.directory").Str("peer_id", string(id)).Msg("peer left")
	return true
}

// mirror pushes the current membership of id to presence. A late update
// for an id that was re-registered meanwhile re-adds it instead of removing it.
func (d *Directory) mirror(id domain.PeerID) {
	if d.presence == nil {
		return
	}
	d.mirrorMu.Lock()
	defer d.mirrorMu.Unlock()
	if _, ok := d.Lookup(id); ok {
		d.presence.Joined(context.Background(), id)
	} else {
		d.presence.Left(context.Background(), id)
	}
}

func (d *Directory) Lookup(id domain.PeerID) (core.SignalConnection, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	conn, ok := d.peers[id]
	return conn, ok
}

// Relay forwards sig to its addressee without waiting for delivery.
// Unroutable or undeliverable envelopes are dropped; nothing is queued.
func (d *Directory) Relay(sig domain.Signal) RelayResult {
	res := d.relay(sig)
	d.metrics.Relay(res.String())
	if res != RelayDelivered {
		log.Debug().
			Str("module", "app.directory").
			Str("from", string(sig.From)).
			Str("to", string(sig.To)).
			Str("result", res.String()).
			Msg("signal dropped")
	}
	return res
}

func (d *Directory) relay(sig domain.Signal) RelayResult {
	conn, ok := d.Lookup(sig.To)
	if !ok {
		return RelayUnroutable
	}
	data, err := domain.MarshalEnvelope(sig)
	if err != nil {
		return RelayUnroutable
	}
	switch err := conn.TrySend(data); {
	case err == nil:
		return RelayDelivered
	case errors.Is(err, core.ErrBackpressure):
		return RelayBackpressure
	default:
		return RelayClosed
	}
}

// Peers returns the registered ids in sorted order.
func (d *Directory) Peers() []domain.PeerID {
	d.mu.RLock()
	out := make([]domain.PeerID, 0, len(d.peers))
	for id := range d.peers {
		out = append(out, id)
	}
	d.mu.RUnlock()
	slices.Sort(out)
	return out
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}
