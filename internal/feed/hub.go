package feed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// SnapshotSource provides the bounded initial listing for new subscribers.
type SnapshotSource interface {
	List(ctx context.Context, filter repository.ListFilter) ([]domain.Ticket, error)
}

// Config tunes hub behavior.
type Config struct {
	SnapshotLimit    int
	SubscriberBuffer int
}

func (c Config) withDefaults() Config {
	if c.SnapshotLimit <= 0 {
		c.SnapshotLimit = 100
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = 64
	}
	return c
}

// Hub is the change feed publisher: an explicit registry of subscribers with
// lifecycle tied to Subscribe/Close rather than ambient global state.
// Delivery is at-least-once; a subscriber whose buffer is full has events
// dropped (and counted) rather than ever blocking the publishing side.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	bridge      *RedisBridge

	source   SnapshotSource
	counters *observability.Counters
	logger   *zap.Logger
	cfg      Config
}

type subscriber struct {
	id     string
	out    chan Event
	mu     sync.Mutex
	closed bool
	// lastSeen tracks the newest updated_at delivered per ticket id so
	// per-ticket ordering stays non-decreasing for this subscriber.
	lastSeen map[string]time.Time
}

// Subscription is a cancellable live event stream. Subscribe hands the
// bounded snapshot to the consumer before any delta is delivered on the
// channel. Close stops delivery promptly and closes the channel.
type Subscription struct {
	ID     string
	Events <-chan Event

	hub *Hub
	sub *subscriber
}

// NewHub creates a hub over the given snapshot source.
func NewHub(source SnapshotSource, counters *observability.Counters, logger *zap.Logger, cfg Config) *Hub {
	return &Hub{
		subscribers: make(map[string]*subscriber),
		source:      source,
		counters:    counters,
		logger:      logger,
		cfg:         cfg.withDefaults(),
	}
}

// Subscribe registers a consumer and returns the bounded snapshot (most
// recent tickets by created_at descending) alongside the live stream. The
// snapshot is fetched while holding the registry lock, so no mutation
// published after its point in time can be lost; duplicates across the
// boundary are possible and resolved by consumer de-duplication on
// (id, updated_at).
func (h *Hub) Subscribe(ctx context.Context) ([]domain.Ticket, *Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshot, err := h.source.List(ctx, repository.ListFilter{Limit: h.cfg.SnapshotLimit})
	if err != nil {
		return nil, nil, apperrors.NewFetchError(err)
	}

	sub := &subscriber{
		id:       uuid.NewString(),
		out:      make(chan Event, h.cfg.SubscriberBuffer),
		lastSeen: make(map[string]time.Time),
	}
	for _, ticket := range snapshot {
		sub.lastSeen[ticket.ID] = ticket.UpdatedAt
	}

	h.subscribers[sub.id] = sub
	h.logger.Debug("feed subscriber added",
		zap.String("subscriber_id", sub.id),
		zap.Int("snapshot_size", len(snapshot)))

	return snapshot, &Subscription{ID: sub.id, Events: sub.out, hub: h, sub: sub}, nil
}

// Close removes the subscriber and closes its channel. No events are
// delivered after Close returns.
func (s *Subscription) Close() {
	s.hub.remove(s.sub.id)

	s.sub.mu.Lock()
	defer s.sub.mu.Unlock()
	if !s.sub.closed {
		s.sub.closed = true
		close(s.sub.out)
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, id)
	h.logger.Debug("feed subscriber removed", zap.String("subscriber_id", id))
}

// SubscriberCount reports the current registry size.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish fans an event out to all subscribers and, when a bridge is
// attached, forwards it to peer processes. It is called after the store
// write has committed and never fails the caller.
func (h *Hub) Publish(event Event) {
	h.deliverAll(event)

	h.mu.RLock()
	bridge := h.bridge
	h.mu.RUnlock()
	if bridge != nil {
		bridge.Forward(event)
	}
}

// AttachBridge wires a redis bridge for cross-process fan-out.
func (h *Hub) AttachBridge(bridge *RedisBridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = bridge
}

func (h *Hub) deliverAll(event Event) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		h.deliver(sub, event)
	}
}

func (h *Hub) deliver(sub *subscriber, event Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return
	}
	if last, ok := sub.lastSeen[event.Ticket.ID]; ok && event.UpdatedAt.Before(last) {
		// Stale for this subscriber; delivering it would break per-ticket
		// ordering.
		return
	}

	select {
	case sub.out <- event:
		sub.lastSeen[event.Ticket.ID] = event.UpdatedAt
		h.counters.RecordFeedPublish()
	default:
		// Full buffer: drop for this subscriber only. It resynchronizes by
		// resubscribing for a fresh snapshot.
		h.counters.RecordFeedDrop()
		deliveryErr := apperrors.NewFeedDeliveryError(sub.id, nil)
		h.logger.Warn("feed event dropped for slow subscriber",
			zap.String("subscriber_id", sub.id),
			zap.String("ticket_id", event.Ticket.ID),
			zap.Error(deliveryErr))
	}
}
