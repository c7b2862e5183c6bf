package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/feed"
)

// Source produces snapshot-plus-stream subscriptions; the feed hub satisfies
// it directly.
type Source interface {
	Subscribe(ctx context.Context) ([]domain.Ticket, *feed.Subscription, error)
}

// Reconciler merges a bounded snapshot with live change events into one
// de-duplicated collection ordered by created_at descending. The collection
// is owned exclusively by the reconciler; every mutation passes through a
// single mutex, so events delivered concurrently are applied one at a time.
type Reconciler struct {
	mu       sync.Mutex
	tickets  []domain.Ticket
	index    map[string]int
	deleted  map[string]struct{}
	lastErr  error
	onChange func([]domain.Ticket)

	logger *zap.Logger
}

// New creates an empty reconciler.
func New(logger *zap.Logger) *Reconciler {
	return &Reconciler{
		index:   make(map[string]int),
		deleted: make(map[string]struct{}),
		logger:  logger,
	}
}

// OnChange registers a hook fired with a collection copy after every
// mutation. Used to recompute dashboard metrics on collection change.
func (r *Reconciler) OnChange(fn func([]domain.Ticket)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Load replaces the collection wholesale with a fresh snapshot, clearing any
// delete tombstones: the snapshot is authoritative about what exists.
func (r *Reconciler) Load(snapshot []domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tickets = make([]domain.Ticket, len(snapshot))
	copy(r.tickets, snapshot)
	sort.SliceStable(r.tickets, func(i, j int) bool {
		return r.tickets[i].CreatedAt.After(r.tickets[j].CreatedAt)
	})

	r.index = make(map[string]int, len(r.tickets))
	for i, t := range r.tickets {
		r.index[t.ID] = i
	}
	r.deleted = make(map[string]struct{})
	r.lastErr = nil

	r.notifyLocked()
}

// Apply merges one change event into the collection. Re-deliveries and stale
// events are ignored by comparing (id, updated_at); a delete tombstone wins
// over anything that arrives for the same id afterwards.
func (r *Reconciler) Apply(event feed.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := event.Ticket.ID

	switch event.Kind {
	case feed.EventDelete:
		r.deleted[id] = struct{}{}
		if pos, ok := r.index[id]; ok {
			r.removeAt(pos)
			r.notifyLocked()
		}
		return

	case feed.EventInsert, feed.EventUpdate:
		if _, gone := r.deleted[id]; gone {
			return
		}
		if pos, ok := r.index[id]; ok {
			current := r.tickets[pos]
			if !event.UpdatedAt.After(current.UpdatedAt) {
				return
			}
			// created_at is immutable, so the position stays valid.
			r.tickets[pos] = event.Ticket
			r.notifyLocked()
			return
		}
		// An update for an unknown id arrived before its insert; insert it
		// at the position determined by its own created_at.
		r.insertSorted(event.Ticket)
		r.notifyLocked()
	}
}

// Fail records a retryable fetch error while retaining the last good
// collection.
func (r *Reconciler) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = err
}

// LastError returns the current retryable error state, nil when healthy.
func (r *Reconciler) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Collection returns a copy of the reconciled collection, ordered by
// created_at descending.
func (r *Reconciler) Collection() []domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Ticket, len(r.tickets))
	copy(out, r.tickets)
	return out
}

// Run subscribes to the source and applies events until ctx is done,
// resubscribing with a fresh snapshot after stream loss or fetch failure.
func (r *Reconciler) Run(ctx context.Context, source Source) error {
	const retryDelay = time.Second

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		snapshot, subscription, err := source.Subscribe(ctx)
		if err != nil {
			r.Fail(err)
			r.logger.Warn("reconciler subscribe failed, retaining last collection", zap.Error(err))
			select {
			case <-time.After(retryDelay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		r.Load(snapshot)

		if err := r.consume(ctx, subscription); err != nil {
			return err
		}
	}
}

func (r *Reconciler) consume(ctx context.Context, subscription *feed.Subscription) error {
	defer subscription.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-subscription.Events:
			if !ok {
				// Stream lost; the outer loop resubscribes.
				return nil
			}
			r.Apply(event)
		}
	}
}

func (r *Reconciler) insertSorted(ticket domain.Ticket) {
	pos := sort.Search(len(r.tickets), func(i int) bool {
		return r.tickets[i].CreatedAt.Before(ticket.CreatedAt)
	})
	r.tickets = append(r.tickets, domain.Ticket{})
	copy(r.tickets[pos+1:], r.tickets[pos:])
	r.tickets[pos] = ticket

	for i := pos; i < len(r.tickets); i++ {
		r.index[r.tickets[i].ID] = i
	}
}

func (r *Reconciler) removeAt(pos int) {
	id := r.tickets[pos].ID
	r.tickets = append(r.tickets[:pos], r.tickets[pos+1:]...)
	delete(r.index, id)
	for i := pos; i < len(r.tickets); i++ {
		r.index[r.tickets[i].ID] = i
	}
}

func (r *Reconciler) notifyLocked() {
	if r.onChange == nil {
		return
	}
	out := make([]domain.Ticket, len(r.tickets))
	copy(out, r.tickets)
	r.onChange(out)
}
