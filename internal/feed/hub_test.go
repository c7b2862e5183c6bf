package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// brokenSource always fails listing.
type brokenSource struct{}

func (brokenSource) List(ctx context.Context, filter repository.ListFilter) ([]domain.Ticket, error) {
	return nil, errors.New("store unavailable")
}

func newTestHub(t *testing.T, buffer int) (*Hub, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	hub := NewHub(store, observability.NewCounters(), zap.NewNop(), Config{
		SnapshotLimit:    100,
		SubscriberBuffer: buffer,
	})
	return hub, store
}

func ticketAt(id string, createdAt, updatedAt time.Time) domain.Ticket {
	return domain.Ticket{
		ID:          id,
		CreatedAt:   createdAt,
		Description: "ticket " + id,
		UpdatedAt:   updatedAt,
	}
}

func TestSubscribeDeliversSnapshotFirst(t *testing.T) {
	hub, store := newTestHub(t, 16)

	base := time.Now()
	store.SetClock(func() time.Time { return base })
	first, err := store.Create(context.Background(), "primer ticket")
	require.NoError(t, err)
	store.SetClock(func() time.Time { return base.Add(time.Second) })
	second, err := store.Create(context.Background(), "segundo ticket")
	require.NoError(t, err)

	snapshot, subscription, err := hub.Subscribe(context.Background())
	require.NoError(t, err)
	defer subscription.Close()

	require.Len(t, snapshot, 2)
	// Most recent created_at first.
	require.Equal(t, second.ID, snapshot[0].ID)
	require.Equal(t, first.ID, snapshot[1].ID)
	require.Equal(t, 1, hub.SubscriberCount())
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub, store := newTestHub(t, 16)

	_, subA, err := hub.Subscribe(context.Background())
	require.NoError(t, err)
	defer subA.Close()
	_, subB, err := hub.Subscribe(context.Background())
	require.NoError(t, err)
	defer subB.Close()

	ticket, err := store.Create(context.Background(), "nuevo ticket")
	require.NoError(t, err)
	hub.Publish(NewInsert(*ticket))

	for _, sub := range []*Subscription{subA, subB} {
		select {
		case event := <-sub.Events:
			require.Equal(t, EventInsert, event.Kind)
			require.Equal(t, ticket.ID, event.Ticket.ID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestPublishDropsStaleEventPerTicket(t *testing.T) {
	hub, _ := newTestHub(t, 16)

	_, subscription, err := hub.Subscribe(context.Background())
	require.NoError(t, err)
	defer subscription.Close()

	created := time.Now()
	newer := ticketAt("a", created, created.Add(2*time.Second))
	older := ticketAt("a", created, created.Add(time.Second))
	other := ticketAt("b", created, created)

	hub.Publish(NewUpdate(newer))
	// Out-of-order redelivery for the same ticket id must not be handed to
	// the subscriber after a newer event.
	hub.Publish(NewUpdate(older))
	hub.Publish(NewInsert(other))

	event := <-subscription.Events
	require.Equal(t, "a", event.Ticket.ID)
	require.Equal(t, newer.UpdatedAt, event.UpdatedAt)

	event = <-subscription.Events
	require.Equal(t, "b", event.Ticket.ID)

	select {
	case event := <-subscription.Events:
		t.Fatalf("unexpected extra event for ticket %s", event.Ticket.ID)
	default:
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	hub, _ := newTestHub(t, 1)

	_, subscription, err := hub.Subscribe(context.Background())
	require.NoError(t, err)
	defer subscription.Close()

	created := time.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			hub.Publish(NewInsert(ticketAt(string(rune('a'+i)), created.Add(time.Duration(i)*time.Millisecond), created)))
		}
	}()

	select {
	case <-done:
		// Publishing completed despite a full buffer of 1; overflow was
		// dropped, not queued.
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestCloseStopsDeliveryPromptly(t *testing.T) {
	hub, store := newTestHub(t, 16)

	_, subscription, err := hub.Subscribe(context.Background())
	require.NoError(t, err)

	subscription.Close()
	require.Equal(t, 0, hub.SubscriberCount())

	ticket, err := store.Create(context.Background(), "tras cierre")
	require.NoError(t, err)
	hub.Publish(NewInsert(*ticket))

	// The channel is closed and drained; no event arrives after Close.
	_, ok := <-subscription.Events
	require.False(t, ok)

	// Closing twice is safe.
	subscription.Close()
}

func TestSubscribeSurfacesFetchError(t *testing.T) {
	hub := NewHub(brokenSource{}, observability.NewCounters(), zap.NewNop(), Config{})

	_, _, err := hub.Subscribe(context.Background())
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeFetchFailed))
	require.Equal(t, 0, hub.SubscriberCount())
}
