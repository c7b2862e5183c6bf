package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/classifier"
	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/feed"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/worker"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// stubProvider returns a fixed category without talking to an LLM.
type stubProvider struct{}

func (stubProvider) Classify(ctx context.Context, description string) (classifier.CategoryResult, error) {
	return classifier.CategoryResult{
		Category:   domain.CategoryTecnico,
		Reasoning:  "el cliente reporta un fallo del servicio",
		Confidence: 0.9,
		Keywords:   []string{"internet", "no funciona"},
		Latency:    time.Millisecond,
	}, nil
}

func (stubProvider) Model() string { return "stub-model" }

type fixture struct {
	store   *repository.MemoryStore
	hub     *feed.Hub
	pool    *worker.Pool
	service *TicketService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zap.NewNop()
	counters := observability.NewCounters()
	store := repository.NewMemoryStore()
	hub := feed.NewHub(store, counters, logger, feed.Config{})

	pipeline := classifier.NewPipeline(
		store,
		classifier.NewLexiconAnalyzer(),
		stubProvider{},
		hub,
		counters,
		logger,
		classifier.Config{InitialBackoff: time.Millisecond},
	)

	pool := worker.NewPool(pipeline, store, logger, 2, 16)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		pool.Stop()
		cancel()
	})

	svc := NewTicketService(Dependencies{
		Store:     store,
		Publisher: hub,
		Enqueuer:  pool,
		Logger:    logger,
	})
	return &fixture{store: store, hub: hub, pool: pool, service: svc}
}

func TestCreateRejectsEmptyDescription(t *testing.T) {
	f := newFixture(t)

	for _, description := range []string{"", "   ", "\n\t"} {
		_, err := f.service.Create(context.Background(), description)
		require.Error(t, err)
		require.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
	}
}

func TestCreateClassifiesAndPublishesInsertThenUpdate(t *testing.T) {
	f := newFixture(t)

	_, subscription, err := f.hub.Subscribe(context.Background())
	require.NoError(t, err)
	defer subscription.Close()

	ticket, err := f.service.Create(context.Background(), "mi internet no funciona desde ayer, es urgente")
	require.NoError(t, err)
	require.False(t, ticket.Processed)
	require.Nil(t, ticket.Category)

	// First the insert for the raw submission.
	var event feed.Event
	select {
	case event = <-subscription.Events:
	case <-time.After(2 * time.Second):
		t.Fatal("insert event never arrived")
	}
	require.Equal(t, feed.EventInsert, event.Kind)
	require.Equal(t, ticket.ID, event.Ticket.ID)
	require.False(t, event.Ticket.Processed)

	// Then exactly one update carrying the full classification.
	select {
	case event = <-subscription.Events:
	case <-time.After(2 * time.Second):
		t.Fatal("classification update never arrived")
	}
	require.Equal(t, feed.EventUpdate, event.Kind)
	require.Equal(t, ticket.ID, event.Ticket.ID)
	require.True(t, event.Ticket.Processed)
	require.NotNil(t, event.Ticket.Category)
	require.Equal(t, domain.CategoryTecnico, *event.Ticket.Category)
	require.NotNil(t, event.Ticket.Sentiment)
	require.Equal(t, domain.SentimentNegativo, *event.Ticket.Sentiment)
	require.NotNil(t, event.Ticket.Confidence)
	require.NotNil(t, event.Ticket.ProcessingTimeMS)

	select {
	case extra := <-subscription.Events:
		t.Fatalf("unexpected extra event %s for ticket %s", extra.Kind, extra.Ticket.ID)
	case <-time.After(100 * time.Millisecond):
	}

	stored, err := f.service.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.True(t, stored.Processed)
	require.Equal(t, event.Ticket.UpdatedAt, stored.UpdatedAt)
}

func TestGetUnknownTicketReturnsNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Get(context.Background(), "no-such-id")
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestListFiltersByProcessedState(t *testing.T) {
	f := newFixture(t)

	created, err := f.service.Create(context.Background(), "consulta sobre el plan comercial")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		ticket, err := f.store.GetByID(context.Background(), created.ID)
		return err == nil && ticket.Processed
	}, 2*time.Second, 10*time.Millisecond)

	processed := true
	tickets, err := f.service.List(context.Background(), repository.ListFilter{Processed: &processed})
	require.NoError(t, err)
	require.Len(t, tickets, 1)

	pending := false
	tickets, err = f.service.List(context.Background(), repository.ListFilter{Processed: &pending})
	require.NoError(t, err)
	require.Empty(t, tickets)
}

func TestReprocessOverwritesDeterministically(t *testing.T) {
	f := newFixture(t)

	created, err := f.service.Create(context.Background(), "error al pagar la factura")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		ticket, err := f.store.GetByID(context.Background(), created.ID)
		return err == nil && ticket.Processed
	}, 2*time.Second, 10*time.Millisecond)

	first, err := f.store.GetByID(context.Background(), created.ID)
	require.NoError(t, err)

	_, err = f.service.Reprocess(context.Background(), created.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		ticket, err := f.store.GetByID(context.Background(), created.ID)
		return err == nil && ticket.UpdatedAt.After(first.UpdatedAt)
	}, 2*time.Second, 10*time.Millisecond)

	second, err := f.store.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.True(t, second.Processed)
	require.Equal(t, *first.Category, *second.Category)

	_, err = f.service.Reprocess(context.Background(), "no-such-id")
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
