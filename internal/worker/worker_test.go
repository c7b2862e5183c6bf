package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/classifier"
	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

type scriptedProvider struct {
	results chan classifier.CategoryResult
}

func (p *scriptedProvider) Classify(ctx context.Context, description string) (classifier.CategoryResult, error) {
	select {
	case result := <-p.results:
		return result, nil
	default:
		return classifier.CategoryResult{}, errors.New("unscripted provider call")
	}
}

func (p *scriptedProvider) Model() string { return "scripted" }

func scripted(n int) *scriptedProvider {
	p := &scriptedProvider{results: make(chan classifier.CategoryResult, n)}
	for i := 0; i < n; i++ {
		p.results <- classifier.CategoryResult{
			Category:   domain.CategoryTecnico,
			Reasoning:  "fallo reportado",
			Confidence: 0.8,
		}
	}
	return p
}

func newTestPool(t *testing.T, store *repository.MemoryStore, provider classifier.CategoryProvider, workers, queueSize int) *Pool {
	t.Helper()
	logger := zap.NewNop()
	pipeline := classifier.NewPipeline(
		store,
		classifier.NewLexiconAnalyzer(),
		provider,
		nil,
		observability.NewCounters(),
		logger,
		classifier.Config{InitialBackoff: time.Millisecond},
	)
	return NewPool(pipeline, store, logger, workers, queueSize)
}

func TestStartDrainsUnprocessedBacklog(t *testing.T) {
	store := repository.NewMemoryStore()
	for i := 0; i < 3; i++ {
		_, err := store.Create(context.Background(), "ticket pendiente")
		require.NoError(t, err)
	}

	pool := newTestPool(t, store, scripted(3), 2, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	require.Eventually(t, func() bool {
		pending, err := store.ListUnprocessed(context.Background(), 10)
		return err == nil && len(pending) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEnqueueReportsFullQueue(t *testing.T) {
	store := repository.NewMemoryStore()
	pool := newTestPool(t, store, scripted(0), 1, 1)

	// Workers not started, so the single queue slot fills immediately.
	require.True(t, pool.Enqueue("first"))
	require.False(t, pool.Enqueue("second"))
}

func TestPoolSurvivesFailingJobs(t *testing.T) {
	store := repository.NewMemoryStore()
	// One scripted result; the unknown-id job before it fails.
	pool := newTestPool(t, store, scripted(1), 1, 16)

	ticket, err := store.Create(context.Background(), "ticket real")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	require.True(t, pool.Enqueue("missing-ticket-id"))
	require.True(t, pool.Enqueue(ticket.ID))

	require.Eventually(t, func() bool {
		stored, err := store.GetByID(context.Background(), ticket.ID)
		return err == nil && stored.Processed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopWaitsForInFlightJobs(t *testing.T) {
	store := repository.NewMemoryStore()
	ticket, err := store.Create(context.Background(), "ticket en vuelo")
	require.NoError(t, err)

	pool := newTestPool(t, store, scripted(1), 1, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	require.True(t, pool.Enqueue(ticket.ID))
	pool.Stop()

	stored, err := store.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.True(t, stored.Processed)
}
