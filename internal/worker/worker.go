package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/classifier"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

// Pool runs classification concurrently across distinct ticket ids. The
// pipeline's per-id coalescing guarantees at most one run in flight per
// ticket, so duplicate jobs for the same id are harmless.
type Pool struct {
	pipeline *classifier.Pipeline
	store    repository.TicketStore
	logger   *zap.Logger

	workers int
	jobs    chan string
	wg      sync.WaitGroup
	once    sync.Once
}

// NewPool creates a pool with the given worker count and queue size.
func NewPool(pipeline *classifier.Pipeline, store repository.TicketStore, logger *zap.Logger, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Pool{
		pipeline: pipeline,
		store:    store,
		logger:   logger,
		workers:  workers,
		jobs:     make(chan string, queueSize),
	}
}

// Enqueue queues a ticket for classification; returns false when the queue
// is full (the backlog sweep will pick the ticket up later).
func (p *Pool) Enqueue(ticketID string) bool {
	select {
	case p.jobs <- ticketID:
		return true
	default:
		return false
	}
}

// Start launches the workers and re-enqueues the unprocessed backlog so
// tickets submitted while the service was down still get classified.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}

	backlog, err := p.store.ListUnprocessed(ctx, cap(p.jobs))
	if err != nil {
		p.logger.Warn("unable to load unprocessed backlog", zap.Error(err))
		return
	}
	for _, ticket := range backlog {
		if !p.Enqueue(ticket.ID) {
			break
		}
	}
	if len(backlog) > 0 {
		p.logger.Info("re-enqueued unprocessed backlog", zap.Int("count", len(backlog)))
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ticketID, ok := <-p.jobs:
			if !ok {
				return
			}
			p.processSafe(ctx, ticketID)
		}
	}
}

// processSafe isolates one job: a panic or error in one ticket's
// classification never stops ingestion of the rest.
func (p *Pool) processSafe(ctx context.Context, ticketID string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic recovered in classification job",
				zap.Any("panic", r),
				zap.String("ticket_id", ticketID))
		}
	}()

	if _, err := p.pipeline.Process(ctx, ticketID); err != nil {
		p.logger.Error("classification job failed",
			zap.String("ticket_id", ticketID),
			zap.Error(err))
	}
}
