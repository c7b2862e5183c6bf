package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/feed"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// Enqueuer hands ticket ids to the classification workers.
type Enqueuer interface {
	Enqueue(ticketID string) bool
}

// TicketService coordinates ticket workflows: submission, listing, and
// handing tickets to the classification pipeline.
type TicketService struct {
	store     repository.TicketStore
	publisher feed.EventPublisher
	enqueuer  Enqueuer
	logger    *zap.Logger
}

// Dependencies bundles collaborators for the ticket service.
type Dependencies struct {
	Store     repository.TicketStore
	Publisher feed.EventPublisher
	Enqueuer  Enqueuer
	Logger    *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps Dependencies) *TicketService {
	return &TicketService{
		store:     deps.Store,
		publisher: deps.Publisher,
		enqueuer:  deps.Enqueuer,
		logger:    deps.Logger,
	}
}

// Create persists a new unprocessed ticket, announces the insert on the
// change feed, and enqueues classification. Feed publication and enqueueing
// are best effort and never fail the submission.
func (s *TicketService) Create(ctx context.Context, description string) (*domain.Ticket, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperrors.NewValidationError("description must not be empty", nil)
	}

	ticket, err := s.store.Create(ctx, description)
	if err != nil {
		return nil, apperrors.NewStoreWriteError(err)
	}

	if s.publisher != nil {
		s.publisher.Publish(feed.NewInsert(*ticket))
	}
	if s.enqueuer != nil && !s.enqueuer.Enqueue(ticket.ID) {
		s.logger.Warn("classification queue full; ticket will be picked up by backlog sweep",
			zap.String("ticket_id", ticket.ID))
	}

	return ticket, nil
}

// Get returns one ticket by id.
func (s *TicketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return ticket, nil
}

// List returns tickets ordered by created_at descending, optionally filtered
// by processed state, category, and sentiment.
func (s *TicketService) List(ctx context.Context, filter repository.ListFilter) ([]domain.Ticket, error) {
	tickets, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewFetchError(err)
	}
	return tickets, nil
}

// Reprocess re-enqueues a ticket for classification. The pipeline coalesces
// concurrent runs per id and overwrites deterministically, so re-invoking is
// safe for processed and terminal-failed tickets alike.
func (s *TicketService) Reprocess(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}

	if s.enqueuer == nil || !s.enqueuer.Enqueue(ticket.ID) {
		return nil, apperrors.NewInternalError(nil)
	}
	return ticket, nil
}
