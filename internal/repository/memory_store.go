package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// MemoryStore is an in-process TicketStore. It backs the service when no
// POSTGRES_DSN is configured and serves as the store double in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets: make(map[string]domain.Ticket),
		now:     time.Now,
	}
}

// SetClock overrides the store clock, for tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Create(ctx context.Context, description string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	ticket := domain.Ticket{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		Description: description,
		Processed:   false,
		UpdatedAt:   now,
	}
	m.tickets[ticket.ID] = ticket
	out := ticket
	return &out, nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := ticket
	return &out, nil
}

func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]domain.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range m.tickets {
		if filter.Processed != nil && ticket.Processed != *filter.Processed {
			continue
		}
		if filter.Category != nil && (ticket.Category == nil || *ticket.Category != *filter.Category) {
			continue
		}
		if filter.Sentiment != nil && (ticket.Sentiment == nil || *ticket.Sentiment != *filter.Sentiment) {
			continue
		}
		result = append(result, ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) ListUnprocessed(ctx context.Context, limit int) ([]domain.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range m.tickets {
		if ticket.Processed || ticket.Reasoning != nil {
			continue
		}
		result = append(result, ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit <= 0 {
		limit = 100
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) Finalize(ctx context.Context, id string, result domain.ClassificationResult) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}

	category := result.Category
	sentiment := result.Sentiment
	confidence := result.Confidence
	reasoning := result.Reasoning
	processingTime := result.ProcessingTimeMS
	model := truncateModel(result.LLMModel)

	ticket.Category = &category
	ticket.Sentiment = &sentiment
	ticket.Processed = true
	ticket.Confidence = &confidence
	ticket.Reasoning = &reasoning
	ticket.Keywords = append([]string(nil), result.Keywords...)
	ticket.ProcessingTimeMS = &processingTime
	ticket.LLMModel = &model
	ticket.UpdatedAt = m.bump(ticket.UpdatedAt)

	m.tickets[id] = ticket
	out := ticket
	return &out, nil
}

func (m *MemoryStore) MarkFailed(ctx context.Context, id, reason, model string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}

	truncated := truncateModel(model)
	ticket.Processed = false
	ticket.Category = nil
	ticket.Sentiment = nil
	ticket.Confidence = nil
	ticket.Keywords = nil
	ticket.ProcessingTimeMS = nil
	ticket.Reasoning = &reason
	ticket.LLMModel = &truncated
	ticket.UpdatedAt = m.bump(ticket.UpdatedAt)

	m.tickets[id] = ticket
	out := ticket
	return &out, nil
}

// Delete removes a ticket. The core never deletes; this models the external
// administrative action so delete propagation can be exercised.
func (m *MemoryStore) Delete(ctx context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	delete(m.tickets, id)
	ticket.UpdatedAt = m.bump(ticket.UpdatedAt)
	out := ticket
	return &out, nil
}

// bump guarantees updated_at strictly increases per ticket even when the
// clock has not advanced between writes.
func (m *MemoryStore) bump(prev time.Time) time.Time {
	now := m.now()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
