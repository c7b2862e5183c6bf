package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// ListFilter captures ticket listing parameters. Results are always ordered
// by created_at descending.
type ListFilter struct {
	Processed *bool
	Category  *domain.TicketCategory
	Sentiment *domain.TicketSentiment
	Limit     int
}

// TicketStore encapsulates ticket persistence. Finalize and MarkFailed are
// single atomic statements: every result column and updated_at commit
// together or not at all.
type TicketStore interface {
	Create(ctx context.Context, description string) (*domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Ticket, error)
	ListUnprocessed(ctx context.Context, limit int) ([]domain.Ticket, error)
	Finalize(ctx context.Context, id string, result domain.ClassificationResult) (*domain.Ticket, error)
	MarkFailed(ctx context.Context, id, reason, model string) (*domain.Ticket, error)
}

type ticketStore struct {
	pool *pgxpool.Pool
}

// NewTicketStore instantiates the postgres-backed store.
func NewTicketStore(pool *pgxpool.Pool) TicketStore {
	return &ticketStore{pool: pool}
}

const ticketColumns = `id, created_at, description, category, sentiment, processed,
       confidence, reasoning, keywords, processing_time_ms, llm_model, updated_at`

func (r *ticketStore) Create(ctx context.Context, description string) (*domain.Ticket, error) {
	const query = `
        INSERT INTO tickets (description, processed)
        VALUES ($1, FALSE)
        RETURNING ` + ticketColumns
	return r.fetchRow(r.pool.QueryRow(ctx, query, description))
}

func (r *ticketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchRow(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketStore) List(ctx context.Context, filter ListFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Processed != nil {
		args = append(args, *filter.Processed)
		clauses = append(clauses, fmt.Sprintf("processed=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.Sentiment != nil {
		args = append(args, *filter.Sentiment)
		clauses = append(clauses, fmt.Sprintf("sentiment=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d`,
		base, strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketStore) ListUnprocessed(ctx context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	// reasoning IS NULL excludes terminal-failed tickets from the backlog.
	query := fmt.Sprintf(`SELECT `+ticketColumns+`
        FROM tickets WHERE processed=FALSE AND reasoning IS NULL
        ORDER BY created_at ASC LIMIT %d`, limit)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketStore) Finalize(ctx context.Context, id string, result domain.ClassificationResult) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets SET category=$1, sentiment=$2, processed=TRUE, confidence=$3,
            reasoning=$4, keywords=$5, processing_time_ms=$6, llm_model=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING ` + ticketColumns
	model := truncateModel(result.LLMModel)
	return r.fetchRow(r.pool.QueryRow(ctx, query,
		result.Category,
		result.Sentiment,
		result.Confidence,
		result.Reasoning,
		result.Keywords,
		result.ProcessingTimeMS,
		model,
		id,
	))
}

func (r *ticketStore) MarkFailed(ctx context.Context, id, reason, model string) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets SET processed=FALSE, category=NULL, sentiment=NULL, confidence=NULL,
            keywords=NULL, processing_time_ms=NULL, reasoning=$1, llm_model=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING ` + ticketColumns
	return r.fetchRow(r.pool.QueryRow(ctx, query, reason, truncateModel(model), id))
}

func (r *ticketStore) fetchRow(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.CreatedAt,
		&ticket.Description,
		&ticket.Category,
		&ticket.Sentiment,
		&ticket.Processed,
		&ticket.Confidence,
		&ticket.Reasoning,
		&ticket.Keywords,
		&ticket.ProcessingTimeMS,
		&ticket.LLMModel,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.CreatedAt,
			&ticket.Description,
			&ticket.Category,
			&ticket.Sentiment,
			&ticket.Processed,
			&ticket.Confidence,
			&ticket.Reasoning,
			&ticket.Keywords,
			&ticket.ProcessingTimeMS,
			&ticket.LLMModel,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func truncateModel(model string) string {
	if len(model) > domain.LLMModelMaxLen {
		return model[:domain.LLMModelMaxLen-3] + "..."
	}
	return model
}
