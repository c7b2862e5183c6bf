package dto

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Description string `json:"description"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID               string                  `json:"id"`
	CreatedAt        time.Time               `json:"created_at"`
	Description      string                  `json:"description"`
	Category         *domain.TicketCategory  `json:"category"`
	Sentiment        *domain.TicketSentiment `json:"sentiment"`
	Processed        bool                    `json:"processed"`
	Confidence       *float64                `json:"confidence"`
	Reasoning        *string                 `json:"reasoning"`
	Keywords         []string                `json:"keywords"`
	ProcessingTimeMS *int64                  `json:"processing_time_ms"`
	LLMModel         *string                 `json:"llm_model"`
	UpdatedAt        time.Time               `json:"updated_at"`
	TerminalFailed   bool                    `json:"terminal_failed"`
}

// FromTicket maps the domain aggregate to its API shape.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:               t.ID,
		CreatedAt:        t.CreatedAt,
		Description:      t.Description,
		Category:         t.Category,
		Sentiment:        t.Sentiment,
		Processed:        t.Processed,
		Confidence:       t.Confidence,
		Reasoning:        t.Reasoning,
		Keywords:         t.Keywords,
		ProcessingTimeMS: t.ProcessingTimeMS,
		LLMModel:         t.LLMModel,
		UpdatedAt:        t.UpdatedAt,
		TerminalFailed:   t.TerminalFailed(),
	}
}

// FromTickets maps a slice of tickets.
func FromTickets(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, FromTicket(&tickets[i]))
	}
	return items
}

// StreamMessage is one websocket frame: either the initial snapshot or a
// single change event.
type StreamMessage struct {
	Type     string           `json:"type"`
	Snapshot []TicketResponse `json:"snapshot,omitempty"`
	Kind     string           `json:"kind,omitempty"`
	Ticket   *TicketResponse  `json:"ticket,omitempty"`
}
