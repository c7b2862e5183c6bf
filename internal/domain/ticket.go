package domain

import "time"

// TicketCategory enumerates the closed set of triage categories.
type TicketCategory string

const (
	CategoryTecnico     TicketCategory = "Técnico"
	CategoryFacturacion TicketCategory = "Facturación"
	CategoryComercial   TicketCategory = "Comercial"
)

// Valid reports whether the category is one of the known values.
func (c TicketCategory) Valid() bool {
	switch c {
	case CategoryTecnico, CategoryFacturacion, CategoryComercial:
		return true
	}
	return false
}

// Categories returns every known category in declaration order.
func Categories() []TicketCategory {
	return []TicketCategory{CategoryTecnico, CategoryFacturacion, CategoryComercial}
}

// TicketSentiment enumerates detected customer sentiment.
type TicketSentiment string

const (
	SentimentPositivo TicketSentiment = "Positivo"
	SentimentNeutral  TicketSentiment = "Neutral"
	SentimentNegativo TicketSentiment = "Negativo"
)

// Valid reports whether the sentiment is one of the known values.
func (s TicketSentiment) Valid() bool {
	switch s {
	case SentimentPositivo, SentimentNeutral, SentimentNegativo:
		return true
	}
	return false
}

// LLMModelMaxLen is the column limit for the llm_model field.
const LLMModelMaxLen = 200

// Ticket is the aggregate for support requests augmented with AI-derived
// classification results. Result fields stay nil until the ticket has been
// classified; they are committed together in one finalize write.
type Ticket struct {
	ID               string
	CreatedAt        time.Time
	Description      string
	Category         *TicketCategory
	Sentiment        *TicketSentiment
	Processed        bool
	Confidence       *float64
	Reasoning        *string
	Keywords         []string
	ProcessingTimeMS *int64
	LLMModel         *string
	UpdatedAt        time.Time
}

// TerminalFailed reports whether classification was attempted and gave up.
// Failed tickets carry the failure description in Reasoning while remaining
// unprocessed, which keeps them distinguishable from never-attempted ones.
func (t *Ticket) TerminalFailed() bool {
	return !t.Processed && t.Reasoning != nil
}

// ClassificationResult holds the joined output of both pipeline stages.
type ClassificationResult struct {
	Category         TicketCategory
	Sentiment        TicketSentiment
	Confidence       float64
	Reasoning        string
	Keywords         []string
	ProcessingTimeMS int64
	LLMModel         string
}
