package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// SentimentResult is the output of the sentiment stage.
type SentimentResult struct {
	Sentiment  domain.TicketSentiment
	Confidence float64
	Reasoning  string
	Model      string
	Latency    time.Duration
}

// SentimentAnalyzer performs local sentiment inference. Implementations must
// not perform network I/O.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) (SentimentResult, error)
}

// FallbackSentiment is the result used when the sentiment stage fails or
// times out; the pipeline continues with it rather than aborting.
func FallbackSentiment() SentimentResult {
	return SentimentResult{
		Sentiment:  domain.SentimentNeutral,
		Confidence: 0.5,
		Reasoning:  "No se pudo determinar el sentimiento con precisión",
		Model:      "fallback",
	}
}

const lexiconModelName = "lexicon-es-v1"

var (
	positiveExpressions = []string{
		"excelente", "genial", "gracias", "perfecto", "bien", "bueno", "feliz", "contento",
	}
	negativeExpressions = []string{
		"problema", "error", "no funciona", "mal", "urgente", "frustrado", "malo", "caído",
	}
)

// LexiconAnalyzer scores Spanish support text against positive and negative
// expression lists.
type LexiconAnalyzer struct{}

// NewLexiconAnalyzer returns the default local analyzer.
func NewLexiconAnalyzer() *LexiconAnalyzer {
	return &LexiconAnalyzer{}
}

// Analyze classifies the text's sentiment. The computation is local and
// bounded; ctx is honored between phases for callers that impose a deadline.
func (a *LexiconAnalyzer) Analyze(ctx context.Context, text string) (SentimentResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return SentimentResult{}, err
	}

	lower := strings.ToLower(text)

	var foundPositive, foundNegative []string
	for _, expr := range positiveExpressions {
		if strings.Contains(lower, expr) {
			foundPositive = append(foundPositive, expr)
		}
	}
	for _, expr := range negativeExpressions {
		if strings.Contains(lower, expr) {
			foundNegative = append(foundNegative, expr)
		}
	}

	sentiment := domain.SentimentNeutral
	matches := 0
	switch {
	case len(foundNegative) > len(foundPositive):
		sentiment = domain.SentimentNegativo
		matches = len(foundNegative)
	case len(foundPositive) > len(foundNegative):
		sentiment = domain.SentimentPositivo
		matches = len(foundPositive)
	}

	confidence := 0.5
	if matches > 0 {
		confidence = 0.6 + 0.1*float64(matches)
		if confidence > 0.9 {
			confidence = 0.9
		}
	}

	return SentimentResult{
		Sentiment:  sentiment,
		Confidence: confidence,
		Reasoning:  sentimentReasoning(sentiment, foundPositive, foundNegative, confidence),
		Model:      lexiconModelName,
		Latency:    time.Since(start),
	}, nil
}

func sentimentReasoning(sentiment domain.TicketSentiment, positive, negative []string, confidence float64) string {
	switch {
	case sentiment == domain.SentimentPositivo && len(positive) > 0:
		return fmt.Sprintf("Detectadas expresiones positivas: %s", strings.Join(head(positive, 2), ", "))
	case sentiment == domain.SentimentNegativo && len(negative) > 0:
		return fmt.Sprintf("Detectadas expresiones negativas: %s", strings.Join(head(negative, 2), ", "))
	case confidence > 0.8:
		return fmt.Sprintf("El tono general del mensaje indica sentimiento %s", strings.ToLower(string(sentiment)))
	default:
		return fmt.Sprintf("Sentimiento %s detectado con confianza moderada", strings.ToLower(string(sentiment)))
	}
}

func head(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
