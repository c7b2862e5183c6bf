package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

func TestLexiconAnalyzerNegative(t *testing.T) {
	analyzer := NewLexiconAnalyzer()

	result, err := analyzer.Analyze(context.Background(), "Mi internet no funciona desde ayer, es urgente y el servicio está caído")
	require.NoError(t, err)
	require.Equal(t, domain.SentimentNegativo, result.Sentiment)
	require.Greater(t, result.Confidence, 0.5)
	require.LessOrEqual(t, result.Confidence, 0.9)
	require.Contains(t, result.Reasoning, "expresiones negativas")
	require.Equal(t, lexiconModelName, result.Model)
}

func TestLexiconAnalyzerPositive(t *testing.T) {
	analyzer := NewLexiconAnalyzer()

	result, err := analyzer.Analyze(context.Background(), "Gracias por el excelente servicio, todo perfecto")
	require.NoError(t, err)
	require.Equal(t, domain.SentimentPositivo, result.Sentiment)
	require.Contains(t, result.Reasoning, "expresiones positivas")
}

func TestLexiconAnalyzerNeutral(t *testing.T) {
	analyzer := NewLexiconAnalyzer()

	result, err := analyzer.Analyze(context.Background(), "Quisiera información sobre los planes disponibles")
	require.NoError(t, err)
	require.Equal(t, domain.SentimentNeutral, result.Sentiment)
	require.Equal(t, 0.5, result.Confidence)
}

func TestLexiconAnalyzerCancelledContext(t *testing.T) {
	analyzer := NewLexiconAnalyzer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analyzer.Analyze(ctx, "no funciona")
	require.Error(t, err)
}

func TestFallbackSentimentIsNeutral(t *testing.T) {
	fallback := FallbackSentiment()
	require.Equal(t, domain.SentimentNeutral, fallback.Sentiment)
	require.Equal(t, 0.5, fallback.Confidence)
	require.Equal(t, "fallback", fallback.Model)
}
