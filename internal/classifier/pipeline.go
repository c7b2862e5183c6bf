package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/feed"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// Config tunes pipeline timeouts and the retry policy.
type Config struct {
	SentimentTimeout time.Duration
	RequestTimeout   time.Duration
	MaxRetries       int
	InitialBackoff   time.Duration
}

func (c Config) withDefaults() Config {
	if c.SentimentTimeout <= 0 {
		c.SentimentTimeout = 200 * time.Millisecond
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	return c
}

// Pipeline runs the two-stage classification and finalizes the ticket record.
type Pipeline struct {
	store     repository.TicketStore
	analyzer  SentimentAnalyzer
	provider  CategoryProvider
	publisher feed.EventPublisher
	counters  *observability.Counters
	logger    *zap.Logger
	cfg       Config

	group singleflight.Group
}

// NewPipeline constructs the pipeline.
func NewPipeline(
	store repository.TicketStore,
	analyzer SentimentAnalyzer,
	provider CategoryProvider,
	publisher feed.EventPublisher,
	counters *observability.Counters,
	logger *zap.Logger,
	cfg Config,
) *Pipeline {
	return &Pipeline{
		store:     store,
		analyzer:  analyzer,
		provider:  provider,
		publisher: publisher,
		counters:  counters,
		logger:    logger,
		cfg:       cfg.withDefaults(),
	}
}

// Process classifies the ticket and commits the result in one atomic store
// update. Concurrent calls for the same id coalesce into a single run, so at
// most one provider call is in flight per ticket. Reprocessing an already
// processed ticket is safe: the finalize overwrites with the latest result.
func (p *Pipeline) Process(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	v, err, _ := p.group.Do(ticketID, func() (any, error) {
		return p.run(ctx, ticketID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Ticket), nil
}

func (p *Pipeline) run(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := p.store.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}

	start := time.Now()

	// Stage A runs alongside stage B and joins at finalize; its fallback
	// value counts as a result.
	sentimentCh := make(chan SentimentResult, 1)
	go func() {
		sentimentCh <- p.analyzeSentiment(ctx, ticket.Description)
	}()

	category, attempts, err := p.classifyCategory(ctx, ticket.Description)
	sentiment := <-sentimentCh

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, p.failTerminally(ctx, ticketID, attempts, err)
	}

	result := domain.ClassificationResult{
		Category:         category.Category,
		Sentiment:        sentiment.Sentiment,
		Confidence:       blendConfidence(category.Confidence, sentiment.Confidence),
		Reasoning:        category.Reasoning,
		Keywords:         category.Keywords,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		LLMModel:         p.provider.Model(),
	}

	updated, err := p.finalize(ctx, ticketID, result)
	if err != nil {
		return nil, err
	}

	p.counters.RecordClassification()
	p.logger.Info("ticket classified",
		zap.String("ticket_id", ticketID),
		zap.String("category", string(result.Category)),
		zap.String("sentiment", string(result.Sentiment)),
		zap.Float64("confidence", result.Confidence),
		zap.Int64("processing_time_ms", result.ProcessingTimeMS),
		zap.Int("attempts", attempts))

	p.publish(feed.NewUpdate(*updated))
	return updated, nil
}

func (p *Pipeline) analyzeSentiment(ctx context.Context, description string) SentimentResult {
	stageCtx, cancel := context.WithTimeout(ctx, p.cfg.SentimentTimeout)
	defer cancel()

	resultCh := make(chan SentimentResult, 1)
	errCh := make(chan error, 1)
	go func() {
		result, err := p.analyzer.Analyze(stageCtx, description)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		return result
	case err := <-errCh:
		p.counters.RecordSentimentFallback()
		p.logger.Warn("sentiment analysis failed, using neutral fallback", zap.Error(err))
		return FallbackSentiment()
	case <-stageCtx.Done():
		p.counters.RecordSentimentFallback()
		p.logger.Warn("sentiment analysis timed out, using neutral fallback")
		return FallbackSentiment()
	}
}

// classifyCategory calls the provider with bounded exponential backoff.
// Validation failures are retried like transient ones; returns the attempt
// count alongside the last error when the budget is exhausted.
func (p *Pipeline) classifyCategory(ctx context.Context, description string) (CategoryResult, int, error) {
	maxAttempts := p.cfg.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
		result, err := p.provider.Classify(attemptCtx, description)
		cancel()

		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || !apperrors.IsRetryableClassification(err) {
			return CategoryResult{}, attempt, err
		}
		if attempt == maxAttempts {
			break
		}

		p.counters.RecordRetry()
		backoff := p.cfg.InitialBackoff << (attempt - 1)
		p.logger.Warn("category classification retry",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return CategoryResult{}, attempt, ctx.Err()
		}
	}

	return CategoryResult{}, maxAttempts, lastErr
}

// failTerminally records the distinguishable terminal-failed state so the
// ticket can be found for manual reprocessing.
func (p *Pipeline) failTerminally(ctx context.Context, ticketID string, attempts int, cause error) error {
	p.counters.RecordTerminalFailure()

	reason := fmt.Sprintf("clasificación fallida tras %d intentos: %v", attempts, cause)
	failed, err := p.store.MarkFailed(ctx, ticketID, reason, p.provider.Model())
	if err != nil {
		p.logger.Error("unable to record terminal failure",
			zap.String("ticket_id", ticketID), zap.Error(err))
	} else {
		p.publish(feed.NewUpdate(*failed))
	}

	p.logger.Error("classification terminally failed",
		zap.String("ticket_id", ticketID),
		zap.Int("attempts", attempts),
		zap.Error(cause))
	return apperrors.NewTerminalClassificationFailure(attempts, cause)
}

// finalize commits the result atomically; the write is retried once because
// finalize is idempotent.
func (p *Pipeline) finalize(ctx context.Context, ticketID string, result domain.ClassificationResult) (*domain.Ticket, error) {
	updated, err := p.store.Finalize(ctx, ticketID, result)
	if err == nil {
		return updated, nil
	}

	p.logger.Warn("finalize write failed, retrying",
		zap.String("ticket_id", ticketID), zap.Error(err))
	updated, err = p.store.Finalize(ctx, ticketID, result)
	if err != nil {
		return nil, apperrors.NewStoreWriteError(err)
	}
	return updated, nil
}

func (p *Pipeline) publish(event feed.Event) {
	if p.publisher == nil {
		return
	}
	p.publisher.Publish(event)
}

// blendConfidence weights the category stage at 60% and the sentiment stage
// at 40%, rounded to 3 decimals.
func blendConfidence(category, sentiment float64) float64 {
	return math.Round((category*0.6+sentiment*0.4)*1000) / 1000
}
