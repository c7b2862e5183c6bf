package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/domain"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// CategoryResult is the validated output of the category stage.
type CategoryResult struct {
	Category   domain.TicketCategory
	Reasoning  string
	Confidence float64
	Keywords   []string
	Latency    time.Duration
}

// CategoryProvider classifies a ticket description via an external inference
// service. Implementations return ValidationError for contract violations and
// TransientProviderError for failures worth retrying.
type CategoryProvider interface {
	Classify(ctx context.Context, description string) (CategoryResult, error)
	Model() string
}

// categoryResponse is the strict wire contract with the provider.
type categoryResponse struct {
	Category          string   `json:"category" jsonschema:"enum=Técnico,enum=Facturación,enum=Comercial" jsonschema_description:"Categoría del ticket"`
	CategoryReasoning string   `json:"category_reasoning" jsonschema_description:"Explicación breve de la categoría elegida"`
	Confidence        float64  `json:"confidence" jsonschema_description:"Nivel de confianza entre 0.0 y 1.0"`
	Keywords          []string `json:"keywords" jsonschema_description:"Palabras clave más relevantes del ticket"`
}

var categorySchema = generateSchema[categoryResponse]()

func generateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

type openAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider builds the category provider against any
// OpenAI-compatible endpoint (the default configuration targets Groq).
func NewOpenAIProvider(cfg config.LLMConfig) (CategoryProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "llama-3.1-8b-instant"
	}

	return &openAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (p *openAIProvider) Model() string {
	return p.model
}

func (p *openAIProvider) Classify(ctx context.Context, description string) (CategoryResult, error) {
	start := time.Now()

	params := openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(categorySystemPrompt),
			openai.UserMessage(fmt.Sprintf(categoryUserPromptFormat, description)),
		},
		MaxTokens:   openai.Int(500),
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "ticket_category",
					Description: openai.String("Clasificación estructurada de un ticket de soporte"),
					Schema:      categorySchema,
					Strict:      openai.Bool(true),
				},
			},
		},
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return CategoryResult{}, classifyProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return CategoryResult{}, apperrors.NewValidationError("provider returned no choices", nil)
	}

	var parsed categoryResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return CategoryResult{}, apperrors.NewValidationError("provider response is not valid JSON",
			map[string]any{"error": err.Error()})
	}

	result, err := validateCategoryResponse(parsed)
	if err != nil {
		return CategoryResult{}, err
	}
	result.Latency = time.Since(start)
	return result, nil
}

// validateCategoryResponse enforces the strict response contract; any
// deviation is a ValidationError, never silently accepted.
func validateCategoryResponse(parsed categoryResponse) (CategoryResult, error) {
	category := domain.TicketCategory(parsed.Category)
	if !category.Valid() {
		return CategoryResult{}, apperrors.NewValidationError("unknown category in provider response",
			map[string]any{"category": parsed.Category})
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return CategoryResult{}, apperrors.NewValidationError("confidence out of range",
			map[string]any{"confidence": parsed.Confidence})
	}
	return CategoryResult{
		Category:   category,
		Reasoning:  parsed.CategoryReasoning,
		Confidence: parsed.Confidence,
		Keywords:   parsed.Keywords,
	}, nil
}

// classifyProviderError maps transport failures to the error taxonomy.
// Rate limits, server errors and network failures are transient; context
// cancellation and other client errors are not.
func classifyProviderError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTransientProviderError(err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return apperrors.NewTransientProviderError(err)
		case apiErr.StatusCode >= 500:
			return apperrors.NewTransientProviderError(err)
		default:
			return apperrors.NewInternalError(err)
		}
	}

	// No API response at all: treat as a network failure.
	return apperrors.NewTransientProviderError(err)
}
