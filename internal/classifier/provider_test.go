package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-triage/internal/domain"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

func TestValidateCategoryResponseAccepts(t *testing.T) {
	result, err := validateCategoryResponse(categoryResponse{
		Category:          "Técnico",
		CategoryReasoning: "El ticket menciona problemas de conectividad",
		Confidence:        0.87,
		Keywords:          []string{"internet", "no funciona"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.CategoryTecnico, result.Category)
	require.Equal(t, 0.87, result.Confidence)
	require.Equal(t, []string{"internet", "no funciona"}, result.Keywords)
}

func TestValidateCategoryResponseRejectsUnknownCategory(t *testing.T) {
	_, err := validateCategoryResponse(categoryResponse{
		Category:   "Soporte",
		Confidence: 0.8,
	})
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestValidateCategoryResponseRejectsConfidenceOutOfRange(t *testing.T) {
	for _, confidence := range []float64{-0.1, 1.1, 42} {
		_, err := validateCategoryResponse(categoryResponse{
			Category:   "Comercial",
			Confidence: confidence,
		})
		require.Error(t, err, "confidence %v must be rejected", confidence)
		require.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
	}
}

func TestNewOpenAIProviderRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider(configWithoutKey())
	require.Error(t, err)
}
