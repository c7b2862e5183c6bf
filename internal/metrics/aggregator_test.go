package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

func processedTicket(category domain.TicketCategory, sentiment domain.TicketSentiment, createdAt time.Time) domain.Ticket {
	return domain.Ticket{
		ID:        "t-" + string(category) + createdAt.String(),
		CreatedAt: createdAt,
		Processed: true,
		Category:  &category,
		Sentiment: &sentiment,
		UpdatedAt: createdAt,
	}
}

func pendingTicket(createdAt time.Time) domain.Ticket {
	return domain.Ticket{
		ID:        "pending-" + createdAt.String(),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestComputeEmptyCollection(t *testing.T) {
	stats := Compute(nil, time.Now())

	require.Equal(t, 0, stats.Total)
	require.Equal(t, 0, stats.Processed)
	require.Equal(t, 0, stats.Pending)
	require.Empty(t, stats.CategoryDistribution)
}

func TestComputeCategoryDistribution(t *testing.T) {
	now := time.Now()
	tickets := []domain.Ticket{
		processedTicket(domain.CategoryTecnico, domain.SentimentNeutral, now),
		processedTicket(domain.CategoryTecnico, domain.SentimentNegativo, now.Add(-time.Hour)),
		processedTicket(domain.CategoryComercial, domain.SentimentPositivo, now.Add(-2*time.Hour)),
	}

	stats := Compute(tickets, now)

	require.Equal(t, 3, stats.Total)
	require.Equal(t, 3, stats.Processed)
	require.Equal(t, 0, stats.Pending)
	require.Equal(t, 1, stats.Negative)

	require.Equal(t, []CategoryCount{
		{Category: domain.CategoryTecnico, Count: 2, Percentage: 67},
		{Category: domain.CategoryComercial, Count: 1, Percentage: 33},
	}, stats.CategoryDistribution)
}

func TestComputeOmitsEmptyCategories(t *testing.T) {
	now := time.Now()
	tickets := []domain.Ticket{
		processedTicket(domain.CategoryFacturacion, domain.SentimentNeutral, now),
	}

	stats := Compute(tickets, now)

	require.Len(t, stats.CategoryDistribution, 1)
	require.Equal(t, domain.CategoryFacturacion, stats.CategoryDistribution[0].Category)
	require.Equal(t, 100, stats.CategoryDistribution[0].Percentage)
}

func TestComputePendingAndNegative(t *testing.T) {
	now := time.Now()
	tickets := []domain.Ticket{
		processedTicket(domain.CategoryTecnico, domain.SentimentNegativo, now),
		pendingTicket(now.Add(-time.Minute)),
		pendingTicket(now.Add(-2 * time.Minute)),
	}

	stats := Compute(tickets, now)

	require.Equal(t, 3, stats.Total)
	require.Equal(t, 1, stats.Processed)
	require.Equal(t, 2, stats.Pending)
	require.Equal(t, 1, stats.Negative)
}

func TestComputeCreatedTodayUsesCalendarDate(t *testing.T) {
	now := time.Date(2024, time.March, 15, 0, 30, 0, 0, time.UTC)
	tickets := []domain.Ticket{
		// Same calendar day, even though less than 24h apart across midnight.
		pendingTicket(time.Date(2024, time.March, 15, 0, 5, 0, 0, time.UTC)),
		// Late the previous evening: not today.
		pendingTicket(time.Date(2024, time.March, 14, 23, 55, 0, 0, time.UTC)),
		pendingTicket(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)),
	}

	stats := Compute(tickets, now)

	require.Equal(t, 1, stats.CreatedToday)
}
