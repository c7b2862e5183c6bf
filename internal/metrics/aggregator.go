package metrics

import (
	"math"
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// CategoryCount is one slice of the category distribution. Percentages are
// rounded independently and may not sum to exactly 100.
type CategoryCount struct {
	Category   domain.TicketCategory `json:"category"`
	Count      int                   `json:"count"`
	Percentage int                   `json:"percentage"`
}

// Stats are the dashboard figures derived from a reconciled collection.
type Stats struct {
	Total                int             `json:"total"`
	Processed            int             `json:"processed"`
	Pending              int             `json:"pending"`
	Negative             int             `json:"negative"`
	CreatedToday         int             `json:"created_today"`
	CategoryDistribution []CategoryCount `json:"category_distribution"`
}

// Compute derives dashboard statistics from the collection. It is pure and
// deterministic, safe to recompute on every collection change.
func Compute(tickets []domain.Ticket, now time.Time) Stats {
	stats := Stats{Total: len(tickets)}

	counts := make(map[domain.TicketCategory]int)
	year, month, day := now.Date()

	for i := range tickets {
		t := &tickets[i]
		if t.Processed {
			stats.Processed++
		}
		if t.Sentiment != nil && *t.Sentiment == domain.SentimentNegativo {
			stats.Negative++
		}
		ty, tm, td := t.CreatedAt.In(now.Location()).Date()
		if ty == year && tm == month && td == day {
			stats.CreatedToday++
		}
		if t.Category != nil {
			counts[*t.Category]++
		}
	}

	stats.Pending = stats.Total - stats.Processed

	for _, category := range domain.Categories() {
		count, ok := counts[category]
		if !ok {
			continue
		}
		stats.CategoryDistribution = append(stats.CategoryDistribution, CategoryCount{
			Category:   category,
			Count:      count,
			Percentage: int(math.Round(float64(count) / float64(stats.Total) * 100)),
		})
	}

	return stats
}
