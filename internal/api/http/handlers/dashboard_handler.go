package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/metrics"
	"github.com/spec-kit/ticket-triage/internal/reconcile"
)

// DashboardHandler serves statistics derived from the server's own
// reconciled view of the feed.
type DashboardHandler struct {
	reconciler *reconcile.Reconciler
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(reconciler *reconcile.Reconciler) *DashboardHandler {
	return &DashboardHandler{reconciler: reconciler}
}

// Metrics GET /dashboard/metrics.
func (h *DashboardHandler) Metrics(c *fiber.Ctx) error {
	stats := metrics.Compute(h.reconciler.Collection(), time.Now())

	response := fiber.Map{"data": stats}
	if err := h.reconciler.LastError(); err != nil {
		// The collection is the last good one; surface the degraded state
		// without blanking the data.
		response["stale"] = true
	}
	return c.JSON(response)
}
