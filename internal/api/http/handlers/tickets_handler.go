package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/service"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs the handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Create(c.UserContext(), req.Description)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseListQuery(c)
	if err != nil {
		return err
	}

	tickets, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTickets(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// ReprocessTicket POST /tickets/:id/reprocess.
func (h *TicketsHandler) ReprocessTicket(c *fiber.Ctx) error {
	ticket, err := h.service.Reprocess(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

func parseListQuery(c *fiber.Ctx) (repository.ListFilter, error) {
	var filter repository.ListFilter

	if raw := c.Query("processed"); raw != "" {
		processed, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid processed filter", map[string]any{"processed": raw})
		}
		filter.Processed = &processed
	}
	if raw := c.Query("category"); raw != "" {
		category := domain.TicketCategory(raw)
		if !category.Valid() {
			return filter, apperrors.NewValidationError("unknown category", map[string]any{"category": raw})
		}
		filter.Category = &category
	}
	if raw := c.Query("sentiment"); raw != "" {
		sentiment := domain.TicketSentiment(raw)
		if !sentiment.Valid() {
			return filter, apperrors.NewValidationError("unknown sentiment", map[string]any{"sentiment": raw})
		}
		filter.Sentiment = &sentiment
	}
	filter.Limit = c.QueryInt("limit", 50)

	return filter, nil
}
