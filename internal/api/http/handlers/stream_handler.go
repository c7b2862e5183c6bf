package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/feed"
)

// StreamHandler pushes the change feed to websocket clients: first the
// bounded snapshot, then live deltas.
type StreamHandler struct {
	hub    *feed.Hub
	logger *zap.Logger
}

// NewStreamHandler constructs the handler.
func NewStreamHandler(hub *feed.Hub, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, logger: logger}
}

// Stream GET /ws/tickets.
func (h *StreamHandler) Stream() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		defer conn.Close()

		snapshot, subscription, err := h.hub.Subscribe(context.Background())
		if err != nil {
			h.logger.Warn("websocket subscribe failed", zap.Error(err))
			_ = conn.WriteJSON(map[string]string{"error": "snapshot unavailable, retry"})
			return
		}
		defer subscription.Close()

		if err := conn.WriteJSON(dto.StreamMessage{
			Type:     "snapshot",
			Snapshot: dto.FromTickets(snapshot),
		}); err != nil {
			return
		}

		// Detect client disconnect; inbound frames are otherwise ignored.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case event, ok := <-subscription.Events:
				if !ok {
					return
				}
				ticket := dto.FromTicket(&event.Ticket)
				message := dto.StreamMessage{
					Type:   "event",
					Kind:   string(event.Kind),
					Ticket: &ticket,
				}
				if err := conn.WriteJSON(message); err != nil {
					return
				}
			}
		}
	}
}
