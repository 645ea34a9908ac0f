package handler

import (
	"context"
	"net/http"

	"github.com/dafibh/fortuna/fortuna-budget/internal/domain"
	"github.com/dafibh/fortuna/fortuna-budget/internal/service"
	"github.com/dafibh/fortuna/fortuna-budget/internal/websocket"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// BudgetSnapshotResponse is the payload of a budget.snapshot event
type BudgetSnapshotResponse struct {
	Month domain.Month               `json:"month"`
	Data  []*domain.BudgetWithActual `json:"data"`
	Count int64                      `json:"count"`
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub            *websocket.Hub
	snapshot       websocket.SnapshotFunc
	allowedOrigins map[string]bool
	upgrader       ws.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. Clients subscribing to a month
// are sent a snapshot of that month's budgets with actuals from budgetService.
func NewWebSocketHandler(hub *websocket.Hub, budgetService *service.BudgetService, allowedOrigins []string) *WebSocketHandler {
	// Build origin lookup map
	originMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		originMap[origin] = true
	}

	h := &WebSocketHandler{
		hub:            hub,
		snapshot:       budgetSnapshot(budgetService),
		allowedOrigins: originMap,
	}

	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

func budgetSnapshot(budgetService *service.BudgetService) websocket.SnapshotFunc {
	if budgetService == nil {
		return nil
	}
	return func(ctx context.Context, month domain.Month) (interface{}, error) {
		list, err := budgetService.ListBudgetsWithActual(ctx, domain.BudgetFilter{
			Month: &month,
			Limit: domain.MaxListLimit,
		})
		if err != nil {
			return nil, err
		}
		return BudgetSnapshotResponse{Month: month, Data: list.Budgets, Count: list.Count}, nil
	}
}

// checkOrigin validates the request origin against allowed origins
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Allow requests with no Origin header (e.g., same-origin or non-browser clients)
		return true
	}

	if h.allowedOrigins[origin] {
		return true
	}

	log.Warn().
		Str("origin", origin).
		Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// HandleWS handles WebSocket connection requests at GET /api/v1/ws.
// The optional month query parameter subscribes to one month and pushes its snapshot;
// clients change subscription later with subscribe/unsubscribe commands.
func (h *WebSocketHandler) HandleWS(c echo.Context) error {
	topic := websocket.AllTopics
	var month domain.Month
	if raw := c.QueryParam("month"); raw != "" {
		m, err := domain.ParseMonth(raw)
		if err != nil {
			log.Debug().Err(err).Msg("WebSocket connection rejected: invalid month")
			return NewValidationError(c, "Invalid month", []ValidationError{fieldProblem(err, "month")})
		}
		month = m
		topic = month.Key()
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return err
	}

	// Create client and register with hub
	client := websocket.NewClient(conn, topic, h.hub, h.snapshot)
	h.hub.Register(client)

	log.Info().
		Str("topic", topic).
		Str("client_id", client.ID()).
		Msg("WebSocket client connected")

	go client.WritePump()
	// The snapshot is queued before any command is read so it is the first message
	if !month.IsZero() {
		client.PushSnapshot(month)
	}
	go client.ReadPump()

	return nil
}
