package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, budgetHandler *BudgetHandler, wsHandler *WebSocketHandler, healthHandler *HealthHandler, apiMiddleware ...echo.MiddlewareFunc) {
	e.GET("/health", healthHandler.Health)

	// API version 1
	api := e.Group("/api/v1", apiMiddleware...)

	// Budget routes
	budgets := api.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.PUT("", budgetHandler.UpsertBudget)
	budgets.GET("", budgetHandler.ListBudgets)
	budgets.GET("/:id", budgetHandler.GetBudget)
	budgets.PATCH("/:id", budgetHandler.UpdateBudget)
	budgets.DELETE("/:id", budgetHandler.DeleteBudget)

	// WebSocket change feed
	api.GET("/ws", wsHandler.HandleWS)
}
