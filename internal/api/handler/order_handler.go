package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

// OrderDesk is the order surface of the core.
type OrderDesk interface {
	Orders() []domain.Order
	FetchOrders(ctx context.Context) ([]domain.Order, error)
	Search(query string) []domain.Order
	Stats() map[domain.OrderStatus]int
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Update, error)
}

// TransitionHistory reads the reconciliation audit trail.
type TransitionHistory interface {
	History(ctx context.Context, orderID string, limit int64) ([]domain.Transition, error)
}

type OrderHandler struct {
	orders  OrderDesk
	history TransitionHistory
}

// NewOrderHandler creates an OrderHandler. history may be nil when the audit
// trail is disabled.
func NewOrderHandler(orders OrderDesk, history TransitionHistory) *OrderHandler {
	return &OrderHandler{orders: orders, history: history}
}

// List handles GET /orders.
//
// @Summary      List cached orders
// @Tags         orders
// @Produce      json
// @Param        refresh  query     bool  false  "Reload from the backend first"
// @Success      200      {array}   orderResponse
// @Router       /orders [get]
func (h *OrderHandler) List(c echo.Context) error {
	if c.QueryParam("refresh") == "true" {
		orders, err := h.orders.FetchOrders(c.Request().Context())
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, toOrderResponses(orders))
	}
	return c.JSON(http.StatusOK, toOrderResponses(h.orders.Orders()))
}

// Search handles GET /orders/search?q=.
//
// @Summary      Search orders by number or customer name
// @Tags         orders
// @Produce      json
// @Param        q  query     string  false  "Case-insensitive substring"
// @Success      200  {array}   orderResponse
// @Router       /orders/search [get]
func (h *OrderHandler) Search(c echo.Context) error {
	return c.JSON(http.StatusOK, toOrderResponses(h.orders.Search(c.QueryParam("q"))))
}

// Stats handles GET /orders/stats.
//
// @Summary      Order counts per status
// @Tags         orders
// @Produce      json
// @Success      200  {object}  statsResponse
// @Router       /orders/stats [get]
func (h *OrderHandler) Stats(c echo.Context) error {
	counts := h.orders.Stats()
	resp := statsResponse{ByStatus: make(map[string]int, len(domain.OrderStatuses))}
	for _, s := range domain.OrderStatuses {
		resp.ByStatus[string(s)] = counts[s]
		resp.Total += counts[s]
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdateStatus handles PATCH /orders/:id/status.
//
// @Summary      Change an order's status
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id    path      string              true  "Order id"
// @Param        body  body      orderStatusRequest  true  "New status"
// @Success      200   {object}  updateResponse
// @Failure      404   {object}  errorResponse
// @Router       /orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	var req orderStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	u, err := h.orders.UpdateStatus(c.Request().Context(), c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil && u.Phase != domain.PhaseFailed {
		return err
	}
	if u.Phase == domain.PhaseFailed {
		return c.JSON(rejectedStatus(err), toUpdateResponse(u))
	}
	return c.JSON(http.StatusOK, toUpdateResponse(u))
}

// Transitions handles GET /orders/:id/transitions.
//
// @Summary      Reconciliation history of an order
// @Tags         orders
// @Produce      json
// @Param        id     path      string  true   "Order id"
// @Param        limit  query     int     false  "Maximum entries (default 50)"
// @Success      200    {array}   domain.Transition
// @Failure      404    {object}  errorResponse
// @Router       /orders/{id}/transitions [get]
func (h *OrderHandler) Transitions(c echo.Context) error {
	if h.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "transition audit is disabled")
	}
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)

	entries, err := h.history.History(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}
