package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/core/ports"
	"github.com/laundrydesk/opsync/internal/core/registry"
)

// OrderService is the writer of the Order Registry for direct user actions.
type OrderService struct {
	api     ports.OrderAPI
	orders  *registry.Orders
	trigger ports.ReconcileTrigger
	log     zerolog.Logger
}

// NewOrderService wires the order operations. trigger may be nil.
func NewOrderService(api ports.OrderAPI, orders *registry.Orders, trigger ports.ReconcileTrigger, log zerolog.Logger) *OrderService {
	if trigger == nil {
		trigger = nopTrigger{}
	}
	return &OrderService{api: api, orders: orders, trigger: trigger, log: log}
}

// FetchOrders reloads the Order Registry. On failure it is emptied.
func (s *OrderService) FetchOrders(ctx context.Context) ([]domain.Order, error) {
	if err := s.refresh(ctx); err != nil {
		s.trigger.Trigger("orders reset")
		return nil, err
	}
	s.trigger.Trigger("orders fetched")
	return s.orders.View(), nil
}

func (s *OrderService) refresh(ctx context.Context) error {
	orders, err := s.api.List(ctx)
	if err != nil {
		s.orders.Reset()
		return fmt.Errorf("fetch orders: %w", err)
	}
	s.orders.Replace(orders)
	return nil
}

// UpdateStatus applies a direct status change in two phases, like tasks.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Update, error) {
	if !status.Valid() {
		return domain.Update{}, fmt.Errorf("update order %s: %w %q", id, domain.ErrInvalidStatus, status)
	}

	prev, err := s.orders.Stage(id, status)
	if err != nil {
		return domain.Update{}, fmt.Errorf("update order %s: %w", id, err)
	}
	u := domain.Pending(id, string(prev), string(status))

	if err := s.api.UpdateStatus(ctx, id, status); err != nil {
		s.orders.Rollback(id, status)
		s.log.Warn().Err(err).Str("order_id", id).Str("status", string(status)).Msg("order status update rejected")
		return u.Fail(err), fmt.Errorf("update order %s: %w", id, err)
	}

	s.orders.Commit(id, status)
	s.log.Info().Str("order_id", id).Str("from", string(prev)).Str("to", string(status)).Msg("order status changed")
	s.trigger.Trigger("order status changed")
	return u.Commit(), nil
}

// Orders returns the cached orders as the user should see them.
func (s *OrderService) Orders() []domain.Order {
	return s.orders.View()
}

// Stats returns committed order counts per status.
func (s *OrderService) Stats() map[domain.OrderStatus]int {
	return s.orders.Counts()
}

// Search filters the cached orders by order number or customer name.
func (s *OrderService) Search(query string) []domain.Order {
	return SearchOrders(s.orders.View(), query)
}

// SearchOrders returns the orders whose number or resolved customer name
// contains query, case-insensitively. An empty query matches everything.
func SearchOrders(orders []domain.Order, query string) []domain.Order {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return orders
	}

	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		numberMatch := strings.Contains(strings.ToLower(o.OrderNumber), q)
		nameMatch := strings.Contains(strings.ToLower(domain.ResolveCustomerName(o)), q)
		if numberMatch || nameMatch {
			out = append(out, o)
		}
	}
	return out
}
