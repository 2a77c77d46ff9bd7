package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

// OrdersAPI is the order surface of the backend.
type OrdersAPI struct {
	gw *Authenticated
}

// NewOrdersAPI creates an OrdersAPI.
func NewOrdersAPI(gw *Authenticated) *OrdersAPI {
	return &OrdersAPI{gw: gw}
}

// List returns the orders visible to the current identity.
func (a *OrdersAPI) List(ctx context.Context) ([]domain.Order, error) {
	var raw json.RawMessage
	if err := a.gw.Do(ctx, http.MethodGet, "/orders", nil, &raw); err != nil {
		return nil, err
	}
	var orders []domain.Order
	if err := decodeList(raw, &orders, "orders"); err != nil {
		return nil, fmt.Errorf("decode /orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus sets an order's status with PATCH, retrying once with PUT
// when the backend does not allow PATCH on the route.
func (a *OrdersAPI) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	path := "/orders/" + url.PathEscape(id) + "/status"
	body := statusBody{Status: string(status)}

	err := a.gw.Do(ctx, http.MethodPatch, path, body, nil)
	if StatusCode(err) == http.StatusMethodNotAllowed {
		return a.gw.Do(ctx, http.MethodPut, path, body, nil)
	}
	return err
}
