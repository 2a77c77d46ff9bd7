package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderInTransit  OrderStatus = "in-transit"
	OrderCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every known order status.
var OrderStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderCompleted, OrderInTransit, OrderCancelled}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderCompleted, OrderInTransit, OrderCancelled:
		return true
	}
	return false
}

// Order is a customer order. Its status is owned by the backend and is mutated
// either by direct user action or by reconciliation against its linked tasks.
type Order struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"orderNumber,omitempty"`
	Customer    CustomerRef `json:"customer,omitempty"`
	// Denormalized customer fields some endpoints send alongside the reference.
	CustomerName  string      `json:"customerName,omitempty"`
	CustomerEmail string      `json:"customerEmail,omitempty"`
	Status        OrderStatus `json:"status"`
	TotalAmount   float64     `json:"totalAmount"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// orderWire mirrors Order with the customer reference left undecoded.
type orderWire struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"orderNumber,omitempty"`
	Customer      json.RawMessage `json:"customer,omitempty"`
	CustomerName  string          `json:"customerName,omitempty"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	Status        OrderStatus     `json:"status"`
	TotalAmount   float64         `json:"totalAmount"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// UnmarshalJSON decodes the customer field as either a bare id or an embedded record.
func (o *Order) UnmarshalJSON(data []byte) error {
	var w orderWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ref, err := decodeCustomerRef(w.Customer)
	if err != nil {
		return fmt.Errorf("order %s: %w", w.ID, err)
	}
	*o = Order{
		ID:            w.ID,
		OrderNumber:   w.OrderNumber,
		Customer:      ref,
		CustomerName:  w.CustomerName,
		CustomerEmail: w.CustomerEmail,
		Status:        w.Status,
		TotalAmount:   w.TotalAmount,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
	return nil
}

// MarshalJSON writes the customer reference back in the shape it was received.
func (o Order) MarshalJSON() ([]byte, error) {
	w := orderWire{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Status:        o.Status,
		TotalAmount:   o.TotalAmount,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.Customer != nil {
		raw, err := json.Marshal(o.Customer)
		if err != nil {
			return nil, err
		}
		w.Customer = raw
	}
	return json.Marshal(w)
}

func decodeCustomerRef(raw json.RawMessage) (CustomerRef, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, err
		}
		if id == "" {
			return nil, nil
		}
		return CustomerID(id), nil
	case '{':
		var rec CustomerRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, fmt.Errorf("unsupported customer reference %s", string(raw))
}

// CustomerRef is the tagged union of shapes an order's customer field can take:
// a bare CustomerID or an embedded CustomerRecord.
type CustomerRef interface {
	customerRef()
}

// CustomerID is a customer reference carried as an opaque id.
type CustomerID string

func (CustomerID) customerRef() {}

// CustomerRecord is a customer reference embedded as an object.
type CustomerRecord struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
}

func (CustomerRecord) customerRef() {}
