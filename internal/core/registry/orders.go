package registry

import (
	"fmt"
	"sync"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

// Orders is the Order Registry. Besides the orders themselves it keeps a count
// of committed orders per status for dashboards.
type Orders struct {
	mu        sync.RWMutex
	byID      map[string]domain.Order
	ids       []string
	tentative map[string]domain.OrderStatus
	counts    map[domain.OrderStatus]int
}

// NewOrders returns an empty order registry.
func NewOrders() *Orders {
	return &Orders{
		byID:      make(map[string]domain.Order),
		tentative: make(map[string]domain.OrderStatus),
		counts:    make(map[domain.OrderStatus]int),
	}
}

// Replace swaps the whole registry for orders and recomputes the counters.
func (r *Orders) Replace(orders []domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID = make(map[string]domain.Order, len(orders))
	r.ids = r.ids[:0]
	r.tentative = make(map[string]domain.OrderStatus)
	r.counts = make(map[domain.OrderStatus]int)
	for _, o := range orders {
		if prev, dup := r.byID[o.ID]; dup {
			r.counts[prev.Status]--
		} else {
			r.ids = append(r.ids, o.ID)
		}
		r.byID[o.ID] = o
		r.counts[o.Status]++
	}
}

// Reset empties the registry.
func (r *Orders) Reset() {
	r.Replace(nil)
}

// Len returns the number of orders.
func (r *Orders) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// Snapshot returns a copy of the committed orders in insertion order.
func (r *Orders) Snapshot() []domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Order, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}

// View returns the orders with tentative statuses applied.
func (r *Orders) View() []domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Order, 0, len(r.ids))
	for _, id := range r.ids {
		o := r.byID[id]
		if s, ok := r.tentative[id]; ok {
			o.Status = s
		}
		out = append(out, o)
	}
	return out
}

// Get returns the committed order with id.
func (r *Orders) Get(id string) (domain.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byID[id]
	return o, ok
}

// Counts returns a copy of the per-status counters. Statuses with no orders are omitted.
func (r *Orders) Counts() map[domain.OrderStatus]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[domain.OrderStatus]int, len(r.counts))
	for s, n := range r.counts {
		if n > 0 {
			out[s] = n
		}
	}
	return out
}

// Stage records a tentative status for order id and returns its committed status.
func (r *Orders) Stage(id string, status domain.OrderStatus) (domain.OrderStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.byID[id]
	if !ok {
		return "", domain.ErrOrderNotFound
	}
	r.tentative[id] = status
	return o.Status, nil
}

// Commit makes status the committed value of order id and moves one unit
// between the counters.
func (r *Orders) Commit(id string, status domain.OrderStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.byID[id]
	if !ok {
		return false
	}
	r.setStatusLocked(o, status)
	if r.tentative[id] == status {
		delete(r.tentative, id)
	}
	return true
}

// Rollback drops the tentative status for order id if it is still status.
func (r *Orders) Rollback(id string, status domain.OrderStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.tentative[id]; ok && s == status {
		delete(r.tentative, id)
	}
}

// ApplyTransition moves order id from one committed status to another. It
// fails without touching anything when the order is gone or no longer holds
// from, which happens when the cache was refreshed mid-pass.
func (r *Orders) ApplyTransition(id string, from, to domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.byID[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != from {
		return fmt.Errorf("order %s: expected status %s, cache holds %s", id, from, o.Status)
	}
	r.setStatusLocked(o, to)
	return nil
}

func (r *Orders) setStatusLocked(o domain.Order, status domain.OrderStatus) {
	if o.Status == status {
		return
	}
	r.counts[o.Status]--
	r.counts[status]++
	o.Status = status
	r.byID[o.ID] = o
}
