package domain

import "time"

// DeriveOrderStatus computes the status an order should hold given its linked
// tasks. ok is false when no corrective transition is needed: the order has no
// linked tasks, or its current status already agrees with the tasks.
//
// Only two moves exist: to completed when every linked task is completed, and
// from completed back to processing when one is not.
func DeriveOrderStatus(current OrderStatus, linked []Task) (next OrderStatus, ok bool) {
	if len(linked) == 0 {
		return current, false
	}

	allCompleted := true
	for _, t := range linked {
		if t.Status != TaskCompleted {
			allCompleted = false
			break
		}
	}

	switch {
	case allCompleted && current != OrderCompleted:
		return OrderCompleted, true
	case !allCompleted && current == OrderCompleted:
		return OrderProcessing, true
	}
	return current, false
}

// Transition records one reconciliation decision for an order.
type Transition struct {
	PassID  string      `json:"pass_id"`
	OrderID string      `json:"order_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
	Phase   Phase       `json:"phase"`
	Error   string      `json:"error,omitempty"`
	At      time.Time   `json:"at"`
}
