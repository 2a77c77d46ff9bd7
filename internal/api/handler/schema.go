package handler

import (
	"time"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type sessionResponse struct {
	User      userResponse `json:"user"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}

// --- Tasks ---

type createTaskRequest struct {
	Title       string `json:"title"       validate:"required"`
	Description string `json:"description"`
	AssignedTo  string `json:"assignedTo"  validate:"required"`
	DueDate     string `json:"dueDate"`
	Priority    string `json:"priority"    validate:"omitempty,oneof=low medium high"`
	OrderID     string `json:"orderId"`
}

type taskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in-progress completed"`
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing completed in-transit cancelled"`
}

// updateResponse is the outcome of a two-phase status change.
type updateResponse struct {
	Phase string `json:"phase"`
	ID    string `json:"id"`
	From  string `json:"from"`
	To    string `json:"to"`
	Error string `json:"error,omitempty"`
}

func toUpdateResponse(u domain.Update) updateResponse {
	resp := updateResponse{Phase: string(u.Phase), ID: u.ID, From: u.From, To: u.To}
	if u.Err != nil {
		resp.Error = u.Err.Error()
	}
	return resp
}

// --- Orders ---

type orderResponse struct {
	ID           string    `json:"id"`
	OrderNumber  string    `json:"orderNumber"`
	CustomerName string    `json:"customerName"`
	Status       string    `json:"status"`
	TotalAmount  float64   `json:"totalAmount"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResponse{
			ID:           o.ID,
			OrderNumber:  o.OrderNumber,
			CustomerName: domain.ResolveCustomerName(o),
			Status:       string(o.Status),
			TotalAmount:  o.TotalAmount,
			CreatedAt:    o.CreatedAt,
		})
	}
	return out
}

type statsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}
