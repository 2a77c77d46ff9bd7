package ports

import (
	"context"
	"time"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

// LoginResult is what /auth/login returns on success.
type LoginResult struct {
	User  domain.User
	Token string
}

// RefreshResult is what /auth/refresh returns. User is nil when the backend
// only sends a new token.
type RefreshResult struct {
	Token string
	User  *domain.User
}

// AuthAPI is the unauthenticated side of the backend: it never goes through
// the refresh-and-retry pipeline.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, token string) (*RefreshResult, error)
	Me(ctx context.Context, token string) (*domain.User, error)
}

// CreateTaskRequest is the payload sent to POST /tasks. OrderID is omitted
// from the wire when empty.
type CreateTaskRequest struct {
	Title       string
	Description string
	AssigneeID  string
	DueDate     *time.Time
	Priority    domain.Priority
	OrderID     string
}

// TaskAPI is the authenticated task surface of the backend.
type TaskAPI interface {
	List(ctx context.Context) ([]domain.Task, error)
	ListMine(ctx context.Context) ([]domain.Task, error)
	Create(ctx context.Context, req CreateTaskRequest) (*domain.Task, error)
	UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) error
	Delete(ctx context.Context, id string) error
}

// OrderAPI is the authenticated order surface of the backend.
type OrderAPI interface {
	List(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
}
