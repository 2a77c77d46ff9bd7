package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/core/service"
	"github.com/laundrydesk/opsync/internal/infrastructure/gateway"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubSessions struct {
	loginFn func(email, password string) (*domain.User, error)
	current *domain.Session
	logouts int
}

func (s *stubSessions) Login(_ context.Context, email, password string) (*domain.User, error) {
	u, err := s.loginFn(email, password)
	if err == nil {
		s.current = &domain.Session{User: *u, Token: "tok", ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	}
	return u, err
}

func (s *stubSessions) Logout(context.Context)                  { s.logouts++; s.current = nil }
func (s *stubSessions) Refresh(context.Context) (string, error) { return "tok-2", nil }
func (s *stubSessions) Current() *domain.Session                { return s.current }

type stubTasks struct {
	createFn func(in service.CreateTaskInput) (*domain.Task, error)
	updateFn func(id string, status domain.TaskStatus) (domain.Update, error)
	deleteFn func(id string) error
	cached   []domain.Task
}

func (s *stubTasks) Tasks() []domain.Task { return s.cached }
func (s *stubTasks) FetchTasks(context.Context) ([]domain.Task, error) {
	return s.cached, nil
}
func (s *stubTasks) CreateTask(_ context.Context, in service.CreateTaskInput) (*domain.Task, error) {
	return s.createFn(in)
}
func (s *stubTasks) UpdateStatus(_ context.Context, id string, status domain.TaskStatus) (domain.Update, error) {
	return s.updateFn(id, status)
}
func (s *stubTasks) DeleteTask(_ context.Context, id string) error { return s.deleteFn(id) }

type stubOrders struct {
	cached []domain.Order
	counts map[domain.OrderStatus]int
}

func (s *stubOrders) Orders() []domain.Order { return s.cached }
func (s *stubOrders) FetchOrders(context.Context) ([]domain.Order, error) {
	return s.cached, nil
}
func (s *stubOrders) Search(q string) []domain.Order    { return service.SearchOrders(s.cached, q) }
func (s *stubOrders) Stats() map[domain.OrderStatus]int { return s.counts }
func (s *stubOrders) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (domain.Update, error) {
	return domain.Pending(id, "pending", string(status)).Commit(), nil
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubSessions{loginFn: func(email, password string) (*domain.User, error) {
		if email != "ana@laundry.test" || password != "secret" {
			t.Fatalf("unexpected args: %s %s", email, password)
		}
		return &domain.User{ID: "u1", Name: "Ana", Email: email, Role: domain.RoleAdmin}, nil
	}}
	h := NewAuthHandler(stub)

	c, rec := newContext(http.MethodPost, "/auth/login", `{"email":"ana@laundry.test","password":"secret"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.User.ID != "u1" || resp.User.Role != "admin" {
		t.Fatalf("unexpected user payload: %+v", resp.User)
	}
	if resp.ExpiresAt == nil {
		t.Fatalf("expected expires_at")
	}
}

func TestAuthHandler_Login_InvalidPayload(t *testing.T) {
	h := NewAuthHandler(&stubSessions{loginFn: func(string, string) (*domain.User, error) {
		t.Fatalf("session must not be called")
		return nil, nil
	}})

	c, _ := newContext(http.MethodPost, "/auth/login", `{"email":"not-an-email"}`)
	err := h.Login(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if !strings.Contains(he.Message.(string), "password is required") {
		t.Fatalf("unexpected message: %v", he.Message)
	}
}

func TestAuthHandler_LogoutAndMe(t *testing.T) {
	stub := &stubSessions{current: &domain.Session{User: domain.User{ID: "u1"}, Token: "tok"}}
	h := NewAuthHandler(stub)

	c, rec := newContext(http.MethodGet, "/auth/me", "")
	if err := h.Me(c); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", rec.Code, err)
	}

	c, rec = newContext(http.MethodPost, "/auth/logout", "")
	if err := h.Logout(c); err != nil || rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d (%v)", rec.Code, err)
	}

	c, _ = newContext(http.MethodGet, "/auth/me", "")
	if err := h.Me(c); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

func TestTaskHandler_Create(t *testing.T) {
	var got service.CreateTaskInput
	h := NewTaskHandler(&stubTasks{createFn: func(in service.CreateTaskInput) (*domain.Task, error) {
		got = in
		return &domain.Task{ID: "t1", Title: in.Title, OrderID: in.OrderID}, nil
	}})

	c, rec := newContext(http.MethodPost, "/tasks",
		`{"title":"Wash","assignedTo":"e1","dueDate":"2030-04-01","priority":"high","orderId":"o1"}`)
	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if got.AssigneeID != "e1" || got.Priority != domain.PriorityHigh || got.OrderID != "o1" {
		t.Fatalf("unexpected input: %+v", got)
	}
	if got.DueDate == nil || got.DueDate.Day() != 1 {
		t.Fatalf("due date not parsed: %v", got.DueDate)
	}
}

func TestTaskHandler_Create_MissingAssignee(t *testing.T) {
	h := NewTaskHandler(&stubTasks{createFn: func(service.CreateTaskInput) (*domain.Task, error) {
		t.Fatalf("workflow must not be called")
		return nil, nil
	}})

	c, _ := newContext(http.MethodPost, "/tasks", `{"title":"Wash"}`)
	err := h.Create(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestTaskHandler_Create_BadDueDate(t *testing.T) {
	h := NewTaskHandler(&stubTasks{})

	c, _ := newContext(http.MethodPost, "/tasks", `{"title":"Wash","assignedTo":"e1","dueDate":"next week"}`)
	if err := h.Create(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTaskHandler_UpdateStatus_Rejected(t *testing.T) {
	rejection := &gateway.APIError{StatusCode: http.StatusConflict, Message: "task is locked"}
	h := NewTaskHandler(&stubTasks{updateFn: func(id string, status domain.TaskStatus) (domain.Update, error) {
		return domain.Pending(id, "pending", string(status)).Fail(rejection), rejection
	}})

	c, rec := newContext(http.MethodPatch, "/tasks/t1/status", `{"status":"completed"}`)
	c.SetParamNames("id")
	c.SetParamValues("t1")
	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	var resp updateResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Phase != "failed" || resp.From != "pending" {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestTaskHandler_UpdateStatus_InvalidStatus(t *testing.T) {
	h := NewTaskHandler(&stubTasks{})

	c, _ := newContext(http.MethodPatch, "/tasks/t1/status", `{"status":"done"}`)
	c.SetParamNames("id")
	c.SetParamValues("t1")

	var he *echo.HTTPError
	if err := h.UpdateStatus(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestTaskHandler_Delete(t *testing.T) {
	h := NewTaskHandler(&stubTasks{deleteFn: func(id string) error {
		if id == "t2" {
			return domain.ErrTaskNotFound
		}
		return nil
	}})

	c, rec := newContext(http.MethodDelete, "/tasks/t1", "")
	c.SetParamNames("id")
	c.SetParamValues("t1")
	if err := h.Delete(c); err != nil || rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d (%v)", rec.Code, err)
	}

	c, _ = newContext(http.MethodDelete, "/tasks/t2", "")
	c.SetParamNames("id")
	c.SetParamValues("t2")
	if err := h.Delete(c); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

func TestOrderHandler_SearchResolvesCustomerName(t *testing.T) {
	h := NewOrderHandler(&stubOrders{cached: []domain.Order{
		{ID: "1", OrderNumber: "ORD-1", Customer: domain.CustomerRecord{FirstName: "Rosa", LastName: "Diaz"}},
		{ID: "2", OrderNumber: "ORD-2", Customer: domain.CustomerID("c2")},
	}}, nil)

	c, rec := newContext(http.MethodGet, "/orders/search?q=rosa", "")
	if err := h.Search(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp []orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp) != 1 || resp[0].CustomerName != "Rosa Diaz" {
		t.Fatalf("unexpected result: %+v", resp)
	}
}

func TestOrderHandler_StatsIncludesZeroes(t *testing.T) {
	h := NewOrderHandler(&stubOrders{counts: map[domain.OrderStatus]int{domain.OrderCompleted: 2, domain.OrderPending: 1}}, nil)

	c, rec := newContext(http.MethodGet, "/orders/stats", "")
	if err := h.Stats(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp statsResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 3 || resp.ByStatus["completed"] != 2 || len(resp.ByStatus) != len(domain.OrderStatuses) {
		t.Fatalf("unexpected stats: %+v", resp)
	}
}

func TestOrderHandler_TransitionsDisabled(t *testing.T) {
	h := NewOrderHandler(&stubOrders{}, nil)

	c, _ := newContext(http.MethodGet, "/orders/o1/transitions", "")
	var he *echo.HTTPError
	if err := h.Transitions(c); !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func TestReadiness_DegradedWhenCheckFails(t *testing.T) {
	h := NewReadinessHandler(map[string]Check{
		"redis": func(context.Context) error { return nil },
		"mongo": func(context.Context) error { return errors.New("no reachable servers") },
	})

	c, rec := newContext(http.MethodGet, "/health/ready", "")
	if err := h.Readiness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp readinessResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Dependencies["redis"].Status != "ok" || resp.Dependencies["mongo"].Status != "unhealthy" {
		t.Fatalf("unexpected dependencies: %+v", resp.Dependencies)
	}
}
