package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/core/ports"
)

var discardLogger = zerolog.Nop()

// ---------------------------------------------------------------------------
// Auth API stub
// ---------------------------------------------------------------------------

type stubAuthAPI struct {
	loginFn   func(email, password string) (*ports.LoginResult, error)
	refreshFn func(token string) (*ports.RefreshResult, error)
	meFn      func(token string) (*domain.User, error)

	loginCalls   int
	refreshCalls int
	meCalls      int
}

func (a *stubAuthAPI) Login(_ context.Context, email, password string) (*ports.LoginResult, error) {
	a.loginCalls++
	return a.loginFn(email, password)
}

func (a *stubAuthAPI) Refresh(_ context.Context, token string) (*ports.RefreshResult, error) {
	a.refreshCalls++
	return a.refreshFn(token)
}

func (a *stubAuthAPI) Me(_ context.Context, token string) (*domain.User, error) {
	a.meCalls++
	return a.meFn(token)
}

// ---------------------------------------------------------------------------
// Credential store stub
// ---------------------------------------------------------------------------

type stubStore struct {
	cred    *ports.StoredCredential
	loadErr error
	saves   int
	clears  int
}

func (s *stubStore) Load(context.Context) (*ports.StoredCredential, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.cred, nil
}

func (s *stubStore) Save(_ context.Context, cred ports.StoredCredential) error {
	s.saves++
	s.cred = &cred
	return nil
}

func (s *stubStore) Clear(context.Context) error {
	s.clears++
	s.cred = nil
	return nil
}

// ---------------------------------------------------------------------------
// Task / order API stubs
// ---------------------------------------------------------------------------

type stubTaskAPI struct {
	listFn   func() ([]domain.Task, error)
	createFn func(req ports.CreateTaskRequest) (*domain.Task, error)
	err      error

	listCalls     int
	listMineCalls int
	created       []ports.CreateTaskRequest
	statusUpdates []string
	deleted       []string
}

func (a *stubTaskAPI) List(context.Context) ([]domain.Task, error) {
	a.listCalls++
	if a.listFn != nil {
		return a.listFn()
	}
	return nil, a.err
}

func (a *stubTaskAPI) ListMine(context.Context) ([]domain.Task, error) {
	a.listMineCalls++
	if a.listFn != nil {
		return a.listFn()
	}
	return nil, a.err
}

func (a *stubTaskAPI) Create(_ context.Context, req ports.CreateTaskRequest) (*domain.Task, error) {
	a.created = append(a.created, req)
	if a.createFn != nil {
		return a.createFn(req)
	}
	return nil, a.err
}

func (a *stubTaskAPI) UpdateStatus(_ context.Context, id string, status domain.TaskStatus) error {
	if a.err != nil {
		return a.err
	}
	a.statusUpdates = append(a.statusUpdates, id+":"+string(status))
	return nil
}

func (a *stubTaskAPI) Delete(_ context.Context, id string) error {
	if a.err != nil {
		return a.err
	}
	a.deleted = append(a.deleted, id)
	return nil
}

type stubOrderAPI struct {
	mu      sync.Mutex
	orders  []domain.Order
	listFn  func(ctx context.Context) ([]domain.Order, error)
	listErr error
	failFor map[string]error // order id -> error returned by UpdateStatus
	calls   []string         // "id:status" per UpdateStatus call
}

func (a *stubOrderAPI) List(ctx context.Context) ([]domain.Order, error) {
	if a.listFn != nil {
		return a.listFn(ctx)
	}
	if a.listErr != nil {
		return nil, a.listErr
	}
	return a.orders, nil
}

func (a *stubOrderAPI) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, id+":"+string(status))
	if err, ok := a.failFor[id]; ok {
		return err
	}
	return nil
}

func (a *stubOrderAPI) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

// ---------------------------------------------------------------------------
// Misc
// ---------------------------------------------------------------------------

type stubRoles struct{ role domain.Role }

func (r stubRoles) HasRole(roles ...domain.Role) bool {
	for _, want := range roles {
		if r.role == want {
			return true
		}
	}
	return false
}

type recordingTrigger struct{ reasons []string }

func (t *recordingTrigger) Trigger(reason string) { t.reasons = append(t.reasons, reason) }

type stubRecorder struct {
	recorded []domain.Transition
	err      error
}

func (r *stubRecorder) Record(_ context.Context, t domain.Transition) error {
	r.recorded = append(r.recorded, t)
	return r.err
}

type stubPublisher struct{ published []domain.Transition }

func (p *stubPublisher) Publish(_ context.Context, t domain.Transition) error {
	p.published = append(p.published, t)
	return nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var errBackendRejected = errors.New("business rule conflict")
