package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/core/ports"
	"github.com/laundrydesk/opsync/internal/core/registry"
	"github.com/laundrydesk/opsync/internal/metrics"
)

// RoleChecker answers capability questions about the active identity.
type RoleChecker interface {
	HasRole(roles ...domain.Role) bool
}

type nopTrigger struct{}

func (nopTrigger) Trigger(string) {}

// CreateTaskInput carries everything needed to assign a new task.
type CreateTaskInput struct {
	Title       string
	Description string
	AssigneeID  string
	DueDate     *time.Time
	Priority    domain.Priority
	// OrderID is optional; empty means the task is not linked to an order.
	OrderID string
}

// TaskService is the task assignment workflow and the writer of the Task Registry.
type TaskService struct {
	api     ports.TaskAPI
	tasks   *registry.Tasks
	orders  *registry.Orders
	roles   RoleChecker
	trigger ports.ReconcileTrigger
	now     func() time.Time
	log     zerolog.Logger
}

// NewTaskService wires the task workflow. trigger may be nil.
func NewTaskService(
	api ports.TaskAPI,
	tasks *registry.Tasks,
	orders *registry.Orders,
	roles RoleChecker,
	trigger ports.ReconcileTrigger,
	log zerolog.Logger,
) *TaskService {
	if trigger == nil {
		trigger = nopTrigger{}
	}
	return &TaskService{
		api:     api,
		tasks:   tasks,
		orders:  orders,
		roles:   roles,
		trigger: trigger,
		now:     time.Now,
		log:     log,
	}
}

// CreateTask validates the input locally and submits it. Validation failures never
// reach the backend.
func (s *TaskService) CreateTask(ctx context.Context, in CreateTaskInput) (*domain.Task, error) {
	req, err := s.validateCreate(in)
	if err != nil {
		return nil, err
	}

	created, err := s.api.Create(ctx, req)
	if err != nil {
		s.log.Error().Err(err).Str("assignee", req.AssigneeID).Msg("failed to create task")
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.tasks.Upsert(*created)
	metrics.TasksCreatedTotal.WithLabelValues(string(req.Priority)).Inc()
	s.log.Info().
		Str("task_id", created.ID).
		Str("assignee", req.AssigneeID).
		Str("order_id", req.OrderID).
		Msg("task created")

	s.trigger.Trigger("task created")
	return created, nil
}

func (s *TaskService) validateCreate(in CreateTaskInput) (ports.CreateTaskRequest, error) {
	req := ports.CreateTaskRequest{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		AssigneeID:  strings.TrimSpace(in.AssigneeID),
		DueDate:     in.DueDate,
		Priority:    in.Priority,
		OrderID:     strings.TrimSpace(in.OrderID),
	}

	if req.AssigneeID == "" {
		return req, domain.NewValidationError("assignee", "is required")
	}
	if req.Title == "" {
		return req, domain.NewValidationError("title", "is required")
	}
	if req.DueDate != nil && req.DueDate.Before(startOfDay(s.now())) {
		return req, domain.NewValidationError("due date", "must not be in the past")
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityMedium
	}
	if !req.Priority.Valid() {
		return req, domain.NewValidationError("priority", "must be one of low, medium, high")
	}
	if req.OrderID != "" {
		if _, ok := s.orders.Get(req.OrderID); !ok {
			return req, domain.NewValidationError("order", "does not exist")
		}
	}
	return req, nil
}

// UpdateStatus changes a task's status in two phases: the new value is
// staged locally, sent to the backend, then committed or rolled back.
func (s *TaskService) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) (domain.Update, error) {
	if !status.Valid() {
		return domain.Update{}, fmt.Errorf("update task %s: %w %q", id, domain.ErrInvalidStatus, status)
	}

	prev, err := s.tasks.Stage(id, status)
	if err != nil {
		return domain.Update{}, fmt.Errorf("update task %s: %w", id, err)
	}
	u := domain.Pending(id, string(prev), string(status))

	if err := s.api.UpdateStatus(ctx, id, status); err != nil {
		s.tasks.Rollback(id, status)
		s.log.Warn().Err(err).Str("task_id", id).Str("status", string(status)).Msg("task status update rejected")
		return u.Fail(err), fmt.Errorf("update task %s: %w", id, err)
	}

	s.tasks.Commit(id, status)
	s.trigger.Trigger("task status changed")
	return u.Commit(), nil
}

// DeleteTask removes a task. Only admins may delete.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if !s.roles.HasRole(domain.RoleAdmin) {
		return fmt.Errorf("delete task %s: %w", id, domain.ErrForbidden)
	}
	if _, ok := s.tasks.Get(id); !ok {
		return fmt.Errorf("delete task %s: %w", id, domain.ErrTaskNotFound)
	}

	if err := s.api.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}

	s.tasks.Remove(id)
	s.log.Info().Str("task_id", id).Msg("task deleted")
	s.trigger.Trigger("task deleted")
	return nil
}

// FetchTasks reloads the Task Registry. Admins see every task, everyone else
// their own. On failure the registry is emptied rather than left stale.
func (s *TaskService) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	if err := s.refresh(ctx); err != nil {
		s.trigger.Trigger("tasks reset")
		return nil, err
	}
	s.trigger.Trigger("tasks fetched")
	return s.tasks.View(), nil
}

func (s *TaskService) refresh(ctx context.Context) error {
	if s.roles.HasRole(domain.RoleAdmin) {
		tasks, err := s.api.List(ctx)
		if err != nil {
			s.tasks.Reset()
			return fmt.Errorf("fetch tasks: %w", err)
		}
		s.tasks.Replace(tasks)
		return nil
	}

	// Everyone else only sees their own tasks.
	tasks, err := s.api.ListMine(ctx)
	if err != nil {
		s.tasks.Reset()
		return fmt.Errorf("fetch tasks: %w", err)
	}
	s.tasks.ReplacePartial(tasks)
	return nil
}

// Tasks returns the cached tasks as the user should see them.
func (s *TaskService) Tasks() []domain.Task {
	return s.tasks.View()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
