package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/core/ports"
)

// TasksAPI is the task surface of the backend, called through the
// authenticated decorator.
type TasksAPI struct {
	gw *Authenticated
}

// NewTasksAPI creates a TasksAPI.
func NewTasksAPI(gw *Authenticated) *TasksAPI {
	return &TasksAPI{gw: gw}
}

// List returns every task. Admin only on the backend.
func (a *TasksAPI) List(ctx context.Context) ([]domain.Task, error) {
	return listTasks(ctx, a.gw, "/tasks")
}

// ListMine returns the tasks assigned to the current identity.
func (a *TasksAPI) ListMine(ctx context.Context) ([]domain.Task, error) {
	return listTasks(ctx, a.gw, "/tasks/my-tasks")
}

func listTasks(ctx context.Context, gw *Authenticated, path string) ([]domain.Task, error) {
	var raw json.RawMessage
	if err := gw.Do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	var tasks []domain.Task
	if err := decodeList(raw, &tasks, "tasks"); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return tasks, nil
}

type createTaskBody struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssignedTo  string     `json:"assignedTo"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    string     `json:"priority"`
	OrderID     string     `json:"orderId,omitempty"`
}

// Create submits a new task. An empty OrderID is left off the payload.
func (a *TasksAPI) Create(ctx context.Context, req ports.CreateTaskRequest) (*domain.Task, error) {
	body := createTaskBody{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssigneeID,
		DueDate:     req.DueDate,
		Priority:    string(req.Priority),
		OrderID:     req.OrderID,
	}

	var raw json.RawMessage
	if err := a.gw.Do(ctx, http.MethodPost, "/tasks", body, &raw); err != nil {
		return nil, err
	}
	var task domain.Task
	if err := decodeOne(raw, &task, "task"); err != nil {
		return nil, fmt.Errorf("decode created task: %w", err)
	}
	if task.ID == "" {
		return nil, errors.New("create task: response carries no id")
	}
	return &task, nil
}

type statusBody struct {
	Status string `json:"status"`
}

// UpdateStatus sets a task's status.
func (a *TasksAPI) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) error {
	return a.gw.Do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id)+"/status", statusBody{Status: string(status)}, nil)
}

// Delete removes a task.
func (a *TasksAPI) Delete(ctx context.Context, id string) error {
	return a.gw.Do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}
