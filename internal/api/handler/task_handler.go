package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/core/service"
)

// TaskWorkflow is the task surface of the core.
type TaskWorkflow interface {
	Tasks() []domain.Task
	FetchTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, in service.CreateTaskInput) (*domain.Task, error)
	UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) (domain.Update, error)
	DeleteTask(ctx context.Context, id string) error
}

type TaskHandler struct {
	tasks TaskWorkflow
}

func NewTaskHandler(tasks TaskWorkflow) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// List handles GET /tasks. With ?refresh=true the registry is reloaded first.
//
// @Summary      List cached tasks
// @Tags         tasks
// @Produce      json
// @Param        refresh  query     bool  false  "Reload from the backend first"
// @Success      200      {array}   domain.Task
// @Failure      401      {object}  errorResponse
// @Router       /tasks [get]
func (h *TaskHandler) List(c echo.Context) error {
	if c.QueryParam("refresh") == "true" {
		tasks, err := h.tasks.FetchTasks(c.Request().Context())
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, tasks)
	}
	return c.JSON(http.StatusOK, h.tasks.Tasks())
}

// Create handles POST /tasks.
//
// @Summary      Assign a new task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        body  body      createTaskRequest  true  "Task to assign"
// @Success      201   {object}  domain.Task
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /tasks [post]
func (h *TaskHandler) Create(c echo.Context) error {
	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return err
	}

	task, err := h.tasks.CreateTask(c.Request().Context(), service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssignedTo,
		DueDate:     due,
		Priority:    domain.Priority(req.Priority),
		OrderID:     req.OrderID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, task)
}

// UpdateStatus handles PATCH /tasks/:id/status.
//
// @Summary      Change a task's status
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Task id"
// @Param        body  body      taskStatusRequest  true  "New status"
// @Success      200   {object}  updateResponse
// @Failure      404   {object}  errorResponse
// @Failure      502   {object}  updateResponse
// @Router       /tasks/{id}/status [patch]
func (h *TaskHandler) UpdateStatus(c echo.Context) error {
	var req taskStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	u, err := h.tasks.UpdateStatus(c.Request().Context(), c.Param("id"), domain.TaskStatus(req.Status))
	if err != nil && u.Phase != domain.PhaseFailed {
		return err
	}
	if u.Phase == domain.PhaseFailed {
		return c.JSON(rejectedStatus(err), toUpdateResponse(u))
	}
	return c.JSON(http.StatusOK, toUpdateResponse(u))
}

// Delete handles DELETE /tasks/:id.
//
// @Summary      Delete a task (admin)
// @Tags         tasks
// @Param        id  path  string  true  "Task id"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c echo.Context) error {
	if err := h.tasks.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// parseDueDate accepts RFC 3339 timestamps and plain dates.
func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, domain.NewValidationError("dueDate", "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}
