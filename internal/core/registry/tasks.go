// Package registry holds the process-local caches of tasks and orders.
//
// Each registry keeps the last state the backend acknowledged ("committed")
// separately from tentative status changes that are still in flight. Views
// show the tentative value so callers stay responsive; snapshots used by
// reconciliation only ever see committed state.
package registry

import (
	"sync"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

// Tasks is the Task Registry.
type Tasks struct {
	mu        sync.RWMutex
	byID      map[string]domain.Task
	ids       []string
	tentative map[string]domain.TaskStatus
	// partial is set when the registry holds only the caller's own tasks.
	partial bool
}

// NewTasks returns an empty task registry.
func NewTasks() *Tasks {
	return &Tasks{
		byID:      make(map[string]domain.Task),
		tentative: make(map[string]domain.TaskStatus),
	}
}

// Replace swaps the whole registry for the complete task set, dropping
// tentative changes.
func (r *Tasks) Replace(tasks []domain.Task) {
	r.replace(tasks, false)
}

// ReplacePartial swaps the registry for a subset of the backend's tasks, such
// as one assignee's own. A partial registry cannot drive reconciliation.
func (r *Tasks) ReplacePartial(tasks []domain.Task) {
	r.replace(tasks, true)
}

// Complete reports whether the registry holds every task, not a subset.
func (r *Tasks) Complete() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.partial
}

func (r *Tasks) replace(tasks []domain.Task, partial bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.partial = partial
	r.byID = make(map[string]domain.Task, len(tasks))
	r.ids = r.ids[:0]
	r.tentative = make(map[string]domain.TaskStatus)
	for _, t := range tasks {
		if _, dup := r.byID[t.ID]; !dup {
			r.ids = append(r.ids, t.ID)
		}
		r.byID[t.ID] = t
	}
}

// Reset empties the registry.
func (r *Tasks) Reset() {
	r.Replace(nil)
}

// Len returns the number of tasks.
func (r *Tasks) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// Snapshot returns a copy of the committed tasks in insertion order.
func (r *Tasks) Snapshot() []domain.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Task, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}

// View returns the tasks as the user should see them, tentative statuses applied.
func (r *Tasks) View() []domain.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Task, 0, len(r.ids))
	for _, id := range r.ids {
		t := r.byID[id]
		if s, ok := r.tentative[id]; ok {
			t.Status = s
		}
		out = append(out, t)
	}
	return out
}

// Get returns the committed task with id.
func (r *Tasks) Get(id string) (domain.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

// Upsert inserts t or overwrites the task with the same id.
func (r *Tasks) Upsert(t domain.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[t.ID]; !ok {
		r.ids = append(r.ids, t.ID)
	}
	r.byID[t.ID] = t
}

// Remove deletes the task with id and reports whether it existed.
func (r *Tasks) Remove(id string) (domain.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return domain.Task{}, false
	}
	delete(r.byID, id)
	delete(r.tentative, id)
	for i, v := range r.ids {
		if v == id {
			r.ids = append(r.ids[:i], r.ids[i+1:]...)
			break
		}
	}
	return t, true
}

// Stage records a tentative status for task id and returns its committed status.
func (r *Tasks) Stage(id string, status domain.TaskStatus) (domain.TaskStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return "", domain.ErrTaskNotFound
	}
	r.tentative[id] = status
	return t.Status, nil
}

// Commit makes status the committed value of task id. A tentative value is
// cleared only when it is the one being committed, so a newer stage survives.
func (r *Tasks) Commit(id string, status domain.TaskStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return false
	}
	t.Status = status
	r.byID[id] = t
	if r.tentative[id] == status {
		delete(r.tentative, id)
	}
	return true
}

// Rollback drops the tentative status for task id if it is still status.
func (r *Tasks) Rollback(id string, status domain.TaskStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.tentative[id]; ok && s == status {
		delete(r.tentative, id)
	}
}
