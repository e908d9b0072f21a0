package memory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/google/uuid"
)

// errOwnerHasTasks mirrors the ON DELETE RESTRICT foreign key.
var errOwnerHasTasks = errors.New("user still owns tasks")

type TaskRepository struct {
	s *Store
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[task.UserID]; !ok {
		return nil, errors.New("owner does not exist")
	}
	task.ID = uuid.NewString()
	task.CreatedAt = r.s.now()
	task.UpdatedAt = task.CreatedAt
	if task.Tags == nil {
		task.Tags = []string{}
	}
	r.s.noteTaskLocked(ctx, task.ID)
	r.s.tasks[task.ID] = copyTask(task)
	return task, nil
}

func (r *TaskRepository) GetByID(_ context.Context, id, ownerID string) (*models.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.visibleLocked(id, ownerID)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyTask(t), nil
}

func (r *TaskRepository) Update(ctx context.Context, task *models.Task, ownerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.visibleLocked(task.ID, ownerID)
	if !ok {
		return common.ErrorNotFound
	}
	updated := copyTask(task)
	updated.UserID = stored.UserID
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = r.s.now()
	r.s.noteTaskLocked(ctx, task.ID)
	r.s.tasks[task.ID] = updated
	task.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id, ownerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.visibleLocked(id, ownerID); !ok {
		return common.ErrorNotFound
	}
	r.s.noteTaskLocked(ctx, id)
	delete(r.s.tasks, id)
	return nil
}

func (r *TaskRepository) visibleLocked(id, ownerID string) (*models.Task, bool) {
	t, ok := r.s.tasks[id]
	if !ok || (ownerID != "" && t.UserID != ownerID) {
		return nil, false
	}
	return t, true
}

func (r *TaskRepository) List(_ context.Context, ownerID string, filter models.TaskFilter) ([]*models.Task, int, error) {
	filter.Normalize()

	r.s.mu.RLock()
	var matched []*models.Task
	for _, t := range r.s.tasks {
		if t.IsArchived ||
			(ownerID != "" && t.UserID != ownerID) ||
			(filter.Status != "" && t.Status != filter.Status) ||
			(filter.Priority != "" && t.Priority != filter.Priority) {
			continue
		}
		matched = append(matched, copyTask(t))
	}
	r.s.mu.RUnlock()

	compare := taskComparator(filter.SortBy)
	desc := filter.SortOrder != "asc"
	slices.SortFunc(matched, func(a, b *models.Task) int {
		if filter.SortBy == "dueDate" {
			if c := dueDateNullsLast(a, b); c != 0 {
				return c
			}
		}
		c := compare(a, b)
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return paginate(matched, filter.Page), len(matched), nil
}

// taskComparator returns an ascending comparison for sortBy.
func taskComparator(sortBy string) func(a, b *models.Task) int {
	switch sortBy {
	case "updatedAt":
		return func(a, b *models.Task) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	case "title":
		return func(a, b *models.Task) int { return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)) }
	case "priority":
		return func(a, b *models.Task) int {
			return cmp.Compare(slices.Index(models.Priorities, a.Priority), slices.Index(models.Priorities, b.Priority))
		}
	case "status":
		return func(a, b *models.Task) int {
			return cmp.Compare(slices.Index(models.Statuses, a.Status), slices.Index(models.Statuses, b.Status))
		}
	case "dueDate":
		return compareDueDate
	default:
		return func(a, b *models.Task) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}

func compareDueDate(a, b *models.Task) int {
	if a.DueDate == nil || b.DueDate == nil {
		return 0
	}
	return a.DueDate.Compare(*b.DueDate)
}

// dueDateNullsLast orders tasks without a due date after the rest regardless
// of sort direction.
func dueDateNullsLast(a, b *models.Task) int {
	switch {
	case a.DueDate == nil && b.DueDate != nil:
		return 1
	case a.DueDate != nil && b.DueDate == nil:
		return -1
	}
	return 0
}

func (r *TaskRepository) ListByOwner(_ context.Context, ownerID string) ([]*models.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := []*models.Task{}
	for _, t := range r.s.tasks {
		if t.UserID == ownerID {
			result = append(result, copyTask(t))
		}
	}
	slices.SortFunc(result, func(a, b *models.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (r *TaskRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, t := range r.s.tasks {
		if t.UserID == ownerID {
			r.s.noteTaskLocked(ctx, id)
			delete(r.s.tasks, id)
			n++
		}
	}
	return n, nil
}

func (r *TaskRepository) Stats(_ context.Context, ownerID string, now time.Time) (models.TaskStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := models.NewTaskStats()
	for _, t := range r.s.tasks {
		if t.IsArchived || (ownerID != "" && t.UserID != ownerID) {
			continue
		}
		stats.Add(t, now)
	}
	return stats, nil
}
