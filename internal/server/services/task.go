package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskkeeper/internal/server/validation"
	"github.com/dmitrijs2005/taskkeeper/internal/timex"
)

const (
	maxTitleLen       = 255
	maxDescriptionLen = 2000
)

// TaskInput carries the task fields of a create or update request. Nil
// fields are left unchanged on update. DueDate is the raw client value; an
// empty string clears it.
type TaskInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *string
	Tags        []string
	IsArchived  *bool
}

// TaskService manages tasks on behalf of a principal. Single-task operations
// are scoped with auth.OwnerScope, so admins reach every task and everyone
// else only their own. Listing and stats always cover the caller's own tasks.
type TaskService struct {
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewTaskService(m repomanager.RepositoryManager) *TaskService {
	return &TaskService{repomanager: m, now: time.Now}
}

func (s *TaskService) List(ctx context.Context, p *auth.Principal, filter models.TaskFilter) ([]*models.Task, int, error) {
	err := validation.New().
		Optional("status", optionalString(string(filter.Status)), statusRule).
		Optional("priority", optionalString(string(filter.Priority)), priorityRule).
		Err()
	if err != nil {
		return nil, 0, err
	}
	tasks, total, err := s.repomanager.Tasks(s.repomanager.Conn()).List(ctx, p.UserID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing tasks: %w", err)
	}
	return tasks, total, nil
}

func (s *TaskService) Create(ctx context.Context, p *auth.Principal, in TaskInput) (*models.Task, error) {
	now := s.now()
	fv := validateTask(in, true)
	due, ok := parseDueDate(fv, in.DueDate)
	if ok && due != nil && due.Before(timex.StartOfDay(now)) {
		fv.Add("dueDate", "Due date cannot be in the past")
	}
	if err := fv.Err(); err != nil {
		return nil, err
	}

	task := models.NewTask(p.UserID)
	task.DueDate = due
	applyTaskInput(task, in, now)

	task, err := s.repomanager.Tasks(s.repomanager.Conn()).Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("error creating task: %w", err)
	}
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, p *auth.Principal, id string) (*models.Task, error) {
	task, err := s.repomanager.Tasks(s.repomanager.Conn()).GetByID(ctx, id, auth.OwnerScope(p))
	if err != nil {
		return nil, taskError(err)
	}
	if err := auth.AuthorizeOwnerOrAdmin(p, task.UserID); err != nil {
		return nil, common.ErrTaskNotFound
	}
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, p *auth.Principal, id string, in TaskInput) (*models.Task, error) {
	fv := validateTask(in, false)
	due, dueSet := parseDueDate(fv, in.DueDate)
	if err := fv.Err(); err != nil {
		return nil, err
	}

	task, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if dueSet {
		task.DueDate = due
	}
	applyTaskInput(task, in, s.now())

	if err := s.repomanager.Tasks(s.repomanager.Conn()).Update(ctx, task, auth.OwnerScope(p)); err != nil {
		return nil, taskError(err)
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	if err := s.repomanager.Tasks(s.repomanager.Conn()).Delete(ctx, id, auth.OwnerScope(p)); err != nil {
		return taskError(err)
	}
	return nil
}

func (s *TaskService) Stats(ctx context.Context, p *auth.Principal) (models.TaskStats, error) {
	stats, err := s.repomanager.Tasks(s.repomanager.Conn()).Stats(ctx, p.UserID, s.now())
	if err != nil {
		return models.TaskStats{}, fmt.Errorf("error loading task stats: %w", err)
	}
	return stats, nil
}

// --- helpers below ---

var (
	statusRule   = validation.OneOf("Status", statusNames()...)
	priorityRule = validation.OneOf("Priority", priorityNames()...)
)

func statusNames() []string {
	out := make([]string, 0, len(models.Statuses))
	for _, s := range models.Statuses {
		out = append(out, string(s))
	}
	return out
}

func priorityNames() []string {
	out := make([]string, 0, len(models.Priorities))
	for _, p := range models.Priorities {
		out = append(out, string(p))
	}
	return out
}

func validateTask(in TaskInput, create bool) *validation.FieldValidator {
	fv := validation.New()
	if create {
		title := ""
		if in.Title != nil {
			title = *in.Title
		}
		fv.Validate("title", title, validation.Required("Title", maxTitleLen))
	} else {
		fv.Optional("title", in.Title, validation.Required("Title", maxTitleLen))
	}
	return fv.
		Optional("description", in.Description, validation.MaxLen("Description", maxDescriptionLen)).
		Optional("status", in.Status, statusRule).
		Optional("priority", in.Priority, priorityRule)
}

// parseDueDate reads the dueDate field. set reports whether the request
// touched the field at all; a nil result with set == true clears it.
func parseDueDate(fv *validation.FieldValidator, raw *string) (due *time.Time, set bool) {
	if raw == nil {
		return nil, false
	}
	v := strings.TrimSpace(*raw)
	if v == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	fv.Add("dueDate", "Due date must be a valid date")
	return nil, false
}

// applyTaskInput copies validated fields onto task. Status goes through
// SetStatus so completedDate follows it.
func applyTaskInput(task *models.Task, in TaskInput, now time.Time) {
	if in.Title != nil {
		task.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		task.Description = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		task.Priority = models.Priority(*in.Priority)
	}
	if in.Tags != nil {
		task.Tags = models.NormalizeTags(in.Tags)
	}
	if in.IsArchived != nil {
		task.IsArchived = *in.IsArchived
	}
	if in.Status != nil {
		task.SetStatus(models.Status(*in.Status), now)
	}
}

func taskError(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrTaskNotFound
	}
	return fmt.Errorf("task store: %w", err)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
