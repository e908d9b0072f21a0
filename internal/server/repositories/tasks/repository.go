// Package tasks stores tasks.
//
// Every single-task operation takes an ownerID. A non-empty ownerID scopes the
// query to that owner, so a task owned by someone else is reported exactly
// like a missing one (common.ErrorNotFound). An empty ownerID is unscoped and
// is only passed for admins.
package tasks

import (
	"context"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	GetByID(ctx context.Context, id, ownerID string) (*models.Task, error)
	// Update writes every mutable field. The owner is never changed.
	Update(ctx context.Context, task *models.Task, ownerID string) error
	Delete(ctx context.Context, id, ownerID string) error
	// List returns one page of non-archived tasks and the total match count.
	List(ctx context.Context, ownerID string, filter models.TaskFilter) ([]*models.Task, int, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Task, error)
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	// Stats aggregates non-archived tasks; an empty ownerID covers everyone.
	Stats(ctx context.Context, ownerID string, now time.Time) (models.TaskStats, error)
}
