package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/dbx"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/google/uuid"
)

const taskColumns = `id, user_id, title, description, status, priority, due_date, completed_date, tags, is_archived, created_at, updated_at`

// sortExpressions maps the accepted sortBy values to SQL. Priority and status
// sort by rank rather than alphabetically.
var sortExpressions = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"title":     "lower(title)",
	"priority":  "CASE priority WHEN 'Low' THEN 1 WHEN 'Medium' THEN 2 WHEN 'High' THEN 3 WHEN 'Urgent' THEN 4 END",
	"status":    "CASE status WHEN 'Pending' THEN 1 WHEN 'In Progress' THEN 2 WHEN 'Completed' THEN 3 END",
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	tags, err := encodeTags(task.Tags)
	if err != nil {
		return nil, err
	}
	query :=
		`INSERT INTO tasks (user_id, title, description, status, priority, due_date, completed_date, tags, is_archived)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		task.UserID, task.Title, task.Description, task.Status, task.Priority,
		nullTime(task.DueDate), nullTime(task.CompletedDate), tags, task.IsArchived,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id, ownerID string) (*models.Task, error) {
	if !validIDs(id, ownerID) {
		return nil, common.ErrorNotFound
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	args := []any{id}
	query, args = scopeToOwner(query, args, ownerID)

	task, err := scanTask(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

func (r *PostgresRepository) Update(ctx context.Context, task *models.Task, ownerID string) error {
	if !validIDs(task.ID, ownerID) {
		return common.ErrorNotFound
	}
	tags, err := encodeTags(task.Tags)
	if err != nil {
		return err
	}
	query :=
		`UPDATE tasks
		 SET title = $2, description = $3, status = $4, priority = $5, due_date = $6,
		     completed_date = $7, tags = $8, is_archived = $9, updated_at = now()
		 WHERE id = $1`
	args := []any{task.ID, task.Title, task.Description, task.Status, task.Priority,
		nullTime(task.DueDate), nullTime(task.CompletedDate), tags, task.IsArchived}
	query, args = scopeToOwner(query, args, ownerID)

	err = r.db.QueryRowContext(ctx, query+` RETURNING updated_at`, args...).Scan(&task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID string) error {
	if !validIDs(id, ownerID) {
		return common.ErrorNotFound
	}
	query, args := scopeToOwner(`DELETE FROM tasks WHERE id = $1`, []any{id}, ownerID)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, ownerID string, filter models.TaskFilter) ([]*models.Task, int, error) {
	filter.Normalize()
	if ownerID != "" && uuid.Validate(ownerID) != nil {
		return []*models.Task{}, 0, nil
	}

	where := []string{"NOT is_archived"}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, cond+" = $"+strconv.Itoa(len(args)))
	}
	if ownerID != "" {
		add("user_id", ownerID)
	}
	if filter.Status != "" {
		add("status", filter.Status)
	}
	if filter.Priority != "" {
		add("priority", filter.Priority)
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM tasks`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	order := "DESC"
	if filter.SortOrder == "asc" {
		order = "ASC"
	}
	query := `SELECT ` + taskColumns + ` FROM tasks` + cond +
		` ORDER BY ` + sortExpressions[filter.SortBy] + ` ` + order + ` NULLS LAST, id` +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select tasks: %w", err)
	}
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Task, error) {
	if uuid.Validate(ownerID) != nil {
		return []*models.Task{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select tasks: %w", err)
	}
	return scanTasks(rows)
}

func (r *PostgresRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	if uuid.Validate(ownerID) != nil {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Stats(ctx context.Context, ownerID string, now time.Time) (models.TaskStats, error) {
	stats := models.NewTaskStats()
	if ownerID != "" && uuid.Validate(ownerID) != nil {
		return stats, nil
	}

	query :=
		`SELECT status, priority, count(*),
		        count(*) FILTER (WHERE due_date < $1 AND status <> 'Completed')
		 FROM tasks
		 WHERE NOT is_archived`
	args := []any{now}
	if ownerID != "" {
		query += ` AND user_id = $2`
		args = append(args, ownerID)
	}
	query += ` GROUP BY status, priority`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return stats, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status   models.Status
			priority models.Priority
			n        int
			overdue  int
		)
		if err := rows.Scan(&status, &priority, &n, &overdue); err != nil {
			return stats, err
		}
		stats.Total += n
		stats.ByStatus[status] += n
		stats.ByPriority[priority] += n
		stats.Overdue += overdue
	}
	return stats, rows.Err()
}

// scopeToOwner appends the owner condition when ownerID is set.
func scopeToOwner(query string, args []any, ownerID string) (string, []any) {
	if ownerID == "" {
		return query, args
	}
	args = append(args, ownerID)
	return query + ` AND user_id = $` + strconv.Itoa(len(args)), args
}

func validIDs(id, ownerID string) bool {
	if uuid.Validate(id) != nil {
		return false
	}
	return ownerID == "" || uuid.Validate(ownerID) == nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t             models.Task
		dueDate       sql.NullTime
		completedDate sql.NullTime
		tags          []byte
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&dueDate, &completedDate, &tags, &t.IsArchived, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.DueDate = timePtr(dueDate)
	t.CompletedDate = timePtr(completedDate)
	t.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &t.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*models.Task, error) {
	defer rows.Close()

	result := []*models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
