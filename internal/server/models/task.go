package models

import (
	"math"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of a task. Any status may be set directly.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// Priorities lists every valid priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// Task is a unit of work owned by exactly one user. UserID is set on creation
// and never changes.
type Task struct {
	ID            string
	Title         string
	Description   string
	Status        Status
	Priority      Priority
	DueDate       *time.Time
	CompletedDate *time.Time
	Tags          []string
	IsArchived    bool
	UserID        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewTask returns a task owned by ownerID with default status and priority.
func NewTask(ownerID string) *Task {
	return &Task{
		Status:   StatusPending,
		Priority: PriorityMedium,
		Tags:     []string{},
		UserID:   ownerID,
	}
}

// SetStatus moves the task to s. Entering Completed stamps CompletedDate with
// now; any other status clears it. Re-completing keeps the original stamp.
func (t *Task) SetStatus(s Status, now time.Time) {
	if s != StatusCompleted {
		t.CompletedDate = nil
	} else if t.Status != StatusCompleted || t.CompletedDate == nil {
		ts := now.UTC()
		t.CompletedDate = &ts
	}
	t.Status = s
}

// IsOverdue reports whether the due date has passed on an unfinished task.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.Status != StatusCompleted && t.DueDate.Before(now)
}

// DaysUntilDue rounds up the days left until the due date; negative when
// overdue. Nil when there is no due date.
func (t *Task) DaysUntilDue(now time.Time) *int {
	if t.DueDate == nil {
		return nil
	}
	days := int(math.Ceil(t.DueDate.Sub(now).Hours() / 24))
	return &days
}

// TaskView is the JSON representation of a task.
type TaskView struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Status        Status     `json:"status"`
	Priority      Priority   `json:"priority"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`
	Tags          []string   `json:"tags"`
	IsArchived    bool       `json:"isArchived"`
	User          string     `json:"user"`
	IsOverdue     bool       `json:"isOverdue"`
	DaysUntilDue  *int       `json:"daysUntilDue,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (t *Task) View(now time.Time) TaskView {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return TaskView{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        t.Status,
		Priority:      t.Priority,
		DueDate:       t.DueDate,
		CompletedDate: t.CompletedDate,
		Tags:          tags,
		IsArchived:    t.IsArchived,
		User:          t.UserID,
		IsOverdue:     t.IsOverdue(now),
		DaysUntilDue:  t.DaysUntilDue(now),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// NormalizeTags trims every tag and drops the empty ones.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// TaskSortFields lists the accepted sortBy values.
var TaskSortFields = []string{"createdAt", "updatedAt", "dueDate", "priority", "status", "title"}

// TaskFilter selects a page of a user's tasks.
type TaskFilter struct {
	Status    Status
	Priority  Priority
	SortBy    string
	SortOrder string
	Page
}

// Normalize replaces unknown sort options with createdAt/desc.
func (f *TaskFilter) Normalize() {
	if !slices.Contains(TaskSortFields, f.SortBy) {
		f.SortBy = "createdAt"
	}
	if f.SortOrder != "asc" {
		f.SortOrder = "desc"
	}
	f.Page.Normalize()
}

// TaskStats aggregates non-archived tasks.
type TaskStats struct {
	Total      int              `json:"totalTasks"`
	ByStatus   map[Status]int   `json:"statusBreakdown"`
	ByPriority map[Priority]int `json:"priorityBreakdown"`
	Overdue    int              `json:"overdueTasks"`
}

// NewTaskStats returns stats with every status and priority present at zero.
func NewTaskStats() TaskStats {
	s := TaskStats{
		ByStatus:   make(map[Status]int, len(Statuses)),
		ByPriority: make(map[Priority]int, len(Priorities)),
	}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}
	for _, p := range Priorities {
		s.ByPriority[p] = 0
	}
	return s
}

// Add counts t into the stats.
func (s *TaskStats) Add(t *Task, now time.Time) {
	s.Total++
	s.ByStatus[t.Status]++
	s.ByPriority[t.Priority]++
	if t.IsOverdue(now) {
		s.Overdue++
	}
}

// CompletionRate is the rounded percentage of completed tasks.
func (s TaskStats) CompletionRate() int {
	if s.Total == 0 {
		return 0
	}
	return int(math.Round(float64(s.ByStatus[StatusCompleted]) / float64(s.Total) * 100))
}
