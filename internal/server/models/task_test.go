package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_SetStatus_CompletedDateTransitions(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	task := NewTask("u1")

	task.SetStatus(StatusCompleted, now)
	require.NotNil(t, task.CompletedDate)
	assert.Equal(t, now, *task.CompletedDate)

	task.SetStatus(StatusCompleted, now.Add(time.Hour))
	assert.Equal(t, now, *task.CompletedDate, "re-completing keeps the first stamp")

	task.SetStatus(StatusPending, now.Add(2*time.Hour))
	assert.Nil(t, task.CompletedDate)
	assert.Equal(t, StatusPending, task.Status)

	task.SetStatus(StatusInProgress, now)
	assert.Nil(t, task.CompletedDate)

	task.SetStatus(StatusCompleted, now.Add(3*time.Hour))
	require.NotNil(t, task.CompletedDate)
	assert.Equal(t, now.Add(3*time.Hour), *task.CompletedDate)
}

func TestTask_Defaults(t *testing.T) {
	task := NewTask("owner")
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, "owner", task.UserID)
	assert.NotNil(t, task.Tags)
}

func TestTask_IsOverdue(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{name: "no due date", task: Task{Status: StatusPending}, want: false},
		{name: "past pending", task: Task{Status: StatusPending, DueDate: &past}, want: true},
		{name: "past completed", task: Task{Status: StatusCompleted, DueDate: &past}, want: false},
		{name: "future", task: Task{Status: StatusInProgress, DueDate: &future}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.IsOverdue(now))
		})
	}
}

func TestTask_DaysUntilDue(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(36 * time.Hour)

	task := Task{DueDate: &due}
	require.NotNil(t, task.DaysUntilDue(now))
	assert.Equal(t, 2, *task.DaysUntilDue(now))
	assert.Nil(t, (&Task{}).DaysUntilDue(now))
}

func TestTask_View(t *testing.T) {
	now := time.Now()
	task := &Task{ID: "t1", Title: "Buy milk", Status: StatusPending, Priority: PriorityLow, UserID: "u1"}

	v := task.View(now)

	assert.Equal(t, "u1", v.User)
	assert.Equal(t, []string{}, v.Tags)
	assert.Nil(t, v.CompletedDate)
	assert.False(t, v.IsOverdue)
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"home", "urgent stuff"}, NormalizeTags([]string{" home ", "", "   ", "urgent stuff"}))
	assert.Equal(t, []string{}, NormalizeTags(nil))
}

func TestEnums(t *testing.T) {
	assert.True(t, StatusInProgress.Valid())
	assert.False(t, Status("Done").Valid())
	assert.True(t, PriorityUrgent.Valid())
	assert.False(t, Priority("Critical").Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("root").Valid())
}

func TestTaskFilter_Normalize(t *testing.T) {
	f := TaskFilter{SortBy: "password", SortOrder: "sideways", Page: Page{Number: -1, Limit: 1000}}
	f.Normalize()

	assert.Equal(t, "createdAt", f.SortBy)
	assert.Equal(t, "desc", f.SortOrder)
	assert.Equal(t, 1, f.Number)
	assert.Equal(t, MaxPageLimit, f.Limit)

	f = TaskFilter{SortBy: "dueDate", SortOrder: "asc"}
	f.Normalize()
	assert.Equal(t, "dueDate", f.SortBy)
	assert.Equal(t, "asc", f.SortOrder)
	assert.Equal(t, DefaultPageLimit, f.Limit)
}

func TestPage(t *testing.T) {
	p := Page{Number: 3, Limit: 10}
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 0, p.TotalPages(0))
	assert.Equal(t, 1, p.TotalPages(10))
	assert.Equal(t, 3, p.TotalPages(21))
}

func TestPage_HugeNumberDoesNotOverflow(t *testing.T) {
	p := Page{Number: math.MaxInt, Limit: MaxPageLimit}
	assert.Equal(t, (MaxPageNumber-1)*MaxPageLimit, p.Offset())

	p.Normalize()
	assert.Equal(t, MaxPageNumber, p.Number)

	assert.Zero(t, Page{Number: math.MinInt, Limit: -5}.Offset())
}

func TestTaskStats(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	s := NewTaskStats()
	s.Add(&Task{Status: StatusCompleted, Priority: PriorityHigh}, now)
	s.Add(&Task{Status: StatusPending, Priority: PriorityHigh, DueDate: &past}, now)
	s.Add(&Task{Status: StatusPending, Priority: PriorityLow}, now)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.ByStatus[StatusPending])
	assert.Equal(t, 0, s.ByStatus[StatusInProgress])
	assert.Equal(t, 2, s.ByPriority[PriorityHigh])
	assert.Equal(t, 0, s.ByPriority[PriorityUrgent])
	assert.Equal(t, 1, s.Overdue)
	assert.Equal(t, 33, s.CompletionRate())
	assert.Equal(t, 0, NewTaskStats().CompletionRate())
}

func TestUser_View(t *testing.T) {
	u := &User{ID: "u1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@x.com", PasswordHash: "$2a$...", Salt: "s", Role: RoleAdmin}

	v := u.View()

	assert.Equal(t, "Ada Lovelace", v.FullName)
	assert.True(t, u.IsAdmin())
	assert.Equal(t, "ada@x.com", NormalizeEmail("  ADA@X.com "))
}
