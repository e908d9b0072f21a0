package httpx

import (
	"net/http"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/services"
)

// taskRequest is the body of task create and update. An empty dueDate
// clears the due date on update.
type taskRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Status      *string  `json:"status"`
	Priority    *string  `json:"priority"`
	DueDate     *string  `json:"dueDate"`
	Tags        []string `json:"tags"`
	IsArchived  *bool    `json:"isArchived"`
}

func (t taskRequest) input() services.TaskInput {
	return services.TaskInput{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		Tags:        t.Tags,
		IsArchived:  t.IsArchived,
	}
}

type taskStatsView struct {
	models.TaskStats
	CompletionRate int `json:"completionRate"`
}

func newTaskStatsView(s models.TaskStats) taskStatsView {
	return taskStatsView{TaskStats: s, CompletionRate: s.CompletionRate()}
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.TaskFilter{
		Status:    models.Status(q.Get("status")),
		Priority:  models.Priority(q.Get("priority")),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
		Page:      models.Page{Number: queryInt(r, "page"), Limit: queryInt(r, "limit")},
	}
	filter.Normalize()

	tasks, total, err := a.tasks.List(r.Context(), PrincipalFrom(r.Context()), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	now := a.now()
	views := make([]models.TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, t.View(now))
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "Tasks retrieved successfully",
		"tasks":   views,
		"pagination": envelope{
			"currentPage":  filter.Number,
			"totalPages":   filter.TotalPages(total),
			"totalTasks":   total,
			"tasksPerPage": filter.Limit,
		},
	})
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	task, err := a.tasks.Create(r.Context(), PrincipalFrom(r.Context()), req.input())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"message": "Task successfully created!", "task": task.View(a.now())})
}

func (a *API) taskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.tasks.Stats(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "Task statistics retrieved successfully",
		"stats":   newTaskStatsView(stats),
	})
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := a.tasks.Get(r.Context(), PrincipalFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Task retrieved successfully", "task": task.View(a.now())})
}

func (a *API) updateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	task, err := a.tasks.Update(r.Context(), PrincipalFrom(r.Context()), r.PathValue("id"), req.input())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Task updated successfully", "task": task.View(a.now())})
}

func (a *API) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.tasks.Delete(r.Context(), PrincipalFrom(r.Context()), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Task deleted successfully", "id": id})
}
