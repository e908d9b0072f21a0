package httpx

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
)

func TestCreateTask_Defaults(t *testing.T) {
	s := newTestServer(t, false)
	token, id := s.register(t, "Ann", "a@x.com")

	apitest.New().
		Handler(s.handler).
		Post("/tasks").
		Header("Authorization", bearer(token)).
		JSON(`{"title":"Buy milk","tags":[" home ",""],"dueDate":"2099-01-01"}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.task.title", "Buy milk")).
		Assert(jsonpath.Equal("$.task.status", "Pending")).
		Assert(jsonpath.Equal("$.task.priority", "Medium")).
		Assert(jsonpath.Equal("$.task.user", id)).
		Assert(jsonpath.Equal("$.task.tags", []any{"home"})).
		Assert(jsonpath.Equal("$.task.isOverdue", false)).
		Assert(jsonpath.Present("$.task.dueDate")).
		Assert(jsonpath.NotPresent("$.task.completedDate")).
		End()
}

func TestCreateTask_Validation(t *testing.T) {
	s := newTestServer(t, false)
	token, _ := s.register(t, "Ann", "a@x.com")

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"missing title", `{"description":"x"}`, "title"},
		{"bad status", `{"title":"t","status":"Done"}`, "status"},
		{"bad priority", `{"title":"t","priority":"Critical"}`, "priority"},
		{"past due date", `{"title":"t","dueDate":"2001-01-01"}`, "dueDate"},
		{"unparseable due date", `{"title":"t","dueDate":"tomorrow"}`, "dueDate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			apitest.New().
				Handler(s.handler).
				Post("/tasks").
				Header("Authorization", bearer(token)).
				JSON(tc.body).
				Expect(t).
				Status(http.StatusBadRequest).
				Assert(jsonpath.Equal("$.error", "VALIDATION_FAILED")).
				Assert(jsonpath.Contains("$.errors[*].field", tc.field)).
				End()
		})
	}
}

func TestTask_OtherUserSeesNotFound(t *testing.T) {
	s := newTestServer(t, false)
	tokenA, _ := s.register(t, "Ann", "a@x.com")
	tokenB, _ := s.register(t, "Bob", "b@x.com")
	taskID := s.createTask(t, tokenA, "Buy milk")

	apitest.New().
		Handler(s.handler).
		Get("/tasks/"+taskID).
		Header("Authorization", bearer(tokenB)).
		Expect(t).
		Status(http.StatusNotFound).
		Assert(jsonpath.Equal("$.error", "TASK_NOT_FOUND")).
		End()

	apitest.New().
		Handler(s.handler).
		Put("/tasks/"+taskID).
		Header("Authorization", bearer(tokenB)).
		JSON(`{"title":"stolen"}`).
		Expect(t).
		Status(http.StatusNotFound).
		Assert(jsonpath.Equal("$.error", "TASK_NOT_FOUND")).
		End()

	apitest.New().
		Handler(s.handler).
		Delete("/tasks/"+taskID).
		Header("Authorization", bearer(tokenB)).
		Expect(t).
		Status(http.StatusNotFound).
		Assert(jsonpath.Equal("$.error", "TASK_NOT_FOUND")).
		End()

	// a denial looks exactly like a missing task
	apitest.New().
		Handler(s.handler).
		Get("/tasks/"+uuid.NewString()).
		Header("Authorization", bearer(tokenB)).
		Expect(t).
		Status(http.StatusNotFound).
		Assert(jsonpath.Equal("$.error", "TASK_NOT_FOUND")).
		End()

	apitest.New().
		Handler(s.handler).
		Get("/tasks/"+taskID).
		Header("Authorization", bearer(tokenA)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.task.title", "Buy milk")).
		End()
}

func TestTask_AdminReachesAnyTask(t *testing.T) {
	s := newTestServer(t, false)
	adminToken, _ := s.registerAdmin(t, "root@x.com")
	userToken, userID := s.register(t, "Ann", "a@x.com")
	taskID := s.createTask(t, userToken, "Buy milk")

	apitest.New().
		Handler(s.handler).
		Put("/tasks/"+taskID).
		Header("Authorization", bearer(adminToken)).
		JSON(`{"priority":"High"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.task.priority", "High")).
		Assert(jsonpath.Equal("$.task.user", userID)).
		End()

	apitest.New().
		Handler(s.handler).
		Delete("/tasks/"+taskID).
		Header("Authorization", bearer(adminToken)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.id", taskID)).
		End()
}

func TestTask_CompletedDateFollowsStatus(t *testing.T) {
	s := newTestServer(t, false)
	token, _ := s.register(t, "Ann", "a@x.com")
	taskID := s.createTask(t, token, "Buy milk")

	apitest.New().
		Handler(s.handler).
		Put("/tasks/"+taskID).
		Header("Authorization", bearer(token)).
		JSON(`{"status":"Completed"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.task.status", "Completed")).
		Assert(jsonpath.Present("$.task.completedDate")).
		End()

	apitest.New().
		Handler(s.handler).
		Put("/tasks/"+taskID).
		Header("Authorization", bearer(token)).
		JSON(`{"status":"Pending"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.task.status", "Pending")).
		Assert(jsonpath.NotPresent("$.task.completedDate")).
		End()
}

func TestListTasks_PaginatesOwnTasks(t *testing.T) {
	s := newTestServer(t, false)
	tokenA, _ := s.register(t, "Ann", "a@x.com")
	tokenB, _ := s.register(t, "Bob", "b@x.com")
	for _, title := range []string{"a", "b", "c"} {
		s.createTask(t, tokenA, title)
	}
	s.createTask(t, tokenB, "not mine")

	apitest.New().
		Handler(s.handler).
		Get("/tasks").
		Query("limit", "2").
		Query("page", "2").
		Query("sortBy", "title").
		Query("sortOrder", "asc").
		Header("Authorization", bearer(tokenA)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$.tasks", 1)).
		Assert(jsonpath.Equal("$.tasks[0].title", "c")).
		Assert(jsonpath.Equal("$.pagination.currentPage", float64(2))).
		Assert(jsonpath.Equal("$.pagination.totalPages", float64(2))).
		Assert(jsonpath.Equal("$.pagination.totalTasks", float64(3))).
		Assert(jsonpath.Equal("$.pagination.tasksPerPage", float64(2))).
		End()

	apitest.New().
		Handler(s.handler).
		Get("/tasks").
		Query("status", "Finished").
		Header("Authorization", bearer(tokenA)).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.error", "VALIDATION_FAILED")).
		End()
}

func TestListTasks_HugePageIsEmpty(t *testing.T) {
	s := newTestServer(t, false)
	token, _ := s.register(t, "Ann", "a@x.com")
	s.createTask(t, token, "a")

	apitest.New().
		Handler(s.handler).
		Get("/tasks").
		Query("page", "9223372036854775807").
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$.tasks", 0)).
		Assert(jsonpath.Equal("$.pagination.totalTasks", float64(1))).
		End()
}

func TestTaskStats(t *testing.T) {
	s := newTestServer(t, false)
	token, _ := s.register(t, "Ann", "a@x.com")
	first := s.createTask(t, token, "one")
	s.createTask(t, token, "two")

	apitest.New().
		Handler(s.handler).
		Put("/tasks/"+first).
		Header("Authorization", bearer(token)).
		JSON(`{"status":"Completed"}`).
		Expect(t).
		Status(http.StatusOK).
		End()

	apitest.New().
		Handler(s.handler).
		Get("/api/tasks/stats").
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.stats.totalTasks", float64(2))).
		Assert(jsonpath.Equal("$.stats.statusBreakdown.Completed", float64(1))).
		Assert(jsonpath.Equal("$.stats.priorityBreakdown.Medium", float64(2))).
		Assert(jsonpath.Equal("$.stats.overdueTasks", float64(0))).
		Assert(jsonpath.Equal("$.stats.completionRate", float64(50))).
		End()
}
