// Package httpx is the JSON-over-HTTP transport of the task tracker: routing,
// middleware, bearer authentication and the mapping of service errors onto
// the {message, error, errors} failure envelope.
package httpx

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/services"
	"github.com/google/uuid"
)

// Options configures an API.
type Options struct {
	Users      *services.UserService
	Tasks      *services.TaskService
	Resolver   PrincipalResolver
	Logger     logging.Logger
	Production bool
	// AllowedOrigins feeds the CORS policy; empty disables cross-origin access.
	AllowedOrigins []string
}

// API holds the HTTP handlers.
type API struct {
	users      *services.UserService
	tasks      *services.TaskService
	resolver   PrincipalResolver
	logger     logging.Logger
	production bool
	cors       CORSConfig
	now        func() time.Time
}

func NewAPI(o Options) *API {
	logger := o.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &API{
		users:      o.Users,
		tasks:      o.Tasks,
		resolver:   o.Resolver,
		logger:     logger.With("module", "http"),
		production: o.Production,
		cors:       DefaultCORSConfig(o.AllowedOrigins),
		now:        time.Now,
	}
}

// Handler returns the routes wrapped in the middleware chain. Every route is
// served both at the root and under /api.
func (a *API) Handler() http.Handler {
	routes := a.routes()

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", routes))
	root.Handle("/", routes)

	return Chain(root,
		Recover(a.logger),
		RequestID(uuid.NewString),
		Logging(a.logger),
		SecurityHeaders(),
		CORS(a.cors),
	)
}

func (a *API) routes() *http.ServeMux {
	mux := http.NewServeMux()

	authed := func(h http.HandlerFunc) http.Handler { return a.RequireAuth(h) }
	admin := func(h http.HandlerFunc) http.Handler { return a.RequireAuth(a.RequireAdmin(h)) }

	mux.Handle("GET /healthz", a.OptionalAuth(http.HandlerFunc(a.health)))

	mux.HandleFunc("POST /register", a.register)
	mux.HandleFunc("POST /login", a.login)
	mux.Handle("POST /logout", authed(a.logout))

	mux.Handle("GET /users/profile", authed(a.profile))
	mux.Handle("PUT /users/profile", authed(a.updateProfile))
	mux.Handle("DELETE /users/profile", authed(a.deleteProfile))
	mux.Handle("PUT /users/profile/password", authed(a.changePassword))

	mux.Handle("GET /tasks", authed(a.listTasks))
	mux.Handle("POST /tasks", authed(a.createTask))
	mux.Handle("GET /tasks/stats", authed(a.taskStats))
	mux.Handle("GET /tasks/{id}", authed(a.getTask))
	mux.Handle("PUT /tasks/{id}", authed(a.updateTask))
	mux.Handle("DELETE /tasks/{id}", authed(a.deleteTask))

	mux.Handle("GET /users", admin(a.listUsers))
	mux.Handle("GET /users/stats", admin(a.systemStats))
	mux.Handle("GET /users/{id}", admin(a.getUser))
	mux.Handle("PUT /users/{id}", admin(a.updateUser))
	mux.Handle("DELETE /users/{id}", admin(a.deleteUser))

	mux.HandleFunc("/", a.notFound)
	return mux
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	body := envelope{"status": "ok"}
	if p := PrincipalFrom(r.Context()); p != nil {
		body["user"] = p.UserID
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *API) notFound(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusNotFound, "ROUTE_NOT_FOUND", "Route "+r.URL.Path+" not found")
}
