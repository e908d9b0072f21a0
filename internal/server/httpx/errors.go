package httpx

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/validation"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{common.ErrInvalidJSON, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON"},
	{common.ErrEmailExists, http.StatusBadRequest, "EMAIL_EXISTS", "User already exists with this email"},
	{common.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"},
	{common.ErrAccountDeactivated, http.StatusUnauthorized, "ACCOUNT_DEACTIVATED", "Account is deactivated"},
	{common.ErrWrongPassword, http.StatusBadRequest, "INVALID_CURRENT_PASSWORD", "Current password is incorrect"},
	{auth.ErrNotAdmin, http.StatusForbidden, "NOT_ADMIN", "Not authorized as an admin"},
	{auth.ErrSelfDeleteNotAllowed, http.StatusBadRequest, "SELF_DELETE_NOT_ALLOWED", "You cannot delete your own account here"},
	{common.ErrTaskNotFound, http.StatusNotFound, "TASK_NOT_FOUND", "Task not found"},
	{common.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", "User not found"},
	{common.ErrorNotFound, http.StatusNotFound, "NOT_FOUND", "Resource not found"},
}

// writeError maps err onto the failure envelope. Anything unrecognised is a
// server fault: it is logged with its cause and reported as SERVER_ERROR.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Message: "Validation failed",
			Error:   "VALIDATION_FAILED",
			Errors:  verr.Fields,
		})
		return
	}

	if f, ok := auth.FailureOf(err); ok {
		writeFailure(w, http.StatusUnauthorized, f.Code(), "Not authorized, "+f.Message())
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			writeFailure(w, m.status, m.code, m.message)
			return
		}
	}

	a.logger.Error(r.Context(), "request failed",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", RequestIDFrom(r.Context()),
	)
	body := errorBody{Message: "Server error", Error: "SERVER_ERROR"}
	if !a.production {
		body.Detail = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, body)
}
