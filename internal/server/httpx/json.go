package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/validation"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every successful response.
type envelope map[string]any

// errorBody is the failure envelope. Errors is only set for validation
// failures, Detail only outside production.
type errorBody struct {
	Message string                  `json:"message"`
	Error   string                  `json:"error"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
	Detail  string                  `json:"detail,omitempty"`
}

// decodeJSON reads a single JSON value from the request body into dst.
// Unknown fields are ignored so clients can echo whole records back.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidJSON, err)
	}
	return nil
}

// writeJSON buffers v so an encoding failure can still produce a clean 500.
func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

func writeFailure(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, errorBody{Message: message, Error: errCode})
}

// queryInt returns the named query parameter as an int, or 0 when absent or
// not a number.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

// queryBool returns nil unless the parameter is a parseable boolean.
func queryBool(r *http.Request, name string) *bool {
	b, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		return nil
	}
	return &b
}
