package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskkeeper/internal/server/services"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "http-test-secret"

type testServer struct {
	rm      *repomanager.InMemoryRepositoryManager
	api     *API
	handler http.Handler
}

func newTestServer(t *testing.T, production bool) *testServer {
	t.Helper()

	rm := repomanager.NewInMemoryRepositoryManager()
	issuer, err := auth.NewIssuer(testSecret)
	require.NoError(t, err)

	revocations, err := auth.NewMemoryRevocationStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = revocations.Close() })

	resolver := auth.NewResolver(issuer, rm.Users(rm.Conn()), auth.WithRevocations(revocations))
	users := services.NewUserService(rm, auth.NewHasher(bcrypt.MinCost), issuer,
		services.WithRevocationStore(revocations),
		services.WithInvalidator(resolver),
		services.WithLogger(logging.Discard()),
	)

	api := NewAPI(Options{
		Users:          users,
		Tasks:          services.NewTaskService(rm),
		Resolver:       resolver,
		Logger:         logging.Discard(),
		Production:     production,
		AllowedOrigins: []string{"https://app.example.com"},
	})
	return &testServer{rm: rm, api: api, handler: api.Handler()}
}

// do sends a JSON request and decodes the JSON response.
func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

// register signs up a user and returns its token and id.
func (s *testServer) register(t *testing.T, first, email string) (token, id string) {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/register", "", map[string]string{
		"firstName": first,
		"lastName":  "Tester",
		"email":     email,
		"password":  "secret1",
	})
	require.Equal(t, http.StatusCreated, code, body)
	user := body["user"].(map[string]any)
	return body["token"].(string), user["id"].(string)
}

func (s *testServer) registerAdmin(t *testing.T, email string) (token, id string) {
	t.Helper()
	token, id = s.register(t, "Admin", email)
	repo := s.rm.Users(s.rm.Conn())
	u, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	u.Role = models.RoleAdmin
	require.NoError(t, repo.Update(context.Background(), u))
	return token, id
}

func (s *testServer) createTask(t *testing.T, token, title string) string {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/tasks", token, map[string]any{"title": title})
	require.Equal(t, http.StatusCreated, code, body)
	return body["task"].(map[string]any)["id"].(string)
}

func bearer(token string) string {
	return fmt.Sprintf("Bearer %v", token)
}
