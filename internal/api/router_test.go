package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pantrypal/users-api/internal/database"
	"github.com/pantrypal/users-api/internal/models"
	"github.com/pantrypal/users-api/internal/monitoring"
	"github.com/pantrypal/users-api/internal/services"
)

const testAPIKey = "pantry_test_api_key"

func setupRouter(t *testing.T, opts Options) (http.Handler, *services.UserService) {
	t.Helper()
	db, err := database.New(database.DriverSQLite, ":memory:", 0)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, database.DriverSQLite); err != nil {
		t.Fatalf("database.Migrate: %v", err)
	}

	if opts.APIKey == "" {
		opts.APIKey = testAPIKey
	}
	svc := services.NewUserService(db)
	return NewRouter(svc, opts), svc
}

func call(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", testAPIKey)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", rr.Body.String(), err)
	}
	return out
}

func expectBody(t *testing.T, rr *httptest.ResponseRecorder, status int, key, value string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d (%s)", status, rr.Code, rr.Body.String())
	}
	body := decode[map[string]string](t, rr)
	if body[key] != value {
		t.Fatalf("expected %s=%q, got %v", key, value, body)
	}
}

func TestUserLifecycle(t *testing.T) {
	h, _ := setupRouter(t, Options{})

	amy := `{"handle":"amy","password":"p1","full_name":"Amy A","profile_picture":"amy.png"}`
	expectBody(t, call(t, h, http.MethodPost, "/api/users/", amy), http.StatusCreated, "message", "User created successfully")

	rr := call(t, h, http.MethodGet, "/api/users/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	users := decode[[]models.User](t, rr)
	want := models.User{ID: 1, Handle: "amy", Password: "p1", FullName: "Amy A", ProfilePicture: "amy.png"}
	if len(users) != 1 || users[0] != want {
		t.Fatalf("expected [%+v], got %+v", want, users)
	}
	if !strings.Contains(rr.Body.String(), `"user":"amy"`) {
		t.Fatalf("expected handle serialized as user: %s", rr.Body.String())
	}

	expectBody(t, call(t, h, http.MethodPost, "/api/users/", amy), http.StatusConflict, "error", "User already exists")

	rr = call(t, h, http.MethodGet, "/api/users/1", "")
	if got := decode[models.User](t, rr); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	expectBody(t, call(t, h, http.MethodPut, "/api/users/1", `{"password":"p2","full_name":"Amy A","profile_picture":"amy.png"}`),
		http.StatusOK, "message", "User updated successfully")
	rr = call(t, h, http.MethodGet, "/api/users/1", "")
	if got := decode[models.User](t, rr); got.Password != "p2" || got.Handle != "amy" || got.ID != 1 {
		t.Fatalf("unexpected user after update: %+v", got)
	}

	expectBody(t, call(t, h, http.MethodDelete, "/api/users/1", ""), http.StatusOK, "message", "User deleted successfully")
	expectBody(t, call(t, h, http.MethodGet, "/api/users/1", ""), http.StatusNotFound, "error", "User not found")
	expectBody(t, call(t, h, http.MethodDelete, "/api/users/1", ""), http.StatusNotFound, "error", "User not found")
}

func TestConflictLeavesRowCountUnchanged(t *testing.T) {
	h, svc := setupRouter(t, Options{})

	call(t, h, http.MethodPost, "/api/users", `{"user":"amy","password":"p1","full_name":"Amy A","profile_picture":"amy.png"}`)
	rr := call(t, h, http.MethodPost, "/api/users", `{"user":"amy","password":"zz","full_name":"Other","profile_picture":"o.png"}`)
	expectBody(t, rr, http.StatusConflict, "error", "User already exists")

	n, err := svc.CountUsers(context.Background())
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 user, got %d", n)
	}
}

func TestUpdateMissingUserChangesNothing(t *testing.T) {
	h, svc := setupRouter(t, Options{})

	call(t, h, http.MethodPost, "/api/users/", `{"user":"amy","password":"p1","full_name":"Amy A","profile_picture":"amy.png"}`)
	rr := call(t, h, http.MethodPut, "/api/users/2", `{"password":"p2","full_name":"X","profile_picture":"x.png"}`)
	expectBody(t, rr, http.StatusNotFound, "error", "User not found")

	users, err := svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || users[0].Password != "p1" || users[0].FullName != "Amy A" {
		t.Fatalf("store changed: %+v", users)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	h, svc := setupRouter(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/users/", strings.NewReader(`{"user":"amy","password":"p1","full_name":"Amy A","profile_picture":"amy.png"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	expectBody(t, rr, http.StatusUnauthorized, "error", "Invalid or missing API key")

	req = httptest.NewRequest(http.MethodGet, "/api/users/1", nil)
	req.Header.Set("X-API-Key", "wrong")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	if n, _ := svc.CountUsers(context.Background()); n != 0 {
		t.Fatalf("unauthorized request reached the store: %d rows", n)
	}
}

func TestValidationErrorsAreUnprocessable(t *testing.T) {
	h, _ := setupRouter(t, Options{})

	rr := call(t, h, http.MethodPost, "/api/users/", `{"user":"amy","password":"p1","full_name":"Amy A"}`)
	expectBody(t, rr, http.StatusUnprocessableEntity, "error", "profile_picture: field required")

	rr = call(t, h, http.MethodGet, "/api/users/one", "")
	expectBody(t, rr, http.StatusUnprocessableEntity, "error", "id: must be an integer")
}

func TestRootRedirectsToDocs(t *testing.T) {
	h, _ := setupRouter(t, Options{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTemporaryRedirect || rr.Header().Get("Location") != "/docs" {
		t.Fatalf("expected redirect to /docs, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/docs", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "/api/users/{id}") {
		t.Fatalf("expected OpenAPI document, got %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	h, _ := setupRouter(t, Options{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	expectBody(t, rr, http.StatusOK, "status", "ok")
}

type downService struct{ services.UserServiceProvider }

func (downService) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestHealthzReportsUnavailableStore(t *testing.T) {
	h := NewRouter(downService{}, Options{APIKey: testAPIKey})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	expectBody(t, rr, http.StatusServiceUnavailable, "status", "unavailable")
}

func TestRequestIDEchoed(t *testing.T) {
	h, _ := setupRouter(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("expected request id echoed, got %q", got)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if got := rr.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Fatalf("expected generated uuid, got %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics, err := monitoring.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	h, _ := setupRouter(t, Options{Metrics: metrics})

	call(t, h, http.MethodGet, "/api/users/42", "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `users_api_users_operations_total{operation="get",outcome="not_found"} 1`) {
		t.Fatalf("expected not_found operation in metrics:\n%s", body)
	}
	if !strings.Contains(body, `route="/api/users/{id}"`) {
		t.Fatalf("expected route pattern label in metrics:\n%s", body)
	}
}

func TestMetricsDisabledWithoutCollector(t *testing.T) {
	h, _ := setupRouter(t, Options{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics, got %d", rr.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	h, _ := setupRouter(t, Options{RateLimitRPS: 1, RateLimitBurst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := call(t, h, http.MethodGet, "/api/users/", "")
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestRateLimiterSweepsIdleVisitors(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first request must pass")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("second immediate request must be limited")
	}

	now = now.Add(10 * time.Minute)
	if !rl.Allow("10.0.0.2") {
		t.Fatal("new client must pass")
	}
	if _, ok := rl.visitors["10.0.0.1"]; ok {
		t.Fatal("idle visitor should have been swept")
	}
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}
