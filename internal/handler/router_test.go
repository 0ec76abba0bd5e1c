package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/movieshelf/internal/model"
)

// mockSessionAuthenticator は固定のセッション表から認証するモック。
type mockSessionAuthenticator struct {
	sessions map[string]*model.Session
}

func (m *mockSessionAuthenticator) Authenticate(ctx context.Context, sessionID string) (*model.Session, error) {
	if s, ok := m.sessions[sessionID]; ok {
		return s, nil
	}
	return nil, model.NewUnauthenticatedError()
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// newTestStaticDir は静的ページを配置した一時ディレクトリを返す。
func newTestStaticDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "registration"), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	files := map[string]string{
		"index.html":              "<h1>movies</h1>",
		"registration/login.html": "<form>login</form>",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func newTestRouter(t *testing.T, reviews ReviewServiceInterface) http.Handler {
	t.Helper()
	return NewRouter(&RouterDeps{
		Authenticator: &mockSessionAuthenticator{sessions: map[string]*model.Session{
			"valid-session": {ID: "valid-session", UserID: "user-1", Username: "alice", ExpiresAt: time.Now().Add(time.Minute)},
		}},
		CORSAllowedOrigin: "http://localhost:3000",
		HealthChecker:     &mockHealthChecker{},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics"))
		}),
		StaticDir:     newTestStaticDir(t),
		AuthService:   &mockAuthService{},
		AuthConfig:    testAuthConfig(),
		ReviewService: reviews,
	})
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, &mockReviewService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", w.Body.String())
	}
}

func TestRouter_Health_DatabaseDown(t *testing.T) {
	router := NewRouter(&RouterDeps{
		Authenticator: &mockSessionAuthenticator{},
		HealthChecker: &mockHealthChecker{err: errors.New("connection refused")},
		AuthService:   &mockAuthService{},
		ReviewService: &mockReviewService{},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t, &mockReviewService{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "# metrics" {
		t.Errorf("GET /metrics = %d %q", w.Code, w.Body.String())
	}
}

func TestRouter_IndexPage_RequiresSession(t *testing.T) {
	router := newTestRouter(t, &mockReviewService{})

	for _, path := range []string{"/", "/index.html"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusFound {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusFound)
			}
			if loc := w.Header().Get("Location"); loc != "/registration/login.html" {
				t.Errorf("Location = %q, want /registration/login.html", loc)
			}
		})
	}
}

func TestRouter_IndexPage_ServedWithSession(t *testing.T) {
	router := newTestRouter(t, &mockReviewService{})

	for _, path := range []string{"/", "/index.html"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if !strings.Contains(w.Body.String(), "movies") {
				t.Errorf("unexpected body: %q", w.Body.String())
			}
			if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
				t.Errorf("Cache-Control = %q, want no-store", cc)
			}
		})
	}
}

func TestRouter_RegistrationPagesArePublic(t *testing.T) {
	router := newTestRouter(t, &mockReviewService{})

	req := httptest.NewRequest(http.MethodGet, "/registration/login.html", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "login") {
		t.Errorf("unexpected body: %q", w.Body.String())
	}
}

func TestRouter_Logout_SetsNoStoreHeaders(t *testing.T) {
	router := newTestRouter(t, &mockReviewService{})

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusFound)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache, no-store, must-revalidate" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if w.Header().Get("Expires") != "0" {
		t.Errorf("Expires = %q, want 0", w.Header().Get("Expires"))
	}
}

func TestRouter_ListReviews_IsPublic(t *testing.T) {
	svc := &mockReviewService{
		listReviewsFn: func(ctx context.Context, movieID string) ([]*model.Review, error) {
			return []*model.Review{{ID: "r1", MovieID: movieID, Body: "Great"}}, nil
		},
	}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/reviews/27205", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"movie_id":"27205"`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestRouter_CreateReview_WithoutSession_Returns401(t *testing.T) {
	called := false
	svc := &mockReviewService{
		createReviewFn: func(ctx context.Context, movieID, userID, body string) (*model.Review, error) {
			called = true
			return nil, nil
		},
	}
	router := newTestRouter(t, svc)

	req := newJSONRequest(http.MethodPost, "/api/reviews", `{"movie_id":"27205","user_id":"user-1","review":"Great"}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if got := parseAPIErrorResponse(t, w)["code"]; got != model.ErrCodeUnauthenticated {
		t.Errorf("code = %q, want %q", got, model.ErrCodeUnauthenticated)
	}
	if called {
		t.Error("review must not be created without a session")
	}
}

func TestRouter_CreateReview_WithoutCSRFToken_Returns403(t *testing.T) {
	router := newTestRouter(t, &mockReviewService{})

	req := newJSONRequest(http.MethodPost, "/api/reviews", `{"movie_id":"27205","review":"Great"}`)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRouter_CreateAndDeleteReview_WithSessionAndCSRF(t *testing.T) {
	var createdBy, deletedBy string
	svc := &mockReviewService{
		createReviewFn: func(ctx context.Context, movieID, userID, body string) (*model.Review, error) {
			createdBy = userID
			return &model.Review{ID: "r1", MovieID: movieID, UserID: userID, Username: "alice", Body: body}, nil
		},
		deleteReviewFn: func(ctx context.Context, actorUserID, reviewID string) error {
			deletedBy = actorUserID
			return nil
		},
	}
	router := newTestRouter(t, svc)

	withAuth := func(r *http.Request) *http.Request {
		r.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
		r.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok"})
		r.Header.Set("X-CSRF-Token", "tok")
		return r
	}

	req := withAuth(newJSONRequest(http.MethodPost, "/api/reviews", `{"movie_id":"27205","review":"Great"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if createdBy != "user-1" {
		t.Errorf("created by %q, want user-1", createdBy)
	}

	req = withAuth(httptest.NewRequest(http.MethodDelete, "/api/reviews/r1", nil))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d, want %d", w.Code, http.StatusOK)
	}
	if deletedBy != "user-1" {
		t.Errorf("deleted by %q, want user-1", deletedBy)
	}
}

func TestRouter_CSRFTokenEndpoint(t *testing.T) {
	router := newTestRouter(t, &mockReviewService{})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	cookie := findCookie(w.Result(), "csrf_token")
	if cookie == nil {
		t.Fatal("expected csrf_token cookie")
	}
	if body["token"] == "" || body["token"] != cookie.Value {
		t.Errorf("token %q does not match cookie %q", body["token"], cookie.Value)
	}
}

func TestRouter_Me_WithoutSession_Returns401(t *testing.T) {
	router := newTestRouter(t, &mockReviewService{})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_UnknownMethod_Returns405(t *testing.T) {
	router := newTestRouter(t, &mockReviewService{})

	req := httptest.NewRequest(http.MethodPut, "/api/reviews/r1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
