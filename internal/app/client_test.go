package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

// setupClientEnv はクライアントコマンド用の環境変数を設定する。
func setupClientEnv(t *testing.T, tmdbURL, serverURL string) {
	t.Helper()
	t.Setenv("TMDB_API_KEY", "test-key")
	t.Setenv("TMDB_BASE_URL", tmdbURL)
	t.Setenv("MOVIESHELF_SERVER_URL", serverURL)
	t.Setenv("MOVIESHELF_STATE_PATH", filepath.Join(t.TempDir(), "state.db"))
	t.Setenv("LOG_LEVEL", "error")
}

func newFakeTMDB(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /movie/603", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("api_key = %q, want test-key", r.URL.Query().Get("api_key"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":603,"title":"The Matrix","vote_average":8.2,"release_date":"1999-03-30"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRun_FavoritesToggle_AddsAndRenders(t *testing.T) {
	tmdbServer := newFakeTMDB(t)
	setupClientEnv(t, tmdbServer.URL, "http://127.0.0.1:1")

	var out, errOut bytes.Buffer
	if err := Run(context.Background(), &out, &errOut, []string{"favorites", "toggle", "603"}); err != nil {
		t.Fatalf("Run() error = %v, stderr: %s", err, errOut.String())
	}

	got := out.String()
	if !strings.Contains(got, "Added 603 to favorites") {
		t.Errorf("output should report the addition, got:\n%s", got)
	}
	if !strings.Contains(got, "The Matrix") {
		t.Errorf("output should render the favorite card, got:\n%s", got)
	}

	// 2回目の切り替えで削除される
	out.Reset()
	if err := Run(context.Background(), &out, &errOut, []string{"favorites", "toggle", "603"}); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "Removed 603 from favorites") {
		t.Errorf("second toggle should remove, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "(none)") {
		t.Errorf("favorites should be empty after removal, got:\n%s", out.String())
	}
}

func TestRun_FavoritesToggle_NonNumericID_ReportsError(t *testing.T) {
	tmdbServer := newFakeTMDB(t)
	setupClientEnv(t, tmdbServer.URL, "http://127.0.0.1:1")

	var out, errOut bytes.Buffer
	err := Run(context.Background(), &out, &errOut, []string{"favorites", "toggle", "abc"})
	if !errors.Is(err, ErrReported) {
		t.Fatalf("error = %v, want ErrReported", err)
	}
	if errOut.Len() == 0 {
		t.Error("a user-facing message should be written to stderr")
	}
}

func TestRun_Search_WithoutAPIKey_ReturnsError(t *testing.T) {
	setupClientEnv(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	t.Setenv("TMDB_API_KEY", "")

	var out, errOut bytes.Buffer
	err := Run(context.Background(), &out, &errOut, []string{"search", "matrix"})
	if err == nil {
		t.Fatal("expected error without TMDB_API_KEY")
	}
	if !strings.Contains(err.Error(), "TMDB_API_KEY") {
		t.Errorf("error should name the missing variable, got %v", err)
	}
}

func TestRun_ReviewsList_RendersServerReviews(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/reviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "603" {
			t.Errorf("movie id = %q, want 603", r.PathValue("id"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"_id":"r1","movie_id":"603","user_id":"u1","username":"neo","review":"I know kung fu &amp; more","created_at":"2024-01-01T00:00:00Z"}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	setupClientEnv(t, "http://127.0.0.1:1", server.URL)
	t.Setenv("TMDB_API_KEY", "")

	var out, errOut bytes.Buffer
	if err := Run(context.Background(), &out, &errOut, []string{"reviews", "list", "603"}); err != nil {
		t.Fatalf("Run() error = %v, stderr: %s", err, errOut.String())
	}

	got := out.String()
	if !strings.Contains(got, "Reviews for 603") {
		t.Errorf("missing heading, got:\n%s", got)
	}
	if !strings.Contains(got, "neo") || !strings.Contains(got, "I know kung fu & more") {
		t.Errorf("review should be rendered unescaped, got:\n%s", got)
	}
	if strings.Contains(got, "yours") {
		t.Errorf("anonymous viewer should not own reviews, got:\n%s", got)
	}
}

func TestRun_WhoAmI_WithoutSession_ReportsError(t *testing.T) {
	setupClientEnv(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	var out, errOut bytes.Buffer
	err := Run(context.Background(), &out, &errOut, []string{"whoami"})
	if !errors.Is(err, ErrReported) {
		t.Fatalf("error = %v, want ErrReported", err)
	}
}
