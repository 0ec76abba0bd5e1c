package discover

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/movieshelf/internal/favorites"
	"github.com/hitoshi/movieshelf/internal/middleware"
	"github.com/hitoshi/movieshelf/internal/model"
)

// fakeServer はレビューサーバーのAPIを模倣する。
type fakeServer struct {
	t         *testing.T
	sessionID string
	csrf      string
	reviews   []map[string]any
	loggedOut bool
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["username"] == "taken" {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewDuplicateUsernameError("taken"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "user-1", "username": body["username"]})
	})

	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidCredentialsError())
			return
		}
		http.SetCookie(w, &http.Cookie{Name: middleware.SessionCookieName, Value: f.sessionID, HttpOnly: true})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"user_id": "user-1", "username": body["username"], "expires_at": time.Now()})
	})

	mux.HandleFunc("GET /logout", func(w http.ResponseWriter, r *http.Request) {
		f.loggedOut = f.hasSession(r)
		http.Redirect(w, r, "/registration/login.html", http.StatusFound)
	})

	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		if !f.hasSession(r) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "user-1", "username": "alice"})
	})

	mux.HandleFunc("GET /api/csrf-token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": f.csrf})
	})

	mux.HandleFunc("GET /api/reviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		out := []map[string]any{}
		for _, rv := range f.reviews {
			if rv["movie_id"] == r.PathValue("id") {
				out = append(out, rv)
			}
		}
		json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("POST /api/reviews", func(w http.ResponseWriter, r *http.Request) {
		if !f.hasSession(r) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
			return
		}
		if !f.validCSRF(r) {
			middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFInvalidError())
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["user_id"]; ok {
			f.t.Error("client must not send user_id")
		}
		rv := map[string]any{
			"_id": "r1", "movie_id": body["movie_id"], "user_id": "user-1",
			"username": "alice", "review": body["review"], "created_at": time.Now(),
		}
		f.reviews = append(f.reviews, rv)
		json.NewEncoder(w).Encode(rv)
	})

	mux.HandleFunc("DELETE /api/reviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !f.hasSession(r) || !f.validCSRF(r) {
			middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFInvalidError())
			return
		}
		if r.PathValue("id") == "someone-else" {
			middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewReviewForbiddenError("someone-else"))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "Review deleted"})
	})

	return mux
}

func (f *fakeServer) hasSession(r *http.Request) bool {
	c, err := r.Cookie(middleware.SessionCookieName)
	return err == nil && c.Value == f.sessionID
}

func (f *fakeServer) validCSRF(r *http.Request) bool {
	c, err := r.Cookie(middleware.CSRFCookieName)
	return err == nil && c.Value == f.csrf && r.Header.Get(middleware.CSRFHeaderName) == f.csrf
}

func newTestSessionClient(t *testing.T) (*SessionClient, *fakeServer, favorites.Storage) {
	t.Helper()
	fake := &fakeServer{t: t, sessionID: "sess-123", csrf: "csrf-abc"}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	storage := favorites.NewMemoryStorage()
	client := NewSessionClient(server.Client(), server.URL+"/", storage, discardLogger())
	return client, fake, storage
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError", err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %s, want %s", apiErr.Code, code)
	}
}

func TestSessionClient_Register(t *testing.T) {
	client, _, _ := newTestSessionClient(t)

	user, err := client.Register(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("Username = %q", user.Username)
	}

	_, err = client.Register(context.Background(), "taken", "secret")
	assertAPIErrorCode(t, err, model.ErrCodeDuplicateUsername)
}

func TestSessionClient_LoginPersistsSession(t *testing.T) {
	client, _, storage := newTestSessionClient(t)
	ctx := context.Background()

	if _, err := client.Login(ctx, "alice", "secret"); err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	v, found, _ := storage.Get(ctx, SessionKey)
	if !found || v != "sess-123" {
		t.Errorf("stored session = %q, %v", v, found)
	}

	me, err := client.Me(ctx)
	if err != nil {
		t.Fatalf("Me() error: %v", err)
	}
	if me.ID != "user-1" {
		t.Errorf("Me().ID = %q", me.ID)
	}
}

func TestSessionClient_LoginInvalidCredentials(t *testing.T) {
	client, _, storage := newTestSessionClient(t)

	_, err := client.Login(context.Background(), "alice", "wrong")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)

	if _, found, _ := storage.Get(context.Background(), SessionKey); found {
		t.Error("no session should be stored after a failed login")
	}
}

func TestSessionClient_MeWithoutSession(t *testing.T) {
	client, _, _ := newTestSessionClient(t)

	_, err := client.Me(context.Background())
	assertAPIErrorCode(t, err, model.ErrCodeUnauthenticated)
}

func TestSessionClient_Logout(t *testing.T) {
	client, fake, storage := newTestSessionClient(t)
	ctx := context.Background()
	client.Login(ctx, "alice", "secret")

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if !fake.loggedOut {
		t.Error("server should receive the session cookie on logout")
	}
	if _, found, _ := storage.Get(ctx, SessionKey); found {
		t.Error("stored session should be deleted")
	}
}

func TestSessionClient_CreateAndListReviews(t *testing.T) {
	client, _, _ := newTestSessionClient(t)
	ctx := context.Background()
	client.Login(ctx, "alice", "secret")

	created, err := client.CreateReview(ctx, "603", "Great movie")
	if err != nil {
		t.Fatalf("CreateReview() error: %v", err)
	}
	if created.ID != "r1" || created.Body != "Great movie" || created.UserID != "user-1" {
		t.Errorf("created = %+v", created)
	}

	reviews, err := client.ListReviews(ctx, "603")
	if err != nil {
		t.Fatalf("ListReviews() error: %v", err)
	}
	if len(reviews) != 1 || reviews[0].Username != "alice" {
		t.Errorf("reviews = %+v", reviews)
	}

	empty, err := client.ListReviews(ctx, "999")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("ListReviews(999) = %v, %v; want empty non-nil", empty, err)
	}
}

func TestSessionClient_CreateReviewWithoutSession(t *testing.T) {
	client, _, _ := newTestSessionClient(t)

	_, err := client.CreateReview(context.Background(), "603", "hello")
	assertAPIErrorCode(t, err, model.ErrCodeUnauthenticated)
}

func TestSessionClient_DeleteReview(t *testing.T) {
	client, _, _ := newTestSessionClient(t)
	ctx := context.Background()
	client.Login(ctx, "alice", "secret")

	if err := client.DeleteReview(ctx, "r1"); err != nil {
		t.Fatalf("DeleteReview() error: %v", err)
	}

	err := client.DeleteReview(ctx, "someone-else")
	assertAPIErrorCode(t, err, model.ErrCodeReviewForbidden)
}

func TestSessionClient_ServerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewSessionClient(http.DefaultClient, url, favorites.NewMemoryStorage(), discardLogger())
	_, err := client.ListReviews(context.Background(), "603")

	if !errors.Is(err, ErrServerUnavailable) {
		t.Errorf("err = %v, want ErrServerUnavailable", err)
	}
	if !strings.Contains(UserMessage(err), "MOVIESHELF_SERVER_URL") {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
}

func TestSessionClient_UnexpectedErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewSessionClient(server.Client(), server.URL, favorites.NewMemoryStorage(), discardLogger())
	_, err := client.ListReviews(context.Background(), "603")

	if !errors.Is(err, ErrServerUnavailable) {
		t.Errorf("err = %v, want ErrServerUnavailable", err)
	}
}
