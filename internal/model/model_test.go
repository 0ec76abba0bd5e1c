package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAPIError_Error(t *testing.T) {
	err := NewInvalidCredentialsError()
	if got := err.Error(); got != "[INVALID_CREDENTIALS] Invalid username or password" {
		t.Errorf("Error() = %q", got)
	}

	var apiErr *APIError
	if !errors.As(error(err), &apiErr) {
		t.Fatal("errors.As should match *APIError")
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		code     string
		category string
	}{
		{"duplicate username", NewDuplicateUsernameError("alice"), ErrCodeDuplicateUsername, "auth"},
		{"invalid credentials", NewInvalidCredentialsError(), ErrCodeInvalidCredentials, "auth"},
		{"unauthenticated", NewUnauthenticatedError(), ErrCodeUnauthenticated, "auth"},
		{"user not found", NewUserNotFoundError(), ErrCodeUserNotFound, "auth"},
		{"upstream", NewUpstreamUnavailableError("timeout"), ErrCodeUpstreamUnavailable, "upstream"},
		{"malformed local state", NewMalformedLocalStateError("favourites"), ErrCodeMalformedLocalState, "system"},
		{"invalid request", NewInvalidRequestError("bad"), ErrCodeInvalidRequest, "validation"},
		{"review forbidden", NewReviewForbiddenError("r1"), ErrCodeReviewForbidden, "review"},
		{"csrf", NewCSRFInvalidError(), ErrCodeCSRFInvalid, "auth"},
		{"internal", NewInternalError(), ErrCodeInternal, "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Category != tt.category {
				t.Errorf("Category = %q, want %q", tt.err.Category, tt.category)
			}
			if tt.err.Message == "" || tt.err.Action == "" {
				t.Error("Message and Action must not be empty")
			}
		})
	}
}

func TestErrorConstructors_IncludeContext(t *testing.T) {
	if !strings.Contains(NewDuplicateUsernameError("alice").Message, "alice") {
		t.Error("duplicate username message should include the username")
	}
	if !strings.Contains(NewReviewForbiddenError("r1").Message, "r1") {
		t.Error("forbidden message should include the review id")
	}
	if NewInvalidRequestError("movie_id is required").Message != "movie_id is required" {
		t.Error("invalid request message should be the given reason")
	}
}

func TestSession_IsExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: now}

	if s.IsExpired(now.Add(-time.Second)) {
		t.Error("session should be valid before ExpiresAt")
	}
	if !s.IsExpired(now) {
		t.Error("session should be expired at ExpiresAt")
	}
	if !s.IsExpired(now.Add(time.Second)) {
		t.Error("session should be expired after ExpiresAt")
	}
}

func TestReview_IsOwnedBy(t *testing.T) {
	r := &Review{UserID: "u1"}

	if !r.IsOwnedBy("u1") {
		t.Error("author should own the review")
	}
	if r.IsOwnedBy("u2") {
		t.Error("another user should not own the review")
	}
}
