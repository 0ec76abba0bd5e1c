package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/movieshelf/internal/metrics"
	"github.com/hitoshi/movieshelf/internal/model"
)

// mockRecorder は記録されたoutcomeを保持するモック。
type mockRecorder struct {
	registrations []string
	logins        []string
	created       int
	deleted       int
}

func (m *mockRecorder) RecordRegistration(outcome string) {
	m.registrations = append(m.registrations, outcome)
}
func (m *mockRecorder) RecordLogin(outcome string) { m.logins = append(m.logins, outcome) }
func (m *mockRecorder) RecordReviewCreated()       { m.created++ }
func (m *mockRecorder) RecordReviewDeleted()       { m.deleted++ }

func TestAuthServiceAdapter_RecordsOutcomes(t *testing.T) {
	results := []error{nil, model.NewInvalidCredentialsError(), errors.New("db down")}
	i := 0
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*model.Session, error) {
			err := results[i]
			i++
			return nil, err
		},
		registerFn: func(ctx context.Context, username, password string) (*model.User, error) {
			return nil, model.NewDuplicateUsernameError(username)
		},
	}
	rec := &mockRecorder{}
	adapter := NewAuthServiceAdapter(svc, rec)

	for range results {
		adapter.Login(context.Background(), "alice", "pw")
	}
	adapter.Register(context.Background(), "alice", "pw")

	want := []string{metrics.OutcomeSuccess, metrics.OutcomeInvalid, metrics.OutcomeFailure}
	if len(rec.logins) != len(want) {
		t.Fatalf("logins = %v, want %v", rec.logins, want)
	}
	for j := range want {
		if rec.logins[j] != want[j] {
			t.Errorf("logins[%d] = %q, want %q", j, rec.logins[j], want[j])
		}
	}
	if len(rec.registrations) != 1 || rec.registrations[0] != metrics.OutcomeInvalid {
		t.Errorf("registrations = %v, want [invalid]", rec.registrations)
	}
}

func TestReviewServiceAdapter_RecordsOnlySuccess(t *testing.T) {
	fail := true
	svc := &mockReviewService{
		createReviewFn: func(ctx context.Context, movieID, userID, body string) (*model.Review, error) {
			if fail {
				return nil, model.NewUserNotFoundError()
			}
			return &model.Review{ID: "r1"}, nil
		},
		deleteReviewFn: func(ctx context.Context, actorUserID, reviewID string) error {
			return model.NewReviewForbiddenError(reviewID)
		},
	}
	rec := &mockRecorder{}
	adapter := NewReviewServiceAdapter(svc, rec)

	adapter.CreateReview(context.Background(), "m", "u", "b")
	fail = false
	adapter.CreateReview(context.Background(), "m", "u", "b")
	adapter.DeleteReview(context.Background(), "u", "r1")

	if rec.created != 1 {
		t.Errorf("created = %d, want 1", rec.created)
	}
	if rec.deleted != 0 {
		t.Errorf("deleted = %d, want 0", rec.deleted)
	}
}
