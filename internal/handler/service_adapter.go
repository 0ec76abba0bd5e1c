package handler

import (
	"context"
	"errors"

	"github.com/hitoshi/movieshelf/internal/metrics"
	"github.com/hitoshi/movieshelf/internal/model"
)

// AuthRecorder は認証結果のメトリクス記録インターフェース。
type AuthRecorder interface {
	RecordRegistration(outcome string)
	RecordLogin(outcome string)
}

// ReviewRecorder はレビュー操作のメトリクス記録インターフェース。
type ReviewRecorder interface {
	RecordReviewCreated()
	RecordReviewDeleted()
}

// AuthServiceAdapter は認証サービスの呼び出し結果をメトリクスに記録するアダプタ。
type AuthServiceAdapter struct {
	svc      AuthServiceInterface
	recorder AuthRecorder
}

// NewAuthServiceAdapter はAuthServiceAdapterを生成する。
func NewAuthServiceAdapter(svc AuthServiceInterface, recorder AuthRecorder) *AuthServiceAdapter {
	return &AuthServiceAdapter{svc: svc, recorder: recorder}
}

// Register はユーザー登録を実行し、結果を記録する。
func (a *AuthServiceAdapter) Register(ctx context.Context, username, password string) (*model.User, error) {
	user, err := a.svc.Register(ctx, username, password)
	a.recorder.RecordRegistration(classifyOutcome(err))
	return user, err
}

// Login はログインを実行し、結果を記録する。
func (a *AuthServiceAdapter) Login(ctx context.Context, username, password string) (*model.Session, error) {
	session, err := a.svc.Login(ctx, username, password)
	a.recorder.RecordLogin(classifyOutcome(err))
	return session, err
}

// Logout はセッションを破棄する。
func (a *AuthServiceAdapter) Logout(ctx context.Context, sessionID string) error {
	return a.svc.Logout(ctx, sessionID)
}

// GetCurrentUser は現在のユーザーを返す。
func (a *AuthServiceAdapter) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	return a.svc.GetCurrentUser(ctx, sessionID)
}

// ReviewServiceAdapter はレビュー投稿・削除の成功をメトリクスに記録するアダプタ。
type ReviewServiceAdapter struct {
	svc      ReviewServiceInterface
	recorder ReviewRecorder
}

// NewReviewServiceAdapter はReviewServiceAdapterを生成する。
func NewReviewServiceAdapter(svc ReviewServiceInterface, recorder ReviewRecorder) *ReviewServiceAdapter {
	return &ReviewServiceAdapter{svc: svc, recorder: recorder}
}

// ListReviews は映画のレビュー一覧を返す。
func (a *ReviewServiceAdapter) ListReviews(ctx context.Context, movieID string) ([]*model.Review, error) {
	return a.svc.ListReviews(ctx, movieID)
}

// CreateReview はレビューを投稿し、成功時に記録する。
func (a *ReviewServiceAdapter) CreateReview(ctx context.Context, movieID, userID, body string) (*model.Review, error) {
	review, err := a.svc.CreateReview(ctx, movieID, userID, body)
	if err == nil {
		a.recorder.RecordReviewCreated()
	}
	return review, err
}

// DeleteReview はレビューを削除し、成功時に記録する。
func (a *ReviewServiceAdapter) DeleteReview(ctx context.Context, actorUserID, reviewID string) error {
	err := a.svc.DeleteReview(ctx, actorUserID, reviewID)
	if err == nil {
		a.recorder.RecordReviewDeleted()
	}
	return err
}

// classifyOutcome はエラーをメトリクスのoutcomeラベルに分類する。
// 利用者の入力に起因するAPIErrorはinvalid、それ以外のエラーはfailureとする。
func classifyOutcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code != model.ErrCodeInternal {
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeFailure
}

// --- compile-time interface checks ---

var _ AuthServiceInterface = (*AuthServiceAdapter)(nil)
var _ ReviewServiceInterface = (*ReviewServiceAdapter)(nil)
var _ AuthRecorder = (metrics.MetricsCollector)(nil)
var _ ReviewRecorder = (metrics.MetricsCollector)(nil)
