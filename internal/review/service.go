// Package review はレビューの一覧取得、投稿、削除のビジネスロジックを提供する。
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/movieshelf/internal/model"
	"github.com/hitoshi/movieshelf/internal/repository"
)

// MaxBodyLength はレビュー本文の最大文字数（サニタイズ後のルーン数）。
const MaxBodyLength = 2000

// Sanitizer はレビュー本文のサニタイズを行うインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Service はレビューに関するビジネスロジックを提供する。
type Service struct {
	reviewRepo repository.ReviewRepository
	userRepo   repository.UserRepository
	sanitizer  Sanitizer
	now        func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	reviewRepo repository.ReviewRepository,
	userRepo repository.UserRepository,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		reviewRepo: reviewRepo,
		userRepo:   userRepo,
		sanitizer:  sanitizer,
		now:        time.Now,
	}
}

// ListReviews は映画IDに紐づくレビューを投稿順に返す。該当がなければ空スライス。
func (s *Service) ListReviews(ctx context.Context, movieID string) ([]*model.Review, error) {
	if movieID == "" {
		return nil, model.NewInvalidRequestError("movie_id is required")
	}

	reviews, err := s.reviewRepo.ListByMovieID(ctx, movieID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	if reviews == nil {
		reviews = []*model.Review{}
	}
	return reviews, nil
}

// CreateReview はレビューを投稿する。
// userIDは呼び出し元がセッションから導出した値であること。
// ユーザー名は投稿時点の値をスナップショットとして保存する。
func (s *Service) CreateReview(ctx context.Context, movieID, userID, body string) (*model.Review, error) {
	if movieID == "" {
		return nil, model.NewInvalidRequestError("movie_id is required")
	}

	// 1. 投稿者の解決
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	// 2. 本文のサニタイズと検証
	clean := s.sanitizer.Sanitize(body)
	if clean == "" {
		return nil, model.NewInvalidRequestError("review is required")
	}
	if utf8.RuneCountInString(clean) > MaxBodyLength {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("review must be at most %d characters", MaxBodyLength))
	}

	// 3. 保存
	review := &model.Review{
		ID:        uuid.New().String(),
		MovieID:   movieID,
		UserID:    user.ID,
		Username:  user.Username,
		Body:      clean,
		CreatedAt: s.now(),
	}
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	slog.Info("review created",
		slog.String("review_id", review.ID),
		slog.String("movie_id", movieID),
		slog.String("user_id", user.ID),
	)
	return review, nil
}

// DeleteReview はレビューを削除する。
// 存在しないIDやUUID形式でないIDの場合は何もせず成功を返す。
// 他ユーザーのレビューの場合はREVIEW_FORBIDDENを返す。
func (s *Service) DeleteReview(ctx context.Context, actorUserID, reviewID string) error {
	if _, err := uuid.Parse(reviewID); err != nil {
		slog.Debug("review delete skipped: malformed id", slog.String("review_id", reviewID))
		return nil
	}

	review, err := s.reviewRepo.FindByID(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("failed to find review: %w", err)
	}
	if review == nil {
		return nil
	}
	if !review.IsOwnedBy(actorUserID) {
		slog.Warn("review delete forbidden",
			slog.String("review_id", reviewID),
			slog.String("user_id", actorUserID),
		)
		return model.NewReviewForbiddenError(reviewID)
	}

	if err := s.reviewRepo.DeleteByID(ctx, reviewID); err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}

	slog.Info("review deleted",
		slog.String("review_id", reviewID),
		slog.String("user_id", actorUserID),
	)
	return nil
}
