package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/movieshelf/internal/middleware"
	"github.com/hitoshi/movieshelf/internal/model"
	"github.com/hitoshi/movieshelf/internal/validation"
)

// ReviewServiceInterface はレビューハンドラーが必要とするサービスインターフェース。
type ReviewServiceInterface interface {
	// ListReviews は映画IDに紐づくレビューを投稿順に返す。
	ListReviews(ctx context.Context, movieID string) ([]*model.Review, error)
	// CreateReview はセッションのユーザーとしてレビューを投稿する。
	CreateReview(ctx context.Context, movieID, userID, body string) (*model.Review, error)
	// DeleteReview は投稿者本人のレビューを削除する。
	DeleteReview(ctx context.Context, actorUserID, reviewID string) error
}

// ReviewHandler はレビューのHTTPハンドラー。
type ReviewHandler struct {
	service ReviewServiceInterface
}

// NewReviewHandler はReviewHandlerを生成する。
func NewReviewHandler(service ReviewServiceInterface) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// createReviewRequest はレビュー投稿リクエストのボディ。
// user_idは互換性のため受け付けるが使用しない。投稿者は常にセッションから導出する。
type createReviewRequest struct {
	MovieID string `json:"movie_id" validate:"required,max=64"`
	UserID  string `json:"user_id,omitempty"`
	Review  string `json:"review" validate:"required"`
}

// reviewResponse はレビューのAPIレスポンス。
type reviewResponse struct {
	ID        string    `json:"_id"`
	MovieID   string    `json:"movie_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"created_at"`
}

// messageResponse は処理結果メッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// ListReviews は映画のレビュー一覧を返す。
// GET /api/reviews/{id}
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "id")

	reviews, err := h.service.ListReviews(r.Context(), movieID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]reviewResponse, len(reviews))
	for i, rv := range reviews {
		results[i] = toReviewResponse(rv)
	}
	writeJSON(w, http.StatusOK, results)
}

// CreateReview はレビューを投稿する。
// POST /api/reviews
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthenticatedError())
		return
	}

	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("invalid request body"))
		return
	}
	if err := validation.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	review, err := h.service.CreateReview(r.Context(), req.MovieID, userID, req.Review)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toReviewResponse(review))
}

// DeleteReview はレビューを削除する。
// DELETE /api/reviews/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthenticatedError())
		return
	}

	reviewID := chi.URLParam(r, "id")
	if err := h.service.DeleteReview(r.Context(), userID, reviewID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Review deleted"})
}

// toReviewResponse はドメインのReviewをAPIレスポンス型に変換する。
func toReviewResponse(rv *model.Review) reviewResponse {
	return reviewResponse{
		ID:        rv.ID,
		MovieID:   rv.MovieID,
		UserID:    rv.UserID,
		Username:  rv.Username,
		Review:    rv.Body,
		CreatedAt: rv.CreatedAt,
	}
}
