package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/movieshelf/internal/middleware"
	"github.com/hitoshi/movieshelf/internal/model"
)

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeDuplicateUsername, model.ErrCodeInvalidCredentials:
		return http.StatusBadRequest
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeReviewForbidden, model.ErrCodeCSRFInvalid:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
