// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, review, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeDuplicateUsername   = "DUPLICATE_USERNAME"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeMalformedLocalState = "MALFORMED_LOCAL_STATE"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeReviewForbidden     = "REVIEW_FORBIDDEN"
	ErrCodeCSRFInvalid         = "CSRF_TOKEN_INVALID"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewDuplicateUsernameError はユーザー名重複エラーを生成する。
func NewDuplicateUsernameError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  fmt.Sprintf("Username already taken: %s", username),
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewInvalidCredentialsError は認証情報不正エラーを生成する。
// ユーザー名の存在有無を推測されないよう、原因を区別しないメッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid username or password",
		Category: "auth",
		Action:   "ユーザー名とパスワードを確認してください。",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUpstreamUnavailableError はメタデータプロバイダー到達不能エラーを生成する。
func NewUpstreamUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  fmt.Sprintf("映画情報の取得に失敗しました: %s", reason),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewMalformedLocalStateError はローカル保存データの破損エラーを生成する。
// 呼び出し元は空の状態として扱い、描画を継続すること。
func NewMalformedLocalStateError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeMalformedLocalState,
		Message:  fmt.Sprintf("ローカルデータを読み取れませんでした: %s", key),
		Category: "system",
		Action:   "お気に入りは空の状態から再作成されます。",
	}
}

// NewInvalidRequestError はリクエスト内容不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewReviewForbiddenError は他ユーザーのレビュー削除を拒否するエラーを生成する。
func NewReviewForbiddenError(reviewID string) *APIError {
	return &APIError{
		Code:     ErrCodeReviewForbidden,
		Message:  fmt.Sprintf("このレビューを削除する権限がありません: %s", reviewID),
		Category: "review",
		Action:   "自分が投稿したレビューのみ削除できます。",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
