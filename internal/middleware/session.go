// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/movieshelf/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var userIDContextKey = contextKey("user_id")

// SessionAuthenticator はセッションIDから有効なセッションを解決するインターフェース。
// 存在しない・期限切れのセッションにはUNAUTHENTICATEDのAPIErrorを返すこと。
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, sessionID string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するAPI向けミドルウェアを返す。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
// 未認証リクエストには401とJSONエラーを返す。
func NewSessionMiddleware(authenticator SessionAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := resolveSession(r, authenticator)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
					return
				}
				slog.Error("failed to authenticate session", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), session.UserID)))
		})
	}
}

// NewPageGateMiddleware はページ遷移向けのセッション検証ミドルウェアを返す。
// 未認証の場合はloginPathへ302でリダイレクトする。
// 認証済みページはブラウザキャッシュに残らないようno-storeを付与する。
func NewPageGateMiddleware(authenticator SessionAuthenticator, loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := resolveSession(r, authenticator)
			if err != nil {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) {
					slog.Error("failed to authenticate session", slog.String("error", err.Error()))
				}
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}

			setNoStoreHeaders(w)
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), session.UserID)))
		})
	}
}

// resolveSession はCookieのセッションIDを検証する。
func resolveSession(r *http.Request, authenticator SessionAuthenticator) (*model.Session, error) {
	sessionID := ""
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		sessionID = cookie.Value
	}
	return authenticator.Authenticate(r.Context(), sessionID)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// ロギングミドルウェアの配下ではログ項目にも記録する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	setLogUserID(ctx, userID)
	return context.WithValue(ctx, userIDContextKey, userID)
}
