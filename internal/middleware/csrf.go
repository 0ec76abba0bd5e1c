package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/movieshelf/internal/model"
)

const (
	// CSRFCookieName はCSRFトークンを保持するCookieの名前。
	// クライアントから読み取れるよう、HttpOnlyではない。
	CSRFCookieName = "csrf_token"

	// CSRFHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	CSRFHeaderName = "X-CSRF-Token"

	csrfCookieMaxAge = 86400
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware はダブルサブミットCookie方式のCSRF検証ミドルウェアを返す。
// 安全なメソッド（GET, HEAD, OPTIONS）は検証をスキップし、未設定ならトークンCookieを発行する。
// 状態変更メソッドはCookieとヘッダーのトークン一致を必須とし、不一致は403を返す。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if _, err := r.Cookie(CSRFCookieName); err != nil {
					if _, err := issueCSRFCookie(w, config); err != nil {
						slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			reason := ""
			cookieToken, err := r.Cookie(CSRFCookieName)
			headerToken := r.Header.Get(CSRFHeaderName)
			switch {
			case err != nil || cookieToken.Value == "":
				reason = "missing cookie token"
			case headerToken == "":
				reason = "missing header token"
			case subtle.ConstantTimeCompare([]byte(cookieToken.Value), []byte(headerToken)) != 1:
				reason = "token mismatch"
			}

			if reason != "" {
				slog.Warn("CSRF validation failed: "+reason,
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFInvalidError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はCSRFトークン取得エンドポイントのハンドラーを返す。
// GET /api/csrf-token
// 既存のCSRFトークンCookieがある場合はそれを返し、なければ新規生成する。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(CSRFCookieName); err == nil && cookie.Value != "" {
			token = cookie.Value
		} else {
			token, err = issueCSRFCookie(w, config)
			if err != nil {
				slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"token": token,
		})
	})
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// issueCSRFCookie は新しいCSRFトークンを生成してCookieに設定する。
func issueCSRFCookie(w http.ResponseWriter, config CSRFConfig) (string, error) {
	token, err := generateCSRFToken()
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: false,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// generateCSRFToken は暗号的に安全なCSRFトークンを生成する。
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
