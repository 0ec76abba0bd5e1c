// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/hitoshi/movieshelf/internal/middleware"
	"github.com/hitoshi/movieshelf/internal/model"
	"github.com/hitoshi/movieshelf/internal/validation"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int    // セッションCookieの有効期間（秒）
	LoginPath     string // ログインページのパス
	HomePath      string // ログイン後の遷移先
}

// AuthHandler はユーザー登録・ログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	if config.LoginPath == "" {
		config.LoginPath = "/registration/login.html"
	}
	if config.HomePath == "" {
		config.HomePath = "/index.html"
	}
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// credentialsRequest は登録・ログインリクエストのボディ。
// JSONとフォーム送信の両方から組み立てる。
type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// loginResponse はJSONクライアント向けのログインレスポンス。
type loginResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Register は新規ユーザーを登録する。
// POST /register
// フォーム送信の場合はログインページへリダイレクトし、JSONの場合は201を返す。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		handleServiceError(w, model.NewInvalidRequestError("invalid request body"))
		return
	}
	if err := validation.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if !isJSONRequest(r) {
		http.Redirect(w, r, h.config.LoginPath, http.StatusFound)
		return
	}

	w.Header().Set("Location", h.config.LoginPath)
	writeJSON(w, http.StatusCreated, userResponse{ID: user.ID, Username: user.Username})
}

// Login はユーザー名とパスワードを検証し、セッションCookieを発行する。
// POST /login
// フォーム送信の場合はホームへリダイレクトし、JSONの場合はセッション情報を返す。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		handleServiceError(w, model.NewInvalidCredentialsError())
		return
	}
	if err := validation.Struct(req); err != nil {
		handleServiceError(w, model.NewInvalidCredentialsError())
		return
	}

	session, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if !isJSONRequest(r) {
		http.Redirect(w, r, h.config.HomePath, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		UserID:    session.UserID,
		Username:  session.Username,
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout はセッションを破棄し、ログインページへリダイレクトする。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.config.LoginPath, http.StatusFound)
}

// Me は現在のログインユーザー情報を返す。
// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		sessionID = cookie.Value
	}

	user, err := h.service.GetCurrentUser(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Username: user.Username})
}

// decodeCredentials はJSONまたはフォームからユーザー名とパスワードを読み取る。
func decodeCredentials(r *http.Request) (*credentialsRequest, error) {
	var req credentialsRequest
	if isJSONRequest(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	req.Username = r.PostFormValue("username")
	req.Password = r.PostFormValue("password")
	return &req, nil
}

// isJSONRequest はリクエストボディがJSONかどうかを判定する。
func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
