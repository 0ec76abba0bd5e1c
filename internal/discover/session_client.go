package discover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/movieshelf/internal/favorites"
	"github.com/hitoshi/movieshelf/internal/middleware"
	"github.com/hitoshi/movieshelf/internal/model"
)

// SessionKey はセッションCookieの値を保存するローカルストレージのキー。
const SessionKey = "session-cookie"

// maxServerResponseSize はレビューサーバーのレスポンスボディの最大サイズ。
const maxServerResponseSize = 1 << 20

// ErrServerUnavailable はレビューサーバーに到達できない、または想定外の応答を返したことを示す。
var ErrServerUnavailable = errors.New("discover: review server unavailable")

// RemoteUser はサーバーが返すユーザー情報。
type RemoteUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// remoteReview はサーバーが返すレビューのJSON表現。
type remoteReview struct {
	ID        string    `json:"_id"`
	MovieID   string    `json:"movie_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *remoteReview) toModel() *model.Review {
	return &model.Review{
		ID:        r.ID,
		MovieID:   r.MovieID,
		UserID:    r.UserID,
		Username:  r.Username,
		Body:      r.Review,
		CreatedAt: r.CreatedAt,
	}
}

// SessionClient はレビューサーバーのHTTPクライアント。
// ログインで得たセッションCookieをローカルストレージに保存し、以降のリクエストで送信する。
type SessionClient struct {
	httpClient *http.Client
	baseURL    string
	storage    favorites.Storage
	logger     *slog.Logger
}

// NewSessionClient はSessionClientを生成する。
// リダイレクトは追跡せず、最初のレスポンスをそのまま扱う。
func NewSessionClient(httpClient *http.Client, baseURL string, storage favorites.Storage, logger *slog.Logger) *SessionClient {
	c := *httpClient
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &SessionClient{
		httpClient: &c,
		baseURL:    strings.TrimRight(baseURL, "/"),
		storage:    storage,
		logger:     logger,
	}
}

// Register は新規ユーザーを登録する。
func (c *SessionClient) Register(ctx context.Context, username, password string) (*RemoteUser, error) {
	resp, err := c.send(ctx, http.MethodPost, "/register", credentials(username, password), "", false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, decodeError(resp)
	}
	var user RemoteUser
	if err := decodeBody(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login はログインし、発行されたセッションCookieを保存する。
func (c *SessionClient) Login(ctx context.Context, username, password string) (*RemoteUser, error) {
	resp, err := c.send(ctx, http.MethodPost, "/login", credentials(username, password), "", false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var body struct {
		UserID   string `json:"user_id"`
		Username string `json:"username"`
	}
	if err := decodeBody(resp, &body); err != nil {
		return nil, err
	}

	sessionID := ""
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.SessionCookieName {
			sessionID = ck.Value
		}
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: login response has no session cookie", ErrServerUnavailable)
	}
	if err := c.storage.Set(ctx, SessionKey, sessionID); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return &RemoteUser{ID: body.UserID, Username: body.Username}, nil
}

// Logout はサーバー上のセッションを破棄し、保存済みのCookieを削除する。
// サーバーに到達できない場合もローカルのCookieは削除する。
func (c *SessionClient) Logout(ctx context.Context) error {
	sessionID, err := c.sessionID(ctx)
	if err != nil {
		return err
	}

	var logoutErr error
	if sessionID != "" {
		resp, err := c.send(ctx, http.MethodGet, "/logout", nil, sessionID, false)
		if err != nil {
			logoutErr = err
		} else {
			resp.Body.Close()
		}
	}

	if err := c.storage.Delete(ctx, SessionKey); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return logoutErr
}

// Me は現在のログインユーザーを返す。未ログインの場合はUNAUTHENTICATEDを返す。
func (c *SessionClient) Me(ctx context.Context) (*RemoteUser, error) {
	sessionID, err := c.sessionID(ctx)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	resp, err := c.send(ctx, http.MethodGet, "/api/me", nil, sessionID, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var user RemoteUser
	if err := decodeBody(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListReviews は映画のレビューを投稿順に返す。認証は不要。
func (c *SessionClient) ListReviews(ctx context.Context, movieID string) ([]*model.Review, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/reviews/"+url.PathEscape(movieID), nil, "", false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var remote []remoteReview
	if err := decodeBody(resp, &remote); err != nil {
		return nil, err
	}
	reviews := make([]*model.Review, 0, len(remote))
	for i := range remote {
		reviews = append(reviews, remote[i].toModel())
	}
	return reviews, nil
}

// CreateReview はログイン中のユーザーとしてレビューを投稿する。
// 投稿者はサーバーがセッションから決定するため、ユーザーIDは送信しない。
func (c *SessionClient) CreateReview(ctx context.Context, movieID, body string) (*model.Review, error) {
	sessionID, err := c.requireSession(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]string{"movie_id": movieID, "review": body}
	resp, err := c.send(ctx, http.MethodPost, "/api/reviews", payload, sessionID, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var remote remoteReview
	if err := decodeBody(resp, &remote); err != nil {
		return nil, err
	}
	return remote.toModel(), nil
}

// DeleteReview は自分のレビューを削除する。
func (c *SessionClient) DeleteReview(ctx context.Context, reviewID string) error {
	sessionID, err := c.requireSession(ctx)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, http.MethodDelete, "/api/reviews/"+url.PathEscape(reviewID), nil, sessionID, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxServerResponseSize))
	return nil
}

// sessionID は保存済みのセッションCookieの値を返す。未保存の場合は空文字を返す。
func (c *SessionClient) sessionID(ctx context.Context) (string, error) {
	v, _, err := c.storage.Get(ctx, SessionKey)
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	return v, nil
}

func (c *SessionClient) requireSession(ctx context.Context) (string, error) {
	sessionID, err := c.sessionID(ctx)
	if err != nil {
		return "", err
	}
	if sessionID == "" {
		return "", model.NewUnauthenticatedError()
	}
	return sessionID, nil
}

// csrfToken はサーバーからCSRFトークンを取得する。
func (c *SessionClient) csrfToken(ctx context.Context) (string, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/csrf-token", nil, "", false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(resp, &body); err != nil {
		return "", err
	}
	if body.Token == "" {
		return "", fmt.Errorf("%w: empty CSRF token", ErrServerUnavailable)
	}
	return body.Token, nil
}

// send はリクエストを送信する。
// payloadがnilでなければJSONとして送信し、withCSRFの場合はCSRFトークンをCookieとヘッダーの両方に付与する。
func (c *SessionClient) send(ctx context.Context, method, path string, payload any, sessionID string, withCSRF bool) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	if withCSRF {
		token, err := c.csrfToken(ctx)
		if err != nil {
			return nil, err
		}
		req.AddCookie(&http.Cookie{Name: middleware.CSRFCookieName, Value: token})
		req.Header.Set(middleware.CSRFHeaderName, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Debug("review server request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	return resp, nil
}

func credentials(username, password string) map[string]string {
	return map[string]string{"username": username, "password": password}
}

func decodeBody(resp *http.Response, out any) error {
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxServerResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("%w: invalid response body: %v", ErrServerUnavailable, err)
	}
	return nil
}

// decodeError はエラーレスポンスをAPIErrorに変換する。
// 統一エラーフォーマットでない場合はErrServerUnavailableを返す。
func decodeError(resp *http.Response) error {
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxServerResponseSize)).Decode(&body); err != nil || body.Code == "" {
		return fmt.Errorf("%w: unexpected status %d", ErrServerUnavailable, resp.StatusCode)
	}
	return &model.APIError{
		Code:     body.Code,
		Message:  body.Message,
		Category: body.Category,
		Action:   body.Action,
	}
}
