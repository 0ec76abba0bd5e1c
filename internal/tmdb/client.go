// Package tmdb は映画メタデータプロバイダー（TMDB v3 API）のクライアントを提供する。
// レート制限とサーキットブレーカーで上流への呼び出しを保護する。
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

var (
	// ErrUnavailable はネットワークエラー、異常ステータス、JSON不正など上流が利用できないことを示す。
	ErrUnavailable = errors.New("tmdb: provider unavailable")
	// ErrNotFound は指定IDの作品が存在しないことを示す。
	ErrNotFound = errors.New("tmdb: not found")
	// ErrInvalidID はIDが数値でないことを示す。
	ErrInvalidID = errors.New("tmdb: invalid id")
)

// maxResponseSize はレスポンスボディの最大サイズ。
const maxResponseSize = 4 << 20

// Recorder は上流呼び出しのメトリクス記録インターフェース。
type Recorder interface {
	RecordUpstreamRequest(endpoint, outcome string)
	RecordUpstreamLatency(duration time.Duration)
}

// Config はクライアントの設定。
type Config struct {
	APIKey       string
	BaseURL      string
	RateLimit    float64       // 1秒あたりのリクエスト数。0以下は無制限
	RateBurst    int           // バースト許容数
	BreakerTrips uint32        // 連続失敗でブレーカーを開く回数。0の場合は5
	BreakerReset time.Duration // ブレーカーが半開状態に移るまでの時間。0の場合は30秒
}

// Client はTMDB APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	recorder   Recorder
}

// NewClient はClientの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg Config, recorder Recorder) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	trips := cfg.BreakerTrips
	if trips == 0 {
		trips = 5
	}
	reset := cfg.BreakerReset
	if reset <= 0 {
		reset = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tmdb",
		MaxRequests: 1,
		Timeout:     reset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		},
		// 404と呼び出し元のキャンセルは上流の障害として数えない
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("サーキットブレーカーの状態が変化しました",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    breaker,
		recorder:   recorder,
	}
}

// Search はタイトルで映画を検索する。
func (c *Client) Search(ctx context.Context, query string) ([]Summary, error) {
	var resp pagedResponse[Summary]
	if err := c.get(ctx, "search", "search/movie", url.Values{"query": {query}}, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Results), nil
}

// Get は作品の詳細情報を取得する。
func (c *Client) Get(ctx context.Context, kind Kind, id string) (*Title, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var title Title
	if err := c.get(ctx, "details", string(kind)+"/"+id, nil, &title); err != nil {
		return nil, err
	}
	return &title, nil
}

// Videos は作品の動画一覧を取得する。
func (c *Client) Videos(ctx context.Context, kind Kind, id string) ([]Video, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var resp pagedResponse[Video]
	if err := c.get(ctx, "videos", string(kind)+"/"+id+"/videos", nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Results), nil
}

// TrailerKey は動画一覧の先頭のキーを返す。動画がない場合は空文字列でエラーにしない。
func (c *Client) TrailerKey(ctx context.Context, kind Kind, id string) (string, error) {
	videos, err := c.Videos(ctx, kind, id)
	if err != nil {
		return "", err
	}
	if len(videos) == 0 {
		return "", nil
	}
	return videos[0].Key, nil
}

// Credits は作品の出演者一覧を取得する。
func (c *Client) Credits(ctx context.Context, kind Kind, id string) ([]CastMember, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var resp creditsResponse
	if err := c.get(ctx, "credits", string(kind)+"/"+id+"/credits", nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Cast), nil
}

// Popular は人気作品一覧を取得する。
func (c *Client) Popular(ctx context.Context, kind Kind) ([]Summary, error) {
	return c.list(ctx, "popular", string(kind)+"/popular")
}

// TopRated は高評価作品一覧を取得する。
func (c *Client) TopRated(ctx context.Context, kind Kind) ([]Summary, error) {
	return c.list(ctx, "top_rated", string(kind)+"/top_rated")
}

// Trending は今週のトレンド映画一覧を取得する。
func (c *Client) Trending(ctx context.Context) ([]Summary, error) {
	return c.list(ctx, "trending", "trending/movie/week")
}

func (c *Client) list(ctx context.Context, endpoint, path string) ([]Summary, error) {
	var resp pagedResponse[Summary]
	if err := c.get(ctx, endpoint, path, nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Results), nil
}

// get はレート制限とサーキットブレーカーを通してGETリクエストを実行し、outにデコードする。
// endpointはメトリクスとログに使う種別名。
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	// 1. レート制限の待機（キャンセル時はそのまま返す）
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	// 2. ブレーカー経由で呼び出し
	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, path, query)
	})
	if c.recorder != nil {
		c.recorder.RecordUpstreamLatency(time.Since(start))
	}

	if err != nil {
		c.record(endpoint, outcomeOf(err))
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			c.logger.Warn("サーキットブレーカーによりリクエストを拒否しました",
				slog.String("endpoint", endpoint),
			)
			return fmt.Errorf("%w: %s: %w", ErrUnavailable, endpoint, err)
		default:
			c.logger.Warn("TMDB APIの呼び出しに失敗しました",
				slog.String("endpoint", endpoint),
				slog.String("error", err.Error()),
			)
			return err
		}
	}

	// 3. JSONデコード
	if err := json.Unmarshal(body, out); err != nil {
		c.record(endpoint, "failure")
		c.logger.Warn("TMDB APIのレスポンスのパースに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %s: invalid JSON: %w", ErrUnavailable, endpoint, err)
	}

	c.record(endpoint, "success")
	return nil
}

// do は1回のHTTPリクエストを実行し、200の場合にボディを返す。
func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	params := url.Values{}
	for k, v := range query {
		params[k] = v
	}
	params.Set("api_key", c.apiKey)
	reqURL := c.baseURL + "/" + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, redactAPIKey(err.Error(), c.apiKey))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %w", ErrUnavailable, err)
	}
	return body, nil
}

func (c *Client) record(endpoint, outcome string) {
	if c.recorder != nil {
		c.recorder.RecordUpstreamRequest(endpoint, outcome)
	}
}

// outcomeOf はエラーをメトリクスのoutcomeラベルに分類する。
func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	default:
		return "failure"
	}
}

// ValidateID はIDが正の整数であることを検証する。
// 不正な場合はErrInvalidIDをラップしたエラーを返す。
func ValidateID(id string) error {
	if n, err := strconv.ParseUint(id, 10, 64); err != nil || n == 0 {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// redactAPIKey はエラーメッセージに含まれるAPIキーを伏せる。
// net/httpのエラーはリクエストURLを含むため。
func redactAPIKey(msg, key string) string {
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, key, "***")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
