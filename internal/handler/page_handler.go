package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HealthChecker はヘルスチェックで疎通確認する依存先のインターフェース。
// *sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// PageHandler は静的ページとヘルスチェックのHTTPハンドラー。
type PageHandler struct {
	staticDir string
	health    HealthChecker
}

// NewPageHandler はPageHandlerを生成する。
// healthがnilの場合はヘルスチェックで依存先を確認しない。
func NewPageHandler(staticDir string, health HealthChecker) *PageHandler {
	return &PageHandler{
		staticDir: staticDir,
		health:    health,
	}
}

// Index は認証済みユーザー向けのトップページを返す。
// GET / と GET /index.html（セッション必須）
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	// http.ServeFileは/index.htmlを./へリダイレクトするためServeContentで返す
	path := filepath.Join(h.staticDir, "index.html")
	f, err := os.Open(path)
	if err != nil {
		slog.Error("failed to open index page", slog.String("path", path), slog.String("error", err.Error()))
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		slog.Error("failed to stat index page", slog.String("path", path), slog.String("error", err.Error()))
		http.NotFound(w, r)
		return
	}

	http.ServeContent(w, r, "index.html", info.ModTime(), f)
}

// Static は静的ファイルを配信するハンドラーを返す。
func (h *PageHandler) Static() http.Handler {
	return http.FileServer(http.Dir(h.staticDir))
}

// Health は稼働状態を返す。
// GET /health
func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.health.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
