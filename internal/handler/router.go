package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/movieshelf/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.SessionAuthenticator
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 静的ページ
	StaticDir string

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// レビュー
	ReviewService ReviewServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (Session → CSRF)
//
// ページ遷移（/, /index.html）は未認証時にログインページへリダイレクトし、
// APIは未認証時に401のJSONエラーを返す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	reviewHandler := NewReviewHandler(deps.ReviewService)
	pageHandler := NewPageHandler(deps.StaticDir, deps.HealthChecker)

	// --- 運用エンドポイント ---
	r.Get("/health", pageHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証フロー ---
	r.Post("/register", authHandler.Register)
	r.Post("/login", authHandler.Login)
	r.With(middleware.NewNoStoreMiddleware()).Get("/logout", authHandler.Logout)

	// --- 認証が必要なページ ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewPageGateMiddleware(deps.Authenticator, authHandler.config.LoginPath))
		r.Get("/", pageHandler.Index)
		r.Get("/index.html", pageHandler.Index)
	})

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// GET /api/reviews/{id} - 映画のレビュー一覧（認証不要）
		r.Get("/reviews/{id}", reviewHandler.ListReviews)

		// ミドルウェアスタック: Session → CSRF
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.Authenticator))
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			r.Get("/me", authHandler.Me)
			r.Post("/reviews", reviewHandler.CreateReview)
			r.Delete("/reviews/{id}", reviewHandler.DeleteReview)
		})
	})

	// --- 公開静的ファイル（registration/*.html など） ---
	r.Handle("/*", pageHandler.Static())

	return r
}
