// Package app はコマンドラインのエントリーポイントと依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/movieshelf/internal/auth"
	"github.com/hitoshi/movieshelf/internal/config"
	"github.com/hitoshi/movieshelf/internal/database"
	"github.com/hitoshi/movieshelf/internal/handler"
	"github.com/hitoshi/movieshelf/internal/logger"
	"github.com/hitoshi/movieshelf/internal/metrics"
	"github.com/hitoshi/movieshelf/internal/middleware"
	"github.com/hitoshi/movieshelf/internal/repository"
	"github.com/hitoshi/movieshelf/internal/review"
	"github.com/hitoshi/movieshelf/internal/security"
	"github.com/hitoshi/movieshelf/internal/worker/cleanup"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// ErrReported はエラーメッセージを表示済みであることを示す。
// 呼び出し元は重ねてエラーを出力せず、終了コードのみを設定する。
var ErrReported = errors.New("error already reported")

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。outには描画結果とサーバーログを、errOutにはクライアントのログを出力する。
// SIGINTまたはSIGTERMを受信するとctxがキャンセルされる。
func Run(ctx context.Context, out, errOut io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return NewCommand(out, errOut).Run(ctx, append([]string{appName}, args...))
}

// initServer はサーバー系コマンドの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
func initServer(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.FormatJSON, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化
	logger.SetupDefault(w, logger.FormatJSON, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// serverDeps はHTTPサーバーの構成要素。
type serverDeps struct {
	router   http.Handler
	sessions *repository.MemorySessionRepo
	metrics  *metrics.Collector
}

// newServerDeps はリポジトリ、サービス、アダプタ、ルーターを構築する。
func newServerDeps(cfg *config.Config, db *sql.DB) *serverDeps {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	reviewRepo := repository.NewPostgresReviewRepo(db)
	sessionRepo := repository.NewMemorySessionRepo()

	// 3. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	reviewService := review.NewService(reviewRepo, userRepo, security.NewContentSanitizer())

	// 4. ルーターの構築
	deps := &handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger:         slog.Default(),
		StatusRecorder: collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		StaticDir: cfg.StaticDir,

		AuthService: handler.NewAuthServiceAdapter(authService, collector),
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ReviewService: handler.NewReviewServiceAdapter(reviewService, collector),
	}

	return &serverDeps{
		router:   handler.NewRouter(deps),
		sessions: sessionRepo,
		metrics:  collector,
	}
}

// runServe はAPIサーバーを起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーとセッションクリーンアップを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.OpenWithPool(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. 依存関係の構築
	deps := newServerDeps(cfg, db)

	// 3. セッションクリーンアップジョブの起動
	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()
	cleanupJob := cleanup.NewCleanupJob(deps.sessions, deps.metrics, slog.Default())
	go cleanupJob.Start(jobCtx, cfg.SessionCleanupInterval)

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      deps.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("base_url", cfg.BaseURL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")
	cancelJob()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用し、適用後のバージョンをログに出力する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// healthcheckURL はSERVER_PORTからヘルスチェック先のURLを組み立てる。
func healthcheckURL() string {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "3000"
	}
	return "http://localhost:" + port
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
