// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はサーバー（serve / migrate / healthcheck）の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string        `env:"DATABASE_URL,required,notEmpty"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	// Session
	SessionMaxAge          int           `env:"SESSION_MAX_AGE" envDefault:"60"`
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1m"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"3000"`
	BaseURL    string `env:"BASE_URL" envDefault:"http://localhost:3000"`
	StaticDir  string `env:"STATIC_DIR" envDefault:"./public"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SessionMaxAge <= 0 {
		return nil, fmt.Errorf("SESSION_MAX_AGE must be positive: %d", cfg.SessionMaxAge)
	}
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}

// ClientConfig は端末クライアント用コマンドの設定を保持する。
type ClientConfig struct {
	// Upstream metadata provider
	TMDBAPIKey       string        `env:"TMDB_API_KEY"`
	TMDBBaseURL      string        `env:"TMDB_BASE_URL" envDefault:"https://api.themoviedb.org/3"`
	TMDBImageBaseURL string        `env:"TMDB_IMAGE_BASE_URL" envDefault:"https://image.tmdb.org/t/p/w1280"`
	TMDBTimeout      time.Duration `env:"TMDB_TIMEOUT" envDefault:"0s"`
	TMDBRateLimit    float64       `env:"TMDB_RATE_LIMIT" envDefault:"4"`
	TMDBRateBurst    int           `env:"TMDB_RATE_BURST" envDefault:"10"`
	TMDBBreakerTrips uint32        `env:"TMDB_BREAKER_FAILURES" envDefault:"5"`
	TMDBBreakerReset time.Duration `env:"TMDB_BREAKER_TIMEOUT" envDefault:"30s"`

	// Server
	ServerURL string `env:"MOVIESHELF_SERVER_URL" envDefault:"http://localhost:3000"`

	// Local state (favorites, session cookie)
	StatePath string `env:"MOVIESHELF_STATE_PATH"`

	// Favorites rendering
	FavoritesConcurrency int `env:"FAVORITES_CONCURRENCY" envDefault:"4"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`
}

// LoadClient は環境変数からClientConfigを読み込む。
// MOVIESHELF_STATE_PATHが未設定の場合はユーザー設定ディレクトリ配下を使用する。
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to load client config: %w", err)
	}

	if cfg.StatePath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config dir: %w", err)
		}
		cfg.StatePath = filepath.Join(dir, "movieshelf", "state.db")
	}
	if cfg.FavoritesConcurrency <= 0 {
		cfg.FavoritesConcurrency = 1
	}

	return cfg, nil
}

// RequireTMDB はメタデータプロバイダーのAPIキーが設定されているかを検証する。
// 映画情報を取得するコマンドのみが呼び出す。
func (c *ClientConfig) RequireTMDB() error {
	if c.TMDBAPIKey == "" {
		return fmt.Errorf("required environment variables are not set: [TMDB_API_KEY]")
	}
	return nil
}
