package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/hitoshi/movieshelf/internal/config"
	"github.com/hitoshi/movieshelf/internal/discover"
	"github.com/hitoshi/movieshelf/internal/favorites"
	"github.com/hitoshi/movieshelf/internal/logger"
	"github.com/hitoshi/movieshelf/internal/metrics"
	"github.com/hitoshi/movieshelf/internal/model"
	"github.com/hitoshi/movieshelf/internal/tmdb"
	"github.com/hitoshi/movieshelf/internal/view"
)

// clientCommands は端末クライアント用サブコマンドのアクションを提供する。
type clientCommands struct {
	out    io.Writer
	errOut io.Writer
}

// clientEnv は1回のコマンド実行で使う依存関係。
type clientEnv struct {
	cfg         *config.ClientConfig
	logger      *slog.Logger
	storage     *favorites.SQLiteStorage
	registry    *prometheus.Registry
	renderer    *view.Renderer
	errRenderer *view.Renderer
	session     *discover.SessionClient
	workflow    *discover.Workflow
}

// open は設定を読み込み、ローカルストレージとクライアントを構築する。
func (c *clientCommands) open() (*clientEnv, error) {
	// 1. 設定とログ
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	logger.SetupDefault(c.errOut, logger.FormatText, logger.ParseLevel(cfg.LogLevel))
	log := slog.Default()

	// 2. ローカルストレージ
	storage, err := favorites.OpenSQLite(cfg.StatePath)
	if err != nil {
		return nil, err
	}

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. メタデータプロバイダーとレビューサーバーのクライアント
	provider := tmdb.NewClient(&http.Client{Timeout: cfg.TMDBTimeout}, log, tmdb.Config{
		APIKey:       cfg.TMDBAPIKey,
		BaseURL:      cfg.TMDBBaseURL,
		RateLimit:    cfg.TMDBRateLimit,
		RateBurst:    cfg.TMDBRateBurst,
		BreakerTrips: cfg.TMDBBreakerTrips,
		BreakerReset: cfg.TMDBBreakerReset,
	}, collector)
	session := discover.NewSessionClient(&http.Client{}, cfg.ServerURL, storage, log)

	// 5. ワークフロー
	workflow := discover.NewWorkflow(provider, favorites.NewStore(storage, log), session, discover.Config{
		ImageBaseURL:         cfg.TMDBImageBaseURL,
		FavoritesConcurrency: cfg.FavoritesConcurrency,
	}, log)

	return &clientEnv{
		cfg:         cfg,
		logger:      log,
		storage:     storage,
		registry:    registry,
		renderer:    view.NewRenderer(c.out),
		errRenderer: view.NewRenderer(c.errOut),
		session:     session,
		workflow:    workflow,
	}, nil
}

// Close は上流呼び出しのメトリクスをデバッグログに出力し、ストレージを閉じる。
func (e *clientEnv) Close() {
	if snapshot, err := metrics.CounterSnapshot(e.registry); err == nil {
		keys := make([]string, 0, len(snapshot))
		for k := range snapshot {
			if strings.HasPrefix(k, "movieshelf_upstream") {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			e.logger.Debug("upstream metric", slog.String("series", k), slog.Float64("value", snapshot[k]))
		}
	}

	if err := e.storage.Close(); err != nil {
		e.logger.Warn("failed to close local storage", slog.String("error", err.Error()))
	}
}

// run はコマンドの共通処理を行う。
// 失敗時はユーザー向けメッセージを表示し、ErrReportedでラップしたエラーを返す。
func (c *clientCommands) run(ctx context.Context, needTMDB bool, fn func(ctx context.Context, env *clientEnv) error) error {
	env, err := c.open()
	if err != nil {
		return err
	}
	defer env.Close()

	if needTMDB {
		if err := env.cfg.RequireTMDB(); err != nil {
			return err
		}
	}

	if err := fn(ctx, env); err != nil {
		env.logger.Debug("command failed", slog.String("error", err.Error()))
		env.errRenderer.Error(discover.UserMessage(err))
		return fmt.Errorf("%w: %w", ErrReported, err)
	}
	return nil
}

// Register はアカウントを登録する。
func (c *clientCommands) Register(ctx context.Context, cmd *cli.Command) error {
	return c.run(ctx, false, func(ctx context.Context, env *clientEnv) error {
		user, err := env.session.Register(ctx, cmd.String("username"), cmd.String("password"))
		if err != nil {
			return err
		}
		env.renderer.Success(fmt.Sprintf("Registered %s. Log in with `%s login`.", user.Username, appName))
		return nil
	})
}

// Login はログインしてセッションを保存する。
func (c *clientCommands) Login(ctx context.Context, cmd *cli.Command) error {
	return c.run(ctx, false, func(ctx context.Context, env *clientEnv) error {
		user, err := env.session.Login(ctx, cmd.String("username"), cmd.String("password"))
		if err != nil {
			return err
		}
		env.renderer.Success("Logged in as " + user.Username)
		return nil
	})
}

// Logout はセッションを破棄する。
func (c *clientCommands) Logout(ctx context.Context, cmd *cli.Command) error {
	return c.run(ctx, false, func(ctx context.Context, env *clientEnv) error {
		if err := env.session.Logout(ctx); err != nil {
			return err
		}
		env.renderer.Success("Logged out")
		return nil
	})
}

// WhoAmI はログイン中のユーザーを表示する。
func (c *clientCommands) WhoAmI(ctx context.Context, cmd *cli.Command) error {
	return c.run(ctx, false, func(ctx context.Context, env *clientEnv) error {
		user, err := env.session.Me(ctx)
		if err != nil {
			return err
		}
		env.renderer.Success(fmt.Sprintf("%s (%s)", user.Username, user.ID))
		return nil
	})
}

// Search はタイトルで映画を検索する。
func (c *clientCommands) Search(ctx context.Context, cmd *cli.Command) error {
	return c.run(ctx, true, func(ctx context.Context, env *clientEnv) error {
		cards, err := env.workflow.Search(ctx, restFrom(cmd, 0))
		if err != nil {
			return err
		}
		env.renderer.Cards("Search Results...", cards)
		return nil
	})
}

// Browse はトレンド、人気、高評価の一覧を表示する。
// すべてのセクションが失敗した場合のみエラーとする。
func (c *clientCommands) Browse(ctx context.Context, cmd *cli.Command) error {
	return c.run(ctx, true, func(ctx context.Context, env *clientEnv) error {
		sections, err := env.workflow.Sections(ctx)
		if err != nil {
			return err
		}

		var errs []error
		for _, s := range sections {
			if s.Err != nil {
				env.errRenderer.Error(s.Heading + ": " + discover.UserMessage(s.Err))
				errs = append(errs, s.Err)
				continue
			}
			env.renderer.Cards(s.Heading, s.Cards)
		}
		if len(errs) == len(sections) {
			return errors.Join(errs...)
		}
		return nil
	})
}

// Show は作品の詳細を表示する。
func (c *clientCommands) Show(ctx context.Context, cmd *cli.Command) error {
	return c.run(ctx, true, func(ctx context.Context, env *clientEnv) error {
		kind, err := tmdb.ParseKind(cmd.String("kind"))
		if err != nil {
			return model.NewInvalidRequestError(err.Error())
		}
		id, err := argAt(cmd, 0, "id")
		if err != nil {
			return err
		}

		popup, err := env.workflow.OpenPopup(ctx, kind, id)
		if err != nil {
			return err
		}
		env.renderer.Popup(popup)
		return nil
	})
}

// FavoritesList はお気に入りの作品を表示する。
func (c *clientCommands) FavoritesList(ctx context.Context, cmd *cli.Command) error {
	return c.run(ctx, true, func(ctx context.Context, env *clientEnv) error {
		cards, err := env.workflow.RenderFavorites(ctx)
		if err != nil {
			return err
		}
		env.renderer.Cards("Your Favorites", cards)
		return nil
	})
}

// FavoritesToggle はお気に入りを切り替え、更新後の一覧を表示する。
func (c *clientCommands) FavoritesToggle(ctx context.Context, cmd *cli.Command) error {
	return c.run(ctx, true, func(ctx context.Context, env *clientEnv) error {
		id, err := argAt(cmd, 0, "id")
		if err != nil {
			return err
		}

		on, cards, err := env.workflow.ToggleFavorite(ctx, id)
		if err != nil {
			return err
		}
		if on {
			env.renderer.Success("Added " + id + " to favorites")
		} else {
			env.renderer.Success("Removed " + id + " from favorites")
		}
		env.renderer.Cards("Your Favorites", cards)
		return nil
	})
}

// ReviewsList は映画のレビュー一覧を表示する。
func (c *clientCommands) ReviewsList(ctx context.Context, cmd *cli.Command) error {
	return c.run(ctx, false, func(ctx context.Context, env *clientEnv) error {
		movieID, err := argAt(cmd, 0, "movie-id")
		if err != nil {
			return err
		}

		items, err := env.workflow.Reviews(ctx, movieID)
		if err != nil {
			return err
		}
		env.renderer.Reviews(movieID, items)
		return nil
	})
}

// ReviewsAdd はレビューを投稿し、更新後の一覧を表示する。
func (c *clientCommands) ReviewsAdd(ctx context.Context, cmd *cli.Command) error {
	return c.run(ctx, false, func(ctx context.Context, env *clientEnv) error {
		movieID, err := argAt(cmd, 0, "movie-id")
		if err != nil {
			return err
		}

		items, err := env.workflow.SubmitReview(ctx, movieID, restFrom(cmd, 1))
		if err != nil {
			return err
		}
		env.renderer.Success("Review posted")
		env.renderer.Reviews(movieID, items)
		return nil
	})
}

// ReviewsDelete は自分のレビューを削除し、更新後の一覧を表示する。
func (c *clientCommands) ReviewsDelete(ctx context.Context, cmd *cli.Command) error {
	return c.run(ctx, false, func(ctx context.Context, env *clientEnv) error {
		movieID, err := argAt(cmd, 0, "movie-id")
		if err != nil {
			return err
		}
		reviewID, err := argAt(cmd, 1, "review-id")
		if err != nil {
			return err
		}

		items, err := env.workflow.DeleteReview(ctx, movieID, reviewID)
		if err != nil {
			return err
		}
		env.renderer.Success("Review deleted")
		env.renderer.Reviews(movieID, items)
		return nil
	})
}
