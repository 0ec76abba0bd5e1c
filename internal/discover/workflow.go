// Package discover は作品の閲覧、お気に入り、レビュー投稿の各操作を組み立てる。
//
// 各操作はメタデータプロバイダー、お気に入りストア、レビューサーバーを呼び出し、
// internal/viewのビューモデルを返す。描画は呼び出し元が行う。
package discover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/movieshelf/internal/favorites"
	"github.com/hitoshi/movieshelf/internal/model"
	"github.com/hitoshi/movieshelf/internal/tmdb"
	"github.com/hitoshi/movieshelf/internal/view"
)

// アクションの種類
const (
	actionSearch    = "search"
	actionSections  = "sections"
	actionPopup     = "popup"
	actionFavorites = "favorites"
	actionReviews   = "reviews"
)

// MetadataProvider は作品メタデータの取得元。tmdb.Clientが実装する。
type MetadataProvider interface {
	Search(ctx context.Context, query string) ([]tmdb.Summary, error)
	Get(ctx context.Context, kind tmdb.Kind, id string) (*tmdb.Title, error)
	TrailerKey(ctx context.Context, kind tmdb.Kind, id string) (string, error)
	Credits(ctx context.Context, kind tmdb.Kind, id string) ([]tmdb.CastMember, error)
	Popular(ctx context.Context, kind tmdb.Kind) ([]tmdb.Summary, error)
	TopRated(ctx context.Context, kind tmdb.Kind) ([]tmdb.Summary, error)
	Trending(ctx context.Context) ([]tmdb.Summary, error)
}

// FavoritesStore はお気に入りIDの保存先。favorites.Storeが実装する。
type FavoritesStore interface {
	List(ctx context.Context) ([]string, error)
	Contains(ctx context.Context, id string) (bool, error)
	Toggle(ctx context.Context, id string) (bool, error)
}

// ReviewClient はレビューサーバーのクライアント。SessionClientが実装する。
type ReviewClient interface {
	Me(ctx context.Context) (*RemoteUser, error)
	ListReviews(ctx context.Context, movieID string) ([]*model.Review, error)
	CreateReview(ctx context.Context, movieID, body string) (*model.Review, error)
	DeleteReview(ctx context.Context, reviewID string) error
}

// Config はWorkflowの設定。
type Config struct {
	ImageBaseURL         string
	FavoritesConcurrency int // お気に入り取得の同時実行数。0以下は1
}

// Section は見出し付きのカード一覧。取得に失敗したセクションはErrが設定される。
type Section struct {
	Heading string
	Cards   []view.Card
	Err     error
}

// Workflow は端末クライアントの各操作を提供する。
type Workflow struct {
	provider    MetadataProvider
	favorites   FavoritesStore
	reviews     ReviewClient
	tracker     *ActionTracker
	imageBase   string
	concurrency int
	logger      *slog.Logger
}

// NewWorkflow はWorkflowを生成する。
func NewWorkflow(provider MetadataProvider, favorites FavoritesStore, reviews ReviewClient, cfg Config, logger *slog.Logger) *Workflow {
	concurrency := cfg.FavoritesConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Workflow{
		provider:    provider,
		favorites:   favorites,
		reviews:     reviews,
		tracker:     NewActionTracker(),
		imageBase:   cfg.ImageBaseURL,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Search はタイトルで映画を検索する。
func (w *Workflow) Search(ctx context.Context, query string) ([]view.Card, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewInvalidRequestError("search query must not be empty")
	}

	return Track(w.tracker, ctx, actionSearch, func(ctx context.Context) ([]view.Card, error) {
		results, err := w.provider.Search(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to search %q: %w", query, err)
		}
		return view.NewCards(tmdb.KindMovie, results, w.imageBase), nil
	})
}

// Sections はトレンド、人気、高評価の各一覧を取得する。
// 一部のセクションの失敗は他のセクションに影響しない。
func (w *Workflow) Sections(ctx context.Context) ([]Section, error) {
	type source struct {
		heading string
		kind    tmdb.Kind
		fetch   func(ctx context.Context) ([]tmdb.Summary, error)
	}
	sources := []source{
		{"Trending Movies", tmdb.KindMovie, w.provider.Trending},
		{"Popular Movies", tmdb.KindMovie, func(ctx context.Context) ([]tmdb.Summary, error) {
			return w.provider.Popular(ctx, tmdb.KindMovie)
		}},
		{"Popular Series", tmdb.KindTV, func(ctx context.Context) ([]tmdb.Summary, error) {
			return w.provider.Popular(ctx, tmdb.KindTV)
		}},
		{"Top Rated Movies", tmdb.KindMovie, func(ctx context.Context) ([]tmdb.Summary, error) {
			return w.provider.TopRated(ctx, tmdb.KindMovie)
		}},
		{"Top Rated Series", tmdb.KindTV, func(ctx context.Context) ([]tmdb.Summary, error) {
			return w.provider.TopRated(ctx, tmdb.KindTV)
		}},
	}

	return Track(w.tracker, ctx, actionSections, func(ctx context.Context) ([]Section, error) {
		sections := make([]Section, len(sources))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.concurrency)

		for i, src := range sources {
			g.Go(func() error {
				results, err := src.fetch(gctx)
				sections[i] = Section{Heading: src.heading}
				if err != nil {
					w.logger.Warn("failed to fetch section",
						slog.String("section", src.heading),
						slog.String("error", err.Error()),
					)
					sections[i].Err = err
					return nil
				}
				sections[i].Cards = view.NewCards(src.kind, results, w.imageBase)
				return nil
			})
		}
		g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return sections, nil
	})
}

// OpenPopup は作品詳細のポップアップを組み立てる。
// メタデータ、予告編、出演者の順に取得し、どれかが失敗した場合は操作全体を失敗とする。
func (w *Workflow) OpenPopup(ctx context.Context, kind tmdb.Kind, id string) (view.Popup, error) {
	return Track(w.tracker, ctx, actionPopup, func(ctx context.Context) (view.Popup, error) {
		// 1. メタデータ
		title, err := w.provider.Get(ctx, kind, id)
		if err != nil {
			return view.Popup{}, fmt.Errorf("failed to get %s %s: %w", kind, id, err)
		}

		// 2. 予告編
		trailerKey, err := w.provider.TrailerKey(ctx, kind, id)
		if err != nil {
			return view.Popup{}, fmt.Errorf("failed to get trailer for %s %s: %w", kind, id, err)
		}

		// 3. 出演者
		cast, err := w.provider.Credits(ctx, kind, id)
		if err != nil {
			return view.Popup{}, fmt.Errorf("failed to get credits for %s %s: %w", kind, id, err)
		}

		// 4. お気に入り状態
		favorite, err := w.favorites.Contains(ctx, id)
		if err != nil {
			return view.Popup{}, fmt.Errorf("failed to read favorites: %w", err)
		}

		return view.NewPopup(kind, title, trailerKey, cast, favorite, w.imageBase), nil
	})
}

// ToggleFavorite はお気に入り状態を反転し、更新後のお気に入り一覧を返す。
// 追加できるのはメタデータプロバイダーが受け付けるIDのみ。
// 既に保存されているIDは形式によらず削除できる。
func (w *Workflow) ToggleFavorite(ctx context.Context, id string) (bool, []view.Card, error) {
	stored, err := w.favorites.Contains(ctx, id)
	if err != nil {
		return false, nil, fmt.Errorf("failed to read favorites: %w", err)
	}
	if !stored {
		if err := tmdb.ValidateID(id); err != nil {
			return false, nil, model.NewInvalidRequestError("title id must be a positive number: " + id)
		}
	}

	on, err := w.favorites.Toggle(ctx, id)
	if err != nil {
		return false, nil, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	w.logger.Debug("favorite toggled", slog.String("id", id), slog.Bool("on", on))

	cards, err := w.RenderFavorites(ctx)
	if err != nil {
		return on, nil, err
	}
	return on, cards, nil
}

// RenderFavorites は保存されたお気に入りの作品カードを返す。
// メタデータは同時実行数を制限して並行に取得し、カードは保存順に並べる。
// 取得に失敗した作品は警告ログを出してプレースホルダーのカードにする。
func (w *Workflow) RenderFavorites(ctx context.Context) ([]view.Card, error) {
	return Track(w.tracker, ctx, actionFavorites, func(ctx context.Context) ([]view.Card, error) {
		ids, err := w.favorites.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read favorites: %w", err)
		}

		cards := make([]view.Card, len(ids))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.concurrency)

		for i, id := range ids {
			g.Go(func() error {
				title, err := w.provider.Get(gctx, tmdb.KindMovie, id)
				if err != nil {
					// キャンセルは一覧全体の失敗として扱う
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					w.logger.Warn("failed to get favorite",
						slog.String("id", id),
						slog.String("error", err.Error()),
					)
					cards[i] = view.PlaceholderCard(tmdb.KindMovie, id)
					return nil
				}
				cards[i] = view.CardFromTitle(tmdb.KindMovie, id, title, w.imageBase)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		return cards, nil
	})
}

// Reviews は映画のレビュー一覧を返す。
// ログイン中であれば自分のレビューを削除可能としてマークする。
func (w *Workflow) Reviews(ctx context.Context, movieID string) ([]view.ReviewItem, error) {
	return Track(w.tracker, ctx, actionReviews, func(ctx context.Context) ([]view.ReviewItem, error) {
		return w.listReviews(ctx, movieID)
	})
}

// SubmitReview はレビューを投稿し、更新後のレビュー一覧を返す。
func (w *Workflow) SubmitReview(ctx context.Context, movieID, body string) ([]view.ReviewItem, error) {
	if strings.TrimSpace(body) == "" {
		return nil, model.NewInvalidRequestError("review must not be empty")
	}

	return Track(w.tracker, ctx, actionReviews, func(ctx context.Context) ([]view.ReviewItem, error) {
		if _, err := w.reviews.CreateReview(ctx, movieID, body); err != nil {
			return nil, fmt.Errorf("failed to submit review: %w", err)
		}
		return w.listReviews(ctx, movieID)
	})
}

// DeleteReview は自分のレビューを削除し、更新後のレビュー一覧を返す。
func (w *Workflow) DeleteReview(ctx context.Context, movieID, reviewID string) ([]view.ReviewItem, error) {
	return Track(w.tracker, ctx, actionReviews, func(ctx context.Context) ([]view.ReviewItem, error) {
		if err := w.reviews.DeleteReview(ctx, reviewID); err != nil {
			return nil, fmt.Errorf("failed to delete review: %w", err)
		}
		return w.listReviews(ctx, movieID)
	})
}

func (w *Workflow) listReviews(ctx context.Context, movieID string) ([]view.ReviewItem, error) {
	reviews, err := w.reviews.ListReviews(ctx, movieID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	currentUserID := ""
	if user, err := w.reviews.Me(ctx); err == nil {
		currentUserID = user.ID
	} else {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthenticated {
			w.logger.Debug("failed to resolve current user", slog.String("error", err.Error()))
		}
	}

	return view.NewReviewItems(reviews, currentUserID), nil
}

// compile-time interface checks
var (
	_ MetadataProvider = (*tmdb.Client)(nil)
	_ FavoritesStore   = (*favorites.Store)(nil)
	_ ReviewClient     = (*SessionClient)(nil)
)
