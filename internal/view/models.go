// Package view は端末表示用のビューモデルと、その描画を提供する。
//
// ビューモデルの生成（NewCard、NewPopup、NewReviewItem）は副作用のない純粋関数で、
// Rendererだけが出力先への書き込みを行う。
package view

import (
	"html"
	"strconv"
	"time"

	"github.com/hitoshi/movieshelf/internal/model"
	"github.com/hitoshi/movieshelf/internal/tmdb"
)

// castLimit はポップアップに表示する出演者の上限。
const castLimit = 5

// notAvailable は値が存在しない項目の表示。
const notAvailable = "N/A"

// trailerBaseURL は予告編の再生URLの接頭辞。
const trailerBaseURL = "https://www.youtube.com/watch?v="

// Card は一覧に表示する作品カード。
type Card struct {
	ID          string
	Kind        tmdb.Kind
	Title       string
	Rating      string
	ReleaseDate string
	PosterURL   string
}

// CastEntry はポップアップの出演者1件。
type CastEntry struct {
	Name       string
	Character  string
	ProfileURL string
}

// Popup は作品詳細のポップアップ。
// TrailerURLが空の場合はプレイヤーを表示しない。
type Popup struct {
	ID          string
	Kind        tmdb.Kind
	Title       string
	Tagline     string
	Language    string
	Runtime     string
	Rating      string
	Budget      string
	ReleaseDate string
	Genres      []string
	Overview    string
	PosterURL   string
	TrailerURL  string
	Cast        []CastEntry
	Favorite    bool
}

// ReviewItem はレビュー一覧の1件。
type ReviewItem struct {
	ID        string
	Username  string
	Body      string
	CreatedAt string
	Own       bool
}

// NewCard は一覧・検索結果の概要からカードを生成する。
func NewCard(kind tmdb.Kind, s tmdb.Summary, imageBaseURL string) Card {
	return Card{
		ID:          strconv.Itoa(s.ID),
		Kind:        kind,
		Title:       firstNonEmpty(s.Title, s.Name),
		Rating:      formatRating(s.VoteAverage),
		ReleaseDate: firstNonEmpty(s.ReleaseDate, s.FirstAirDate),
		PosterURL:   imageURL(imageBaseURL, s.PosterPath),
	}
}

// NewCards は概要のリストを同じ順序のカードに変換する。
func NewCards(kind tmdb.Kind, summaries []tmdb.Summary, imageBaseURL string) []Card {
	cards := make([]Card, 0, len(summaries))
	for _, s := range summaries {
		cards = append(cards, NewCard(kind, s, imageBaseURL))
	}
	return cards
}

// CardFromTitle は作品詳細からカードを生成する。お気に入り一覧で使用する。
// IDには保存されているお気に入りIDを使う。
func CardFromTitle(kind tmdb.Kind, id string, t *tmdb.Title, imageBaseURL string) Card {
	return Card{
		ID:          id,
		Kind:        kind,
		Title:       firstNonEmpty(t.Title, t.Name),
		Rating:      formatRating(t.VoteAverage),
		ReleaseDate: firstNonEmpty(t.ReleaseDate, t.FirstAirDate),
		PosterURL:   imageURL(imageBaseURL, t.PosterPath),
	}
}

// PlaceholderCard は詳細を取得できなかったお気に入りのカードを生成する。
func PlaceholderCard(kind tmdb.Kind, id string) Card {
	return Card{
		ID:          id,
		Kind:        kind,
		Title:       notAvailable,
		Rating:      notAvailable,
		ReleaseDate: notAvailable,
	}
}

// NewPopup は作品詳細、予告編キー、出演者からポップアップを生成する。
//
// 欠損項目は次のように補う。
//   - タグライン: 空文字
//   - 言語: spoken_languagesの先頭、なければoriginal_language
//   - 上映時間: runtime、なければepisode_run_timeの先頭
//   - 予算: 0の場合は"N/A"
//   - 公開日: release_date、なければfirst_air_date
func NewPopup(kind tmdb.Kind, t *tmdb.Title, trailerKey string, cast []tmdb.CastMember, favorite bool, imageBaseURL string) Popup {
	p := Popup{
		ID:          strconv.Itoa(t.ID),
		Kind:        kind,
		Title:       firstNonEmpty(t.Title, t.Name),
		Tagline:     t.Tagline,
		Language:    language(t),
		Runtime:     runtime(t),
		Rating:      formatRating(t.VoteAverage),
		Budget:      budget(t.Budget),
		ReleaseDate: firstNonEmpty(t.ReleaseDate, t.FirstAirDate),
		Genres:      make([]string, 0, len(t.Genres)),
		Overview:    t.Overview,
		PosterURL:   imageURL(imageBaseURL, t.PosterPath),
		Cast:        make([]CastEntry, 0, min(len(cast), castLimit)),
		Favorite:    favorite,
	}

	for _, g := range t.Genres {
		p.Genres = append(p.Genres, g.Name)
	}
	if trailerKey != "" {
		p.TrailerURL = trailerBaseURL + trailerKey
	}
	for i, c := range cast {
		if i >= castLimit {
			break
		}
		p.Cast = append(p.Cast, CastEntry{
			Name:       c.Name,
			Character:  c.Character,
			ProfileURL: imageURL(imageBaseURL, c.ProfilePath),
		})
	}

	return p
}

// NewReviewItem はレビューを表示用に変換する。
// 本文は保存時にHTMLエスケープされているため、表示前に元の文字に戻す。
// currentUserIDが投稿者と一致する場合は削除可能としてマークする。
func NewReviewItem(r *model.Review, currentUserID string) ReviewItem {
	return ReviewItem{
		ID:        r.ID,
		Username:  r.Username,
		Body:      html.UnescapeString(r.Body),
		CreatedAt: r.CreatedAt.In(time.Local).Format("2006-01-02 15:04"),
		Own:       currentUserID != "" && r.IsOwnedBy(currentUserID),
	}
}

// NewReviewItems はレビューのリストを同じ順序で変換する。
func NewReviewItems(reviews []*model.Review, currentUserID string) []ReviewItem {
	items := make([]ReviewItem, 0, len(reviews))
	for _, r := range reviews {
		items = append(items, NewReviewItem(r, currentUserID))
	}
	return items
}

func formatRating(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " / 10"
}

func language(t *tmdb.Title) string {
	if len(t.SpokenLanguages) > 0 && t.SpokenLanguages[0].Name != "" {
		return t.SpokenLanguages[0].Name
	}
	return t.OriginalLanguage
}

func runtime(t *tmdb.Title) string {
	minutes := t.Runtime
	if minutes == 0 && len(t.EpisodeRunTime) > 0 {
		minutes = t.EpisodeRunTime[0]
	}
	if minutes == 0 {
		return notAvailable
	}
	return strconv.Itoa(minutes) + " minutes"
}

func budget(v int64) string {
	if v == 0 {
		return "$ " + notAvailable
	}
	return "$ " + strconv.FormatInt(v, 10)
}

func imageURL(base, path string) string {
	if path == "" {
		return ""
	}
	return base + path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
