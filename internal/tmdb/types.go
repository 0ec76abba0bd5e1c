package tmdb

import (
	"fmt"
	"strings"
)

// Kind はメディア種別（映画またはシリーズ）を表す。
type Kind string

const (
	KindMovie Kind = "movie"
	KindTV    Kind = "tv"
)

// ParseKind は文字列をKindに変換する。"series"はKindTVの別名として受け付ける。
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "movie":
		return KindMovie, nil
	case "tv", "series":
		return KindTV, nil
	default:
		return "", fmt.Errorf("unknown media kind %q (want movie or tv)", s)
	}
}

// Summary は一覧・検索結果に含まれる作品の概要。
// 映画はTitle/ReleaseDate、シリーズはName/FirstAirDateが設定される。
type Summary struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	PosterPath   string  `json:"poster_path"`
	VoteAverage  float64 `json:"vote_average"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
}

// Genre はジャンル。
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SpokenLanguage は作品の使用言語。
type SpokenLanguage struct {
	ISO6391     string `json:"iso_639_1"`
	Name        string `json:"name"`
	EnglishName string `json:"english_name"`
}

// Title は作品の詳細情報。映画とシリーズで共通の構造体を使う。
type Title struct {
	ID               int              `json:"id"`
	Title            string           `json:"title"`
	Name             string           `json:"name"`
	Tagline          string           `json:"tagline"`
	Overview         string           `json:"overview"`
	PosterPath       string           `json:"poster_path"`
	VoteAverage      float64          `json:"vote_average"`
	Budget           int64            `json:"budget"`
	Runtime          int              `json:"runtime"`
	EpisodeRunTime   []int            `json:"episode_run_time"`
	ReleaseDate      string           `json:"release_date"`
	FirstAirDate     string           `json:"first_air_date"`
	OriginalLanguage string           `json:"original_language"`
	SpokenLanguages  []SpokenLanguage `json:"spoken_languages"`
	Genres           []Genre          `json:"genres"`
}

// Video は予告編などの動画。KeyはYouTubeの動画ID。
type Video struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Site string `json:"site"`
	Type string `json:"type"`
}

// CastMember は出演者。
type CastMember struct {
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path"`
}

type pagedResponse[T any] struct {
	Results []T `json:"results"`
}

type creditsResponse struct {
	Cast []CastMember `json:"cast"`
}
