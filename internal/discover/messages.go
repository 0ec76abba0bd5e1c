package discover

import (
	"context"
	"errors"

	"github.com/hitoshi/movieshelf/internal/model"
	"github.com/hitoshi/movieshelf/internal/tmdb"
)

// UserMessage はエラーを端末に表示するメッセージに変換する。
// どのエラーも内部の詳細を含まない文言にする。
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Action == "" {
			return apiErr.Message
		}
		return apiErr.Message + " " + apiErr.Action
	case errors.Is(err, ErrSuperseded):
		return "新しい操作が開始されたため、この操作の結果は破棄されました。"
	case errors.Is(err, context.Canceled):
		return "操作がキャンセルされました。"
	case errors.Is(err, context.DeadlineExceeded):
		return "操作がタイムアウトしました。しばらく待ってから再度お試しください。"
	case errors.Is(err, tmdb.ErrInvalidID):
		return "作品IDは数値で指定してください。"
	case errors.Is(err, tmdb.ErrNotFound):
		return "指定された作品が見つかりませんでした。"
	case errors.Is(err, tmdb.ErrUnavailable):
		e := model.NewUpstreamUnavailableError("provider unavailable")
		return e.Message + " " + e.Action
	case errors.Is(err, ErrServerUnavailable):
		return "レビューサーバーに接続できませんでした。MOVIESHELF_SERVER_URLを確認してください。"
	default:
		e := model.NewInternalError()
		return e.Message + " " + e.Action
	}
}
