package discover

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hitoshi/movieshelf/internal/model"
	"github.com/hitoshi/movieshelf/internal/tmdb"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"api error", fmt.Errorf("wrapped: %w", model.NewInvalidCredentialsError()), "Invalid username or password"},
		{"superseded", ErrSuperseded, "破棄"},
		{"canceled", context.Canceled, "キャンセル"},
		{"deadline", context.DeadlineExceeded, "タイムアウト"},
		{"invalid id", fmt.Errorf("x: %w", tmdb.ErrInvalidID), "数値"},
		{"not found", fmt.Errorf("x: %w", tmdb.ErrNotFound), "見つかりません"},
		{"upstream", fmt.Errorf("x: %w", tmdb.ErrUnavailable), "映画情報の取得に失敗しました"},
		{"server", fmt.Errorf("%w: dial", ErrServerUnavailable), "レビューサーバー"},
		{"unknown", fmt.Errorf("boom: secret detail"), "内部エラー"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UserMessage(tt.err)
			if tt.want == "" {
				if got != "" {
					t.Errorf("UserMessage() = %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("UserMessage() = %q, want it to contain %q", got, tt.want)
			}
			if strings.Contains(got, "secret detail") {
				t.Errorf("UserMessage() leaks internal detail: %q", got)
			}
		})
	}
}
