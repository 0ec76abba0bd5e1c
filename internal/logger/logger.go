// Package logger はslogによる構造化ログの初期化を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format はログの出力形式。
type Format int

const (
	// FormatJSON はサーバー向けのJSON形式。
	FormatJSON Format = iota
	// FormatText は端末クライアント向けのテキスト形式。
	FormatText
)

// ParseLevel はLOG_LEVELの文字列をslog.Levelに変換する。
// 不明な値はInfoとして扱う。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup は指定形式・レベルのslog.Loggerを生成して返す。
func Setup(w io.Writer, format Format, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetupDefault はロガーを生成してグローバルロガーとして設定する。
// writerがnilの場合はサーバーならos.Stdout、クライアントならos.Stderrに出力する。
func SetupDefault(w io.Writer, format Format, level slog.Level) {
	if w == nil {
		w = os.Stdout
		if format == FormatText {
			w = os.Stderr
		}
	}
	slog.SetDefault(Setup(w, format, level))
}
