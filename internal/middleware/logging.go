package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// StatusRecorder はレスポンスのステータスコードを記録するインターフェース。
// metrics.Collectorが実装する。
type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// requestLogFields は内側のミドルウェアがログ項目を書き戻すための入れ物。
type requestLogFields struct {
	userID string
}

var logFieldsContextKey = contextKey("log_fields")

// setLogUserID はロギングミドルウェアの入れ物にユーザーIDを記録する。
func setLogUserID(ctx context.Context, userID string) {
	if f, ok := ctx.Value(logFieldsContextKey).(*requestLogFields); ok {
		f.userID = userID
	}
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、user_id（認証済みの場合）を含む。
// recorderがnilでない場合はステータスコードをメトリクスにも記録する。
func NewLoggingMiddleware(logger *slog.Logger, recorder StatusRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			fields := &requestLogFields{}
			ctx := context.WithValue(r.Context(), logFieldsContextKey, fields)

			next.ServeHTTP(rec, r.WithContext(ctx))

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}

			userID := fields.userID
			if userID == "" {
				userID, _ = UserIDFromContext(r.Context())
			}
			if userID != "" {
				args = append(args, slog.String("user_id", userID))
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)

			if recorder != nil {
				recorder.RecordHTTPStatus(rec.statusCode)
			}
		})
	}
}
