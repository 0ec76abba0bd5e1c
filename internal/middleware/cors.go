package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// NewCORSMiddleware は指定されたオリジンに対するCORSミドルウェアを返す。
// credentials送信と共存するため、ワイルドカード(*)は使用しない。
// OPTIONSプリフライトリクエストには200で応答し、後続のハンドラーには渡さない。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", CSRFHeaderName},
		AllowCredentials: true,
		MaxAge:           86400,
	})
}
