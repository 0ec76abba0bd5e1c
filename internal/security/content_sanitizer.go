// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザーが投稿したレビュー本文からHTMLを除去し、
// 表示側でのXSSを防ぐ。bluemondayのStrictPolicyを使用し、全てのタグを取り除いたうえで
// HTML特殊文字はエスケープされた状態で保存される。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー入力テキストのサニタイズ機能のインターフェース。
type ContentSanitizerService interface {
	// Sanitize は全てのHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフであり、複数のリクエストで共有できる。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はStrictPolicyを用いたサニタイザーを生成する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は全てのHTMLタグを除去したテキストを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
