package security

import (
	"strings"
	"testing"
)

func TestSanitize_StripsTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name        string
		input       string
		want        string
		notContains []string
	}{
		{
			name:  "プレーンテキストはそのまま",
			input: "Great movie",
			want:  "Great movie",
		},
		{
			name:        "scriptタグは内容ごと除去される",
			input:       "Nice<script>alert(1)</script>",
			want:        "Nice",
			notContains: []string{"<script", "alert"},
		},
		{
			name:        "装飾タグはテキストのみ残る",
			input:       "<b>bold</b> and <i>italic</i>",
			want:        "bold and italic",
			notContains: []string{"<b>", "<i>"},
		},
		{
			name:        "イベント属性付きの要素も除去される",
			input:       `<img src=x onerror="alert(1)">text`,
			want:        "text",
			notContains: []string{"onerror", "<img"},
		},
		{
			name:  "前後の空白は取り除かれる",
			input: "  spaced  ",
			want:  "spaced",
		},
		{
			name:  "空文字列は空文字列",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
			for _, s := range tt.notContains {
				if strings.Contains(got, s) {
					t.Errorf("Sanitize(%q) = %q, must not contain %q", tt.input, got, s)
				}
			}
		})
	}
}

func TestSanitize_TagOnlyInputBecomesEmpty(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize("<div><span></span></div>"); got != "" {
		t.Errorf("Sanitize() = %q, want empty", got)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()
	input := "<p>Hello</p> <em>world</em>"

	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)
	if first != second {
		t.Errorf("Sanitize is not idempotent: %q -> %q", first, second)
	}
}
