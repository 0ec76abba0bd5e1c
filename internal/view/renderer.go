package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Renderer はビューモデルを端末に書き出す。
// 出力先が端末でない場合、lipglossは装飾を付けずにプレーンテキストで出力する。
type Renderer struct {
	w       io.Writer
	heading lipgloss.Style
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	ok      lipgloss.Style
	err     lipgloss.Style
	heart   lipgloss.Style
}

// NewRenderer はwに書き込むRendererを生成する。
func NewRenderer(w io.Writer) *Renderer {
	lr := lipgloss.NewRenderer(w)
	style := func(fg string) lipgloss.Style {
		return lr.NewStyle().Foreground(lipgloss.Color(fg))
	}

	return &Renderer{
		w:       w,
		heading: style("#7D56F4").Bold(true),
		title:   style("#FFFFFF").Bold(true),
		label:   style("#626262"),
		muted:   style("#626262").Italic(true),
		ok:      style("#04B575").Bold(true),
		err:     style("#FF0000").Bold(true),
		heart:   style("#FF5F87"),
	}
}

// Cards は見出し付きでカードの一覧を描画する。
func (r *Renderer) Cards(heading string, cards []Card) {
	r.println(r.heading.Render(heading))
	if len(cards) == 0 {
		r.println(r.muted.Render("  (none)"))
		r.println("")
		return
	}
	for _, c := range cards {
		r.println(fmt.Sprintf("  %s %s", r.label.Render(fmt.Sprintf("[%s %s]", c.Kind, c.ID)), r.title.Render(c.Title)))
		r.println(fmt.Sprintf("      %s %s   %s %s",
			r.label.Render("Rate:"), c.Rating,
			r.label.Render("Release Date:"), c.ReleaseDate,
		))
	}
	r.println("")
}

// Popup は作品詳細を描画する。
func (r *Renderer) Popup(p Popup) {
	r.println(r.heading.Render(p.Title))
	if p.Tagline != "" {
		r.println(r.muted.Render(p.Tagline))
	}
	r.println("")

	fields := [][2]string{
		{"Language:", p.Language},
		{"Length:", p.Runtime},
		{"Rate:", p.Rating},
		{"Budget:", p.Budget},
		{"Release Date:", p.ReleaseDate},
	}
	for _, f := range fields {
		r.println(fmt.Sprintf("  %-14s %s", r.label.Render(f[0]), f[1]))
	}

	favorite := "♡ not in favorites"
	if p.Favorite {
		favorite = "♥ in favorites"
	}
	r.println(fmt.Sprintf("  %-14s %s", r.label.Render("Favorite:"), r.heart.Render(favorite)))
	r.println("")

	r.println(r.title.Render("Genres"))
	r.println("  " + strings.Join(p.Genres, ", "))
	r.println("")

	r.println(r.title.Render("Overview"))
	r.println("  " + p.Overview)
	r.println("")

	r.println(r.title.Render("Trailer"))
	if p.TrailerURL != "" {
		r.println("  " + p.TrailerURL)
	} else {
		r.println(r.muted.Render("  no trailer available"))
	}
	r.println("")

	r.println(r.title.Render("Cast"))
	for _, c := range p.Cast {
		if c.Character != "" {
			r.println(fmt.Sprintf("  %s %s", c.Name, r.muted.Render("as "+c.Character)))
			continue
		}
		r.println("  " + c.Name)
	}
}

// Reviews はレビュー一覧を描画する。自分のレビューにはIDを併記する。
func (r *Renderer) Reviews(movieID string, items []ReviewItem) {
	r.println(r.heading.Render("Reviews for " + movieID))
	if len(items) == 0 {
		r.println(r.muted.Render("  no reviews yet"))
		return
	}
	for _, it := range items {
		header := fmt.Sprintf("  %s %s", r.title.Render(it.Username), r.label.Render(it.CreatedAt))
		if it.Own {
			header += " " + r.muted.Render("(yours, id "+it.ID+")")
		}
		r.println(header)
		for _, line := range strings.Split(it.Body, "\n") {
			r.println("    " + line)
		}
	}
}

// Success は処理成功のメッセージを描画する。
func (r *Renderer) Success(msg string) {
	r.println(r.ok.Render(msg))
}

// Error はユーザー向けのエラーメッセージを描画する。
func (r *Renderer) Error(msg string) {
	r.println(r.err.Render(msg))
}

func (r *Renderer) println(s string) {
	fmt.Fprintln(r.w, s)
}
