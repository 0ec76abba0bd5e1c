package view

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hitoshi/movieshelf/internal/tmdb"
)

func TestRenderer_Cards(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)

	r.Cards("Trending", []Card{
		{ID: "603", Kind: tmdb.KindMovie, Title: "The Matrix", Rating: "8.2 / 10", ReleaseDate: "1999-03-30"},
		{ID: "27205", Kind: tmdb.KindMovie, Title: "Inception", Rating: "8.4 / 10", ReleaseDate: "2010-07-15"},
	})

	out := buf.String()
	for _, want := range []string{"Trending", "[movie 603]", "The Matrix", "8.2 / 10", "Inception"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "The Matrix") > strings.Index(out, "Inception") {
		t.Error("cards should be rendered in the given order")
	}
}

func TestRenderer_CardsEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf).Cards("Your Favorites", nil)

	if !strings.Contains(buf.String(), "(none)") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRenderer_PopupWithoutTrailer(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)

	r.Popup(Popup{
		Title:    "Inception",
		Language: "English",
		Runtime:  "148 minutes",
		Budget:   "$ N/A",
		Genres:   []string{"Action"},
		Cast:     []CastEntry{{Name: "Leonardo DiCaprio", Character: "Cobb"}},
		Favorite: true,
	})

	out := buf.String()
	for _, want := range []string{"Inception", "English", "148 minutes", "$ N/A", "no trailer available", "Leonardo DiCaprio", "as Cobb", "in favorites"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderer_Reviews(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)

	r.Reviews("603", []ReviewItem{
		{ID: "r1", Username: "alice", Body: "great", Own: true},
		{ID: "r2", Username: "bob", Body: "meh"},
	})

	out := buf.String()
	if !strings.Contains(out, "id r1") {
		t.Errorf("own review should show its id:\n%s", out)
	}
	if strings.Contains(out, "id r2") {
		t.Errorf("other's review should not show its id:\n%s", out)
	}
}

func TestRenderer_NoReviews(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf).Reviews("603", nil)

	if !strings.Contains(buf.String(), "no reviews yet") {
		t.Errorf("output = %q", buf.String())
	}
}
