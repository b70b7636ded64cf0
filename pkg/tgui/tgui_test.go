package tgui

import (
	"errors"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestCycle(t *testing.T) {
	t.Parallel()
	tests := []struct{ page, delta, total, want int }{
		{0, 1, 3, 1},
		{2, 1, 3, 0},
		{0, -1, 3, 2},
		{1, -1, 3, 0},
		{0, 1, 1, 0},
		{0, 1, 0, 0},
	}
	for _, tt := range tests {
		if got := Cycle(tt.page, tt.delta, tt.total); got != tt.want {
			t.Fatalf("Cycle(%d,%d,%d) = %d, want %d", tt.page, tt.delta, tt.total, got, tt.want)
		}
	}
	if Counter(1, 5) != "2/5" || Counter(0, 0) != "0/0" {
		t.Fatal("Counter")
	}
}

func TestData(t *testing.T) {
	t.Parallel()
	if s, err := Data("set", "page", "3"); err != nil || s != "set:page:3" {
		t.Fatalf("got %q, %v", s, err)
	}
	if s := MustData("stop", "yes", ""); s != "stop:yes" {
		t.Fatalf("got %q", s)
	}
	if _, err := Data("s", "a", strings.Repeat("x", 80)); !errors.Is(err, ErrCallbackDataTooLong) {
		t.Fatalf("err = %v", err)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	if got := TruncRunes("Москва", 10); got != "Москва" {
		t.Fatalf("got %q", got)
	}
	if got := TruncRunes("Москва", 4); got != "Мос…" {
		t.Fatalf("got %q", got)
	}
	if got := TruncRunes("abc", 0); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestBuilderEscapes(t *testing.T) {
	t.Parallel()
	m := New().Title("🌤", "Info").KV("Caption", "<b>x</b>").Line("a & b").Build()
	want := "🌤 <b>Info</b>\n• <b>Caption</b>: &lt;b&gt;x&lt;/b&gt;\na &amp; b"
	if m.Text != want {
		t.Fatalf("text = %q", m.Text)
	}
	if m.Opt.ParseMode != "HTML" || !m.Opt.DisablePreview {
		t.Fatalf("opt = %+v", m.Opt)
	}
	kb := NewInline().Row(Btn("Yes", "stop:yes"), Btn("No", "stop:no"))
	m = New().Line("x").Inline(kb).Build()
	rm, ok := m.Opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	if !ok || len(rm.InlineKeyboard) != 1 || len(rm.InlineKeyboard[0]) != 2 {
		t.Fatalf("markup = %+v", m.Opt.ReplyMarkupAdapter)
	}
}
