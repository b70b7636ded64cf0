package adapter

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitTelegramTextShort(t *testing.T) {
	t.Parallel()
	got := splitTelegramText("hello", 10, "")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTelegramTextPrefersNewline(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	got := splitTelegramText(text, 10, "")
	if len(got) != 2 || got[0] != strings.Repeat("a", 8) || got[1] != strings.Repeat("b", 8) {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTelegramTextKeepsTagsWhole(t *testing.T) {
	t.Parallel()
	text := "abcdefg<b>bold</b>"
	got := splitTelegramText(text, 9, "HTML")
	if got[0] != "abcdefg" {
		t.Fatalf("first chunk %q cuts a tag", got[0])
	}
	if strings.Join(got, "") != text {
		t.Fatalf("content lost: %q", got)
	}
}

func TestSplitTelegramTextRuneSafe(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("ж", 25)
	got := splitTelegramText(text, 10, "")
	if len(got) != 3 {
		t.Fatalf("chunks = %d", len(got))
	}
	for _, c := range got {
		if !utf8.ValidString(c) || utf8.RuneCountInString(c) > 10 {
			t.Fatalf("bad chunk %q", c)
		}
	}
}
