package logx

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"
)

type fakeSender struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeSender) SendLog(_ context.Context, _ int64, _ int, text string) error {
	f.mu.Lock()
	f.lines = append(f.lines, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func TestFormatChatLine(t *testing.T) {
	t.Parallel()
	key, text := formatChatLine([]byte(`{"level":"warn","comp":"refresh","message":"publish failed","wait":"30s","attempt":2,"time":"x","caller":"y"}` + "\n"))
	if key != "warn|refresh|publish failed" {
		t.Fatalf("key = %q", key)
	}
	want := "⚠️ [refresh] publish failed\nattempt=2\nwait=30s"
	if text != want {
		t.Fatalf("text = %q, want %q", text, want)
	}

	key, text = formatChatLine([]byte("not json\n"))
	if key != "not json" || text != "not json" {
		t.Fatalf("raw line = %q, %q", key, text)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 6, "abc…"},
		{"абвгд", 6, "а…"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want || !utf8.ValidString(got) {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestChatSinkCoalescesRepeats(t *testing.T) {
	t.Parallel()
	snd := &fakeSender{}
	svc, log := New(Config{
		Level:    "debug",
		Telegram: TelegramConfig{Enabled: true, MinLevel: "warn", RatePerSec: 100},
	}, snd)
	defer svc.Close()
	svc.SetTelegramTarget(42, 0)

	log = log.With(String("comp", "refresh"))
	log.Info("below threshold")
	for i := range 3 {
		log.Warn("fetch failed", Int("attempt", i))
	}
	log.Error("gave up")

	deadline := time.Now().Add(3 * time.Second)
	for len(snd.sent()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("sent = %q", snd.sent())
		}
		time.Sleep(5 * time.Millisecond)
	}
	got := snd.sent()
	if !strings.HasPrefix(got[0], "⚠️ [refresh] fetch failed") {
		t.Fatalf("first = %q", got[0])
	}
	if !strings.HasPrefix(got[1], "(previous line repeated 2 more times)\n❌ [refresh] gave up") {
		t.Fatalf("second = %q", got[1])
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger not reported as zero")
	}
	l.With(String("k", "v")).Error("nothing")

	var buf bytes.Buffer
	w := NewWriter(&buf, "info")
	w.Debug("hidden")
	w.With(String("comp", "x")).Info("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, `"comp":"x"`) {
		t.Fatalf("output = %q", out)
	}
}
