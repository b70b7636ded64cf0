package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"weatherbadge/internal/state"
	logx "weatherbadge/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, d := range []string{"", "none", " Off "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		if !errors.Is(err, ErrDisabled) || st != nil {
			t.Fatalf("driver %q: got %v, %v", d, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver should fail")
	}
}

func TestFileStoreStateRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "badge.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	if _, ok, err := st.LoadState(ctx); ok || err != nil {
		t.Fatalf("fresh store: ok=%v err=%v", ok, err)
	}

	last := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s := state.New(state.WithClock(func() time.Time { return last }))
	s.SetTarget("Moscow, Russia", "Home", 55.75, 37.61)
	s.SetInterval(15)
	s.SetRateLimit(30 * time.Second)
	s.RecordUpdate(last)
	s.AppendAsset(state.AssetHandle{ID: 7, AccessToken: -3, FileReference: []byte{1, 2}})

	if err := st.SaveState(ctx, s.Snapshot()); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	snap, ok, err := st.LoadState(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadState: ok=%v err=%v", ok, err)
	}

	restored := state.New()
	restored.Restore(snap)
	target, ok := restored.Target()
	if !ok || target.DisplayName != "Moscow, Russia" || target.Caption != "Home" || target.Latitude != 55.75 {
		t.Fatalf("target = %+v", target)
	}
	if restored.Interval() != 15 {
		t.Fatalf("interval = %d", restored.Interval())
	}
	w, ok := restored.RateLimit()
	if !ok || w.Wait != 30*time.Second || !w.Until.Equal(last.Add(30*time.Second)) {
		t.Fatalf("rate limit = %+v", w)
	}
	if at, ok := restored.LastUpdate(); !ok || !at.Equal(last) {
		t.Fatalf("last update = %v", at)
	}
	hs := restored.Assets()
	if len(hs) != 1 || hs[0].ID != 7 || hs[0].AccessToken != -3 || string(hs[0].FileReference) != "\x01\x02" {
		t.Fatalf("assets = %+v", hs)
	}
}

func TestFileStoreAudit(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "badge")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	for _, a := range []string{"set_target", "set_interval"} {
		if err := st.AppendAudit(ctx, AuditEntry{ActorID: 1, ChatID: 2, Action: a}); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.AppendAudit(ctx, AuditEntry{Action: "late"}); err == nil {
		t.Fatal("append after close should fail")
	}

	f, err := os.Open(filepath.Join(dir, "badge.audit.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var actions []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatal(err)
		}
		if e.At.IsZero() {
			t.Fatal("timestamp not filled")
		}
		actions = append(actions, e.Action)
	}
	if len(actions) != 2 || actions[0] != "set_target" || actions[1] != "set_interval" {
		t.Fatalf("actions = %v", actions)
	}
}

func TestDecodeSnapshotRejectsUnknownVersion(t *testing.T) {
	t.Parallel()
	if _, err := decodeSnapshot([]byte(`{"version":99}`)); err == nil {
		t.Fatal("expected version error")
	}
}
