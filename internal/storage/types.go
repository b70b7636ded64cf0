package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"weatherbadge/internal/state"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": snapshot JSON + audit JSON Lines next to Path
//   - "sqlite": SQLite database file (build tag sqlite)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the app.
type Store interface {
	// LoadState returns the last saved snapshot; ok is false when none exists.
	LoadState(ctx context.Context) (snap state.Snapshot, ok bool, err error)
	SaveState(ctx context.Context, snap state.Snapshot) error
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// AuditEntry records an operator action.
type AuditEntry struct {
	At            time.Time `json:"at"`
	ActorID       int64     `json:"actor_id"`
	ActorUsername string    `json:"actor_username,omitempty"`
	ChatID        int64     `json:"chat_id"`
	Action        string    `json:"action"`
	Target        string    `json:"target,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// record is the on-disk snapshot schema. Keep field names stable.
type record struct {
	Version         int         `json:"version"`
	SavedAt         time.Time   `json:"saved_at"`
	Target          *targetRec  `json:"target,omitempty"`
	IntervalMinutes int         `json:"interval_minutes"`
	RateLimitWait   int64       `json:"rate_limit_wait_ms,omitempty"`
	RateLimitUntil  *time.Time  `json:"rate_limit_until,omitempty"`
	LastUpdate      *time.Time  `json:"last_update,omitempty"`
	Assets          []handleRec `json:"assets,omitempty"`
}

type targetRec struct {
	DisplayName string  `json:"display_name"`
	Caption     string  `json:"caption"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
}

type handleRec struct {
	ID            int64  `json:"id"`
	AccessToken   int64  `json:"access_hash"`
	FileReference []byte `json:"file_reference,omitempty"`
}

const recordVersion = 1

func encodeSnapshot(snap state.Snapshot, now time.Time) ([]byte, error) {
	r := record{
		Version:         recordVersion,
		SavedAt:         now.UTC(),
		IntervalMinutes: snap.IntervalMinutes,
		LastUpdate:      snap.LastUpdate,
	}
	if t := snap.Target; t != nil {
		r.Target = &targetRec{DisplayName: t.DisplayName, Caption: t.Caption, Latitude: t.Latitude, Longitude: t.Longitude}
	}
	if w := snap.RateLimit; w != nil {
		until := w.Until
		r.RateLimitWait = w.Wait.Milliseconds()
		r.RateLimitUntil = &until
	}
	for _, h := range snap.Assets {
		r.Assets = append(r.Assets, handleRec{ID: h.ID, AccessToken: h.AccessToken, FileReference: h.FileReference})
	}
	return json.Marshal(r)
}

func decodeSnapshot(b []byte) (state.Snapshot, error) {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return state.Snapshot{}, err
	}
	if r.Version != recordVersion {
		return state.Snapshot{}, errors.New("unsupported snapshot version")
	}
	snap := state.Snapshot{IntervalMinutes: r.IntervalMinutes, LastUpdate: r.LastUpdate}
	if t := r.Target; t != nil {
		snap.Target = &state.RenderTarget{DisplayName: t.DisplayName, Caption: t.Caption, Latitude: t.Latitude, Longitude: t.Longitude}
	}
	if r.RateLimitUntil != nil {
		snap.RateLimit = &state.RateLimitWindow{Wait: time.Duration(r.RateLimitWait) * time.Millisecond, Until: *r.RateLimitUntil}
	}
	for _, h := range r.Assets {
		snap.Assets = append(snap.Assets, state.AssetHandle{ID: h.ID, AccessToken: h.AccessToken, FileReference: h.FileReference})
	}
	return snap, nil
}
