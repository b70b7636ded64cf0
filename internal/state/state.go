// Package state holds the daemon's shared mutable state: the render target,
// the refresh interval, the publish rate-limit window, the run flag, the last
// successful publish time and the history of published asset handles.
//
// Every field is guarded by one mutex. Accessors return copies, so a reader
// never sees a half-applied update.
package state

import (
	"strings"
	"sync"
	"time"
)

const (
	MinIntervalMinutes     = 1
	MaxIntervalMinutes     = 1440
	DefaultIntervalMinutes = 5

	// HistoryCapacity is the number of published assets kept before they are
	// flushed with one bulk delete.
	HistoryCapacity = 10
)

// RenderTarget is the location + caption tuple fed to the compositor.
type RenderTarget struct {
	DisplayName string
	Caption     string
	Latitude    float64
	Longitude   float64
}

// RateLimitWindow is an interval during which publishing is refused upstream.
type RateLimitWindow struct {
	Wait  time.Duration
	Until time.Time
}

// Active reports whether publishing is still refused at now.
func (w RateLimitWindow) Active(now time.Time) bool { return now.Before(w.Until) }

// Remaining returns the time left in the window (0 once expired).
func (w RateLimitWindow) Remaining(now time.Time) time.Duration {
	if d := w.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// AssetHandle identifies a published bitmap so it can be deleted later.
type AssetHandle struct {
	ID            int64
	AccessToken   int64
	FileReference []byte
}

// Snapshot is a consistent copy of everything except the run flag.
type Snapshot struct {
	Target          *RenderTarget
	IntervalMinutes int
	RateLimit       *RateLimitWindow
	LastUpdate      *time.Time
	Assets          []AssetHandle
}

type Option func(*State)

// WithClock overrides the time source used by SetRateLimit.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// WithInterval sets the initial interval (clamped).
func WithInterval(minutes int) Option {
	return func(s *State) { s.interval = ClampInterval(minutes) }
}

type State struct {
	mu sync.Mutex

	target     *RenderTarget
	interval   int
	rateLimit  *RateLimitWindow
	running    bool
	lastUpdate *time.Time
	assets     []AssetHandle

	now func() time.Time
}

func New(opts ...Option) *State {
	s := &State{
		interval: DefaultIntervalMinutes,
		running:  true,
		now:      time.Now,
		assets:   make([]AssetHandle, 0, HistoryCapacity),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ClampInterval forces minutes into [MinIntervalMinutes, MaxIntervalMinutes].
func ClampInterval(minutes int) int {
	if minutes < MinIntervalMinutes {
		return MinIntervalMinutes
	}
	if minutes > MaxIntervalMinutes {
		return MaxIntervalMinutes
	}
	return minutes
}

// SetTarget replaces the whole render target at once.
func (s *State) SetTarget(displayName, caption string, lat, lon float64) {
	t := &RenderTarget{DisplayName: displayName, Caption: caption, Latitude: lat, Longitude: lon}
	s.mu.Lock()
	s.target = t
	s.mu.Unlock()
}

// Target returns the current render target; ok is false until every field is set.
func (s *State) Target() (RenderTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return RenderTarget{}, false
	}
	t := *s.target
	return t, strings.TrimSpace(t.DisplayName) != "" && strings.TrimSpace(t.Caption) != ""
}

// SetInterval stores the refresh interval, clamped to [1,1440], and returns the stored value.
func (s *State) SetInterval(minutes int) int {
	v := ClampInterval(minutes)
	s.mu.Lock()
	s.interval = v
	s.mu.Unlock()
	return v
}

func (s *State) Interval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetRateLimit records a window of wait starting now.
func (s *State) SetRateLimit(wait time.Duration) RateLimitWindow {
	return s.SetRateLimitAt(s.now(), wait)
}

// SetRateLimitAt records a window of wait starting at from.
func (s *State) SetRateLimitAt(from time.Time, wait time.Duration) RateLimitWindow {
	w := RateLimitWindow{Wait: wait, Until: from.Add(wait)}
	s.mu.Lock()
	s.rateLimit = &w
	s.mu.Unlock()
	return w
}

// RateLimit returns the last recorded window, if any. The window may already be expired.
func (s *State) RateLimit() (RateLimitWindow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rateLimit == nil {
		return RateLimitWindow{}, false
	}
	return *s.rateLimit, true
}

// IsRateLimited reports whether a recorded window is still active at now.
func (s *State) IsRateLimited(now time.Time) bool {
	w, ok := s.RateLimit()
	return ok && w.Active(now)
}

func (s *State) RecordUpdate(at time.Time) {
	s.mu.Lock()
	s.lastUpdate = &at
	s.mu.Unlock()
}

func (s *State) LastUpdate() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastUpdate == nil {
		return time.Time{}, false
	}
	return *s.lastUpdate, true
}

// Stop flips the run flag. It never flips back.
func (s *State) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *State) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// AppendAsset records a freshly published handle.
func (s *State) AppendAsset(h AssetHandle) {
	s.mu.Lock()
	s.assets = append(s.assets, cloneHandle(h))
	s.mu.Unlock()
}

// AssetsIfFull returns a copy of the whole history when it has reached
// HistoryCapacity. The history is left untouched; call ClearAssets once the
// bulk delete succeeded.
func (s *State) AssetsIfFull() ([]AssetHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.assets) < HistoryCapacity {
		return nil, false
	}
	return cloneHandles(s.assets), true
}

func (s *State) ClearAssets() {
	s.mu.Lock()
	s.assets = s.assets[:0]
	s.mu.Unlock()
}

func (s *State) Assets() []AssetHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneHandles(s.assets)
}

// Snapshot copies everything that survives a restart.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{IntervalMinutes: s.interval, Assets: cloneHandles(s.assets)}
	if s.target != nil {
		t := *s.target
		snap.Target = &t
	}
	if s.rateLimit != nil {
		w := *s.rateLimit
		snap.RateLimit = &w
	}
	if s.lastUpdate != nil {
		at := *s.lastUpdate
		snap.LastUpdate = &at
	}
	return snap
}

// Restore loads a snapshot taken by Snapshot. The run flag is not part of it.
func (s *State) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = nil
	if snap.Target != nil {
		t := *snap.Target
		s.target = &t
	}
	if snap.IntervalMinutes != 0 {
		s.interval = ClampInterval(snap.IntervalMinutes)
	}
	s.rateLimit = nil
	if snap.RateLimit != nil {
		w := *snap.RateLimit
		s.rateLimit = &w
	}
	s.lastUpdate = nil
	if snap.LastUpdate != nil {
		at := *snap.LastUpdate
		s.lastUpdate = &at
	}
	s.assets = cloneHandles(snap.Assets)
}

func cloneHandle(h AssetHandle) AssetHandle {
	h.FileReference = append([]byte(nil), h.FileReference...)
	return h
}

func cloneHandles(in []AssetHandle) []AssetHandle {
	out := make([]AssetHandle, len(in), max(len(in), HistoryCapacity))
	for i, h := range in {
		out[i] = cloneHandle(h)
	}
	return out
}
