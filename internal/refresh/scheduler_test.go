package refresh

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"weatherbadge/internal/eventbus"
	"weatherbadge/internal/publish"
	"weatherbadge/internal/render/compose"
	"weatherbadge/internal/state"
	"weatherbadge/internal/weather"
)

type fakeWeather struct {
	mu    sync.Mutex
	snap  weather.Snapshot
	err   error
	calls int
}

func (f *fakeWeather) Current(context.Context, float64, float64) (weather.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snap, f.err
}

type fakeComposer struct {
	inputs []compose.Input
	err    error
}

func (f *fakeComposer) Compose(in compose.Input) (*image.RGBA, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

type fakePublisher struct {
	mu        sync.Mutex
	uploads   int
	deletes   [][]state.AssetHandle
	uploadErr error
	closed    int
}

func (f *fakePublisher) Upload(context.Context, []byte) (state.AssetHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return state.AssetHandle{}, f.uploadErr
	}
	f.uploads++
	return state.AssetHandle{ID: int64(f.uploads), AccessToken: 1, FileReference: []byte{byte(f.uploads)}}, nil
}

func (f *fakePublisher) Delete(_ context.Context, hs []state.AssetHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, hs)
	return nil
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

type fixture struct {
	st  *state.State
	ws  *fakeWeather
	cmp *fakeComposer
	pub *fakePublisher
	s   *Scheduler
	t0  time.Time
}

func newFixture(t *testing.T, withTarget bool) *fixture {
	t.Helper()
	t0 := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	f := &fixture{
		t0:  t0,
		st:  state.New(state.WithClock(func() time.Time { return t0 })),
		ws:  &fakeWeather{snap: weather.Snapshot{TemperatureC: 5, ConditionCode: 800, UTCOffsetSeconds: 3 * 3600}},
		cmp: &fakeComposer{},
		pub: &fakePublisher{},
	}
	if withTarget {
		f.st.SetTarget("Kazan", "hi", 55.79, 49.12)
	}
	f.s = New(Config{}, f.st, f.ws, f.cmp, f.pub)
	return f
}

func TestDueCheckElapsedInterval(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	if r := f.s.Tick(ctx, f.t0); r.Outcome != OutcomePublished {
		t.Fatalf("first tick = %s, want published", r.Outcome)
	}
	if r := f.s.Tick(ctx, f.t0.Add(299*time.Second)); r.Outcome != OutcomeNotDue {
		t.Fatalf("tick at +299s = %s, want not_due", r.Outcome)
	}
	if r := f.s.Tick(ctx, f.t0.Add(300*time.Second)); r.Outcome != OutcomePublished {
		t.Fatalf("tick at +300s = %s, want published", r.Outcome)
	}
}

func TestElapsedPolicy(t *testing.T) {
	t.Parallel()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := ElapsedPolicy{}
	iv := 5 * time.Minute
	if !p.Due(time.Time{}, false, iv, t0) {
		t.Fatal("no prior update must be due")
	}
	if p.Due(t0, true, iv, t0.Add(299*time.Second)) {
		t.Fatal("299s must not be due")
	}
	if !p.Due(t0, true, iv, t0.Add(300*time.Second)) {
		t.Fatal("300s must be due")
	}
}

func TestCronPolicyBoundaries(t *testing.T) {
	t.Parallel()
	p, err := NewCronPolicy("*/5 * * * *")
	if err != nil {
		t.Fatalf("NewCronPolicy: %v", err)
	}
	last := time.Date(2024, 1, 1, 10, 3, 20, 0, time.UTC)
	if p.Due(last, true, 0, last.Add(time.Minute)) {
		t.Fatal("10:04:20 is before the 10:05 boundary")
	}
	if !p.Due(last, true, 0, time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)) {
		t.Fatal("10:05 boundary must be due")
	}
	if !p.Due(time.Time{}, false, 0, last) {
		t.Fatal("no prior update must be due")
	}
	if _, err := NewCronPolicy("every tuesday"); err == nil {
		t.Fatal("expected parse error")
	}
	if pol, err := PolicyFor(""); err != nil || pol.String() != "elapsed" {
		t.Fatalf("PolicyFor(\"\") = %v, %v", pol, err)
	}
}

func TestHistoryFlushOnEleventhCycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()
	now := f.t0
	for i := 0; i < state.HistoryCapacity; i++ {
		if r := f.s.Tick(ctx, now); r.Outcome != OutcomePublished {
			t.Fatalf("cycle %d = %s (%v)", i+1, r.Outcome, r.Err)
		}
		now = now.Add(5 * time.Minute)
	}
	if len(f.pub.deletes) != 0 {
		t.Fatal("no delete expected before the history is full")
	}
	if n := len(f.st.Assets()); n != state.HistoryCapacity {
		t.Fatalf("history = %d, want %d", n, state.HistoryCapacity)
	}

	if r := f.s.Tick(ctx, now); r.Outcome != OutcomePublished {
		t.Fatalf("11th cycle = %s", r.Outcome)
	}
	if len(f.pub.deletes) != 1 || len(f.pub.deletes[0]) != state.HistoryCapacity {
		t.Fatalf("deletes = %d calls, want one bulk delete of %d", len(f.pub.deletes), state.HistoryCapacity)
	}
	if n := len(f.st.Assets()); n != 1 {
		t.Fatalf("history after flush = %d, want 1", n)
	}
	if f.pub.uploads != 11 {
		t.Fatalf("uploads = %d, want 11", f.pub.uploads)
	}
}

func TestRateLimitSetsWindowAndBacksOff(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.pub.uploadErr = fmt.Errorf("wrapped: %w", &publish.RateLimitError{Wait: 30 * time.Second})

	r := f.s.Tick(context.Background(), f.t0)
	if r.Outcome != OutcomeRateLimited {
		t.Fatalf("outcome = %s, want rate_limited", r.Outcome)
	}
	if r.Backoff != 31*time.Second {
		t.Fatalf("backoff = %v, want 31s", r.Backoff)
	}
	if !f.st.IsRateLimited(f.t0.Add(29 * time.Second)) {
		t.Fatal("expected rate limited at t0+29s")
	}
	if f.st.IsRateLimited(f.t0.Add(31 * time.Second)) {
		t.Fatal("expected window over at t0+31s")
	}
	if _, ok := f.st.LastUpdate(); ok {
		t.Fatal("last update must not be recorded on failure")
	}

	// Inside the window the tick does nothing.
	f.pub.uploadErr = nil
	if r := f.s.Tick(context.Background(), f.t0.Add(10*time.Second)); r.Outcome != OutcomeWaiting {
		t.Fatalf("outcome inside window = %s", r.Outcome)
	}
	if r := f.s.Tick(context.Background(), f.t0.Add(31*time.Second)); r.Outcome != OutcomePublished {
		t.Fatalf("outcome after window = %s", r.Outcome)
	}
}

func TestRateLimitWindowFollowsTickClock(t *testing.T) {
	t.Parallel()
	// state keeps the wall clock; only the tick time is synthetic
	st := state.New()
	st.SetTarget("Kazan", "hi", 55.79, 49.12)
	pub := &fakePublisher{uploadErr: &publish.RateLimitError{Wait: time.Minute}}
	s := New(Config{}, st, &fakeWeather{snap: weather.Snapshot{ConditionCode: 800}}, &fakeComposer{}, pub)

	at := time.Date(2001, 5, 5, 12, 0, 0, 0, time.UTC)
	if r := s.Tick(context.Background(), at); r.Outcome != OutcomeRateLimited {
		t.Fatalf("outcome = %s, want rate_limited", r.Outcome)
	}
	w, ok := st.RateLimit()
	if !ok || !w.Until.Equal(at.Add(time.Minute)) {
		t.Fatalf("window = %+v, want until %v", w, at.Add(time.Minute))
	}
	if r := s.Tick(context.Background(), at.Add(30*time.Second)); r.Outcome != OutcomeWaiting {
		t.Fatalf("outcome inside window = %s, want waiting", r.Outcome)
	}
}

func TestDrainTimeoutCoversCycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	s := New(Config{PublishTimeout: 10 * time.Second, FetchTimeout: 5 * time.Second}, f.st, f.ws, f.cmp, f.pub)
	if got := s.DrainTimeout(); got != 30*time.Second {
		t.Fatalf("DrainTimeout = %v, want 30s", got)
	}
	if got := New(Config{}, f.st, f.ws, f.cmp, f.pub).DrainTimeout(); got < 2*DefaultPublishTimeout+DefaultFetchTimeout {
		t.Fatalf("default DrainTimeout = %v", got)
	}
}

func TestTargetUnsetNeverPublishes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	now := f.t0
	for i := 0; i < 20; i++ {
		if r := f.s.Tick(context.Background(), now); r.Outcome != OutcomeIncomplete {
			t.Fatalf("tick %d = %s, want incomplete", i, r.Outcome)
		}
		now = now.Add(time.Minute)
	}
	if _, ok := f.st.LastUpdate(); ok {
		t.Fatal("last update must stay absent")
	}
	if f.pub.uploads != 0 || f.ws.calls != 0 {
		t.Fatalf("uploads=%d weather calls=%d, want none", f.pub.uploads, f.ws.calls)
	}
}

func TestFetchFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.ws.err = fmt.Errorf("%w: timeout", weather.ErrUnavailable)

	r := f.s.Tick(context.Background(), f.t0)
	if r.Outcome != OutcomeFetchFailed || r.Backoff != 0 {
		t.Fatalf("result = %+v", r)
	}
	if _, ok := f.st.LastUpdate(); ok {
		t.Fatal("last update recorded after fetch failure")
	}
	if _, ok := f.st.RateLimit(); ok {
		t.Fatal("rate limit set after fetch failure")
	}
	if len(f.st.Assets()) != 0 || f.pub.uploads != 0 {
		t.Fatal("nothing should be published")
	}
}

func TestUnclassifiedErrorBacksOff(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.pub.uploadErr = errors.New("connection reset")
	r := f.s.Tick(context.Background(), f.t0)
	if r.Outcome != OutcomeFailed || r.Backoff != DefaultErrorBackoff {
		t.Fatalf("result = %+v", r)
	}
	if _, ok := f.st.LastUpdate(); ok {
		t.Fatal("last update recorded after failure")
	}
}

func TestComposeInputUsesLocalTime(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.st.SetTarget("Kazan", "a  --  b", 1, 2)
	// 09:02 UTC + 3h = 12:02 local, rounds to 12:00; clear sky at noon is sun.
	f.s.Tick(context.Background(), f.t0.Add(2*time.Minute))
	if len(f.cmp.inputs) != 1 {
		t.Fatalf("compose calls = %d", len(f.cmp.inputs))
	}
	in := f.cmp.inputs[0]
	if in.Time != "12:00" || in.Temperature != "+5" || in.Kind != compose.KindSun || in.Caption != "a  --  b" {
		t.Fatalf("input = %+v", in)
	}
}

func TestRunStopsOnFlagAndClosesPublisher(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	var (
		ticks     int
		heartbeat int
		slept     []time.Duration
	)
	clock := f.t0
	s := New(Config{Tick: 10 * time.Second}, f.st, f.ws, f.cmp, f.pub,
		WithBus(bus),
		WithClock(func() time.Time { return clock }),
		WithHeartbeat(func() { heartbeat++ }),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			ticks++
			clock = clock.Add(d)
			if ticks == 3 {
				f.st.Stop()
			}
			return nil
		}),
	)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.pub.closed != 1 {
		t.Fatalf("publisher closed %d times, want 1", f.pub.closed)
	}
	if heartbeat != 4 {
		t.Fatalf("heartbeats = %d, want 4", heartbeat)
	}
	for _, d := range slept {
		if d != 10*time.Second {
			t.Fatalf("slept %v, want tick period", d)
		}
	}
	select {
	case e := <-events:
		if e.Type != EventPublished {
			t.Fatalf("first event = %s", e.Type)
		}
	default:
		t.Fatal("expected a published event")
	}
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Config{Tick: time.Hour}, f.st, f.ws, f.cmp, f.pub)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
