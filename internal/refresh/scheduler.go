// Package refresh runs the badge refresh loop: decide whether a refresh is
// due, fetch weather, compose, publish and record the result. Failures never
// end the loop; only the run flag or context cancellation does.
package refresh

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"weatherbadge/internal/eventbus"
	"weatherbadge/internal/publish"
	"weatherbadge/internal/render/compose"
	"weatherbadge/internal/state"
	"weatherbadge/internal/weather"
	"weatherbadge/pkg/logx"
)

// Event types published on the bus.
const (
	EventPublished   = "refresh.published"
	EventRateLimited = "refresh.rate_limited"
	EventFailed      = "refresh.failed"
	EventSkipped     = "refresh.skipped"
)

const (
	DefaultTick           = 10 * time.Second
	DefaultErrorBackoff   = 10 * time.Second
	DefaultTimeRounding   = 5 * time.Minute
	DefaultPublishTimeout = 2 * time.Minute
	DefaultFetchTimeout   = 30 * time.Second

	// rateLimitSlack is added to the upstream wait before retrying.
	rateLimitSlack = time.Second
	// drainSlack covers compose and bookkeeping on top of the network bounds.
	drainSlack = 5 * time.Second
)

// WeatherSource returns current conditions at a coordinate.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (weather.Snapshot, error)
}

// Composer renders one badge.
type Composer interface {
	Compose(in compose.Input) (*image.RGBA, error)
}

type Config struct {
	Tick           time.Duration
	ErrorBackoff   time.Duration
	TimeRounding   time.Duration
	PublishTimeout time.Duration
	FetchTimeout   time.Duration
	Policy         Policy
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
	if c.TimeRounding <= 0 {
		c.TimeRounding = DefaultTimeRounding
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.Policy == nil {
		c.Policy = ElapsedPolicy{}
	}
	return c
}

// Outcome is what one tick did.
type Outcome int

const (
	OutcomeStopped     Outcome = iota
	OutcomeNotDue              // nothing to do yet
	OutcomeWaiting             // inside a rate-limit window
	OutcomeIncomplete          // render target not set
	OutcomeFetchFailed         // weather unavailable, retried next tick
	OutcomeRateLimited         // upstream refused publishing
	OutcomeFailed              // any other error
	OutcomePublished
)

var outcomeNames = [...]string{"stopped", "not_due", "waiting", "incomplete", "fetch_failed", "rate_limited", "failed", "published"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Result describes one tick. Backoff, when set, replaces the normal tick delay.
type Result struct {
	Outcome Outcome
	Backoff time.Duration
	Handle  state.AssetHandle
	Err     error
}

type Option func(*Scheduler)

func WithLogger(log logx.Logger) Option { return func(s *Scheduler) { s.log = log } }
func WithBus(bus eventbus.Bus) Option   { return func(s *Scheduler) { s.bus = bus } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSleep replaces the timer-based wait between ticks.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithHeartbeat registers a callback invoked after every tick (systemd watchdog).
func WithHeartbeat(fn func()) Option { return func(s *Scheduler) { s.heartbeat = fn } }

// Scheduler is the single refresh task. Only it writes the asset history,
// the last update time and the rate-limit window.
type Scheduler struct {
	st       *state.State
	weather  WeatherSource
	composer Composer
	pub      publish.Publisher

	mu  sync.RWMutex
	cfg Config

	log       logx.Logger
	bus       eventbus.Bus
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	heartbeat func()
}

func New(cfg Config, st *state.State, ws WeatherSource, c Composer, pub publish.Publisher, opts ...Option) *Scheduler {
	s := &Scheduler{
		st:       st,
		weather:  ws,
		composer: c,
		pub:      pub,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

// Apply swaps tick, backoff, rounding and policy at runtime.
func (s *Scheduler) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	s.mu.Unlock()
	if old.Policy.String() != cfg.Policy.String() || old.Tick != cfg.Tick {
		s.log.Info("refresh config applied",
			logx.String("policy", cfg.Policy.String()),
			logx.Duration("tick", cfg.Tick),
			logx.Duration("error_backoff", cfg.ErrorBackoff),
		)
	}
}

func (s *Scheduler) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// DrainTimeout bounds how long a started cycle can still run: a history
// flush, the weather fetch and the upload. Shutdown waits at least this long
// for Run to return.
func (s *Scheduler) DrainTimeout() time.Duration {
	cfg := s.config()
	return 2*cfg.PublishTimeout + cfg.FetchTimeout + drainSlack
}

// Run ticks until the run flag is cleared or ctx is done, then closes the
// publisher. An in-flight cycle always completes before the flag is checked.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("refresh loop started", logx.String("policy", s.config().Policy.String()))
	defer func() {
		if err := s.pub.Close(); err != nil {
			s.log.Warn("publisher close failed", logx.Err(err))
		}
		s.log.Info("refresh loop stopped")
	}()

	for {
		res := s.Tick(ctx, s.now())
		if s.heartbeat != nil {
			s.heartbeat()
		}
		if res.Outcome == OutcomeStopped {
			return nil
		}
		wait := s.config().Tick
		if res.Backoff > 0 {
			wait = res.Backoff
		}
		if err := s.sleep(ctx, wait); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// Tick evaluates one wake-up at now.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) Result {
	if !s.st.IsRunning() {
		return Result{Outcome: OutcomeStopped}
	}
	if s.st.IsRateLimited(now) {
		return Result{Outcome: OutcomeWaiting}
	}

	cfg := s.config()
	last, hasLast := s.st.LastUpdate()
	interval := time.Duration(s.st.Interval()) * time.Minute
	if !cfg.Policy.Due(last, hasLast, interval, now) {
		return Result{Outcome: OutcomeNotDue}
	}

	target, ok := s.st.Target()
	if !ok {
		s.log.Debug("render target not set, skipping")
		s.emit(EventSkipped, map[string]any{"reason": "incomplete"})
		return Result{Outcome: OutcomeIncomplete}
	}

	// A started cycle runs to completion; its calls carry their own timeouts.
	log := s.log.With(logx.String("cycle", uuid.NewString()[:8]))
	return s.cycle(context.WithoutCancel(ctx), cfg, log, target, now)
}

func (s *Scheduler) cycle(ctx context.Context, cfg Config, log logx.Logger, target state.RenderTarget, now time.Time) Result {
	if hs, full := s.st.AssetsIfFull(); full {
		dctx, cancel := context.WithTimeout(ctx, cfg.PublishTimeout)
		err := s.pub.Delete(dctx, hs)
		cancel()
		if err != nil {
			return s.fail(cfg, log, now, "delete history", err)
		}
		s.st.ClearAssets()
		log.Info("asset history flushed", logx.Int("count", len(hs)))
	}

	fctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	snap, err := s.weather.Current(fctx, target.Latitude, target.Longitude)
	cancel()
	if err != nil {
		log.Warn("weather fetch failed", logx.Err(err))
		s.emit(EventSkipped, map[string]any{"reason": "weather"})
		return Result{Outcome: OutcomeFetchFailed, Err: err}
	}

	local := snap.LocalTime(now)
	shown := RoundClock(local, cfg.TimeRounding).Format("15:04")
	in := compose.Input{
		Caption:     target.Caption,
		Time:        shown,
		Temperature: FormatTemperature(snap.TemperatureC),
		Kind:        compose.Classify(snap.ConditionCode, local),
	}

	img, err := s.composer.Compose(in)
	if err != nil {
		return s.fail(cfg, log, now, "compose", err)
	}
	png, err := compose.EncodePNG(img)
	if err != nil {
		return s.fail(cfg, log, now, "encode", err)
	}

	pctx, cancel := context.WithTimeout(ctx, cfg.PublishTimeout)
	h, err := s.pub.Upload(pctx, png)
	cancel()
	if err != nil {
		return s.fail(cfg, log, now, "upload", err)
	}

	s.st.AppendAsset(h)
	s.st.RecordUpdate(now)
	log.Info("badge published",
		logx.String("time", shown),
		logx.String("temp", in.Temperature),
		logx.String("kind", in.Kind.String()),
		logx.Int("bytes", len(png)),
	)
	s.emit(EventPublished, map[string]any{"time": shown, "kind": in.Kind.String()})
	return Result{Outcome: OutcomePublished, Handle: h}
}

// fail classifies a cycle error into the rate-limit or generic backoff path.
// The window starts at the tick's now so Tick checks it on the same clock.
func (s *Scheduler) fail(cfg Config, log logx.Logger, now time.Time, op string, err error) Result {
	if wait, ok := publish.AsRateLimit(err); ok {
		w := s.st.SetRateLimitAt(now, wait)
		log.Warn("publish rate limited", logx.String("op", op), logx.Duration("wait", wait), logx.Time("until", w.Until))
		s.emit(EventRateLimited, map[string]any{"wait_seconds": wait.Seconds()})
		return Result{Outcome: OutcomeRateLimited, Backoff: wait + rateLimitSlack, Err: err}
	}
	log.Error("refresh cycle failed", logx.String("op", op), logx.Err(err))
	s.emit(EventFailed, map[string]any{"op": op, "err": err.Error()})
	return Result{Outcome: OutcomeFailed, Backoff: cfg.ErrorBackoff, Err: err}
}

func (s *Scheduler) emit(typ string, data map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: data})
}

// sleepCtx waits on a monotonic timer, returning early with ctx's error.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
