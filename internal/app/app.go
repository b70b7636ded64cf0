package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"weatherbadge/internal/bot"
	"weatherbadge/internal/config"
	"weatherbadge/internal/eventbus"
	"weatherbadge/internal/refresh"
	"weatherbadge/internal/render/compose"
	"weatherbadge/internal/runtime/sdnotify"
	"weatherbadge/internal/runtime/supervisor"
	"weatherbadge/internal/state"
	"weatherbadge/internal/storage"
	kit "weatherbadge/internal/transport"
	telegram "weatherbadge/internal/transport/telegram/adapter"
	"weatherbadge/internal/transport/telegram/router"
	"weatherbadge/internal/weather"
	logx "weatherbadge/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log    logx.Logger
	logs   *logx.Service
	bus    eventbus.Bus
	store  storage.Store
	notify *sdnotify.Notifier

	st       *state.State
	weather  *weather.Client
	composer *compose.Composer
	sched    *refresh.Scheduler

	adapter *telegram.Adapter
	router  *router.Router

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	pollTimeout, err := config.DurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap with the chat sink off so Apply does not warn about a
	// missing target, then enable it once the target is set.
	baseLogCfg := logConfig(cfg)
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	applyLogTarget(logSvc, cfg)
	logSvc.Apply(logConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     eventbus.New(),
		notify:  sdnotify.New(cfg.Systemd.Notify, log.With(logx.String("comp", "sdnotify"))),
		adapter: ad,
		updates: make(chan kit.Update, 64),
	}

	interval := cfg.Refresh.DefaultIntervalMinutes
	if interval == 0 {
		interval = state.DefaultIntervalMinutes
	}
	a.st = state.New(state.WithInterval(interval))

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		a.store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
		if err := a.persister().restore(context.Background()); err != nil {
			log.Warn("state restore failed; starting fresh", logx.Err(err))
		}
	}

	wc, err := weatherConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.weather = weather.NewClient(wc, nil)
	gc, err := geocoderConfig(cfg)
	if err != nil {
		return nil, err
	}
	geo := weather.NewGeocoder(gc, nil)

	if a.composer, err = buildComposer(cfg, log.With(logx.String("comp", "render"))); err != nil {
		return nil, err
	}

	a.router = router.New(ad, log.With(logx.String("comp", "router")))
	opts := []bot.Option{
		bot.WithLogger(log.With(logx.String("comp", "bot"))),
		bot.WithBus(a.bus),
	}
	if a.store != nil {
		opts = append(opts, bot.WithAuditor(a.store))
	}
	bot.New(a.st, geo, opts...).Register(a.router, a.owners)

	return a, nil
}

// owners is read per update so hot-reloaded owner lists apply at once.
func (a *App) owners() []int64 { return a.cfgm.Get().Telegram.OwnerUserIDs }

func (a *App) persister() *persister {
	return &persister{st: a.st, store: a.store, log: a.log.With(logx.String("comp", "persist"))}
}

// Done is closed when the app context is canceled: a fatal error, Stop, or
// the refresh loop ending after an operator stop.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// StoppedByOperator reports whether the run flag was cleared via /stop.
func (a *App) StoppedByOperator() bool { return !a.st.IsRunning() }

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		// cron specs are only checked by the refresh package
		_, err := refreshConfig(cfg)
		return err
	})

	cfg := a.cfgm.Get()
	rc, err := refreshConfig(cfg)
	if err != nil {
		return err
	}
	pub, err := openPublisher(ctx, cfg, a.log.With(logx.String("comp", "publish")))
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	a.sched = refresh.New(rc, a.st, a.weather, a.composer, pub,
		refresh.WithLogger(a.log.With(logx.String("comp", "refresh"))),
		refresh.WithBus(a.bus),
		refresh.WithHeartbeat(a.notify.Watchdog),
	)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		_ = pub.Close()
		return err
	}
	a.sup.Go0("commands.menu", func(c context.Context) {
		mctx, cancel := context.WithTimeout(c, 15*time.Second)
		defer cancel()
		if err := a.adapter.UpdateMenuCommands(mctx, bot.MenuCommands(a.router)); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
	})
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	// The refresh loop only returns on cancellation or after /stop; the
	// latter ends the process.
	a.sup.Go("refresh", func(c context.Context) error {
		err := a.sched.Run(c)
		if c.Err() == nil {
			a.log.Info("refresh loop finished; shutting down")
			a.sup.Cancel()
		}
		return err
	})

	if a.store != nil {
		p := a.persister()
		events, unsub := a.bus.Subscribe(32)
		a.sup.Go0("state.persist", func(c context.Context) {
			defer unsub()
			p.run(c, events)
		})
	}

	events, unsub := a.bus.Subscribe(64)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.notify.Ready()
	a.log.Info("app started", logx.Int("interval", a.st.Interval()))
	return nil
}

// applyConfig hot-applies logging and refresh settings. Owner lists are
// read live; everything else needs a restart and is only reported.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	applyLogTarget(a.logs, newCfg)
	a.logs.Apply(logConfig(newCfg))

	if rc, err := refreshConfig(newCfg); err != nil {
		a.log.Warn("invalid refresh config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(rc)
	}

	if len(restart) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

const (
	adapterStopTimeout = 3 * time.Second
	storageStopTimeout = 3 * time.Second
	// drainFallback is used when Stop runs before the scheduler exists.
	drainFallback = 5 * time.Second
)

// drainTimeout is how long Stop waits for supervised goroutines. It covers a
// refresh cycle that was already started when the signal arrived.
func (a *App) drainTimeout() time.Duration {
	if a.sched == nil {
		return drainFallback
	}
	return a.sched.DrainTimeout()
}

// ShutdownTimeout is the overall budget Stop needs with the current config.
func (a *App) ShutdownTimeout() time.Duration {
	return adapterStopTimeout + a.drainTimeout() + storageStopTimeout + time.Second
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notify.Stopping()
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	if a.adapter != nil {
		step("adapter", adapterStopTimeout, func(c context.Context) error { return a.adapter.Stop(c) })
	}
	// also waits for the refresh loop, which closes the publisher on exit
	step("supervisor", a.drainTimeout(), func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if a.store != nil {
		step("storage", storageStopTimeout, func(c context.Context) error {
			a.persister().save(c)
			return a.store.Close()
		})
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
