// Package bot is the owner-only Telegram command interface: choosing the
// location and caption, changing the refresh interval, status and stop.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"weatherbadge/internal/eventbus"
	"weatherbadge/internal/refresh"
	"weatherbadge/internal/state"
	"weatherbadge/internal/storage"
	kit "weatherbadge/internal/transport"
	"weatherbadge/internal/transport/telegram/router"
	"weatherbadge/internal/weather"
	logx "weatherbadge/pkg/logx"
	"weatherbadge/pkg/tgui"
)

// Geocoder resolves a settlement name to candidate places.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]weather.Place, error)
}

// Auditor records operator actions.
type Auditor interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

const (
	msgRefused       = "❌ Sorry, this bot is available to authorized users only."
	msgUnknown       = "Unknown command. Try /help"
	msgAskPlace      = "📍 Send the settlement name:"
	msgNotFound      = "❌ Settlement not found. Try again:"
	msgGeoDown       = "⚠️ Geocoder is unavailable right now. Try again:"
	msgAskCaption    = "✒️ What caption should the badge show?"
	msgSaved         = "💾 Caption accepted! Settings saved."
	msgStopAsk       = "Are you sure you want to stop the bot?"
	msgStopped       = "⏹ Bot stopped."
	msgContinuing    = "✅ Continuing..."
	msgExpired       = "This menu has expired."
	msgIntervalUsage = "Usage: /interval 15 (minutes), /interval 01:30 or /interval 90m"

	defaultStopNotice = 5 * time.Second
	commandTimeout    = 30 * time.Second
)

type Option func(*Bot)

func WithLogger(log logx.Logger) Option { return func(b *Bot) { b.log = log } }
func WithBus(bus eventbus.Bus) Option   { return func(b *Bot) { b.bus = bus } }
func WithAuditor(a Auditor) Option      { return func(b *Bot) { b.audit = a } }

// WithStopNotice sets how long the "stopped" notice stays before deletion.
func WithStopNotice(d time.Duration) Option { return func(b *Bot) { b.stopNotice = d } }

// WithClock replaces time.Now for /info.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) {
		if now != nil {
			b.now = now
		}
	}
}

type Bot struct {
	st  *state.State
	geo Geocoder

	log        logx.Logger
	bus        eventbus.Bus
	audit      Auditor
	now        func() time.Time
	stopNotice time.Duration

	sessions *sessions
}

func New(st *state.State, geo Geocoder, opts ...Option) *Bot {
	b := &Bot{
		st:         st,
		geo:        geo,
		now:        time.Now,
		stopNotice: defaultStopNotice,
		sessions:   newSessions(),
	}
	for _, o := range opts {
		o(b)
	}
	if b.log.IsZero() {
		b.log = logx.Nop()
	}
	return b
}

// Register installs access control, chat cleanup and every handler on r.
// owners is consulted per update so config reloads apply immediately.
func (b *Bot) Register(r *router.Router, owners func() []int64) {
	r.Use(router.MWOwnerOnly(owners, msgRefused))

	cmd := func(name, desc string, h router.HandlerFunc) {
		r.Handle(router.Command{Name: name, Description: desc, Timeout: commandTimeout, Handle: b.cleanupFirst(h)})
	}
	cmd("set", "Choose settlement and caption", b.cmdSet)
	cmd("interval", "Set refresh interval", b.cmdInterval)
	cmd("info", "Show status", b.cmdInfo)
	cmd("stop", "Stop the bot", b.cmdStop)
	cmd("help", "List commands", b.helpFor(r))
	cmd("start", "", b.helpFor(r))
	r.HandleUnknown(b.cleanupFirst(func(ctx context.Context, req *router.Request) error {
		return b.reply(ctx, req, tgui.New().Line(msgUnknown).Build())
	}))
	r.HandleText(b.onText)

	cb := func(scope, action string, h router.HandlerFunc) {
		r.HandleCallback(router.CallbackRoute{Scope: scope, Action: action, Timeout: commandTimeout, Handle: h})
	}
	cb("set", "prev", b.onPage(-1))
	cb("set", "next", b.onPage(1))
	cb("set", "noop", func(context.Context, *router.Request) error { return nil })
	cb("set", "pick", b.onPick)
	cb("stop", "yes", b.onStopYes)
	cb("stop", "no", b.onStopNo)
}

// MenuCommands returns the commands worth showing in the client menu.
func MenuCommands(r *router.Router) []kit.BotCommand {
	var out []kit.BotCommand
	for _, c := range r.Commands() {
		if c.Description != "" {
			out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
		}
	}
	return out
}

// cleanupFirst resets the chat before a command runs: the dialog is
// dropped, recorded bot messages are deleted, then the command itself.
func (b *Bot) cleanupFirst(next router.HandlerFunc) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		ids := b.sessions.reset(req.Chat.ChatID)
		if req.Message != nil {
			ids = append(ids, req.Message.ID)
		}
		for _, id := range ids {
			ref := kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: id}
			if err := req.Adapter.DeleteMessage(ctx, ref); err != nil {
				req.Logger.Debug("message delete failed", logx.Int("message_id", id), logx.Err(err))
			}
		}
		return next(ctx, req)
	}
}

// reply sends m and records it for cleanup.
func (b *Bot) reply(ctx context.Context, req *router.Request, m tgui.Message) error {
	ref, err := m.Send(ctx, req.Adapter, req.Chat)
	if err != nil {
		return err
	}
	b.sessions.record(req.Chat.ChatID, ref.MessageID)
	return nil
}

func (b *Bot) changed(ctx context.Context, req *router.Request, action, target string) {
	if b.bus != nil {
		b.bus.Publish(eventbus.Event{Type: eventbus.StateChanged, Data: map[string]any{"action": action}})
	}
	if b.audit == nil {
		return
	}
	e := storage.AuditEntry{At: b.now(), ActorID: req.FromID, ChatID: req.Chat.ChatID, Action: action, Target: target}
	if req.Message != nil {
		e.ActorUsername = req.Message.FromUsername
	}
	if err := b.audit.AppendAudit(ctx, e); err != nil {
		req.Logger.Warn("audit append failed", logx.String("action", action), logx.Err(err))
	}
}

func (b *Bot) helpFor(r *router.Router) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		m := tgui.New().Title("🌤", "Weather badge")
		for _, c := range MenuCommands(r) {
			m.HTML(tgui.Code("/"+c.Command) + " " + tgui.Esc(c.Description))
		}
		return b.reply(ctx, req, m.Build())
	}
}

func (b *Bot) cmdSet(ctx context.Context, req *router.Request) error {
	b.sessions.setDialog(req.Chat.ChatID, dialog{stage: stageAwaitPlace})
	return b.reply(ctx, req, tgui.New().Line(msgAskPlace).Build())
}

func (b *Bot) cmdInterval(ctx context.Context, req *router.Request) error {
	minutes, err := refresh.ParseInterval(req.Args)
	if err != nil {
		return b.reply(ctx, req, tgui.New().Line(msgIntervalUsage).Build())
	}
	got := b.st.SetInterval(minutes)
	req.Logger.Info("interval changed", logx.Int("minutes", got))
	b.changed(ctx, req, "set_interval", strconv.Itoa(got))
	return b.reply(ctx, req, tgui.New().Line("⏱ Refresh interval: "+strconv.Itoa(got)+" min").Build())
}

func (b *Bot) cmdInfo(ctx context.Context, req *router.Request) error {
	return b.reply(ctx, req, b.infoMessage())
}

func (b *Bot) infoMessage() tgui.Message {
	now := b.now()

	last := "never"
	if at, ok := b.st.LastUpdate(); ok {
		last = at.In(now.Location()).Format("15:04:05")
	}
	limit := "🟢 no restrictions"
	if w, ok := b.st.RateLimit(); ok && w.Active(now) {
		limit = "🔴 rate limited, remaining " + clockDuration(w.Remaining(now))
	}
	var caption, place string
	if t, ok := b.st.Target(); ok {
		caption, place = t.Caption, t.DisplayName
	}
	return tgui.New().
		Title("📊", "Bot status").
		Line("").
		KV("Last update", last).
		KV("Restrictions", limit).
		KV("Caption", orDefault(caption, "not set")).
		KV("Settlement", orDefault(place, "not set")).
		KV("Interval", strconv.Itoa(b.st.Interval())+" min").
		Build()
}

func (b *Bot) cmdStop(ctx context.Context, req *router.Request) error {
	kb := tgui.ConfirmInline(
		tgui.Btn("✅ Yes", tgui.MustData("stop", "yes", "")),
		tgui.Btn("❌ No", tgui.MustData("stop", "no", "")),
	)
	return b.reply(ctx, req, tgui.New().Line(msgStopAsk).Inline(kb).Build())
}

func (b *Bot) onStopYes(ctx context.Context, req *router.Request) error {
	ref := callbackRef(req)
	if err := tgui.New().Line(msgStopped).Build().Edit(ctx, req.Adapter, ref); err != nil {
		_ = req.Adapter.AnswerCallback(ctx, req.Callback.ID, msgStopped, true)
	}
	req.Logger.Info("stop requested by operator")
	if b.stopNotice > 0 {
		t := time.NewTimer(b.stopNotice)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
		_ = req.Adapter.DeleteMessage(context.WithoutCancel(ctx), ref)
	}
	b.st.Stop()
	b.changed(context.WithoutCancel(ctx), req, "stop", "")
	return nil
}

func (b *Bot) onStopNo(ctx context.Context, req *router.Request) error {
	if err := tgui.New().Line(msgContinuing).Build().Edit(ctx, req.Adapter, callbackRef(req)); err != nil {
		return req.Adapter.AnswerCallback(ctx, req.Callback.ID, msgContinuing, true)
	}
	return nil
}

// onText drives the /set dialog. Text outside a dialog is deleted.
func (b *Bot) onText(ctx context.Context, req *router.Request) error {
	chatID := req.Chat.ChatID
	d := b.sessions.dialog(chatID)
	msgRef := kit.MessageRef{ChatID: chatID, ThreadID: req.Chat.ThreadID, MessageID: req.Message.ID}
	if d.stage == stageIdle {
		return req.Adapter.DeleteMessage(ctx, msgRef)
	}
	b.sessions.record(chatID, req.Message.ID)
	text := strings.TrimSpace(req.Message.Text)

	switch d.stage {
	case stageAwaitPlace:
		if text == "" {
			return b.reply(ctx, req, tgui.New().Line(msgNotFound).Build())
		}
		places, err := b.geo.Search(ctx, text)
		if err != nil {
			req.Logger.Warn("geocoder search failed", logx.Err(err))
			return b.reply(ctx, req, tgui.New().Line(msgGeoDown).Build())
		}
		if len(places) == 0 {
			return b.reply(ctx, req, tgui.New().Line(msgNotFound).Build())
		}
		d = dialog{stage: stageChoosing, results: places}
		b.sessions.setDialog(chatID, d)
		return b.reply(ctx, req, placeCard(d))

	case stageAwaitCaption:
		if text == "" {
			return b.reply(ctx, req, tgui.New().Line(msgAskCaption).Build())
		}
		p := d.chosen
		b.st.SetTarget(p.DisplayName, text, p.Latitude, p.Longitude)
		b.sessions.setDialog(chatID, dialog{})
		req.Logger.Info("render target set", logx.String("place", tgui.TruncRunes(p.DisplayName, 80)))
		b.changed(ctx, req, "set_target", p.DisplayName)
		return b.reply(ctx, req, tgui.New().Line(msgSaved).Build())
	}
	// choosing: the text is only recorded for cleanup
	return nil
}

func placeCard(d dialog) tgui.Message {
	p := d.results[d.page]
	kind := p.Type
	if kind == "" {
		kind = "unknown type"
	}
	kb := tgui.NewInline()
	if len(d.results) > 1 {
		kb.Row(
			tgui.Btn("⬅️", tgui.MustData("set", "prev", "")),
			tgui.Btn(tgui.Counter(d.page, len(d.results)), tgui.MustData("set", "noop", "")),
			tgui.Btn("➡️", tgui.MustData("set", "next", "")),
		)
	}
	kb.Row(tgui.Btn("✅ Select", tgui.MustData("set", "pick", "")))
	return tgui.New().
		HTML(tgui.B("Type:") + " " + tgui.Esc(capitalize(kind))).
		HTML(tgui.B("Name:") + " " + tgui.Esc(p.DisplayName)).
		Inline(kb).
		Build()
}

func capitalize(s string) string {
	for i := range s {
		if i > 0 {
			return strings.ToUpper(s[:i]) + s[i:]
		}
	}
	return strings.ToUpper(s)
}

var errStale = errors.New("stale dialog callback")

// choosing returns the dialog when the chat is in the picking stage.
func (b *Bot) choosing(ctx context.Context, req *router.Request) (dialog, error) {
	d := b.sessions.dialog(req.Chat.ChatID)
	if d.stage != stageChoosing || len(d.results) == 0 {
		_ = req.Adapter.AnswerCallback(ctx, req.Callback.ID, msgExpired, false)
		return d, errStale
	}
	return d, nil
}

func (b *Bot) onPage(delta int) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		d, err := b.choosing(ctx, req)
		if err != nil {
			return nil
		}
		d.page = tgui.Cycle(d.page, delta, len(d.results))
		b.sessions.setDialog(req.Chat.ChatID, d)
		return placeCard(d).Edit(ctx, req.Adapter, callbackRef(req))
	}
}

func (b *Bot) onPick(ctx context.Context, req *router.Request) error {
	d, err := b.choosing(ctx, req)
	if err != nil {
		return nil
	}
	d = dialog{stage: stageAwaitCaption, chosen: d.results[d.page]}
	b.sessions.setDialog(req.Chat.ChatID, d)
	if err := req.Adapter.DeleteMessage(ctx, callbackRef(req)); err != nil {
		req.Logger.Debug("card delete failed", logx.Err(err))
	}
	return b.reply(ctx, req, tgui.New().Line(msgAskCaption).Build())
}

func callbackRef(req *router.Request) kit.MessageRef {
	return kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: req.Callback.MessageID}
}
