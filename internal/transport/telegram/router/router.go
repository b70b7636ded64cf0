// Package router turns transport updates into handler calls: slash
// commands by name, callbacks by "scope:action[:payload]" and free text.
package router

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	kit "weatherbadge/internal/transport"
	logx "weatherbadge/pkg/logx"
)

type Command struct {
	Name        string // without the slash
	Description string
	Timeout     time.Duration
	Handle      HandlerFunc
}

type CallbackRoute struct {
	Scope   string
	Action  string
	Timeout time.Duration
	Handle  HandlerFunc
}

type Request struct {
	Update   kit.Update
	Chat     kit.ChatTarget
	FromID   int64
	Message  *kit.Message  // set for commands and text
	Callback *kit.Callback // set for callbacks
	Command  string        // command name, "cb:scope:action" or "text"
	Args     string        // text after the command word
	Payload  string        // callback payload
	ReqID    string

	Adapter kit.Adapter
	Logger  logx.Logger
}

type Router struct {
	log     logx.Logger
	adapter kit.Adapter

	mu        sync.RWMutex
	commands  map[string]Command
	order     []string
	callbacks map[string]CallbackRoute
	text      HandlerFunc
	unknown   HandlerFunc
	mws       []Middleware
}

func New(adapter kit.Adapter, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		log:       log,
		adapter:   adapter,
		commands:  map[string]Command{},
		callbacks: map[string]CallbackRoute{},
	}
}

// Use appends middlewares run for every update, before the per-route ones.
func (r *Router) Use(m ...Middleware) {
	r.mu.Lock()
	r.mws = append(r.mws, m...)
	r.mu.Unlock()
}

func (r *Router) Handle(cmd Command) {
	name := strings.ToLower(strings.TrimPrefix(cmd.Name, "/"))
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[name]; !ok {
		r.order = append(r.order, name)
	}
	cmd.Name = name
	r.commands[name] = cmd
}

func (r *Router) HandleCallback(route CallbackRoute) {
	r.mu.Lock()
	r.callbacks[route.Scope+":"+route.Action] = route
	r.mu.Unlock()
}

// HandleText sets the handler for messages that are not commands.
func (r *Router) HandleText(h HandlerFunc) {
	r.mu.Lock()
	r.text = h
	r.mu.Unlock()
}

// HandleUnknown sets the handler for unregistered commands.
func (r *Router) HandleUnknown(h HandlerFunc) {
	r.mu.Lock()
	r.unknown = h
	r.mu.Unlock()
}

// Commands lists registered commands in registration order (for menus and help).
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.commands[n])
	}
	return out
}

// Run dispatches updates one at a time until ctx is done or updates closes.
// Sequential handling keeps per-chat dialogs ordered.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	r.log.Info("command dispatcher started")
	defer r.log.Info("command dispatcher stopped")
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.Dispatch(ctx, up)
		}
	}
}

// Dispatch routes a single update synchronously.
func (r *Router) Dispatch(ctx context.Context, up kit.Update) {
	req, h, timeout := r.resolve(up)
	if req == nil {
		return
	}
	req.ReqID = uuid.NewString()[:8]
	req.Adapter = r.adapter
	req.Logger = r.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int64("from_id", req.FromID),
		logx.String("cmd", req.Command),
	)

	r.mu.RLock()
	mws := append([]Middleware{MWPanicRecover(), MWRequestLog()}, r.mws...)
	r.mu.RUnlock()
	mws = append(mws, MWTimeout(timeout))
	_ = Chain(h, mws...)(ctx, req)

	if req.Callback != nil {
		// stops the client spinner; a handler that already answered makes this a no-op
		_ = r.adapter.AnswerCallback(ctx, req.Callback.ID, "", false)
	}
}

func (r *Router) resolve(up kit.Update) (*Request, HandlerFunc, time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch up.Kind {
	case kit.UpdateMessage:
		msg := up.Message
		if msg == nil {
			return nil, nil, 0
		}
		req := &Request{Update: up, Chat: kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}, FromID: msg.FromID, Message: msg}
		name, args, isCmd := ParseCommand(msg.Text)
		if !isCmd {
			if r.text == nil {
				return nil, nil, 0
			}
			req.Command = "text"
			return req, r.text, 0
		}
		req.Command, req.Args = name, args
		if cmd, ok := r.commands[name]; ok {
			return req, cmd.Handle, cmd.Timeout
		}
		if r.unknown == nil {
			return nil, nil, 0
		}
		return req, r.unknown, 0

	case kit.UpdateCallback:
		cb := up.Callback
		if cb == nil {
			return nil, nil, 0
		}
		parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
		if len(parts) < 2 {
			return nil, nil, 0
		}
		route, ok := r.callbacks[parts[0]+":"+parts[1]]
		if !ok {
			return nil, nil, 0
		}
		req := &Request{
			Update:   up,
			Chat:     kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
			FromID:   cb.FromID,
			Callback: cb,
			Command:  "cb:" + parts[0] + ":" + parts[1],
		}
		if len(parts) == 3 {
			req.Payload = parts[2]
		}
		return req, route.Handle, route.Timeout
	}
	return nil, nil, 0
}

// ParseCommand splits "/name@bot args" into ("name", "args", true).
func ParseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) < 2 {
		return "", "", false
	}
	word, rest := text[1:], ""
	if i := strings.IndexFunc(word, unicode.IsSpace); i >= 0 {
		word, rest = word[:i], word[i:]
	}
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", "", false
	}
	return strings.ToLower(word), strings.TrimSpace(rest), true
}
