package router

import (
	"context"
	"sync"
	"testing"

	kit "weatherbadge/internal/transport"
	logx "weatherbadge/pkg/logx"
)

type fakeAdapter struct {
	mu      sync.Mutex
	sent    []string
	answers []string
	alerts  []bool
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }
func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}
func (f *fakeAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) DeleteMessage(context.Context, kit.MessageRef) error { return nil }
func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	f.alerts = append(f.alerts, alert)
	return nil
}

func msg(from int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ID: 1, ChatID: 10, FromID: from, Text: text}}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, name, args string
		ok             bool
	}{
		{"/set", "set", "", true},
		{"/Interval@badge_bot  15 ", "interval", "15", true},
		{"/info\nextra", "info", "extra", true},
		{"hello", "", "", false},
		{"/", "", "", false},
		{"/@bot", "", "", false},
	}
	for _, tt := range tests {
		name, args, ok := ParseCommand(tt.in)
		if name != tt.name || args != tt.args || ok != tt.ok {
			t.Fatalf("ParseCommand(%q) = %q, %q, %v", tt.in, name, args, ok)
		}
	}
}

func TestDispatchRoutes(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(ad, logx.Nop())
	var got []string
	r.Handle(Command{Name: "interval", Handle: func(_ context.Context, req *Request) error {
		got = append(got, "interval:"+req.Args)
		return nil
	}})
	r.HandleText(func(_ context.Context, req *Request) error {
		got = append(got, "text:"+req.Message.Text)
		return nil
	})
	r.HandleUnknown(func(_ context.Context, req *Request) error {
		got = append(got, "unknown:"+req.Command)
		return nil
	})
	r.HandleCallback(CallbackRoute{Scope: "set", Action: "page", Handle: func(_ context.Context, req *Request) error {
		got = append(got, "cb:"+req.Payload)
		return nil
	}})

	ctx := context.Background()
	r.Dispatch(ctx, msg(1, "/interval 5"))
	r.Dispatch(ctx, msg(1, "Moscow"))
	r.Dispatch(ctx, msg(1, "/nope"))
	r.Dispatch(ctx, kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "q", ChatID: 10, FromID: 1, Data: "set:page:2"}})
	r.Dispatch(ctx, kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "q2", Data: "other:x"}})

	want := []string{"interval:5", "text:Moscow", "unknown:nope", "cb:2"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if len(ad.answers) != 1 {
		t.Fatalf("callback answers = %v", ad.answers)
	}
}

func TestOwnerOnly(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	r := New(ad, logx.Nop())
	r.Use(MWOwnerOnly(func() []int64 { return []int64{1} }, "denied"))
	calls := 0
	h := func(context.Context, *Request) error { calls++; return nil }
	r.Handle(Command{Name: "info", Handle: h})
	r.HandleCallback(CallbackRoute{Scope: "stop", Action: "yes", Handle: h})

	ctx := context.Background()
	r.Dispatch(ctx, msg(2, "/info"))
	r.Dispatch(ctx, kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "q", FromID: 2, Data: "stop:yes"}})
	r.Dispatch(ctx, msg(1, "/info"))

	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if len(ad.sent) != 1 || ad.sent[0] != "denied" {
		t.Fatalf("sent = %v", ad.sent)
	}
	if ad.answers[0] != "denied" || !ad.alerts[0] {
		t.Fatalf("callback refusal = %v %v", ad.answers, ad.alerts)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()
	r := New(&fakeAdapter{}, logx.Nop())
	r.Handle(Command{Name: "boom", Handle: func(context.Context, *Request) error { panic("x") }})
	r.Dispatch(context.Background(), msg(1, "/boom"))

	err := Chain(func(context.Context, *Request) error { panic("y") }, MWPanicRecover())(context.Background(), &Request{Logger: logx.Nop()})
	if err == nil || err.Error() != "panic: y" {
		t.Fatalf("err = %v", err)
	}
}

func TestRunStopsOnClose(t *testing.T) {
	t.Parallel()
	r := New(&fakeAdapter{}, logx.Nop())
	ch := make(chan kit.Update)
	close(ch)
	if err := r.Run(context.Background(), ch); err != nil {
		t.Fatalf("Run = %v", err)
	}
}
