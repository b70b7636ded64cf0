package eventbus

import (
	"testing"
)

func TestPublishFanOut(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(1)
	defer unsubC()

	b.Publish(Event{Type: StateChanged, Data: map[string]any{"action": "set_interval"}})
	for _, ch := range []<-chan Event{a, c} {
		e := <-ch
		if e.Type != StateChanged || e.Time.IsZero() || e.Data["action"] != "set_interval" {
			t.Fatalf("got %+v", e)
		}
	}

	unsubA()
	unsubA()
	if _, ok := <-a; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	// full and unsubscribed channels must not block or panic
	b.Publish(Event{Type: "x"})
	b.Publish(Event{Type: "y"})
	if e := <-c; e.Type != "x" {
		t.Fatalf("got %q, want x (y dropped)", e.Type)
	}
}
