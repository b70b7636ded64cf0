package sdnotify

import (
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "weatherbadge/pkg/logx"
)

func fake(enabled bool) (*Notifier, *[]string, *time.Time) {
	var sent []string
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	n := New(enabled, logx.Nop())
	n.notify = func(state string) (bool, error) {
		sent = append(sent, state)
		return true, nil
	}
	n.now = func() time.Time { return now }
	return n, &sent, &now
}

func TestDisabledIsSilent(t *testing.T) {
	n, sent, _ := fake(false)
	n.interval = time.Second
	n.Ready()
	n.Watchdog()
	n.Stopping()
	if len(*sent) != 0 {
		t.Fatalf("sent %v", *sent)
	}
}

func TestLifecycleAndWatchdogThrottle(t *testing.T) {
	n, sent, now := fake(true)
	n.interval = 10 * time.Second

	n.Ready()
	n.Watchdog()
	*now = now.Add(2 * time.Second)
	n.Watchdog() // throttled
	*now = now.Add(4 * time.Second)
	n.Watchdog()
	n.Stopping()

	want := []string{daemon.SdNotifyReady, daemon.SdNotifyWatchdog, daemon.SdNotifyWatchdog, daemon.SdNotifyStopping}
	if len(*sent) != len(want) {
		t.Fatalf("sent %v, want %v", *sent, want)
	}
	for i := range want {
		if (*sent)[i] != want[i] {
			t.Fatalf("sent %v, want %v", *sent, want)
		}
	}
}

func TestWatchdogNeedsInterval(t *testing.T) {
	n, sent, _ := fake(true)
	n.Watchdog()
	if len(*sent) != 0 {
		t.Fatalf("sent %v without WATCHDOG_USEC", *sent)
	}
}
