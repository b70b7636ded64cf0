// Package sdnotify reports service lifecycle to systemd. Outside systemd
// (NOTIFY_SOCKET unset) every call is a no-op.
package sdnotify

import (
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "weatherbadge/pkg/logx"
)

type Notifier struct {
	enabled bool
	log     logx.Logger

	notify func(state string) (bool, error)

	mu       sync.Mutex
	interval time.Duration
	lastPing time.Time
	now      func() time.Time
}

// New returns a notifier. When enabled is false every method does nothing.
func New(enabled bool, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	n := &Notifier{
		enabled: enabled,
		log:     log,
		notify:  func(state string) (bool, error) { return daemon.SdNotify(false, state) },
		now:     time.Now,
	}
	if enabled {
		// systemd wants pings at least twice per WatchdogSec.
		if d, err := daemon.SdWatchdogEnabled(false); err == nil && d > 0 {
			n.interval = d / 2
		}
	}
	return n
}

func (n *Notifier) Ready()    { n.send(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Watchdog pings the watchdog, at most once per half WatchdogSec. It is
// called after every scheduler tick.
func (n *Notifier) Watchdog() {
	if !n.enabled || n.interval <= 0 {
		return
	}
	n.mu.Lock()
	now := n.now()
	if !n.lastPing.IsZero() && now.Sub(n.lastPing) < n.interval/2 {
		n.mu.Unlock()
		return
	}
	n.lastPing = now
	n.mu.Unlock()
	n.send(daemon.SdNotifyWatchdog)
}

func (n *Notifier) send(state string) {
	if !n.enabled {
		return
	}
	sent, err := n.notify(state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	n.log.Trace("sd_notify", logx.String("state", state), logx.Bool("sent", sent))
}
