package app

import (
	"context"
	"time"

	"weatherbadge/internal/eventbus"
	"weatherbadge/internal/refresh"
	"weatherbadge/internal/state"
	"weatherbadge/internal/storage"
	logx "weatherbadge/pkg/logx"
)

const saveTimeout = 5 * time.Second

// persister writes a state snapshot whenever an event that changes state
// is published. Bursts are coalesced into one write.
type persister struct {
	st    *state.State
	store storage.Store
	log   logx.Logger
}

func persistsOn(typ string) bool {
	switch typ {
	case eventbus.StateChanged, refresh.EventPublished, refresh.EventRateLimited:
		return true
	}
	return false
}

// restore loads the last snapshot into st. A missing snapshot is not an error.
func (p *persister) restore(ctx context.Context) error {
	snap, ok, err := p.store.LoadState(ctx)
	if err != nil || !ok {
		return err
	}
	p.st.Restore(snap)
	fields := []logx.Field{logx.Int("interval", p.st.Interval()), logx.Int("assets", len(snap.Assets))}
	if t, ok := p.st.Target(); ok {
		fields = append(fields, logx.String("place", t.DisplayName))
	}
	p.log.Info("state restored", fields...)
	return nil
}

func (p *persister) save(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := p.store.SaveState(ctx, p.st.Snapshot()); err != nil {
		p.log.Warn("state save failed", logx.Err(err))
		return
	}
	p.log.Trace("state saved")
}

func (p *persister) run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			dirty := persistsOn(e.Type)
		drain:
			for {
				select {
				case e, ok := <-events:
					if !ok {
						break drain
					}
					dirty = dirty || persistsOn(e.Type)
				default:
					break drain
				}
			}
			if dirty {
				p.save(ctx)
			}
		}
	}
}
