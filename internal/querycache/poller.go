package querycache

import (
	"context"
	"log/slog"
	"time"
)

// Poller keeps one query warm by refetching it on a fixed interval and prunes
// idle entries on the same tick.
type Poller struct {
	Cache    *Cache
	Key      Key
	Fetch    FetchFunc
	Interval time.Duration
}

func (p *Poller) Run(ctx context.Context) {
	if p.Cache == nil || p.Fetch == nil || p.Interval <= 0 {
		return
	}

	p.tick(ctx)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	p.Cache.Invalidate(p.Key.Resource)
	if _, err := p.Cache.Get(ctx, p.Key, p.Fetch); err != nil && ctx.Err() == nil {
		slog.Warn("poll failed", "resource", p.Key.Resource, "err", err)
	}
	if removed := p.Cache.Prune(); removed > 0 {
		slog.Debug("pruned idle cache entries", "removed", removed)
	}
}
