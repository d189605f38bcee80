package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger is satisfied by tiers that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Tiered selects between a primary store and an in-process fallback by
// health check, instead of leaving an ambient global to absorb writes
// when the primary is down. The selection is re-evaluated periodically;
// switches are logged.
type Tiered struct {
	Primary  Store
	Fallback Store
	Logger   *zap.Logger

	// CheckInterval bounds how often the primary is re-probed.
	CheckInterval time.Duration

	mu          sync.Mutex
	primaryDown bool
	lastCheck   time.Time
}

func NewTiered(primary, fallback Store, logger *zap.Logger) *Tiered {
	if fallback == nil {
		fallback = NewMemoryStore()
	}
	return &Tiered{
		Primary:       primary,
		Fallback:      fallback,
		Logger:        logger,
		CheckInterval: 15 * time.Second,
	}
}

func (t *Tiered) active(ctx context.Context) Store {
	if t.Primary == nil {
		return t.Fallback
	}
	p, ok := t.Primary.(Pinger)
	if !ok {
		return t.Primary
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	interval := t.CheckInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if time.Since(t.lastCheck) >= interval {
		t.lastCheck = time.Now()
		down := p.Ping(ctx) != nil
		if down != t.primaryDown && t.Logger != nil {
			if down {
				t.Logger.Warn("primary store unhealthy, using in-memory fallback")
			} else {
				t.Logger.Info("primary store recovered")
			}
		}
		t.primaryDown = down
	}
	if t.primaryDown {
		return t.Fallback
	}
	return t.Primary
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return t.active(ctx).Get(ctx, key)
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return t.active(ctx).Set(ctx, key, value, ttl)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	return t.active(ctx).Delete(ctx, key)
}
