package httpapi

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/store"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// bootstrapCache holds the last /bootstrap payload for ttl. Concurrent misses share one load.
type bootstrapCache struct {
	ttl  time.Duration
	load func(context.Context) (models.Bootstrap, error)

	group singleflight.Group
	mu    sync.Mutex
	val   models.Bootstrap
	at    time.Time
	gen   uint64
}

func newBootstrapCache(ttl time.Duration, load func(context.Context) (models.Bootstrap, error)) *bootstrapCache {
	return &bootstrapCache{ttl: ttl, load: load}
}

func (c *bootstrapCache) get(ctx context.Context) (models.Bootstrap, error) {
	c.mu.Lock()
	if !c.at.IsZero() && time.Since(c.at) < c.ttl {
		v := c.val
		c.mu.Unlock()
		return v, nil
	}
	gen := c.gen
	c.mu.Unlock()

	v, err, _ := c.group.Do("bootstrap", func() (any, error) {
		// Detached from the first caller so its cancellation does not fail the others.
		b, err := c.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.val, c.at = b, time.Now()
		}
		c.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return models.Bootstrap{}, err
	}
	return v.(models.Bootstrap), nil
}

// invalidate drops the cached payload; a load already in flight is not stored.
func (c *bootstrapCache) invalidate() {
	c.mu.Lock()
	c.at = time.Time{}
	c.gen++
	c.mu.Unlock()
}

func loadBootstrap(ctx context.Context, st store.Store, cfg models.Config) (models.Bootstrap, error) {
	b := models.Bootstrap{Config: cfg}
	var err error
	if b.Pillars, err = st.ListPillars(ctx); err != nil {
		return b, err
	}
	if b.Teams, err = st.ListTeams(ctx); err != nil {
		return b, err
	}
	if b.Projects, err = st.ListProjects(ctx); err != nil {
		return b, err
	}
	if b.Tasks, err = st.ListTasks(ctx, store.TaskFilter{}); err != nil {
		return b, err
	}
	return b, nil
}
