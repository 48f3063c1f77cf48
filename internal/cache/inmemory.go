package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sakif/linkbio/internal/model"
)

// sweepInterval is how often Set drops entries that expired without being
// read again.
const sweepInterval = time.Minute

type entry struct {
	proj      *model.Projection
	expiresAt time.Time
}

// InMemoryCache is a mutex-guarded map. An expired entry is removed when it
// is next read, and Set sweeps out the rest at most once per sweepInterval.
// Projections are cloned on the way in and out so callers can never mutate a
// cached value.
type InMemoryCache struct {
	mu        sync.Mutex
	entries   map[string]entry
	now       func() time.Time
	nextSweep time.Time
}

var _ ProjectionCache = (*InMemoryCache)(nil)

func NewInMemory() *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (c *InMemoryCache) Get(_ context.Context, handle string) (*model.Projection, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[handle]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, handle)
		return nil, false, nil
	}
	return cloneProjection(e.proj), true, nil
}

func (c *InMemoryCache) Set(_ context.Context, handle string, p *model.Projection, ttl time.Duration) error {
	if p == nil || ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !now.Before(c.nextSweep) {
		c.sweep(now)
	}
	c.entries[handle] = entry{proj: cloneProjection(p), expiresAt: now.Add(ttl)}
	return nil
}

// sweep drops every expired entry. The caller holds mu.
func (c *InMemoryCache) sweep(now time.Time) {
	for handle, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, handle)
		}
	}
	c.nextSweep = now.Add(sweepInterval)
}

func (c *InMemoryCache) Delete(_ context.Context, handle string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, handle)
	return nil
}

// Len counts stored entries, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *InMemoryCache) Close() error { return nil }

func cloneProjection(p *model.Projection) *model.Projection {
	c := *p
	c.Links = append([]model.Link(nil), p.Links...)
	c.StoreItems = append([]model.StoreItem(nil), p.StoreItems...)
	c.Outfits = make([]model.Outfit, len(p.Outfits))
	for i, o := range p.Outfits {
		c.Outfits[i] = o
		c.Outfits[i].Tags = append([]model.OutfitTag(nil), o.Tags...)
	}
	c.SocialLinks = make(map[string]string, len(p.SocialLinks))
	for k, v := range p.SocialLinks {
		c.SocialLinks[k] = v
	}
	return &c
}
