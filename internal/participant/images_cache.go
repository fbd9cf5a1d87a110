package participant

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedImages keeps recently resolved blob images in memory. Blob ids are
// never reused, so entries only go stale when the blob is released.
// Inline images are not cached; they arrive with the record.
type CachedImages struct {
	next  ImageSource
	cache *gocache.Cache
}

// NewCachedImages wraps next with a cache whose entries live for ttl.
func NewCachedImages(next ImageSource, ttl time.Duration) *CachedImages {
	return &CachedImages{next: next, cache: gocache.New(ttl, 2*ttl)}
}

func (c *CachedImages) Attach(ctx context.Context, p *Participant, img Image) error {
	return c.next.Attach(ctx, p, img)
}

func (c *CachedImages) Resolve(ctx context.Context, p *Participant) (*Image, error) {
	if p.ImageID == "" {
		return c.next.Resolve(ctx, p)
	}
	if v, ok := c.cache.Get(p.ImageID); ok {
		if img, ok := v.(*Image); ok {
			return img, nil
		}
	}
	img, err := c.next.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(p.ImageID, img)
	return img, nil
}

func (c *CachedImages) Release(ctx context.Context, p *Participant) error {
	if p.ImageID != "" {
		c.cache.Delete(p.ImageID)
	}
	return c.next.Release(ctx, p)
}
