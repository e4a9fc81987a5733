// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/wneessen/mapscreen/internal/geo"
)

// coordPrecision is the precision used to quantize coordinates (0.00001 degrees ≈ 1.1 m).
// Taps a few meters apart must resolve to their own address.
const coordPrecision = 1e-5

type cacheKey struct {
	Provider string
	LatQ     int32
	LonQ     int32
	Limit    int
}

type cacheEntry struct {
	Addresses []Address
	Expiry    time.Time
}

// CachedGeocoder wraps a Geocoder and caches its answers per quantized coordinate. Empty
// answers are kept for ttlMiss, everything else for ttlHit. Errors are never cached.
type CachedGeocoder struct {
	coder   Geocoder
	ttlHit  time.Duration
	ttlMiss time.Duration

	mu    sync.RWMutex
	cache map[cacheKey]cacheEntry
}

func NewCachedGeocoder(coder Geocoder, ttlHit, ttlMiss time.Duration) *CachedGeocoder {
	return &CachedGeocoder{
		coder:   coder,
		ttlHit:  ttlHit,
		ttlMiss: ttlMiss,
		cache:   make(map[cacheKey]cacheEntry),
	}
}

func (c *CachedGeocoder) Name() string {
	return "geocoder cache using " + c.coder.Name()
}

func (c *CachedGeocoder) Reverse(ctx context.Context, coord geo.Coordinate, limit int) ([]Address, error) {
	key := newKey(c.coder.Name(), coord, limit)

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.Expiry) {
		addrs := make([]Address, len(entry.Addresses))
		for i, addr := range entry.Addresses {
			addr.CacheHit = true
			addrs[i] = addr
		}
		return addrs, nil
	}

	addrs, err := c.coder.Reverse(ctx, coord, limit)
	if err != nil {
		return nil, err
	}

	ttl := c.ttlHit
	if len(addrs) == 0 {
		ttl = c.ttlMiss
	}
	c.mu.Lock()
	c.cache[key] = cacheEntry{
		Addresses: append([]Address(nil), addrs...),
		Expiry:    time.Now().Add(ttl),
	}
	c.mu.Unlock()

	return addrs, nil
}

// Purge drops all expired entries and returns how many were removed.
func (c *CachedGeocoder) Purge(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	purged := 0
	for key, entry := range c.cache {
		if !now.Before(entry.Expiry) {
			delete(c.cache, key)
			purged++
		}
	}
	return purged
}

// Len returns the number of cached entries, expired ones included.
func (c *CachedGeocoder) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func quantizeCoord(val float64) int32 {
	return int32(math.Round(val / coordPrecision))
}

func newKey(provider string, coord geo.Coordinate, limit int) cacheKey {
	return cacheKey{
		Provider: provider,
		LatQ:     quantizeCoord(coord.Lat),
		LonQ:     quantizeCoord(coord.Lon),
		Limit:    limit,
	}
}
