// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package fused merges several positioning sources into one best-effort location, the way a
// platform's fused location provider does.
package fused

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/wneessen/mapscreen/internal/logger"
)

// Bus keeps the best fix reported by any source and broadcasts replacements to subscribers.
type Bus struct {
	mu          sync.RWMutex
	logger      *logger.Logger
	best        Fix
	subscribers map[chan Fix]struct{}
}

// NewBus returns an empty Bus.
func NewBus(log *logger.Logger) (*Bus, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &Bus{
		logger:      log,
		subscribers: make(map[chan Fix]struct{}),
	}, nil
}

// Subscribe returns a channel receiving every fix that replaces the best one and an
// unsubscribe function. A current, unexpired best fix is delivered immediately.
func (b *Bus) Subscribe(size int) (<-chan Fix, func()) {
	ch := make(chan Fix, size+1)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	if b.best.Source != "" && !b.best.IsExpired() {
		ch <- b.best
	}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Publish offers a fix to the bus. It replaces the current best fix if there is none, the
// current one expired, it comes from the same source or it is more accurate.
func (b *Bus) Publish(f Fix) {
	if !f.Usable() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.best
	if prev.Source != "" && !prev.IsExpired() && prev.Source != f.Source && !f.BetterThan(prev) {
		return
	}
	b.best = f
	b.logger.Debug("fused location updated", slog.String("source", f.Source),
		slog.Float64("lat", f.Coordinate.Lat), slog.Float64("lon", f.Coordinate.Lon),
		slog.Float64("accuracy", f.AccuracyMeters))

	for ch := range b.subscribers {
		select {
		case ch <- f:
		default:
		}
	}
}

// Best returns the current best fix and whether it is present and unexpired.
func (b *Bus) Best() (Fix, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.best, b.best.Source != "" && !b.best.IsExpired()
}
