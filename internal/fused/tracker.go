// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package fused

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wneessen/mapscreen/internal/logger"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Tracker keeps the bus warm by polling every source in the background, so that a last known
// location is available when the screen asks for one.
type Tracker struct {
	bus      *Bus
	sources  []Source
	interval time.Duration
	logger   *logger.Logger
}

// NewTracker returns a Tracker polling the given sources every interval.
func NewTracker(bus *Bus, sources []Source, interval time.Duration, log *logger.Logger) *Tracker {
	return &Tracker{
		bus:      bus,
		sources:  sources,
		interval: interval,
		logger:   log,
	}
}

// Track runs all sources concurrently until the context is cancelled.
func (t *Tracker) Track(ctx context.Context) {
	var wg sync.WaitGroup
	for _, src := range t.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			if streamer, ok := src.(Streamer); ok {
				t.trackStream(ctx, streamer)
				return
			}
			t.trackPoll(ctx, src)
		}(src)
	}
	<-ctx.Done()
	wg.Wait()
}

// trackPoll polls a source, backing off exponentially while it fails.
func (t *Tracker) trackPoll(ctx context.Context, src Source) {
	backoff := initialBackoff
	for {
		fix, err := safeLocate(ctx, src)
		wait := t.interval
		if err != nil {
			t.logger.Debug("positioning source failed", slog.String("source", src.Name()), logger.Err(err))
			wait = backoff
			backoff = nextBackoff(backoff)
		} else {
			t.bus.Publish(fix)
			backoff = initialBackoff
		}
		if !sleepOrDone(ctx, wait) {
			return
		}
	}
}

// trackStream forwards a streaming source to the bus and reconnects with backoff when the
// stream ends.
func (t *Tracker) trackStream(ctx context.Context, src Streamer) {
	backoff := initialBackoff
	for {
		stream := safeStream(ctx, src)
		if stream != nil {
			for fix := range stream {
				t.bus.Publish(fix)
				backoff = initialBackoff
			}
		}
		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

// safeLocate invokes Locate on a source and turns a panic into an error.
func safeLocate(ctx context.Context, src Source) (fix Fix, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("positioning source %q panicked: %v", src.Name(), r)
		}
	}()
	return src.Locate(ctx)
}

// safeStream invokes Stream on a source and recovers from potential panics.
// Returns nil if the operation fails.
func safeStream(ctx context.Context, src Streamer) (ch <-chan Fix) {
	defer func() { _ = recover() }()
	return src.Stream(ctx)
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}
