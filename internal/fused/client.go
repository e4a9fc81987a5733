// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package fused

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/location"
	"github.com/wneessen/mapscreen/internal/logger"
)

// DefaultRequestTimeout bounds a single Current request across all sources.
const DefaultRequestTimeout = time.Second * 10

var ErrNoSources = errors.New("no positioning sources enabled")

// Client is the location service backed by the fused bus.
type Client struct {
	bus     *Bus
	sources []Source
	timeout time.Duration
	logger  *logger.Logger
}

// NewClient returns a Client querying the given sources and caching results on the bus.
func NewClient(bus *Bus, sources []Source, timeout time.Duration, log *logger.Logger) (*Client, error) {
	if bus == nil {
		return nil, errors.New("bus is required")
	}
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		bus:     bus,
		sources: sources,
		timeout: timeout,
		logger:  log,
	}, nil
}

// LastKnown returns the cached best fix, if any.
func (c *Client) LastKnown(context.Context) (geo.Coordinate, bool, error) {
	fix, ok := c.bus.Best()
	if !ok {
		return geo.Coordinate{}, false, nil
	}
	return fix.Coordinate, true, nil
}

// Current asks every source for a fresh fix and returns the most accurate one that satisfies
// the priority. It returns false if no source produced a qualifying fix and an error only if
// every source failed.
func (c *Client) Current(ctx context.Context, priority location.Priority) (geo.Coordinate, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type answer struct {
		fix Fix
		err error
	}
	answers := make(chan answer, len(c.sources))
	var wg sync.WaitGroup
	for _, src := range c.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			fix, err := safeLocate(ctx, src)
			if err != nil {
				err = fmt.Errorf("%s: %w", src.Name(), err)
			}
			answers <- answer{fix: fix, err: err}
		}(src)
	}
	wg.Wait()
	close(answers)

	var best Fix
	var errs []error
	for a := range answers {
		if a.err != nil {
			errs = append(errs, a.err)
			continue
		}
		if !a.fix.Usable() {
			continue
		}
		c.bus.Publish(a.fix)
		if !qualifies(a.fix, priority) {
			continue
		}
		if best.Source == "" || a.fix.AccuracyMeters < best.AccuracyMeters {
			best = a.fix
		}
	}
	if best.Source != "" {
		c.logger.Debug("current location determined", slog.String("source", best.Source),
			slog.Float64("accuracy", best.AccuracyMeters))
		return best.Coordinate, true, nil
	}
	if len(errs) == len(c.sources) {
		return geo.Coordinate{}, false, errors.Join(errs...)
	}
	return geo.Coordinate{}, false, nil
}

func qualifies(f Fix, priority location.Priority) bool {
	if priority == location.PriorityHighAccuracy {
		return f.AccuracyMeters <= AccuracyCity
	}
	return true
}
