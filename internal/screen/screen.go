// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/geocode"
	"github.com/wneessen/mapscreen/internal/location"
	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/permission"
)

const instrumentationName = "github.com/wneessen/mapscreen/internal/screen"

var ErrNotRunning = errors.New("screen is not running")

// PermissionRequester is the permission gate.
type PermissionRequester interface {
	Request(ctx context.Context) (permission.Status, error)
}

// Locator acquires the user location once per call.
type Locator interface {
	Acquire(ctx context.Context) location.Result
}

// AddressResolver resolves a coordinate into an address line.
type AddressResolver interface {
	ResolveResult(ctx context.Context, coord geo.Coordinate) geocode.Result
}

// Screen runs the event loop of the map screen. All state changes happen on the loop, the
// effects run in their own goroutines and report back through events.
type Screen struct {
	opts     Options
	gate     PermissionRequester
	locator  Locator
	resolver AddressResolver
	logger   *logger.Logger

	events chan Event
	done   chan struct{}
	once   sync.Once

	mu          sync.RWMutex
	state       State
	subscribers map[chan State]struct{}

	taps    metric.Int64Counter
	located metric.Int64Counter
}

// New returns a Screen in its initial state.
func New(gate PermissionRequester, locator Locator, resolver AddressResolver, opts Options,
	log *logger.Logger,
) (*Screen, error) {
	if gate == nil || locator == nil || resolver == nil {
		return nil, errors.New("permission gate, locator and resolver are required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	meter := otel.Meter(instrumentationName)
	taps, err := meter.Int64Counter("mapscreen.taps",
		metric.WithDescription("Taps on the map that dropped a marker"))
	if err != nil {
		return nil, fmt.Errorf("creating taps counter: %w", err)
	}
	located, err := meter.Int64Counter("mapscreen.location.acquired",
		metric.WithDescription("Acquired user locations by source"))
	if err != nil {
		return nil, fmt.Errorf("creating location counter: %w", err)
	}

	return &Screen{
		opts:        opts,
		gate:        gate,
		locator:     locator,
		resolver:    resolver,
		logger:      log,
		events:      make(chan Event, 16),
		done:        make(chan struct{}),
		state:       NewState(opts),
		subscribers: make(map[chan State]struct{}),
		taps:        taps,
		located:     located,
	}, nil
}

// Run enters the screen and processes events until the context is cancelled. Results of
// effects arriving after that are dropped.
func (s *Screen) Run(ctx context.Context) error {
	defer s.once.Do(func() { close(s.done) })
	s.dispatch(ctx, Started{At: time.Now()})
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		}
	}
}

// Post hands an event to the loop. It returns ErrNotRunning once the loop stopped.
func (s *Screen) Post(ev Event) error {
	select {
	case <-s.done:
		return ErrNotRunning
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrNotRunning
	}
}

// Tap posts a tap on the map at c.
func (s *Screen) Tap(c geo.Coordinate) error {
	return s.Post(Tapped{At: time.Now(), Coordinate: c})
}

// MoveCamera posts a pan or zoom of the map.
func (s *Screen) MoveCamera(center geo.Coordinate, zoom float64) error {
	return s.Post(CameraMoved{At: time.Now(), Center: center, Zoom: zoom})
}

// Retry posts a manual permission re-request.
func (s *Screen) Retry() error {
	return s.Post(RetryRequested{At: time.Now()})
}

// State returns the current snapshot.
func (s *Screen) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe returns a channel receiving every new snapshot and an unsubscribe function. The
// current snapshot is delivered immediately. Slow subscribers skip stale snapshots instead of
// blocking the loop, but the last snapshot they receive is always the current one.
func (s *Screen) Subscribe(size int) (<-chan State, func()) {
	ch := make(chan State, size+1)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.state
	s.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

func (s *Screen) dispatch(ctx context.Context, ev Event) {
	s.mu.Lock()
	prev := s.state
	next, effects := Apply(s.opts, prev, ev)
	s.state = next
	for ch := range s.subscribers {
		publish(ch, next)
	}
	s.mu.Unlock()

	if next.Phase != prev.Phase {
		s.logger.Debug("screen phase changed", slog.String("from", prev.Phase.String()),
			slog.String("to", next.Phase.String()))
	}
	s.record(ctx, prev, next, ev)
	for _, eff := range effects {
		go s.execute(ctx, eff)
	}
}

// publish replaces the oldest buffered snapshot when ch is full. Only dispatch sends, under
// s.mu, so the second send finds a free slot.
func publish(ch chan State, state State) {
	select {
	case ch <- state:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- state:
	default:
	}
}

func (s *Screen) record(ctx context.Context, prev, next State, ev Event) {
	switch ev := ev.(type) {
	case Tapped:
		if len(next.Map.Markers()) > len(prev.Map.Markers()) {
			s.taps.Add(ctx, 1)
		}
	case LocationAcquired:
		if next.Located && !prev.Located {
			s.located.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(ev.Result.Origin))))
		}
	}
}

func (s *Screen) execute(ctx context.Context, eff Effect) {
	switch eff := eff.(type) {
	case RequestPermission:
		status, err := s.gate.Request(ctx)
		if err != nil {
			s.logger.Warn("location permission request failed", logger.Err(err))
		}
		s.deliver(PermissionResolved{At: time.Now(), Status: status, Err: err})
	case AcquireLocation:
		result := s.locator.Acquire(ctx)
		s.deliver(LocationAcquired{At: time.Now(), Result: result})
	case ResolveAddress:
		result := s.resolver.ResolveResult(ctx, eff.Coordinate)
		s.deliver(AddressResolved{At: time.Now(), Result: result})
	case SettleCamera:
		timer := time.NewTimer(eff.After)
		defer timer.Stop()
		select {
		case <-timer.C:
			s.deliver(Tick{At: time.Now()})
		case <-s.done:
		}
	}
}

func (s *Screen) deliver(ev Event) {
	if err := s.Post(ev); err != nil {
		s.logger.Debug("dropping late event", slog.String("event", fmt.Sprintf("%T", ev)))
	}
}
