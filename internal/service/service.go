// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vorlif/spreak"

	"github.com/wneessen/mapscreen/internal/config"
	"github.com/wneessen/mapscreen/internal/fused"
	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/geocode"
	"github.com/wneessen/mapscreen/internal/http"
	"github.com/wneessen/mapscreen/internal/job"
	"github.com/wneessen/mapscreen/internal/location"
	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/permission"
	"github.com/wneessen/mapscreen/internal/presenter"
	"github.com/wneessen/mapscreen/internal/screen"
)

const OutputClass = "mapscreen"

// ErrPermissionNotGranted is returned by the one-shot operations without a granted location
// permission.
var ErrPermissionNotGranted = errors.New("location permission not granted")

type outputData struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
	Alt     string `json:"alt"`
}

// Service wires the location sources, the geocoder and the permission gate into a map
// screen and runs it headless or for a terminal frontend.
type Service struct {
	SignalSrc signalSource

	config    *config.Config
	logger    *logger.Logger
	t         *spreak.Localizer
	presenter *presenter.Presenter
	output    io.Writer
	input     io.Reader

	bus      *fused.Bus
	tracker  *fused.Tracker
	acquirer *location.Acquirer
	cache    *geocode.CachedGeocoder
	resolver *geocode.Resolver
	gate     *permission.Gate
	screen   *screen.Screen
	closers  []io.Closer

	// nominatimHTTP is shared by the reverse geocoder and the cityname search.
	nominatimHTTP *http.Client

	scheduler gocron.Scheduler
	outputJob *job.Job
	jobs      []*job.Job

	displayAltLock sync.RWMutex
	displayAltText bool

	dialogs    *permission.ChannelPrompter
	dialogLock sync.Mutex
	dialog     *permission.Dialog
}

// New returns a Service. Permission dialogs are handed to prompter; if prompter is nil, they
// are answered through the input of Run.
func New(conf *config.Config, log *logger.Logger, lang *spreak.Localizer, prompter permission.Prompter) (*Service, error) {
	bus, err := fused.NewBus(log)
	if err != nil {
		return nil, fmt.Errorf("failed to create location bus: %w", err)
	}
	pres, err := presenter.New(conf, lang)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	serv := &Service{
		SignalSrc: stdLibSignalSource{},
		config:    conf,
		logger:    log,
		t:         lang,
		presenter: pres,
		output:    os.Stdout,
		input:     os.Stdin,
		bus:       bus,
	}
	if prompter == nil {
		prompter = permission.NewChannelPrompter()
	}
	if dialogs, ok := prompter.(*permission.ChannelPrompter); ok {
		serv.dialogs = dialogs
	}

	sources, err := serv.selectSources()
	if err != nil {
		return nil, fmt.Errorf("failed to create location sources: %w", err)
	}
	client, err := fused.NewClient(bus, sources, conf.GeoLocation.RequestTimeout, log)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create location client: %w", err), serv.Close())
	}
	serv.tracker = fused.NewTracker(bus, sources, conf.GeoLocation.PollInterval, log)
	serv.acquirer = location.NewAcquirer(client, log)

	if serv.cache, err = serv.selectGeocodeProvider(conf, log, lang.Language()); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create geocode provider: %w", err), serv.Close())
	}
	if serv.resolver, err = geocode.NewResolver(serv.cache, log, lang); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create address resolver: %w", err), serv.Close())
	}

	store, err := serv.openPermissionStore()
	if err != nil {
		return nil, errors.Join(err, serv.Close())
	}
	if serv.gate, err = permission.NewGate(store, prompter, log); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create permission gate: %w", err), serv.Close())
	}

	opts := screen.Options{
		DefaultZoom:  conf.Map.DefaultZoom,
		LocationZoom: conf.Map.LocationZoom,
		Animation:    conf.Map.Animation,
	}
	if serv.screen, err = screen.New(serv.gate, serv.acquirer, serv.resolver, opts, log); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create screen: %w", err), serv.Close())
	}

	serv.outputJob = job.New(conf.Intervals.Output, serv.printState)
	serv.jobs = append(serv.jobs, serv.outputJob)
	return serv, nil
}

// Run runs the screen headless. Every snapshot change and every output interval prints one
// JSON line; taps, permission answers and retries are read line by line from the input.
func (s *Service) Run(ctx context.Context) error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("failed to release resources", logger.Err(err))
		}
	}()

	for _, j := range s.jobs {
		if j != nil {
			go j.Start(ctx)
		}
	}

	sub, unsub := s.screen.Subscribe(8)
	defer unsub()
	go s.processStateUpdates(ctx, sub)
	if s.dialogs != nil {
		go s.processDialogs(ctx)
	}
	if s.input != nil {
		go s.processInput(ctx, s.input)
	}

	return s.RunScreen(ctx)
}

// RunScreen runs the screen's event loop until the context is cancelled. The location sources
// are tracked once the map became active and the geocode cache is purged on schedule.
func (s *Service) RunScreen(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.scheduler = scheduler
	if err = s.createScheduledJob(ctx, s.config.Intervals.CachePurge, s.purgeCache,
		"geocode_cache_purge_job"); err != nil {
		return errors.Join(err, s.scheduler.Shutdown())
	}
	s.scheduler.Start()

	go s.trackWhenActive(ctx)
	err = s.screen.Run(ctx)
	if serr := s.scheduler.Shutdown(); serr != nil {
		err = errors.Join(err, fmt.Errorf("failed to shut down scheduler: %w", serr))
	}
	return err
}

// trackWhenActive starts polling the location sources after the first transition to the
// active map. Without a granted permission no source is ever queried.
func (s *Service) trackWhenActive(ctx context.Context) {
	sub, unsub := s.screen.Subscribe(1)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-sub:
			if !ok {
				return
			}
			if state.Phase != screen.PhaseMapActive {
				continue
			}
			unsub()
			s.logger.Debug("location permission granted, tracking location sources")
			s.tracker.Track(ctx)
			return
		}
	}
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// purgeCache drops expired geocode answers so that a long running screen does not keep
// every address it ever resolved.
func (s *Service) purgeCache(context.Context) {
	if purged := s.cache.Purge(time.Now()); purged > 0 {
		s.logger.Debug("purged expired geocode cache entries", slog.Int("purged", purged),
			slog.Int("remaining", s.cache.Len()))
	}
}

// Screen returns the map screen.
func (s *Service) Screen() *screen.Screen {
	return s.screen
}

// Presenter returns the template presenter.
func (s *Service) Presenter() *presenter.Presenter {
	return s.presenter
}

// Locate runs the location fallback chain once. It fails without a granted permission.
func (s *Service) Locate(ctx context.Context) (location.Result, error) {
	if err := s.requireGranted(ctx); err != nil {
		return location.Result{}, err
	}
	return s.acquirer.Acquire(ctx), nil
}

// Geocode resolves coord into the address line shown by the screen.
func (s *Service) Geocode(ctx context.Context, coord geo.Coordinate) (geocode.Result, error) {
	if err := s.requireGranted(ctx); err != nil {
		return geocode.Result{}, err
	}
	return s.resolver.ResolveResult(ctx, coord), nil
}

// RequestPermission shows the permission dialog through the service's prompter.
func (s *Service) RequestPermission(ctx context.Context) (permission.Status, error) {
	return s.gate.Request(ctx)
}

func (s *Service) requireGranted(ctx context.Context) error {
	if status := s.gate.Status(ctx); status != permission.StatusGranted {
		return fmt.Errorf("%w: %s", ErrPermissionNotGranted, status)
	}
	return nil
}

// ResetPermission forgets all recorded permission decisions.
func (s *Service) ResetPermission(ctx context.Context) error {
	return s.gate.Reset(ctx)
}

// PermissionStatus returns the recorded permission status without prompting.
func (s *Service) PermissionStatus(ctx context.Context) permission.Status {
	return s.gate.Status(ctx)
}

// Close releases the permission store and the WiFi scanner.
func (s *Service) Close() error {
	var errs []error
	for _, closer := range s.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// printState renders the current snapshot and writes it as a single JSON line.
func (s *Service) printState(context.Context) {
	state := s.screen.State()
	rendered, err := s.presenter.Render(s.presenter.BuildContext(state, time.Now()))
	if err != nil {
		s.logger.Error("failed to render templates", logger.Err(err))
		return
	}

	output := outputData{
		Text:    rendered["text"],
		Tooltip: rendered["tooltip"],
		Class:   OutputClass,
		Alt:     state.Phase.String(),
	}
	s.displayAltLock.RLock()
	if s.displayAltText {
		output.Text = rendered["alt_text"]
		output.Tooltip = rendered["alt_tooltip"]
	}
	s.displayAltLock.RUnlock()

	if err = json.NewEncoder(s.output).Encode(output); err != nil {
		s.logger.Error("failed to encode output", logger.Err(err))
	}
}

// processStateUpdates requests an output for every new snapshot.
func (s *Service) processStateUpdates(ctx context.Context, sub <-chan screen.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-sub:
			if !ok {
				return
			}
			s.logger.Debug("received screen update", slog.String("phase", state.Phase.String()),
				slog.Int("markers", len(state.Map.Markers())), slog.Uint64("address_seq", state.AddressSeq))
			s.outputJob.Trigger()
		}
	}
}
