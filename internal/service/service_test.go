// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"testing/synctest"
	"time"

	"github.com/vorlif/spreak"

	"github.com/wneessen/mapscreen/internal/config"
	"github.com/wneessen/mapscreen/internal/fused"
	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/geocode"
	"github.com/wneessen/mapscreen/internal/i18n"
	"github.com/wneessen/mapscreen/internal/location"
	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/permission"
	"github.com/wneessen/mapscreen/internal/screen"
)

var fileLocation = geo.Coordinate{Lat: 40.7185, Lon: -74.0025}

func TestNew(t *testing.T) {
	t.Run("new service succeeds", func(t *testing.T) {
		serv, err := testService(t, nil)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		if serv.Screen() == nil {
			t.Error("expected screen to be non-nil")
		}
		if serv.Presenter() == nil {
			t.Error("expected presenter to be non-nil")
		}
		if serv.dialogs == nil {
			t.Error("expected dialogs to be answered through the input without a prompter")
		}
	})
	t.Run("cityname file as the only source succeeds", func(t *testing.T) {
		conf, lang := testConfLang(t)
		conf.GeoLocation.DisableGeolocationFile = true
		conf.GeoLocation.DisableCitynameFile = false
		conf.GeoLocation.CitynameFile = "../../testdata/cityname"
		if _, err := New(conf, testLogger(), lang, nil); err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
	})
	t.Run("static prompter does not open dialogs", func(t *testing.T) {
		serv, err := testService(t, permission.StaticPrompter{Answer: permission.AnswerAllow})
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		if serv.dialogs != nil {
			t.Error("expected no dialog channel for a static prompter")
		}
	})
	t.Run("initializing service with different geocode providers", func(t *testing.T) {
		tests := []struct {
			name     string
			provider string
			apikey   string
			wantName string
			wantFail bool
		}{
			{"osm-nominatim", "osm-nominatim", "", "osm-nominatim", false},
			{"nominatim alias", "nominatim", "", "osm-nominatim", false},
			{"opencage without api-key", "opencage", "", "", true},
			{"opencage with api-key", "opencage", "abc", "opencage", false},
			{"geocode.earth without api-key", "geocode-earth", "", "", true},
			{"geocode.earth with api-key", "geocode-earth", "abc", "geocode-earth", false},
			{"unsupported provider", "invalid", "", "", true},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				serv, err := testService(t, nil)
				if err != nil {
					t.Fatalf("failed to create service: %s", err)
				}
				serv.config.Geocoder.Provider = tc.provider
				serv.config.Geocoder.APIKey = tc.apikey
				provider, err := serv.selectGeocodeProvider(serv.config, serv.logger, serv.t.Language())
				if tc.wantFail && err == nil {
					t.Fatal("expected geocode provider selection to fail")
				}
				if !tc.wantFail && err != nil {
					t.Fatalf("failed to select geocode provider: %s", err)
				}
				if tc.wantFail {
					return
				}
				name := fmt.Sprintf("geocoder cache using %s", tc.wantName)
				if provider.Name() != name {
					t.Errorf("expected geocoder name to be %q, got %q", name, provider.Name())
				}
			})
		}
	})
	t.Run("invalid template configuration should fail", func(t *testing.T) {
		t.Setenv("MAPSCREEN_TEMPLATES_TEXT", "{{")
		_, err := testService(t, nil)
		if err == nil {
			t.Fatal("expected service creation to fail")
		}
		wantErr := "failed to parse text template"
		if !strings.Contains(err.Error(), wantErr) {
			t.Errorf("expected error to contain %q, got %q", wantErr, err)
		}
	})
	t.Run("nil logger fails the bus initialization", func(t *testing.T) {
		conf, lang := testConfLang(t)
		_, err := New(conf, nil, lang, nil)
		if err == nil {
			t.Fatal("expected service creation to fail")
		}
		wantErr := "logger is required"
		if !strings.Contains(err.Error(), wantErr) {
			t.Errorf("expected error to contain %q, got %q", wantErr, err)
		}
	})
	t.Run("no enabled location source fails", func(t *testing.T) {
		conf, lang := testConfLang(t)
		conf.GeoLocation.DisableGeolocationFile = true
		_, err := New(conf, testLogger(), lang, nil)
		if !errors.Is(err, fused.ErrNoSources) {
			t.Errorf("expected error to be %s, got %v", fused.ErrNoSources, err)
		}
	})
	t.Run("unknown permission store fails", func(t *testing.T) {
		conf, lang := testConfLang(t)
		conf.Permission.Store = "invalid"
		_, err := New(conf, testLogger(), lang, nil)
		if !errors.Is(err, permission.ErrUnknownStore) {
			t.Errorf("expected error to be %s, got %v", permission.ErrUnknownStore, err)
		}
	})
	t.Run("sqlite permission store is opened and closed", func(t *testing.T) {
		conf, lang := testConfLang(t)
		conf.Permission.Store = permission.StoreSQLite
		conf.Permission.DSN = t.TempDir() + "/data/permission.db"
		serv, err := New(conf, testLogger(), lang, nil)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		if len(serv.closers) == 0 {
			t.Fatal("expected the permission store to be closable")
		}
		if err = serv.Close(); err != nil {
			t.Errorf("failed to close service: %s", err)
		}
		if len(serv.closers) != 0 {
			t.Error("expected closers to be released")
		}
	})
}

func TestService_Run(t *testing.T) {
	t.Run("start the service and gracefully shut it down", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			afterFuncCalled := false
			context.AfterFunc(ctx, func() {
				afterFuncCalled = true
			})

			serv, err := testService(t, nil)
			if err != nil {
				t.Fatalf("failed to create service: %s", err)
			}
			serv.input = nil
			serv.output = io.Discard
			serv.jobs = append(serv.jobs, nil)

			go func() {
				if err := serv.Run(ctx); err != nil {
					t.Errorf("failed to run service: %s", err)
				}
			}()

			synctest.Wait()
			if got := serv.Screen().State().Phase; got != screen.PhasePermissionPending {
				t.Errorf("expected permission dialog to be pending, got %s", got)
			}
			cancel()
			synctest.Wait()
			if !afterFuncCalled {
				t.Fatalf("before context is canceled: AfterFunc not called")
			}
		})
	})
	t.Run("granted screen locates, resolves and takes taps", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			serv, buf := testRunService(t, permission.StaticPrompter{Answer: permission.AnswerAllow})
			go func() { _ = serv.Run(ctx) }()

			synctest.Wait()
			state := serv.Screen().State()
			if state.Phase != screen.PhaseMapActive {
				t.Fatalf("expected map to be active, got %s", state.Phase)
			}
			if state.Location.Coordinate != fileLocation {
				t.Errorf("expected location to be %s, got %s", fileLocation, state.Location.Coordinate)
			}
			wantAddr := "Test Location 40.7185,-74.0025"
			if state.Address != wantAddr {
				t.Errorf("expected address to be %q, got %q", wantAddr, state.Address)
			}

			if err := serv.handleCommand("52.5, 13.25"); err != nil {
				t.Fatalf("failed to handle tap: %s", err)
			}
			synctest.Wait()
			state = serv.Screen().State()
			if len(state.Map.Markers()) != 1 {
				t.Fatalf("expected 1 marker, got %d", len(state.Map.Markers()))
			}
			wantAddr = "Test Location 52.5,13.25"
			if state.Address != wantAddr {
				t.Errorf("expected address to be %q, got %q", wantAddr, state.Address)
			}

			cancel()
			synctest.Wait()
			lines := outputLines(t, buf.String())
			if len(lines) == 0 {
				t.Fatal("expected output to be printed")
			}
			last := lines[len(lines)-1]
			if last.Class != OutputClass {
				t.Errorf("expected class to be %q, got %q", OutputClass, last.Class)
			}
			if last.Alt != "map_active" {
				t.Errorf("expected alt to be %q, got %q", "map_active", last.Alt)
			}
			if !strings.Contains(last.Text, wantAddr) {
				t.Errorf("expected text to contain %q, got %q", wantAddr, last.Text)
			}
		})
	})
	t.Run("denied screen never queries a location source", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			serv, _ := testRunService(t, permission.StaticPrompter{Answer: permission.AnswerDenyDontAskAgain})
			source := &countingSource{}
			testReplaceSources(t, serv, source)
			go func() { _ = serv.Run(ctx) }()

			synctest.Wait()
			time.Sleep(serv.config.GeoLocation.PollInterval * 2)
			synctest.Wait()
			if got := serv.Screen().State().Phase; got != screen.PhaseDenied {
				t.Fatalf("expected screen to be denied, got %s", got)
			}
			if calls := source.calls.Load(); calls != 0 {
				t.Errorf("expected no source call, got %d", calls)
			}
			if fix, ok := serv.bus.Best(); ok {
				t.Errorf("expected no fix on the bus, got %s from %s", fix.Coordinate, fix.Source)
			}
			cancel()
			synctest.Wait()
		})
	})
	t.Run("granted screen starts tracking the sources", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			serv, _ := testRunService(t, permission.StaticPrompter{Answer: permission.AnswerAllow})
			source := &countingSource{}
			testReplaceSources(t, serv, source)
			go func() { _ = serv.Run(ctx) }()

			synctest.Wait()
			time.Sleep(serv.config.GeoLocation.PollInterval + time.Second)
			synctest.Wait()
			if calls := source.calls.Load(); calls < 2 {
				t.Errorf("expected the acquirer and the tracker to query the source, got %d calls", calls)
			}
			cancel()
			synctest.Wait()
		})
	})
	t.Run("denied screen resolves nothing", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			serv, buf := testRunService(t, permission.StaticPrompter{Answer: permission.AnswerDenyDontAskAgain})
			go func() { _ = serv.Run(ctx) }()

			synctest.Wait()
			state := serv.Screen().State()
			if state.Phase != screen.PhaseDenied {
				t.Fatalf("expected screen to be denied, got %s", state.Phase)
			}
			if state.Located {
				t.Error("expected no location to be acquired")
			}
			cancel()
			synctest.Wait()
			lines := outputLines(t, buf.String())
			if len(lines) == 0 {
				t.Fatal("expected output to be printed")
			}
			if lines[len(lines)-1].Alt != "denied" {
				t.Errorf("expected alt to be %q, got %q", "denied", lines[len(lines)-1].Alt)
			}
		})
	})
}

func TestService_purgeCache(t *testing.T) {
	t.Run("expired geocode answers are purged", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			serv, err := testService(t, nil)
			if err != nil {
				t.Fatalf("failed to create service: %s", err)
			}
			serv.cache = geocode.NewCachedGeocoder(&mockGeocoder{}, time.Minute, time.Minute)
			if _, err = serv.cache.Reverse(t.Context(), geo.Coordinate{Lat: 1, Lon: 1}, 1); err != nil {
				t.Fatalf("failed to reverse geocode: %s", err)
			}
			serv.purgeCache(t.Context())
			if serv.cache.Len() != 1 {
				t.Fatalf("expected fresh entry to be kept, got %d entries", serv.cache.Len())
			}
			time.Sleep(time.Minute)
			serv.purgeCache(t.Context())
			if serv.cache.Len() != 0 {
				t.Errorf("expected expired entry to be purged, got %d entries", serv.cache.Len())
			}
		})
	})
	t.Run("purge job runs while the screen is running", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			serv, _ := testRunService(t, permission.StaticPrompter{Answer: permission.AnswerDeny})
			serv.config.Intervals.CachePurge = time.Minute
			serv.cache = geocode.NewCachedGeocoder(&mockGeocoder{}, time.Second, time.Second)
			if _, err := serv.cache.Reverse(ctx, geo.Coordinate{Lat: 1, Lon: 1}, 1); err != nil {
				t.Fatalf("failed to reverse geocode: %s", err)
			}
			go func() { _ = serv.Run(ctx) }()

			time.Sleep(time.Minute + time.Second)
			synctest.Wait()
			if serv.cache.Len() != 0 {
				t.Errorf("expected the purge job to empty the cache, got %d entries", serv.cache.Len())
			}
			cancel()
			synctest.Wait()
		})
	})
}

func TestService_handleCommand(t *testing.T) {
	t.Run("dialog is answered through the input", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			serv, _ := testRunService(t, nil)
			go func() { _ = serv.Run(ctx) }()

			synctest.Wait()
			if got := serv.Screen().State().Phase; got != screen.PhasePermissionPending {
				t.Fatalf("expected permission dialog to be pending, got %s", got)
			}
			if err := serv.handleCommand("DENY"); err != nil {
				t.Fatalf("failed to answer dialog: %s", err)
			}
			synctest.Wait()
			if got := serv.Screen().State().Phase; got != screen.PhaseRationale {
				t.Fatalf("expected rationale after one denial, got %s", got)
			}
			if err := serv.handleCommand(CmdAllow); !errors.Is(err, ErrNoDialog) {
				t.Errorf("expected error to be %s, got %v", ErrNoDialog, err)
			}

			if err := serv.handleCommand(CmdRetry); err != nil {
				t.Fatalf("failed to retry: %s", err)
			}
			synctest.Wait()
			if err := serv.handleCommand(CmdAllow); err != nil {
				t.Fatalf("failed to answer dialog: %s", err)
			}
			synctest.Wait()
			if got := serv.Screen().State().Phase; got != screen.PhaseMapActive {
				t.Errorf("expected map to be active, got %s", got)
			}
		})
	})
	t.Run("invalid input is rejected", func(t *testing.T) {
		serv, err := testService(t, nil)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		for _, line := range []string{"foo", "91,0", "1,2,3"} {
			if err = serv.handleCommand(line); err == nil {
				t.Errorf("expected input %q to fail", line)
			}
		}
		if err = serv.handleCommand("   "); err != nil {
			t.Errorf("expected empty input to be ignored, got %s", err)
		}
	})
	t.Run("taps on a stopped screen fail", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			serv, _ := testRunService(t, nil)
			go func() { _ = serv.Run(ctx) }()
			synctest.Wait()
			cancel()
			synctest.Wait()

			if err := serv.handleCommand("1,1"); !errors.Is(err, screen.ErrNotRunning) {
				t.Errorf("expected error to be %s, got %v", screen.ErrNotRunning, err)
			}
		})
	})
	t.Run("input is read line by line", func(t *testing.T) {
		serv, err := testService(t, nil)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		logBuf := bytes.NewBuffer(nil)
		serv.logger = logger.NewLogger(slog.LevelWarn, logBuf)
		serv.processInput(t.Context(), strings.NewReader("alt\nfoo\n"))

		serv.displayAltLock.RLock()
		defer serv.displayAltLock.RUnlock()
		if !serv.displayAltText {
			t.Error("expected alt mode to be enabled")
		}
		wantLog := `msg="failed to process input"`
		if !strings.Contains(logBuf.String(), wantLog) {
			t.Errorf("expected log to contain %q, got %q", wantLog, logBuf.String())
		}
	})
}

func TestService_printState(t *testing.T) {
	t.Run("print state to a buffer", func(t *testing.T) {
		t.Setenv("MAPSCREEN_TEMPLATES_TEXT", "text")
		t.Setenv("MAPSCREEN_TEMPLATES_TOOLTIP", "tooltip")

		serv, err := testService(t, nil)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		buf := bytes.NewBuffer(nil)
		serv.output = buf
		serv.printState(t.Context())

		var output outputData
		if err = json.Unmarshal(buf.Bytes(), &output); err != nil {
			t.Fatalf("failed to unmarshal JSON: %s", err)
		}
		if output.Text != "text" {
			t.Errorf("expected Text to be %q, got %q", "text", output.Text)
		}
		if output.Tooltip != "tooltip" {
			t.Errorf("expected Tooltip to be %q, got %q", "tooltip", output.Tooltip)
		}
		if output.Class != OutputClass {
			t.Errorf("expected Class to be %q, got %q", OutputClass, output.Class)
		}
		if output.Alt != "uninitialized" {
			t.Errorf("expected Alt to be %q, got %q", "uninitialized", output.Alt)
		}
	})
	t.Run("print alt_text to a buffer", func(t *testing.T) {
		t.Setenv("MAPSCREEN_TEMPLATES_ALT_TEXT", "alt_text")
		t.Setenv("MAPSCREEN_TEMPLATES_ALT_TOOLTIP", "alt_tooltip")

		serv, err := testService(t, nil)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		buf := bytes.NewBuffer(nil)
		serv.output = buf
		serv.displayAltText = true
		serv.printState(t.Context())

		var output outputData
		if err = json.Unmarshal(buf.Bytes(), &output); err != nil {
			t.Fatalf("failed to unmarshal JSON: %s", err)
		}
		if output.Text != "alt_text" {
			t.Errorf("expected Text to be %q, got %q", "alt_text", output.Text)
		}
		if output.Tooltip != "alt_tooltip" {
			t.Errorf("expected Tooltip to be %q, got %q", "alt_tooltip", output.Tooltip)
		}
	})
	t.Run("output is empty on failing writer", func(t *testing.T) {
		serv, err := testService(t, nil)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		logBuf := bytes.NewBuffer(nil)
		serv.logger = logger.NewLogger(slog.LevelError, logBuf)
		serv.output = &failWriter{}
		serv.printState(t.Context())
		wantLog := `msg="failed to encode output"`
		if !strings.Contains(logBuf.String(), wantLog) {
			t.Errorf("expected log to contain %q, got %q", wantLog, logBuf.String())
		}
	})
}

func TestService_Geocode(t *testing.T) {
	t.Run("granted permission resolves the address", func(t *testing.T) {
		serv := testGrantedService(t)
		var err error
		serv.resolver, err = geocode.NewResolver(&mockGeocoder{empty: true}, serv.logger, serv.t)
		if err != nil {
			t.Fatalf("failed to create resolver: %s", err)
		}
		result, err := serv.Geocode(t.Context(), geo.Coordinate{Lat: 3, Lon: 3})
		if err != nil {
			t.Fatalf("failed to geocode: %s", err)
		}
		if result.Text != geocode.MsgAddressNotFound {
			t.Errorf("expected address to be %q, got %q", geocode.MsgAddressNotFound, result.Text)
		}
	})
	t.Run("without permission nothing is resolved", func(t *testing.T) {
		serv, err := testService(t, permission.StaticPrompter{Answer: permission.AnswerDeny})
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		coder := &countingGeocoder{}
		if serv.resolver, err = geocode.NewResolver(coder, serv.logger, serv.t); err != nil {
			t.Fatalf("failed to create resolver: %s", err)
		}
		if _, err = serv.Geocode(t.Context(), geo.Coordinate{Lat: 3, Lon: 3}); !errors.Is(err, ErrPermissionNotGranted) {
			t.Errorf("expected error to be %s, got %v", ErrPermissionNotGranted, err)
		}
		if calls := coder.calls.Load(); calls != 0 {
			t.Errorf("expected no geocode call, got %d", calls)
		}
	})
}

func TestService_Locate(t *testing.T) {
	t.Run("granted permission locates", func(t *testing.T) {
		serv := testGrantedService(t)
		result, err := serv.Locate(t.Context())
		if err != nil {
			t.Fatalf("failed to locate: %s", err)
		}
		if result.Coordinate != fileLocation {
			t.Errorf("expected location to be %s, got %s", fileLocation, result.Coordinate)
		}
	})
	t.Run("without permission no source is queried", func(t *testing.T) {
		serv, err := testService(t, permission.StaticPrompter{Answer: permission.AnswerDeny})
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		if _, err = serv.RequestPermission(t.Context()); err != nil {
			t.Fatalf("failed to request permission: %s", err)
		}
		source := &countingSource{}
		testReplaceSources(t, serv, source)
		if _, err = serv.Locate(t.Context()); !errors.Is(err, ErrPermissionNotGranted) {
			t.Errorf("expected error to be %s, got %v", ErrPermissionNotGranted, err)
		}
		if calls := source.calls.Load(); calls != 0 {
			t.Errorf("expected no source call, got %d", calls)
		}
	})
}

func TestService_ResetPermission(t *testing.T) {
	prompter := &countingPrompter{answer: permission.AnswerDenyDontAskAgain}
	serv, err := testService(t, prompter)
	if err != nil {
		t.Fatalf("failed to create service: %s", err)
	}
	for range 2 {
		if _, err = serv.gate.Request(t.Context()); err != nil {
			t.Fatalf("failed to request permission: %s", err)
		}
	}
	if prompter.prompts != 1 {
		t.Fatalf("expected the dialog to be suppressed after don't ask again, got %d prompts", prompter.prompts)
	}
	if got := serv.PermissionStatus(t.Context()); got != permission.StatusDenied {
		t.Fatalf("expected status to be denied, got %s", got)
	}

	if err = serv.ResetPermission(t.Context()); err != nil {
		t.Fatalf("failed to reset permission: %s", err)
	}
	prompter.answer = permission.AnswerAllow
	status, err := serv.gate.Request(t.Context())
	if err != nil {
		t.Fatalf("failed to request permission: %s", err)
	}
	if status != permission.StatusGranted {
		t.Errorf("expected status to be granted after reset, got %s", status)
	}
	if prompter.prompts != 2 {
		t.Errorf("expected the dialog to be shown again after reset, got %d prompts", prompter.prompts)
	}
}

func TestService_HandleSignals(t *testing.T) {
	t.Run("USR1 signal is handled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		serv, err := testService(t, nil)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		sigChan := make(chan os.Signal, 1)
		serv.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
		go func() {
			defer serv.SignalSrc.Stop(sigChan)
			serv.HandleSignals(ctx, sigChan)
		}()

		sigChan <- syscall.SIGUSR1
		time.Sleep(time.Millisecond * 100)
		serv.displayAltLock.RLock()
		defer serv.displayAltLock.RUnlock()
		if !serv.displayAltText {
			t.Errorf("expected alt mode to be enabled, got %t", serv.displayAltText)
		}
		cancel()
	})
	t.Run("USR2 signal is handled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		serv, err := testService(t, nil)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		buf := &syncBuffer{buf: bytes.NewBuffer(nil)}
		serv.logger = logger.NewLogger(slog.LevelInfo, buf)
		sigChan := make(chan os.Signal, 1)
		serv.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
		go func() {
			defer serv.SignalSrc.Stop(sigChan)
			serv.HandleSignals(ctx, sigChan)
		}()

		sigChan <- syscall.SIGUSR2
		time.Sleep(time.Millisecond * 100)
		wantLog := `msg="currently resolved address" address="Fetching address..." latitude=0 longitude=0`
		if !strings.Contains(buf.String(), wantLog) {
			t.Errorf("expected log to contain %q, got %q", wantLog, buf.String())
		}
		cancel()
		time.Sleep(time.Millisecond * 100)
	})
}

func testConfLang(t *testing.T) (*config.Config, *spreak.Localizer) {
	t.Helper()
	conf, err := config.New()
	if err != nil {
		t.Fatalf("failed to create config: %s", err)
	}
	conf.GeoLocation.File = "../../testdata/geolocation"
	conf.GeoLocation.DisableGPSD = true
	conf.GeoLocation.DisableGeoIP = true
	conf.GeoLocation.DisableGeoAPI = true
	conf.GeoLocation.DisableICHNAEA = true
	conf.GeoLocation.DisableCitynameFile = true

	lang, err := i18n.New("en")
	if err != nil {
		t.Fatalf("failed to create i18n provider: %s", err)
	}
	return conf, lang
}

func testService(t *testing.T, prompter permission.Prompter) (*Service, error) {
	t.Helper()
	conf, lang := testConfLang(t)
	serv, err := New(conf, testLogger(), lang, prompter)
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { _ = serv.Close() })
	return serv, nil
}

// testRunService returns a service resolving addresses with mockGeocoder and writing its
// output into the returned buffer.
func testRunService(t *testing.T, prompter permission.Prompter) (*Service, *syncBuffer) {
	t.Helper()
	serv, err := testService(t, prompter)
	if err != nil {
		t.Fatalf("failed to create service: %s", err)
	}
	serv.resolver, err = geocode.NewResolver(&mockGeocoder{}, serv.logger, serv.t)
	if err != nil {
		t.Fatalf("failed to create resolver: %s", err)
	}
	serv.screen, err = screen.New(serv.gate, serv.acquirer, serv.resolver, screen.DefaultOptions(), serv.logger)
	if err != nil {
		t.Fatalf("failed to create screen: %s", err)
	}
	buf := &syncBuffer{buf: bytes.NewBuffer(nil)}
	serv.output = buf
	serv.input = nil
	return serv, buf
}

func testGrantedService(t *testing.T) *Service {
	t.Helper()
	serv, err := testService(t, permission.StaticPrompter{Answer: permission.AnswerAllow})
	if err != nil {
		t.Fatalf("failed to create service: %s", err)
	}
	if status, err := serv.RequestPermission(t.Context()); err != nil || status != permission.StatusGranted {
		t.Fatalf("failed to grant permission: %s (%v)", status, err)
	}
	return serv
}

// testReplaceSources rebuilds the location stack of serv on top of sources.
func testReplaceSources(t *testing.T, serv *Service, sources ...fused.Source) {
	t.Helper()
	client, err := fused.NewClient(serv.bus, sources, serv.config.GeoLocation.RequestTimeout, serv.logger)
	if err != nil {
		t.Fatalf("failed to create location client: %s", err)
	}
	serv.tracker = fused.NewTracker(serv.bus, sources, serv.config.GeoLocation.PollInterval, serv.logger)
	serv.acquirer = location.NewAcquirer(client, serv.logger)
	serv.screen, err = screen.New(serv.gate, serv.acquirer, serv.resolver, screen.DefaultOptions(), serv.logger)
	if err != nil {
		t.Fatalf("failed to create screen: %s", err)
	}
}

func testLogger() *logger.Logger {
	return logger.NewLogger(slog.LevelError, io.Discard)
}

func outputLines(t *testing.T, out string) []outputData {
	t.Helper()
	var lines []outputData
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var line outputData
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("failed to unmarshal JSON line %q: %s", scanner.Text(), err)
		}
		lines = append(lines, line)
	}
	return lines
}

type (
	countingSource struct {
		calls atomic.Int32
	}
	countingGeocoder struct {
		calls atomic.Int32
	}
	countingPrompter struct {
		answer  permission.Answer
		prompts int
	}
	failWriter   struct{}
	mockGeocoder struct{ empty bool }
	syncBuffer   struct {
		mu  sync.Mutex
		buf *bytes.Buffer
	}
)

func (p *countingPrompter) Prompt(context.Context, []permission.Scope) (permission.Answer, error) {
	p.prompts++
	return p.answer, nil
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) Locate(context.Context) (fused.Fix, error) {
	c.calls.Add(1)
	return fused.NewFix("counting", fileLocation, 10, time.Minute), nil
}

func (c *countingGeocoder) Name() string { return "counting geocoder" }

func (c *countingGeocoder) Reverse(context.Context, geo.Coordinate, int) ([]geocode.Address, error) {
	c.calls.Add(1)
	return nil, nil
}

func (f failWriter) Write([]byte) (int, error) { return 0, fmt.Errorf("failed to write") }

func (m *mockGeocoder) Name() string {
	return "mock geocoder"
}

func (m *mockGeocoder) Reverse(_ context.Context, coord geo.Coordinate, _ int) ([]geocode.Address, error) {
	if m.empty {
		return nil, nil
	}
	return []geocode.Address{{
		Coordinate:  coord,
		DisplayName: "Test Location " + coord.String(),
	}}, nil
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
