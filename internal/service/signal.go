// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// stdLibSignalSource is the production implementation.
type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleSignals toggles the alternative output on SIGUSR1 and logs the current location and
// address on SIGUSR2.
func (s *Service) HandleSignals(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				s.toggleAltText()
			case syscall.SIGUSR2:
				state := s.screen.State()
				center := state.Map.Target().Center
				s.logger.Info("currently resolved address", slog.String("address", state.Address),
					slog.Float64("latitude", state.Location.Coordinate.Lat),
					slog.Float64("longitude", state.Location.Coordinate.Lon),
					slog.String("camera", center.String()), slog.Int("markers", len(state.Map.Markers())))
			}
		}
	}
}
