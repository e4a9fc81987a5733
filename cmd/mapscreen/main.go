// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package main implements the mapscreen command.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/vorlif/spreak"

	"github.com/wneessen/mapscreen/internal/config"
	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/i18n"
	"github.com/wneessen/mapscreen/internal/logger"
	"github.com/wneessen/mapscreen/internal/permission"
	"github.com/wneessen/mapscreen/internal/service"
	"github.com/wneessen/mapscreen/internal/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	confPath string
	grant    bool
	deny     bool
)

var rootCmd = &cobra.Command{
	Use:           "mapscreen",
	Short:         "Map centered on the device location with tap-to-mark and reverse geocoding",
	Long:          `Shows a map centered on the current location in the terminal. Without a terminal the screen runs headless and prints one JSON line per change.`,
	Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScreen,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Show the map screen in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runScreen,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the screen headless",
	Long:  `Runs the screen without a terminal frontend. Taps ("lat,lon"), dialog answers (allow, deny, never) and retry are read from stdin.`,
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Acquire the device location once",
	Long:  `Acquires the device location once. The location permission must be granted, either recorded in the permission store or answered with --grant.`,
	Args:  cobra.NoArgs,
	RunE:  runLocate,
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode LAT,LON | LAT LON",
	Short: "Resolve a coordinate into an address line",
	Long:  `Resolves a coordinate into an address line. The location permission must be granted, either recorded in the permission store or answered with --grant.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runGeocode,
}

var permissionCmd = &cobra.Command{
	Use:   "permission",
	Short: "Inspect or reset the recorded location permission",
}

var permissionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the recorded permission status",
	Args:  cobra.NoArgs,
	RunE:  runPermissionStatus,
}

var permissionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget all recorded permission decisions",
	Args:  cobra.NoArgs,
	RunE:  runPermissionReset,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&confPath, "config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().BoolVar(&grant, "grant", false, "answer every permission dialog with allow")
	rootCmd.PersistentFlags().BoolVar(&deny, "deny", false, "answer every permission dialog with deny")
	rootCmd.MarkFlagsMutuallyExclusive("grant", "deny")

	permissionCmd.AddCommand(permissionStatusCmd, permissionResetCmd)
	rootCmd.AddCommand(runCmd, watchCmd, locateCmd, geocodeCmd, permissionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGABRT, os.Interrupt)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runScreen shows the terminal screen, or runs headless if stdout is not a terminal.
func runScreen(cmd *cobra.Command, args []string) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return runWatch(cmd, args)
	}

	conf, err := loadConfig()
	if err != nil {
		return err
	}
	logFile, err := openLogFile(conf.Log.File)
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()
	log, err := newLogger(conf, logFile)
	if err != nil {
		return err
	}
	t, err := i18n.New(conf.Locale)
	if err != nil {
		return fmt.Errorf("failed to initialize localizer: %w", err)
	}

	var dialogs <-chan permission.Dialog
	prompter := staticPrompter()
	if prompter == nil {
		channel := permission.NewChannelPrompter()
		dialogs = channel.Dialogs()
		prompter = channel
	}
	serv, err := service.New(conf, log, t, prompter)
	if err != nil {
		return fmt.Errorf("failed to initialize mapscreen service: %w", err)
	}
	defer func() {
		if cerr := serv.Close(); cerr != nil {
			log.Error("failed to release resources", logger.Err(cerr))
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go handleSignals(ctx, serv)

	log.Info(t.Get("starting mapscreen"), slog.String("version", version),
		slog.String("commit", commit), slog.String("date", date))
	screenErr := make(chan error, 1)
	go func() { screenErr <- serv.RunScreen(ctx) }()

	model := tui.New(serv.Screen(), dialogs, serv.Presenter(), t, conf.Map.CellPixels)
	err = tui.Run(ctx, model)
	cancel()
	err = errors.Join(err, <-screenErr)
	log.Info(t.Get("shutting down mapscreen"))
	return err
}

func runWatch(cmd *cobra.Command, _ []string) error {
	conf, log, t, err := setup()
	if err != nil {
		return err
	}
	serv, err := service.New(conf, log, t, staticPrompter())
	if err != nil {
		return fmt.Errorf("failed to initialize mapscreen service: %w", err)
	}
	go handleSignals(cmd.Context(), serv)

	log.Info(t.Get("starting mapscreen"), slog.String("version", version),
		slog.String("commit", commit), slog.String("date", date))
	if err = serv.Run(cmd.Context()); err != nil {
		log.Error(t.Get("failed to run mapscreen"), logger.Err(err))
		return err
	}
	log.Info(t.Get("shutting down mapscreen"))
	return nil
}

func runLocate(cmd *cobra.Command, _ []string) error {
	return withService(func(serv *service.Service) error {
		if err := requestPermission(cmd.Context(), serv); err != nil {
			return err
		}
		result, err := serv.Locate(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", result.Coordinate, result.Origin)
		return err
	})
}

func runGeocode(cmd *cobra.Command, args []string) error {
	coord, err := parseCoordinate(args)
	if err != nil {
		return err
	}
	return withService(func(serv *service.Service) error {
		if err = requestPermission(cmd.Context(), serv); err != nil {
			return err
		}
		result, err := serv.Geocode(cmd.Context(), coord)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Text)
		return err
	})
}

func runPermissionStatus(cmd *cobra.Command, _ []string) error {
	return withService(func(serv *service.Service) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), serv.PermissionStatus(cmd.Context()))
		return err
	})
}

func runPermissionReset(cmd *cobra.Command, _ []string) error {
	return withService(func(serv *service.Service) error {
		if err := serv.ResetPermission(cmd.Context()); err != nil {
			return fmt.Errorf("failed to reset permission: %w", err)
		}
		return nil
	})
}

// requestPermission answers the permission dialog with --grant or --deny. Without either flag
// only a recorded decision counts.
func requestPermission(ctx context.Context, serv *service.Service) error {
	if !grant && !deny {
		return nil
	}
	if _, err := serv.RequestPermission(ctx); err != nil {
		return fmt.Errorf("failed to request location permission: %w", err)
	}
	return nil
}

// withService runs fn with a service that never shows an interactive dialog.
func withService(fn func(*service.Service) error) error {
	conf, log, t, err := setup()
	if err != nil {
		return err
	}
	prompter := staticPrompter()
	if prompter == nil {
		prompter = permission.StaticPrompter{Answer: permission.AnswerDeny}
	}
	serv, err := service.New(conf, log, t, prompter)
	if err != nil {
		return fmt.Errorf("failed to initialize mapscreen service: %w", err)
	}
	return errors.Join(fn(serv), serv.Close())
}

func setup() (*config.Config, *logger.Logger, *spreak.Localizer, error) {
	conf, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := newLogger(conf, os.Stderr)
	if err != nil {
		return nil, nil, nil, err
	}
	t, err := i18n.New(conf.Locale)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize localizer: %w", err)
	}
	return conf, log, t, nil
}

// loadConfig reads the config file given on the command line, else the one in the user's
// config directory, else the defaults.
func loadConfig() (*config.Config, error) {
	if confPath != "" {
		conf, err := config.NewFromFile(filepath.Dir(confPath), filepath.Base(confPath))
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		return conf, nil
	}
	if path, file, ok := config.Find(); ok {
		conf, err := config.NewFromFile(path, file)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		return conf, nil
	}
	conf, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return conf, nil
}

func newLogger(conf *config.Config, output io.Writer) (*logger.Logger, error) {
	output, err := logger.WithGELF(output, conf.Log.GELFAddress)
	if err != nil {
		return nil, err
	}
	return logger.NewLogger(conf.LogLevel, output), nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

func staticPrompter() permission.Prompter {
	switch {
	case grant:
		return permission.StaticPrompter{Answer: permission.AnswerAllow}
	case deny:
		return permission.StaticPrompter{Answer: permission.AnswerDeny}
	default:
		return nil
	}
}

// parseCoordinate accepts "lat,lon" as one argument or latitude and longitude as two.
func parseCoordinate(args []string) (geo.Coordinate, error) {
	if len(args) == 2 {
		return geo.Parse(args[0] + "," + args[1])
	}
	return geo.Parse(args[0])
}

func handleSignals(ctx context.Context, serv *service.Service) {
	sigChan := make(chan os.Signal, 1)
	serv.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	defer serv.SignalSrc.Stop(sigChan)
	serv.HandleSignals(ctx, sigChan)
}
