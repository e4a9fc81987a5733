// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Graylog2/go-gelf/gelf"
)

// Logger wraps a slog.Logger so that packages depend on a single logging type.
type Logger struct {
	*slog.Logger
}

// New returns a Logger that writes text records to stderr.
func New(level slog.Level) *Logger {
	return NewLogger(level, os.Stderr)
}

// NewLogger returns a Logger that writes text records of the given level to output.
func NewLogger(level slog.Level, output io.Writer) *Logger {
	return &Logger{slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))}
}

// WithGELF returns a writer that tees every record written to output into a GELF sink
// at the given address (host:port, UDP).
func WithGELF(output io.Writer, address string) (io.Writer, error) {
	if address == "" {
		return output, nil
	}
	writer, err := gelf.NewWriter(address)
	if err != nil {
		return output, fmt.Errorf("failed to create GELF writer: %w", err)
	}
	return io.MultiWriter(output, writer), nil
}

// Err returns an slog attribute for the given error.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
