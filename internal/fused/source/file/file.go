// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package file provides a positioning source reading a static coordinate from a local file.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wneessen/mapscreen/internal/fused"
	"github.com/wneessen/mapscreen/internal/geo"
)

const (
	name = "geolocation_file"
	ttl  = time.Hour
	// accuracy treats a configured location as the most accurate data available.
	accuracy = 5
)

var ErrNoCoordinates = errors.New("no valid coordinates found in geolocation file")

// Source reads the first valid "lat,lon" line of a geolocation file. Lines starting with #
// are ignored.
type Source struct {
	name   string
	path   string
	ttl    time.Duration
	readFn func() (geo.Coordinate, error)
}

// New returns a Source for the file at path.
func New(path string) *Source {
	source := &Source{
		name: name,
		path: path,
		ttl:  ttl,
	}
	source.readFn = source.readFile
	return source
}

// Name returns the name of the Source.
func (s *Source) Name() string {
	return s.name
}

// Locate reads the file and returns its coordinate as a fix.
func (s *Source) Locate(ctx context.Context) (fused.Fix, error) {
	if err := ctx.Err(); err != nil {
		return fused.Fix{}, err
	}
	coord, err := s.readFn()
	if err != nil {
		return fused.Fix{}, err
	}
	return fused.NewFix(s.name, coord, accuracy, s.ttl), nil
}

func (s *Source) readFile() (geo.Coordinate, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to read geolocation file %q: %w", s.path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		coord, err := geo.Parse(line)
		if err != nil {
			continue
		}
		return coord, nil
	}
	return geo.Coordinate{}, ErrNoCoordinates
}
