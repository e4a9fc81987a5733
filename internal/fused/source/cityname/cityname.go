// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package cityname provides a positioning source that resolves a place name from a local
// file into a coordinate.
package cityname

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
	name = "cityname_file"
	ttl  = time.Hour * 12

	// accuracy is the radius of a typical city.
	accuracy = 15000
)

var ErrNoCoordinates = errors.New("no resolvable place name found in cityname file")

// Searcher resolves a place name into a coordinate.
type Searcher interface {
	Search(ctx context.Context, query string) (geo.Coordinate, error)
}

// Source reads place names like "Berlin, Germany" from a file and reports the coordinate of
// the first one the Searcher resolves. Lines starting with # are ignored.
type Source struct {
	name     string
	path     string
	ttl      time.Duration
	searcher Searcher
}

// New returns a Source for the file at path.
func New(path string, searcher Searcher) (*Source, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	return &Source{
		name:     name,
		path:     path,
		ttl:      ttl,
		searcher: searcher,
	}, nil
}

func (s *Source) Name() string {
	return s.name
}

// Locate resolves the file's place name and returns its coordinate as a fix.
func (s *Source) Locate(ctx context.Context) (fused.Fix, error) {
	coord, err := s.readFile(ctx)
	if err != nil {
		return fused.Fix{}, err
	}
	return fused.NewFix(s.name, coord, accuracy, s.ttl), nil
}

func (s *Source) readFile(ctx context.Context) (geo.Coordinate, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to read cityname file %q: %w", s.path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		coord, err := s.searcher.Search(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return geo.Coordinate{}, ctx.Err()
			}
			continue
		}
		return coord, nil
	}
	return geo.Coordinate{}, ErrNoCoordinates
}
