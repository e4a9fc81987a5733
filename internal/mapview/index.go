// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package mapview

import (
	"slices"
	"sync"

	"github.com/dhconnelly/rtreego"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50

	// pointTolerance is the extent in degrees given to a marker's bounding box.
	pointTolerance = 1e-9
)

type spatialMarker struct {
	marker Marker
	rect   *rtreego.Rect
}

func (s *spatialMarker) Bounds() *rtreego.Rect {
	return s.rect
}

// markerIndex is an R-tree over every marker added to a MapView and its copies. Copies
// filter the results down to their own markers.
type markerIndex struct {
	mu   sync.RWMutex
	tree *rtreego.Rtree
}

func newMarkerIndex() *markerIndex {
	return &markerIndex{tree: rtreego.NewTree(dimensions, minChildren, maxChildren)}
}

func (i *markerIndex) insert(m Marker) {
	point := rtreego.Point{clampLatitude(m.Position.Lat), m.Position.Lon}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tree.Insert(&spatialMarker{marker: m, rect: point.ToRect(pointTolerance)})
}

// search returns the markers intersecting the box, ordered by index.
func (i *markerIndex) search(box Box) []Marker {
	rect, err := rtreego.NewRect(
		rtreego.Point{box.SouthWest.Lat - pointTolerance, box.SouthWest.Lon - pointTolerance},
		[]float64{
			box.NorthEast.Lat - box.SouthWest.Lat + 2*pointTolerance,
			box.NorthEast.Lon - box.SouthWest.Lon + 2*pointTolerance,
		},
	)
	if err != nil {
		return nil
	}

	i.mu.RLock()
	results := i.tree.SearchIntersect(rect)
	i.mu.RUnlock()

	markers := make([]Marker, 0, len(results))
	for _, result := range results {
		item, ok := result.(*spatialMarker)
		if !ok {
			continue
		}
		markers = append(markers, item.marker)
	}
	slices.SortFunc(markers, func(a, b Marker) int {
		return a.Index - b.Index
	})
	return markers
}
