// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package gpspoll asks a gpsd daemon for a single positioned TPV report.
package gpspoll

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/wneessen/mapscreen/internal/geo"
)

// Mode is the fix mode gpsd reports in a TPV report.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeNoFix
	Mode2D
	Mode3D
)

const (
	accuracy3D   = 10 // meters, consumer receiver in open sky
	accuracy2D   = 25
	watchTimeout = time.Second * 2
	watchEnable  = `?WATCH={"enable":true,"json":true}`
	watchDisable = `?WATCH={"enable":false}`
)

var (
	// ErrNoTPV is returned if gpsd ended the watch without sending a TPV report.
	ErrNoTPV = errors.New("no TPV report received from gpsd")

	// ErrNoFix is returned if gpsd only sent TPV reports without a position.
	ErrNoFix = errors.New("gpsd has no 2D fix")
)

// Client polls gpsd for one fix per call.
type Client struct {
	addr    string
	timeout time.Duration
}

// Fix is the position of a TPV report with its horizontal accuracy in meters.
type Fix struct {
	Position geo.Coordinate
	Accuracy float64
	Mode     Mode
}

type report struct {
	Class   string  `json:"class"`
	Message string  `json:"message"`
	Mode    Mode    `json:"mode"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Epx     float64 `json:"epx"`
	Epy     float64 `json:"epy"`
	Eph     float64 `json:"eph"`
}

// New returns a Client for the gpsd instance at host and port.
func New(host, port string) *Client {
	return &Client{
		addr:    net.JoinHostPort(host, port),
		timeout: watchTimeout,
	}
}

// Addr returns the gpsd address the client dials.
func (c *Client) Addr() string {
	return c.addr
}

// Poll enables watch mode and returns the first TPV report carrying at least a 2D fix.
// Reports without a position are skipped until the context deadline (or a two second
// watch timeout) ends the watch.
func (c *Client) Poll(ctx context.Context) (Fix, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return Fix{}, fmt.Errorf("gpspoll: dial gpsd: %w", err)
	}
	defer func() {
		_, _ = fmt.Fprintln(conn, watchDisable)
		_ = conn.Close()
	}()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if _, err = fmt.Fprintln(conn, watchEnable); err != nil {
		return Fix{}, fmt.Errorf("gpspoll: enable watch: %w", err)
	}

	sawTPV := false
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return Fix{}, ctx.Err()
		default:
		}

		var rep report
		if err = json.Unmarshal(scanner.Bytes(), &rep); err != nil {
			continue
		}
		switch rep.Class {
		case "ERROR":
			return Fix{}, fmt.Errorf("gpspoll: gpsd error: %s", rep.Message)
		case "TPV":
			sawTPV = true
			if fix := rep.fix(); fix.Positioned() {
				return fix, nil
			}
		}
	}

	err = scanner.Err()
	switch {
	case sawTPV:
		return Fix{}, ErrNoFix
	case ctx.Err() != nil:
		return Fix{}, ctx.Err()
	case err != nil:
		return Fix{}, fmt.Errorf("gpspoll: read gpsd reports: %w", err)
	default:
		return Fix{}, ErrNoTPV
	}
}

// Positioned reports whether the fix has at least a 2D position.
func (f Fix) Positioned() bool {
	return f.Mode >= Mode2D
}

func (m Mode) String() string {
	switch m {
	case ModeNoFix:
		return "no fix"
	case Mode2D:
		return "2D"
	case Mode3D:
		return "3D"
	default:
		return "unknown"
	}
}

func (r report) fix() Fix {
	return Fix{
		Position: geo.Coordinate{Lat: r.Lat, Lon: r.Lon},
		Accuracy: r.accuracy(),
		Mode:     r.Mode,
	}
}

// accuracy prefers gpsd's horizontal estimate, then the combined lat/lon errors, then a
// typical value for the fix mode.
func (r report) accuracy() float64 {
	switch {
	case r.Eph > 0:
		return r.Eph
	case r.Epx > 0 && r.Epy > 0:
		return math.Hypot(r.Epx, r.Epy)
	case r.Mode == Mode3D:
		return accuracy3D
	default:
		return accuracy2D
	}
}
