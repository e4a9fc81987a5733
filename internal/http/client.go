// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package http provides the JSON client shared by the geocoders and positioning sources.
package http

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/wneessen/mapscreen/internal/logger"
)

const (
	// DefaultTimeout is the default timeout value for the HTTPClient
	DefaultTimeout = time.Second * 10

	instrumentationName = "github.com/wneessen/mapscreen/internal/http"
)

var (
	// version is the version of the application (will be set at build time)
	version = "dev"
	// UserAgent is the User-Agent that the HTTP client sends with API requests. Nominatim's usage
	// policy requires an identifying User-Agent.
	UserAgent = fmt.Sprintf("Mozilla/5.0 (%s; %s) mapscreen/%s (+https://github.com/wneessen/mapscreen/)",
		runtime.GOOS,
		runtime.GOARCH,
		version,
	)

	ErrNonPointerTarget = errors.New("target must be a non-nil pointer")
	ErrHTTPStatus       = errors.New("unexpected HTTP status code")
)

// Client is a type wrapper for the Go stdlib http.Client and the logger. A throttled client
// spaces its requests, which is shared by every user of the same upstream.
type Client struct {
	*http.Client
	logger   *logger.Logger
	requests metric.Int64Counter

	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// New returns a new HTTP client
func New(log *logger.Logger) *Client {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	httpTransport := &http.Transport{TLSClientConfig: tlsConfig}
	httpClient := &http.Client{
		Timeout:   DefaultTimeout,
		Transport: httpTransport,
	}
	requests, err := otel.Meter(instrumentationName).Int64Counter(
		"mapscreen.http.requests",
		metric.WithDescription("Upstream API requests by host and outcome"),
	)
	if err != nil {
		requests = noop.Int64Counter{}
	}
	return &Client{Client: httpClient, logger: log, requests: requests}
}

// Throttle spaces requests at least interval apart and returns the client. Nominatim's usage
// policy allows a single request per second.
func (h *Client) Throttle(interval time.Duration) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interval = interval
	return h
}

// Get performs a HTTP GET request for the given URL and json-unmarshals the response
// into target
func (h *Client) Get(ctx context.Context, endpoint string, target any, query url.Values, headers map[string]string) (int, error) {
	return h.GetWithTimeout(ctx, endpoint, target, query, headers, DefaultTimeout)
}

// GetWithTimeout performs a HTTP GET request for the given URL and timeout and JSON-unmarshals
// the response into target
func (h *Client) GetWithTimeout(ctx context.Context, endpoint string, target any, query url.Values,
	headers map[string]string, timeout time.Duration,
) (int, error) {
	return h.do(ctx, http.MethodGet, endpoint, target, query, nil, headers, timeout)
}

// Post performs a HTTP POST request for the given URL and json-unmarshals the response
// into target
func (h *Client) Post(ctx context.Context, endpoint string, target any, body io.Reader, headers map[string]string) (int, error) {
	return h.PostWithTimeout(ctx, endpoint, target, body, headers, DefaultTimeout)
}

// PostWithTimeout performs a HTTP POST request for the given URL and timeout and JSON-unmarshals
// the response into target
func (h *Client) PostWithTimeout(ctx context.Context, endpoint string, target any, body io.Reader,
	headers map[string]string, timeout time.Duration,
) (int, error) {
	return h.do(ctx, http.MethodPost, endpoint, target, nil, body, headers, timeout)
}

func (h *Client) do(ctx context.Context, method, endpoint string, target any, query url.Values, body io.Reader,
	headers map[string]string, timeout time.Duration,
) (int, error) {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return 0, ErrNonPointerTarget
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return 0, fmt.Errorf("failed to parse URL: %w", err)
	}
	if err = h.wait(ctx); err != nil {
		return 0, err
	}
	if len(query) > 0 {
		reqURL.RawQuery = query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return 0, fmt.Errorf("failed create new HTTP request with context: %w", err)
	}
	request.Header.Set("User-Agent", UserAgent)
	for k, v := range headers {
		request.Header.Set(k, v)
	}

	start := time.Now()
	response, err := h.Do(request)
	if err != nil {
		h.record(ctx, method, reqURL.Host, "error", 0, start)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	if response == nil {
		h.record(ctx, method, reqURL.Host, "error", 0, start)
		return 0, errors.New("nil response received")
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			h.logger.Error("failed to close HTTP request body", logger.Err(err))
		}
	}(response.Body)

	if response.StatusCode >= http.StatusBadRequest {
		h.record(ctx, method, reqURL.Host, "status", response.StatusCode, start)
		return response.StatusCode, fmt.Errorf("%w: %d", ErrHTTPStatus, response.StatusCode)
	}
	if err = json.NewDecoder(response.Body).Decode(target); err != nil {
		h.record(ctx, method, reqURL.Host, "decode", response.StatusCode, start)
		return response.StatusCode, fmt.Errorf("failed to decode JSON: %w", err)
	}

	h.record(ctx, method, reqURL.Host, "ok", response.StatusCode, start)
	return response.StatusCode, nil
}

// wait blocks until the client's next request slot. Slots are reserved under the lock, so
// concurrent callers queue up instead of firing together.
func (h *Client) wait(ctx context.Context) error {
	h.mu.Lock()
	if h.interval <= 0 {
		h.mu.Unlock()
		return nil
	}
	now := time.Now()
	slot := h.next
	if slot.Before(now) {
		slot = now
	}
	h.next = slot.Add(h.interval)
	h.mu.Unlock()

	delay := slot.Sub(now)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (h *Client) record(ctx context.Context, method, host, outcome string, status int, start time.Time) {
	h.requests.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("host", host),
		attribute.String("outcome", outcome),
	))
	if h.logger != nil {
		h.logger.Debug("upstream request finished", slog.String("method", method),
			slog.String("host", host), slog.String("outcome", outcome), slog.Int("status", status),
			slog.Duration("duration", time.Since(start)))
	}
}
