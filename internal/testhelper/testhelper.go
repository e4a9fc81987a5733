// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package testhelper provides helpers shared by the package tests.
package testhelper

import (
	"net/http"
	"os"
	"strings"
	"testing"
)

// TestOnlineAPIURL is a reachable endpoint used by tests that need real network I/O.
const TestOnlineAPIURL = "https://nominatim.openstreetmap.org/status?format=json"

// MockRoundTripper is a http.RoundTripper that delegates every request to Fn.
type MockRoundTripper struct {
	Fn func(*http.Request) (*http.Response, error)
}

// RoundTrip implements the http.RoundTripper interface.
func (m MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.Fn(req)
}

// PerformIntegrationTests skips the calling test unless PERFORM_INTEGRATION_TESTS is set.
func PerformIntegrationTests(t *testing.T) {
	t.Helper()
	if val := os.Getenv("PERFORM_INTEGRATION_TESTS"); !strings.EqualFold(val, "true") {
		t.Skip("skipping integration test, set PERFORM_INTEGRATION_TESTS=true to enable")
	}
}

// FileResponse returns a round trip function that answers every request with the contents
// of the given file and status code.
func FileResponse(t *testing.T, path string, status int) func(*http.Request) (*http.Response, error) {
	t.Helper()
	return func(*http.Request) (*http.Response, error) {
		data, err := os.Open(path)
		if err != nil {
			t.Fatalf("failed to open JSON response file: %s", err)
		}
		return &http.Response{
			StatusCode: status,
			Body:       data,
			Header:     make(http.Header),
		}, nil
	}
}
