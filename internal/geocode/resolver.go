// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wneessen/mapscreen/internal/geo"
	"github.com/wneessen/mapscreen/internal/logger"
)

const instrumentationName = "github.com/wneessen/mapscreen/internal/geocode"

// Messages shown instead of an address. They double as msgids of the translation catalogue.
const (
	MsgAddressNotFound = "Address not found"
	MsgUnableToGet     = "Unable to get address: %s"
)

// Outcome classifies a resolved address.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
)

// Translator localizes the placeholder messages. *spreak.Localizer satisfies it.
type Translator interface {
	Get(msgID string) string
	Getf(msgID string, vars ...interface{}) string
}

// Result is a resolved address line.
type Result struct {
	Seq     uint64
	Text    string
	Outcome Outcome
}

// Resolver turns a coordinate into exactly one display string. It is safe for concurrent use
// and does not de-duplicate requests.
type Resolver struct {
	coder      Geocoder
	logger     *logger.Logger
	translator Translator
	seq        atomic.Uint64
	results    metric.Int64Counter
}

// NewResolver returns a Resolver querying coder. A nil translator keeps the English messages.
func NewResolver(coder Geocoder, log *logger.Logger, translator Translator) (*Resolver, error) {
	if coder == nil {
		return nil, fmt.Errorf("geocoder is required")
	}
	results, err := otel.Meter(instrumentationName).Int64Counter(
		"mapscreen.geocode.results",
		metric.WithDescription("Reverse geocoding results by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating geocode results counter: %w", err)
	}
	return &Resolver{
		coder:      coder,
		logger:     log,
		translator: translator,
		results:    results,
	}, nil
}

// Resolve returns the formatted address of the best match for coord, "Address not found" if
// there is none, or "Unable to get address: <reason>" if the lookup failed.
func (r *Resolver) Resolve(ctx context.Context, coord geo.Coordinate) string {
	return r.ResolveResult(ctx, coord).Text
}

// ResolveResult is Resolve with the request sequence number and outcome attached.
func (r *Resolver) ResolveResult(ctx context.Context, coord geo.Coordinate) Result {
	seq := r.seq.Add(1)
	addrs, err := r.reverse(ctx, coord)

	var result Result
	switch {
	case err != nil:
		r.logger.Warn("reverse geocoding failed", slog.Uint64("seq", seq),
			slog.String("coordinate", coord.String()), logger.Err(err))
		result = Result{Text: r.unableToGet(err), Outcome: OutcomeError}
	case len(addrs) == 0 || addrs[0].FormattedLine() == "":
		result = Result{Text: r.notFound(), Outcome: OutcomeNotFound}
	default:
		result = Result{Text: addrs[0].FormattedLine(), Outcome: OutcomeFound}
	}
	result.Seq = seq

	r.logger.Debug("address resolved", slog.Uint64("seq", seq), slog.String("coordinate", coord.String()),
		slog.String("outcome", string(result.Outcome)))
	r.results.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(result.Outcome))))
	return result
}

// reverse queries the geocoder for the single best match and turns a panic into an error.
func (r *Resolver) reverse(ctx context.Context, coord geo.Coordinate) (addrs []Address, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()
	return r.coder.Reverse(ctx, coord, 1)
}

func (r *Resolver) notFound() string {
	if r.translator == nil {
		return MsgAddressNotFound
	}
	return r.translator.Get(MsgAddressNotFound)
}

func (r *Resolver) unableToGet(err error) string {
	if r.translator == nil {
		return fmt.Sprintf(MsgUnableToGet, err.Error())
	}
	return r.translator.Getf(MsgUnableToGet, err.Error())
}
