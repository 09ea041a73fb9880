package geocode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kelvins/geocoder"

	"georisk/internal/observability"
)

// Google resolves place names through the Google Geocoding API. The
// underlying library holds its key in package state, so only one Google
// geocoder should be constructed per process.
type Google struct {
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewGoogle(apiKey string, metrics *observability.Metrics, logger *slog.Logger) *Google {
	geocoder.ApiKey = apiKey
	return &Google{metrics: metrics, logger: logger}
}

func (g *Google) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	// The library offers no context support; honour cancellation at least
	// before the call.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	addresses, err := geocoder.GeocodingReverse(geocoder.Location{
		Latitude:  lat,
		Longitude: lon,
	})
	if err != nil {
		g.metrics.UpstreamRequests.WithLabelValues("geocode", "error").Inc()
		return "", fmt.Errorf("google reverse geocode: %w", err)
	}
	g.metrics.UpstreamRequests.WithLabelValues("geocode", "ok").Inc()

	if len(addresses) == 0 {
		g.logger.Debug("reverse geocode returned no addresses", "lat", lat, "lon", lon)
		return "", nil
	}

	addr := addresses[0]
	name := joinParts(addr.City, addr.State, addr.Country)
	if name == "" {
		name = addr.FormattedAddress
	}
	return name, nil
}
