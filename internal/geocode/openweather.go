// Package geocode resolves coordinates to human-readable place names.
// Lookups are best effort; an empty name means the upstream had no match
// and callers fall back to a coordinate label.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"georisk/internal/observability"
)

// OpenWeather resolves place names through the OpenWeatherMap reverse
// geocoding API.
type OpenWeather struct {
	apiKey  string
	baseURL string
	client  *http.Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewOpenWeather(client *http.Client, apiKey string, metrics *observability.Metrics, logger *slog.Logger) *OpenWeather {
	return &OpenWeather{
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/geo/1.0/reverse",
		client:  client,
		metrics: metrics,
		logger:  logger,
	}
}

func (g *OpenWeather) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("limit", "1")
	params.Set("appid", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.metrics.UpstreamRequests.WithLabelValues("geocode", "error").Inc()
		return "", fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.metrics.UpstreamRequests.WithLabelValues("geocode", "error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("geocoding API error: status %d: %s", resp.StatusCode, body)
	}

	var places []struct {
		Name    string `json:"name"`
		State   string `json:"state"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		g.metrics.UpstreamRequests.WithLabelValues("geocode", "error").Inc()
		return "", fmt.Errorf("decode response: %w", err)
	}
	g.metrics.UpstreamRequests.WithLabelValues("geocode", "ok").Inc()

	if len(places) == 0 {
		g.logger.Debug("reverse geocode returned no places", "lat", lat, "lon", lon)
		return "", nil
	}

	return joinParts(places[0].Name, places[0].State, places[0].Country), nil
}

// joinParts assembles a "Name, State, Country" label, skipping parts the
// upstream left blank.
func joinParts(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
