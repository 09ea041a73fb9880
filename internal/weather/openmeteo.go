package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"georisk/internal/domain"
)

// OpenMeteo fetches current conditions from Open-Meteo. It needs no API
// key, which makes it the default provider when no key is configured.
type OpenMeteo struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteo(client *http.Client) *OpenMeteo {
	return &OpenMeteo{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		client:  client,
		circuit: newCircuit("openmeteo"),
	}
}

func (p *OpenMeteo) Name() string {
	return p.name
}

func (p *OpenMeteo) Current(ctx context.Context, lat, lon float64) (domain.WeatherSnapshot, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,precipitation")
		values.Set("wind_speed_unit", "ms")
		values.Set("timeformat", "unixtime")
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return domain.WeatherSnapshot{}, upstreamErr(ctx, p.name, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Current struct {
			Time          int64   `json:"time"`
			Temperature   float64 `json:"temperature_2m"`
			Humidity      float64 `json:"relative_humidity_2m"`
			WindSpeed     float64 `json:"wind_speed_10m"`
			Precipitation float64 `json:"precipitation"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.WeatherSnapshot{}, upstreamErr(ctx, p.name, err)
	}

	ts := time.Unix(payload.Current.Time, 0).UTC()
	if payload.Current.Time == 0 {
		ts = time.Now().UTC()
	}

	return domain.WeatherSnapshot{
		Temperature: payload.Current.Temperature,
		Humidity:    payload.Current.Humidity,
		WindSpeed:   payload.Current.WindSpeed,
		Rainfall:    payload.Current.Precipitation,
		ObservedAt:  ts,
	}, nil
}
