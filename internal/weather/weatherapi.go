package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"georisk/internal/domain"
)

// WeatherAPI fetches current conditions from WeatherAPI.com.
type WeatherAPI struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPI(client *http.Client, apiKey string) *WeatherAPI {
	return &WeatherAPI{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/current.json",
		client:  client,
		circuit: newCircuit("weatherapi"),
	}
}

func (p *WeatherAPI) Name() string {
	return p.name
}

func (p *WeatherAPI) Current(ctx context.Context, lat, lon float64) (domain.WeatherSnapshot, error) {
	if p.apiKey == "" {
		return domain.WeatherSnapshot{}, errors.New("weatherapi key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", fmt.Sprintf("%f,%f", lat, lon))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return domain.WeatherSnapshot{}, upstreamErr(ctx, p.name, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Location struct {
			LocaltimeEpoch int64 `json:"localtime_epoch"`
		} `json:"location"`
		Current struct {
			TempC    float64 `json:"temp_c"`
			Humidity float64 `json:"humidity"`
			WindKph  float64 `json:"wind_kph"`
			PrecipMm float64 `json:"precip_mm"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.WeatherSnapshot{}, upstreamErr(ctx, p.name, err)
	}

	ts := time.Unix(payload.Location.LocaltimeEpoch, 0).UTC()
	if payload.Location.LocaltimeEpoch == 0 {
		ts = time.Now().UTC()
	}

	return domain.WeatherSnapshot{
		Temperature: payload.Current.TempC,
		Humidity:    payload.Current.Humidity,
		// WeatherAPI reports wind in kph.
		WindSpeed:  payload.Current.WindKph / 3.6,
		Rainfall:   payload.Current.PrecipMm,
		ObservedAt: ts,
	}, nil
}
