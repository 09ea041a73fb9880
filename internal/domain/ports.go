package domain

import "context"

// WeatherProvider abstracts a current-weather data source
// (e.g. OpenWeatherMap, Open-Meteo, WeatherAPI).
type WeatherProvider interface {
	Name() string
	Current(ctx context.Context, lat, lon float64) (WeatherSnapshot, error)
}

// Geocoder resolves coordinates to a human-readable place name.
// Implementations return an empty string (not an error) when the provider
// simply has no result for the point.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// RiskAssessor turns a weather snapshot into a qualitative risk assessment.
type RiskAssessor interface {
	Assess(ctx context.Context, snapshot WeatherSnapshot) (RiskAssessment, error)
}

// Store is the contract any persistence backend (in-memory, object storage)
// must satisfy. Records are write-once; sessions are append-only.
type Store interface {
	SaveRecord(ctx context.Context, record AnalysisRecord) error
	ListRecords(ctx context.Context) ([]AnalysisRecord, error)
	GetRecord(ctx context.Context, id string) (AnalysisRecord, error)

	GetSession(ctx context.Context, id string) (ChatSession, error)
	AppendToSession(ctx context.Context, id string, entry ChatEntry) error
	DeleteSession(ctx context.Context, id string) error
}
