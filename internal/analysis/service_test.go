package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"georisk/internal/domain"
	"georisk/internal/observability"
	"georisk/internal/store"
)

// --- fakes ---

type fakeProvider struct {
	snap  domain.WeatherSnapshot
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Current(_ context.Context, _, _ float64) (domain.WeatherSnapshot, error) {
	f.calls++
	return f.snap, f.err
}

type fakeGeocoder struct {
	name  string
	err   error
	calls int
}

func (f *fakeGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (string, error) {
	f.calls++
	return f.name, f.err
}

type fakeAssessor struct {
	assessment domain.RiskAssessment
	err        error
	gotSnap    domain.WeatherSnapshot
}

func (f *fakeAssessor) Assess(_ context.Context, snap domain.WeatherSnapshot) (domain.RiskAssessment, error) {
	f.gotSnap = snap
	return f.assessment, f.err
}

type failingStore struct {
	domain.Store
}

func (f *failingStore) SaveRecord(context.Context, domain.AnalysisRecord) error {
	return domain.ErrStorageUnavailable
}

// --- helpers ---

type fixture struct {
	provider *fakeProvider
	geocoder *fakeGeocoder
	assessor *fakeAssessor
	store    domain.Store
}

func newFixture() *fixture {
	return &fixture{
		provider: &fakeProvider{snap: domain.WeatherSnapshot{
			Temperature: 32,
			Humidity:    80,
			WindSpeed:   5,
			Rainfall:    50,
			ObservedAt:  time.Now().UTC(),
		}},
		geocoder: &fakeGeocoder{name: "Mumbai, Maharashtra, IN"},
		assessor: &fakeAssessor{assessment: domain.RiskAssessment{
			Score:          72,
			Level:          domain.RiskLevelHigh,
			Recommendation: "Evacuate low-lying areas",
		}},
		store: store.NewMemory(),
	}
}

func (f *fixture) service() *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(f.provider, f.geocoder, f.assessor, f.store, observability.NewMetricsForTesting(), logger)
}

// --- tests ---

func TestAnalyze(t *testing.T) {
	now := time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	defer domain.SetClock(nil)

	f := newFixture()
	record, err := f.service().Analyze(context.Background(), 20.5, 78.9)
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "Mumbai, Maharashtra, IN", record.LocationName)
	assert.Equal(t, 20.5, record.Latitude)
	assert.Equal(t, 78.9, record.Longitude)
	assert.Equal(t, 32.0, record.Temperature)
	assert.Equal(t, 80.0, record.Humidity)
	assert.Equal(t, 5.0, record.WindSpeed)
	assert.Equal(t, 50.0, record.Rainfall)
	assert.Equal(t, 72, record.RiskScore)
	assert.Equal(t, domain.RiskLevelHigh, record.RiskLevel)
	assert.Equal(t, "Evacuate low-lying areas", record.Recommendation)
	assert.Equal(t, now, record.Timestamp)

	assert.Equal(t, f.provider.snap, f.assessor.gotSnap, "assessor must see the fetched snapshot")

	stored, err := f.store.GetRecord(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record, stored)
}

func TestAnalyzeInvalidCoordinates(t *testing.T) {
	f := newFixture()

	_, err := f.service().Analyze(context.Background(), 91, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinates)
	assert.Zero(t, f.provider.calls, "no upstream call for invalid input")
	assert.Zero(t, f.geocoder.calls)
}

func TestAnalyzeGeocodeDegradation(t *testing.T) {
	tests := []struct {
		name     string
		geocoder *fakeGeocoder
	}{
		{name: "geocoder error", geocoder: &fakeGeocoder{err: errors.New("boom")}},
		{name: "no match", geocoder: &fakeGeocoder{name: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.geocoder = tt.geocoder

			record, err := f.service().Analyze(context.Background(), 20.5, 78.9)
			require.NoError(t, err, "geocode trouble must not fail the analysis")
			assert.Equal(t, "Location 20.500, 78.900", record.LocationName)

			_, err = f.store.GetRecord(context.Background(), record.ID)
			assert.NoError(t, err, "degraded record is still persisted")
		})
	}
}

func TestAnalyzeWeatherFailure(t *testing.T) {
	f := newFixture()
	f.provider = &fakeProvider{err: domain.ErrUpstreamUnavailable}

	_, err := f.service().Analyze(context.Background(), 20.5, 78.9)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	list, listErr := f.store.ListRecords(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, list, "nothing may be persisted for a failed analysis")
}

func TestAnalyzeAssessorFailure(t *testing.T) {
	f := newFixture()
	f.assessor = &fakeAssessor{err: domain.ErrMalformedResponse}

	_, err := f.service().Analyze(context.Background(), 20.5, 78.9)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)

	list, listErr := f.store.ListRecords(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, list)
}

func TestAnalyzeSaveFailureStillReturnsRecord(t *testing.T) {
	f := newFixture()
	f.store = &failingStore{Store: store.NewMemory()}

	record, err := f.service().Analyze(context.Background(), 20.5, 78.9)
	require.NoError(t, err, "a down backend must not block the response")
	assert.Equal(t, 72, record.RiskScore)
}

func TestPoints(t *testing.T) {
	f := newFixture()
	svc := f.service()

	r1, err := svc.Analyze(context.Background(), 20.5, 78.9)
	require.NoError(t, err)
	r2, err := svc.Analyze(context.Background(), 59.91, 10.75)
	require.NoError(t, err)

	points, err := svc.Points(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, r1.ID, points[0].ID)
	assert.Equal(t, r2.ID, points[1].ID)
	assert.Equal(t, r1.LocationName, points[0].LocationName)
	assert.Equal(t, r1.RiskScore, points[0].RiskScore)
}
