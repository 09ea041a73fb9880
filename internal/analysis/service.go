// Package analysis orchestrates the analyze flow: fetch current weather
// and a place name concurrently, ask the risk assessor for a verdict,
// persist the combined record.
package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"georisk/internal/domain"
	"georisk/internal/observability"
)

// Service runs the analysis pipeline for one coordinate at a time.
type Service struct {
	provider domain.WeatherProvider
	geocoder domain.Geocoder
	assessor domain.RiskAssessor
	store    domain.Store
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func NewService(
	provider domain.WeatherProvider,
	geocoder domain.Geocoder,
	assessor domain.RiskAssessor,
	store domain.Store,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		provider: provider,
		geocoder: geocoder,
		assessor: assessor,
		store:    store,
		metrics:  metrics,
		logger:   logger,
	}
}

// Analyze produces a persisted AnalysisRecord for the coordinate. A failed
// geocode degrades to a coordinate label; a failed weather fetch or risk
// assessment aborts the analysis; a failed save is logged and the computed
// record is still returned.
func (s *Service) Analyze(ctx context.Context, lat, lon float64) (domain.AnalysisRecord, error) {
	if err := domain.ValidateCoordinates(lat, lon); err != nil {
		return domain.AnalysisRecord{}, err
	}

	start := time.Now()
	defer func() {
		s.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	}()

	// Weather and geocoding are independent upstreams; fetch them in
	// parallel. Each goroutine owns its own result variables.
	var (
		wg           sync.WaitGroup
		snapshot     domain.WeatherSnapshot
		weatherErr   error
		locationName string
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		snapshot, weatherErr = s.provider.Current(ctx, lat, lon)
	}()
	go func() {
		defer wg.Done()
		name, err := s.geocoder.ReverseGeocode(ctx, lat, lon)
		if err != nil {
			s.logger.Warn("reverse geocode failed, using coordinate label",
				"lat", lat, "lon", lon, "error", err)
			return
		}
		locationName = name
	}()
	wg.Wait()

	weatherOutcome := "ok"
	if weatherErr != nil {
		weatherOutcome = "error"
	}
	s.metrics.UpstreamRequests.WithLabelValues("weather", weatherOutcome).Inc()

	if weatherErr != nil {
		s.metrics.AnalysesTotal.WithLabelValues("error").Inc()
		s.logger.Error("weather fetch failed", "provider", s.provider.Name(),
			"lat", lat, "lon", lon, "error", weatherErr)
		return domain.AnalysisRecord{}, weatherErr
	}

	if locationName == "" {
		locationName = domain.FallbackLocationName(lat, lon)
	}

	assessment, err := s.assessor.Assess(ctx, snapshot)
	if err != nil {
		s.metrics.AnalysesTotal.WithLabelValues("error").Inc()
		s.logger.Error("risk assessment failed", "lat", lat, "lon", lon, "error", err)
		return domain.AnalysisRecord{}, err
	}

	record := domain.AnalysisRecord{
		ID:             uuid.NewString(),
		LocationName:   locationName,
		Latitude:       lat,
		Longitude:      lon,
		Temperature:    snapshot.Temperature,
		Humidity:       snapshot.Humidity,
		WindSpeed:      snapshot.WindSpeed,
		Rainfall:       snapshot.Rainfall,
		RiskScore:      assessment.Score,
		RiskLevel:      assessment.Level,
		Recommendation: assessment.Recommendation,
		Timestamp:      domain.Now(),
	}

	// Persistence is best effort: the caller still gets the computed
	// record when the backend is down.
	if err := s.store.SaveRecord(ctx, record); err != nil {
		s.logger.Error("save record failed", "id", record.ID, "error", err)
	}

	s.metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	s.logger.Info("analysis complete", "id", record.ID, "location", record.LocationName,
		"score", record.RiskScore, "level", record.RiskLevel)
	return record, nil
}

// Points lists every stored analysis as a map point.
func (s *Service) Points(ctx context.Context) ([]domain.PointSummary, error) {
	records, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	points := make([]domain.PointSummary, 0, len(records))
	for _, record := range records {
		points = append(points, record.Summary())
	}
	return points, nil
}
