package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"georisk/internal/analysis"
	"georisk/internal/domain"
	"georisk/internal/observability"
)

// Scheduler periodically re-analyzes the configured watch locations so
// risk data for known hotspots stays fresh without user traffic.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *analysis.Service
	locations []domain.Coordinate
	interval  time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(
	locations []domain.Coordinate,
	interval time.Duration,
	service *analysis.Service,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		locations: locations,
		interval:  interval,
		metrics:   metrics,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		s.logger.Info("no watch locations configured, nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	if _, err := s.scheduler.Every(minutes).Minutes().Do(s.runOnce); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("watch scheduler started",
		"locations", len(s.locations), "interval_minutes", minutes)
	return nil
}

func (s *Scheduler) runOnce() {
	s.metrics.WatchRuns.Inc()

	var wg sync.WaitGroup
	for _, loc := range s.locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()

			// The model call dominates; give each point a full minute.
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			record, err := s.service.Analyze(ctx, loc.Lat, loc.Lon)
			if err != nil {
				s.logger.Error("watch analysis failed",
					"lat", loc.Lat, "lon", loc.Lon, "error", err)
				return
			}
			s.logger.Info("watch analysis complete",
				"id", record.ID, "location", record.LocationName, "level", record.RiskLevel)
		}()
	}
	wg.Wait()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
