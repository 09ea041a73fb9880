package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RiskLevel is the categorical bucket derived from a risk score.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "Low"
	RiskLevelMedium RiskLevel = "Medium"
	RiskLevelHigh   RiskLevel = "High"
)

// RiskThresholds holds the score boundaries between risk levels.
// Scores below LowUpper are Low, below MediumUpper are Medium, the rest High.
type RiskThresholds struct {
	LowUpper    int
	MediumUpper int
}

// Level maps a score onto a RiskLevel using the configured boundaries.
func (t RiskThresholds) Level(score int) RiskLevel {
	switch {
	case score < t.LowUpper:
		return RiskLevelLow
	case score < t.MediumUpper:
		return RiskLevelMedium
	default:
		return RiskLevelHigh
	}
}

// WeatherSnapshot is the normalized current-weather view for a coordinate.
// Units: °C, %, m/s, mm.
type WeatherSnapshot struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
	Rainfall    float64   `json:"rainfall"`
	ObservedAt  time.Time `json:"observed_at"` // always UTC
}

// RiskAssessment is the structured output of the AI risk analyst.
type RiskAssessment struct {
	Score          int       `json:"risk_score"` // always within [0,100]
	Level          RiskLevel `json:"risk_level"`
	Recommendation string    `json:"recommendation"`
}

// AnalysisRecord combines location, weather, and risk assessment for one
// analyzed point. Records are immutable once stored.
type AnalysisRecord struct {
	ID             string    `json:"id"`
	LocationName   string    `json:"location_name"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Temperature    float64   `json:"temperature"`
	Humidity       float64   `json:"humidity"`
	WindSpeed      float64   `json:"wind_speed"`
	Rainfall       float64   `json:"rainfall"`
	RiskScore      int       `json:"risk_score"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Recommendation string    `json:"recommendation"`
	Timestamp      time.Time `json:"timestamp"` // always UTC
}

// PointSummary is the map-display projection of an AnalysisRecord.
type PointSummary struct {
	ID           string    `json:"id"`
	LocationName string    `json:"location_name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	RiskScore    int       `json:"risk_score"`
	RiskLevel    RiskLevel `json:"risk_level"`
	Timestamp    time.Time `json:"timestamp"`
}

// Summary projects the record onto its map-display fields.
func (r AnalysisRecord) Summary() PointSummary {
	return PointSummary{
		ID:           r.ID,
		LocationName: r.LocationName,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		RiskScore:    r.RiskScore,
		RiskLevel:    r.RiskLevel,
		Timestamp:    r.Timestamp,
	}
}

// Chat entry roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatEntry is a single turn in a conversation transcript.
type ChatEntry struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is a persisted conversation transcript keyed by session id.
// Entries are ordered chronologically; sessions are never deleted
// automatically.
type ChatSession struct {
	ID      string      `json:"session_id"`
	Entries []ChatEntry `json:"entries"`
}

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ParseCoordinates parses a "lat,lon" string and validates the ranges.
func ParseCoordinates(s string) (lat, lon float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: expected \"lat,lon\", got %q", ErrInvalidCoordinates, s)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad latitude %q", ErrInvalidCoordinates, parts[0])
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad longitude %q", ErrInvalidCoordinates, parts[1])
	}
	if err := ValidateCoordinates(lat, lon); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

// ValidateCoordinates checks that lat is within [-90,90] and lon within
// [-180,180]. The inclusive form also rejects NaN, which fails every
// comparison.
func ValidateCoordinates(lat, lon float64) error {
	if !(lat >= -90 && lat <= 90) {
		return fmt.Errorf("%w: latitude %v outside [-90,90]", ErrInvalidCoordinates, lat)
	}
	if !(lon >= -180 && lon <= 180) {
		return fmt.Errorf("%w: longitude %v outside [-180,180]", ErrInvalidCoordinates, lon)
	}
	return nil
}

// FallbackLocationName formats coordinates as a human-readable place name for
// when reverse geocoding yields nothing.
func FallbackLocationName(lat, lon float64) string {
	return fmt.Sprintf("Location %.3f, %.3f", lat, lon)
}
