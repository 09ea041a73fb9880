package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"georisk/internal/domain"
)

// Weather provider names accepted in WEATHER_PROVIDER.
const (
	ProviderOpenWeather = "openweather"
	ProviderOpenMeteo   = "openmeteo"
	ProviderWeatherAPI  = "weatherapi"
)

// DefaultChatPersona is the system instruction for the chat assistant.
const DefaultChatPersona = "You are an expert disaster-response assistant. Answer briefly and practically."

// AppConfig holds all service settings, populated from environment variables.
// It is read-only after Load and passed explicitly to constructors.
type AppConfig struct {
	Port      string
	LogLevel  string
	LogFormat string

	// HTTPTimeout bounds every outbound weather/geocoding call.
	HTTPTimeout time.Duration

	// Weather provider selection and credentials.
	WeatherProvider   string
	OpenWeatherAPIKey string
	WeatherAPIKey     string

	// Reverse geocoding.
	GoogleGeocoderAPIKey string
	GeocodeCacheSize     int

	// Generative-AI client. The default base URL is Gemini's
	// OpenAI-compatible endpoint; any OpenAI-compatible server works.
	LLMBaseURL           string
	LLMAPIKey            string
	LLMModel             string
	LLMTimeout           time.Duration
	LLMRequestsPerMinute int

	// Risk level derivation boundaries.
	RiskThresholds domain.RiskThresholds

	// Chat assistant persona and context window (stored transcripts are
	// unbounded; only the prompt context is capped).
	ChatPersona      string
	ChatHistoryLimit int

	// StorageBucket selects the Cloud Storage bucket for persistence.
	// Empty means the in-memory store.
	StorageBucket string

	// Watched locations re-analyzed on a schedule.
	WatchLocations []domain.Coordinate
	WatchInterval  time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		Port:      getenvDefault("PORT", "8080"),
		LogLevel:  getenvDefault("LOG_LEVEL", "info"),
		LogFormat: getenvDefault("LOG_FORMAT", "text"),

		WeatherProvider:   strings.ToLower(getenvDefault("WEATHER_PROVIDER", "")),
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		WeatherAPIKey:     os.Getenv("WEATHERAPI_API_KEY"),

		GoogleGeocoderAPIKey: os.Getenv("GOOGLE_GEOCODER_API_KEY"),
		GeocodeCacheSize:     getenvInt("GEOCODE_CACHE_SIZE", 1000),

		LLMBaseURL:           getenvDefault("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
		LLMAPIKey:            os.Getenv("LLM_API_KEY"),
		LLMModel:             getenvDefault("LLM_MODEL", "gemini-2.5-flash"),
		LLMRequestsPerMinute: getenvInt("LLM_RPM", 60),

		ChatPersona:      getenvDefault("CHAT_PERSONA", DefaultChatPersona),
		ChatHistoryLimit: getenvInt("CHAT_HISTORY_LIMIT", 20),

		StorageBucket: os.Getenv("STORAGE_BUCKET"),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.LLMTimeout, err = getenvDuration("LLM_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.WatchInterval, err = getenvDuration("WATCH_INTERVAL", "30m"); err != nil {
		return nil, err
	}

	low := getenvInt("RISK_THRESHOLD_LOW", 34)
	medium := getenvInt("RISK_THRESHOLD_MEDIUM", 67)
	if low <= 0 || medium <= low || medium > 100 {
		return nil, fmt.Errorf("invalid risk thresholds: low=%d medium=%d", low, medium)
	}
	cfg.RiskThresholds = domain.RiskThresholds{LowUpper: low, MediumUpper: medium}

	// Default to OpenWeather when a key is present, otherwise the keyless
	// Open-Meteo so the service is usable out of the box.
	if cfg.WeatherProvider == "" {
		if cfg.OpenWeatherAPIKey != "" {
			cfg.WeatherProvider = ProviderOpenWeather
		} else {
			cfg.WeatherProvider = ProviderOpenMeteo
		}
	}
	switch cfg.WeatherProvider {
	case ProviderOpenWeather, ProviderOpenMeteo, ProviderWeatherAPI:
	default:
		return nil, fmt.Errorf("unknown WEATHER_PROVIDER %q", cfg.WeatherProvider)
	}

	if cfg.LLMRequestsPerMinute <= 0 {
		return nil, fmt.Errorf("LLM_RPM must be positive")
	}
	if cfg.ChatHistoryLimit <= 0 {
		return nil, fmt.Errorf("CHAT_HISTORY_LIMIT must be positive")
	}

	locs, err := parseWatchLocations(os.Getenv("WATCH_LOCATIONS"))
	if err != nil {
		return nil, err
	}
	cfg.WatchLocations = locs

	return cfg, nil
}

// parseWatchLocations parses a semicolon-separated list of "lat,lon" pairs.
func parseWatchLocations(s string) ([]domain.Coordinate, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var locs []domain.Coordinate
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lat, lon, err := domain.ParseCoordinates(part)
		if err != nil {
			return nil, fmt.Errorf("invalid WATCH_LOCATIONS entry %q: %w", part, err)
		}
		locs = append(locs, domain.Coordinate{Lat: lat, Lon: lon})
	}
	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	s := getenvDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
