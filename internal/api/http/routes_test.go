package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"georisk/internal/analysis"
	"georisk/internal/chat"
	"georisk/internal/domain"
	"georisk/internal/observability"
	"georisk/internal/store"
)

// --- stub upstreams ---

type stubProvider struct {
	snap domain.WeatherSnapshot
	err  error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Current(context.Context, float64, float64) (domain.WeatherSnapshot, error) {
	return s.snap, s.err
}

type stubGeocoder struct {
	name string
	err  error
}

func (s *stubGeocoder) ReverseGeocode(context.Context, float64, float64) (string, error) {
	return s.name, s.err
}

type stubAssessor struct {
	assessment domain.RiskAssessment
	err        error
}

func (s *stubAssessor) Assess(context.Context, domain.WeatherSnapshot) (domain.RiskAssessment, error) {
	return s.assessment, s.err
}

type stubGenerator struct {
	reply string
	err   error
}

func (s *stubGenerator) Generate(context.Context, string, []domain.ChatEntry) (string, error) {
	return s.reply, s.err
}

type listFailingStore struct {
	domain.Store
}

func (listFailingStore) ListRecords(context.Context) ([]domain.AnalysisRecord, error) {
	return nil, domain.ErrStorageUnavailable
}

// --- fixture ---

type stubs struct {
	provider *stubProvider
	geocoder *stubGeocoder
	assessor *stubAssessor
	gen      *stubGenerator
	store    domain.Store
}

func defaultStubs() *stubs {
	return &stubs{
		provider: &stubProvider{snap: domain.WeatherSnapshot{
			Temperature: 32,
			Humidity:    80,
			WindSpeed:   5,
			Rainfall:    50,
			ObservedAt:  time.Now().UTC(),
		}},
		geocoder: &stubGeocoder{name: "Mumbai, Maharashtra, IN"},
		assessor: &stubAssessor{assessment: domain.RiskAssessment{
			Score:          72,
			Level:          domain.RiskLevelHigh,
			Recommendation: "Evacuate low-lying areas",
		}},
		gen:   &stubGenerator{reply: "Stay alert."},
		store: store.NewMemory(),
	}
}

func newTestApp(s *stubs) *fiber.App {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	analysisSvc := analysis.NewService(s.provider, s.geocoder, s.assessor, s.store, metrics, logger)
	chatSvc := chat.NewService(s.gen, s.store, "You are a helpful assistant.", 20, metrics, logger)

	app := NewApp()
	RegisterRoutes(app, analysisSvc, chatSvc)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// --- tests ---

func TestAnalyzeEndpoint(t *testing.T) {
	s := defaultStubs()
	app := newTestApp(s)

	resp := doJSON(t, app, http.MethodPost, "/api/analyze", `{"location":"20.5,78.9"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var record domain.AnalysisRecord
	decodeBody(t, resp, &record)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "Mumbai, Maharashtra, IN", record.LocationName)
	assert.Equal(t, 20.5, record.Latitude)
	assert.Equal(t, 78.9, record.Longitude)
	assert.Equal(t, 72, record.RiskScore)
	assert.Equal(t, domain.RiskLevelHigh, record.RiskLevel)
	assert.Equal(t, "Evacuate low-lying areas", record.Recommendation)

	stored, err := s.store.GetRecord(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, stored.ID)
}

func TestAnalyzeEndpointBadInput(t *testing.T) {
	app := newTestApp(defaultStubs())

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `location=x`},
		{name: "missing location", body: `{}`},
		{name: "not a coordinate pair", body: `{"location":"Mumbai"}`},
		{name: "non-numeric", body: `{"location":"abc,def"}`},
		{name: "latitude out of range", body: `{"location":"91,10"}`},
		{name: "longitude out of range", body: `{"location":"10,181"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, app, http.MethodPost, "/api/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body struct {
				Error   bool   `json:"error"`
				Message string `json:"message"`
			}
			decodeBody(t, resp, &body)
			assert.True(t, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestAnalyzeEndpointUpstreamDown(t *testing.T) {
	s := defaultStubs()
	s.provider = &stubProvider{err: domain.ErrUpstreamUnavailable}
	app := newTestApp(s)

	resp := doJSON(t, app, http.MethodPost, "/api/analyze", `{"location":"20.5,78.9"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestAnalyzeEndpointUnexpectedErrorIsOpaque(t *testing.T) {
	s := defaultStubs()
	s.provider = &stubProvider{err: errors.New(`Get "http://upstream?appid=k3y": dial tcp: refused`)}
	app := newTestApp(s)

	resp := doJSON(t, app, http.MethodPost, "/api/analyze", `{"location":"20.5,78.9"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	decodeBody(t, resp, &body)
	assert.True(t, body.Error)
	assert.Equal(t, "internal server error", body.Message)
	assert.NotContains(t, body.Message, "appid")
}

func TestAnalyzeEndpointMalformedModelOutput(t *testing.T) {
	s := defaultStubs()
	s.assessor = &stubAssessor{err: domain.ErrMalformedResponse}
	app := newTestApp(s)

	resp := doJSON(t, app, http.MethodPost, "/api/analyze", `{"location":"20.5,78.9"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body struct {
		Message string `json:"message"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "analysis failed", body.Message, "model output must never leak")

	list, err := s.store.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPointsEndpoint(t *testing.T) {
	s := defaultStubs()
	app := newTestApp(s)

	resp := doJSON(t, app, http.MethodGet, "/api/points", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var empty []domain.PointSummary
	decodeBody(t, resp, &empty)
	assert.Empty(t, empty)

	doJSON(t, app, http.MethodPost, "/api/analyze", `{"location":"20.5,78.9"}`)

	resp = doJSON(t, app, http.MethodGet, "/api/points", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var points []domain.PointSummary
	decodeBody(t, resp, &points)
	require.Len(t, points, 1)
	assert.Equal(t, "Mumbai, Maharashtra, IN", points[0].LocationName)
	assert.Equal(t, 72, points[0].RiskScore)
}

func TestPointsEndpointStorageDown(t *testing.T) {
	s := defaultStubs()
	s.store = listFailingStore{Store: store.NewMemory()}
	app := newTestApp(s)

	resp := doJSON(t, app, http.MethodGet, "/api/points", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestChatEndpoint(t *testing.T) {
	app := newTestApp(defaultStubs())

	resp := doJSON(t, app, http.MethodPost, "/api/chat", `{"message":"Is it safe outside?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var first struct {
		Reply     string `json:"reply"`
		SessionID string `json:"session_id"`
	}
	decodeBody(t, resp, &first)
	assert.Equal(t, "Stay alert.", first.Reply)
	require.NotEmpty(t, first.SessionID)

	resp = doJSON(t, app, http.MethodPost, "/api/chat",
		`{"message":"And tomorrow?","session_id":"`+first.SessionID+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var second struct {
		SessionID string `json:"session_id"`
	}
	decodeBody(t, resp, &second)
	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestChatEndpointEmptyMessage(t *testing.T) {
	app := newTestApp(defaultStubs())

	resp := doJSON(t, app, http.MethodPost, "/api/chat", `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/chat", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatEndpointModelDown(t *testing.T) {
	s := defaultStubs()
	s.gen = &stubGenerator{err: domain.ErrUpstreamUnavailable}
	app := newTestApp(s)

	resp := doJSON(t, app, http.MethodPost, "/api/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestExplainEndpoint(t *testing.T) {
	s := defaultStubs()
	s.gen = &stubGenerator{reply: "High rainfall and wind drive the score. Secure loose items, avoid travel."}
	app := newTestApp(s)

	resp := doJSON(t, app, http.MethodPost, "/api/analyze", `{"location":"20.5,78.9"}`)
	var record domain.AnalysisRecord
	decodeBody(t, resp, &record)

	resp = doJSON(t, app, http.MethodPost, "/api/explain", `{"id":"`+record.ID+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Explanation string `json:"explanation"`
	}
	decodeBody(t, resp, &body)
	assert.Contains(t, body.Explanation, "Secure loose items")
}

func TestExplainEndpointUnknownID(t *testing.T) {
	app := newTestApp(defaultStubs())

	resp := doJSON(t, app, http.MethodPost, "/api/explain", `{"id":"nope"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		Message string `json:"message"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "point not found", body.Message)
}

func TestSessionEndpoints(t *testing.T) {
	app := newTestApp(defaultStubs())

	resp := doJSON(t, app, http.MethodPost, "/api/chat", `{"message":"hello"}`)
	var chatBody struct {
		SessionID string `json:"session_id"`
	}
	decodeBody(t, resp, &chatBody)

	resp = doJSON(t, app, http.MethodGet, "/api/chat/sessions/"+chatBody.SessionID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session domain.ChatSession
	decodeBody(t, resp, &session)
	assert.Equal(t, chatBody.SessionID, session.ID)
	require.Len(t, session.Entries, 2)
	assert.Equal(t, domain.RoleUser, session.Entries[0].Role)

	resp = doJSON(t, app, http.MethodDelete, "/api/chat/sessions/"+chatBody.SessionID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var deleteBody struct {
		Deleted bool `json:"deleted"`
	}
	decodeBody(t, resp, &deleteBody)
	assert.True(t, deleteBody.Deleted)

	resp = doJSON(t, app, http.MethodGet, "/api/chat/sessions/"+chatBody.SessionID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
