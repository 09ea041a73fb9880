// Package risk turns weather snapshots into structured risk assessments
// using a generative model.
package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"georisk/internal/domain"
	"georisk/internal/llm"
)

const promptTemplate = `You are an AI Disaster Risk Analyst. Analyze the following environmental conditions and return a JSON object EXACTLY like:
{"risk_level":"Low|Medium|High", "risk_score": <0-100 integer>, "recommendation":"one-line advice"}

Data:
Temperature: %.1f °C
Humidity: %.1f %%
Rainfall: %.1f mm
Wind Speed: %.1f m/s`

// Assessor asks the model for a risk verdict and normalizes the reply.
// The categorical level is always derived from the numeric score, so a
// model that contradicts itself cannot produce an inconsistent record.
type Assessor struct {
	gen        llm.Generator
	thresholds domain.RiskThresholds
	logger     *slog.Logger
}

func NewAssessor(gen llm.Generator, thresholds domain.RiskThresholds, logger *slog.Logger) *Assessor {
	return &Assessor{
		gen:        gen,
		thresholds: thresholds,
		logger:     logger,
	}
}

func (a *Assessor) Assess(ctx context.Context, snap domain.WeatherSnapshot) (domain.RiskAssessment, error) {
	prompt := fmt.Sprintf(promptTemplate, snap.Temperature, snap.Humidity, snap.Rainfall, snap.WindSpeed)

	reply, err := a.gen.Generate(ctx, "", []domain.ChatEntry{
		{Role: domain.RoleUser, Text: prompt},
	})
	if err != nil {
		return domain.RiskAssessment{}, err
	}

	assessment, err := a.parse(reply)
	if err != nil {
		a.logger.Warn("unparseable model reply", "error", err, "reply", truncate(reply, 200))
		return domain.RiskAssessment{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return assessment, nil
}

func (a *Assessor) parse(reply string) (domain.RiskAssessment, error) {
	clean := strings.TrimSpace(reply)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var payload struct {
		RiskLevel      string          `json:"risk_level"`
		RiskScore      json.RawMessage `json:"risk_score"`
		Recommendation string          `json:"recommendation"`
	}
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("json unmarshal: %w", err)
	}
	if len(payload.RiskScore) == 0 {
		return domain.RiskAssessment{}, fmt.Errorf("missing risk_score")
	}

	score, err := parseScore(payload.RiskScore)
	if err != nil {
		return domain.RiskAssessment{}, err
	}

	recommendation := strings.TrimSpace(payload.Recommendation)
	if recommendation == "" {
		return domain.RiskAssessment{}, fmt.Errorf("missing recommendation")
	}

	return domain.RiskAssessment{
		Score:          score,
		Level:          a.thresholds.Level(score),
		Recommendation: recommendation,
	}, nil
}

// parseScore accepts the score as a JSON number or a quoted numeric
// string, rounds it, and clamps it to [0,100].
func parseScore(raw json.RawMessage) (int, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("risk_score %q is not numeric", s)
	}
	// ParseFloat also accepts "NaN" and "Inf", which would round to an
	// arbitrary integer instead of failing.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("risk_score %q is not finite", s)
	}

	score := int(math.Round(v))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
