// Package chat drives session-keyed conversations with the assistant
// persona and explains stored analyses on demand.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"georisk/internal/domain"
	"georisk/internal/llm"
	"georisk/internal/observability"
)

const explainPromptTemplate = `You are an interpreter. Given this data: %s
And the AI risk report: %s
Explain in 2-3 sentences WHY that risk level was assigned and give 2 practical actions for the local community.`

// Service holds the conversation state machine: transcripts live in the
// store, the model only ever sees a bounded window of them.
type Service struct {
	gen          llm.Generator
	store        domain.Store
	persona      string
	historyLimit int
	metrics      *observability.Metrics
	logger       *slog.Logger
}

func NewService(
	gen llm.Generator,
	store domain.Store,
	persona string,
	historyLimit int,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		gen:          gen,
		store:        store,
		persona:      persona,
		historyLimit: historyLimit,
		metrics:      metrics,
		logger:       logger,
	}
}

// Chat processes one conversational turn and returns the reply plus the
// session id, freshly minted when the caller had none. The user entry is
// persisted before the model call so the transcript keeps the question
// even when the model fails.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (string, string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", "", fmt.Errorf("%w: empty message", domain.ErrInvalidInput)
	}

	id := sessionID
	if id == "" {
		id = uuid.NewString()
	}

	session, err := s.store.GetSession(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		// Storage trouble must not block the conversation; continue with
		// an empty context window.
		s.logger.Error("load session failed", "session_id", id, "error", err)
		session = domain.ChatSession{ID: id}
	}

	userEntry := domain.ChatEntry{Role: domain.RoleUser, Text: message, Timestamp: domain.Now()}
	if err := s.store.AppendToSession(ctx, id, userEntry); err != nil {
		s.logger.Error("persist user message failed", "session_id", id, "error", err)
	}

	history := window(session.Entries, s.historyLimit)
	turns := make([]domain.ChatEntry, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, userEntry)

	reply, err := s.gen.Generate(ctx, s.persona, turns)
	if err != nil {
		return "", "", err
	}

	assistantEntry := domain.ChatEntry{Role: domain.RoleAssistant, Text: reply, Timestamp: domain.Now()}
	if err := s.store.AppendToSession(ctx, id, assistantEntry); err != nil {
		s.logger.Error("persist reply failed", "session_id", id, "error", err)
	}

	s.metrics.ChatExchanges.Inc()
	return reply, id, nil
}

// Explain asks the model to justify a stored assessment in plain
// language. Nothing is persisted.
func (s *Service) Explain(ctx context.Context, recordID string) (string, error) {
	record, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return "", err
	}

	conditions, _ := json.Marshal(struct {
		LocationName string  `json:"location_name"`
		Temperature  float64 `json:"temperature"`
		Humidity     float64 `json:"humidity"`
		WindSpeed    float64 `json:"wind_speed"`
		Rainfall     float64 `json:"rainfall"`
	}{record.LocationName, record.Temperature, record.Humidity, record.WindSpeed, record.Rainfall})

	report, _ := json.Marshal(struct {
		RiskLevel      domain.RiskLevel `json:"risk_level"`
		RiskScore      int              `json:"risk_score"`
		Recommendation string           `json:"recommendation"`
	}{record.RiskLevel, record.RiskScore, record.Recommendation})

	prompt := fmt.Sprintf(explainPromptTemplate, conditions, report)

	explanation, err := s.gen.Generate(ctx, "", []domain.ChatEntry{
		{Role: domain.RoleUser, Text: prompt},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(explanation), nil
}

// Transcript returns the stored conversation for a session.
func (s *Service) Transcript(ctx context.Context, id string) (domain.ChatSession, error) {
	return s.store.GetSession(ctx, id)
}

// Forget removes a stored session.
func (s *Service) Forget(ctx context.Context, id string) error {
	return s.store.DeleteSession(ctx, id)
}

// window returns the last n entries of the transcript.
func window(entries []domain.ChatEntry, n int) []domain.ChatEntry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}
