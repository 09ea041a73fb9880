package store

import (
	"context"
	"sync"

	"georisk/internal/domain"
)

// Memory is a concurrency-safe in-memory implementation of domain.Store.
// It backs the service when no storage bucket is configured, and the
// tests in every package that needs a store.
type Memory struct {
	mu sync.RWMutex

	records map[string]domain.AnalysisRecord
	order   []string // record ids in insertion order

	sessions map[string][]domain.ChatEntry
}

func NewMemory() *Memory {
	return &Memory{
		records:  make(map[string]domain.AnalysisRecord),
		sessions: make(map[string][]domain.ChatEntry),
	}
}

func (s *Memory) SaveRecord(_ context.Context, record domain.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; !exists {
		s.order = append(s.order, record.ID)
	}
	s.records[record.ID] = record
	return nil
}

func (s *Memory) ListRecords(_ context.Context) ([]domain.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AnalysisRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out, nil
}

func (s *Memory) GetRecord(_ context.Context, id string) (domain.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return domain.AnalysisRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (s *Memory) GetSession(_ context.Context, id string) (domain.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.sessions[id]
	if !ok {
		return domain.ChatSession{}, domain.ErrNotFound
	}

	// Copy so callers never alias the stored slice.
	session := domain.ChatSession{ID: id, Entries: make([]domain.ChatEntry, len(entries))}
	copy(session.Entries, entries)
	return session, nil
}

func (s *Memory) AppendToSession(_ context.Context, id string, entry domain.ChatEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = append(s.sessions[id], entry)
	return nil
}

func (s *Memory) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}
