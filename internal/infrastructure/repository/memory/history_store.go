package memory

import (
	"context"
	"sync"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

type HistoryStore struct {
	mu       sync.RWMutex
	history  []domain.HistoryEntry
	feedback []domain.FeedbackEntry
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

func (s *HistoryStore) SaveHistory(_ context.Context, entry *domain.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *entry)
	return nil
}

func (s *HistoryStore) ListHistory(_ context.Context, filename string) ([]domain.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.HistoryEntry, 0, len(s.history))
	for _, entry := range s.history {
		if filename == "" || entry.Filename == filename {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *HistoryStore) SaveFeedback(_ context.Context, entry *domain.FeedbackEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, *entry)
	return nil
}

func (s *HistoryStore) Feedback() []domain.FeedbackEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.FeedbackEntry, len(s.feedback))
	copy(out, s.feedback)
	return out
}
