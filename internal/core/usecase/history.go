package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
)

type HistoryUseCase struct {
	store ports.HistoryStore
}

func NewHistoryUseCase(store ports.HistoryStore) *HistoryUseCase {
	return &HistoryUseCase{store: store}
}

func (uc *HistoryUseCase) SaveHistory(ctx context.Context, filename, query string, result []byte) (*domain.HistoryEntry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "save history", errors.New("query is required"))
	}
	if len(result) == 0 || !json.Valid(result) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "save history", errors.New("result must be valid json"))
	}

	entry := &domain.HistoryEntry{
		ID:        uuid.NewString(),
		Filename:  strings.TrimSpace(filename),
		Query:     query,
		Result:    json.RawMessage(result),
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.store.SaveHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("save history entry: %w", err)
	}
	return entry, nil
}

func (uc *HistoryUseCase) ListHistory(ctx context.Context, filename string) ([]domain.HistoryEntry, error) {
	entries, err := uc.store.ListHistory(ctx, strings.TrimSpace(filename))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

func (uc *HistoryUseCase) SubmitFeedback(ctx context.Context, query, response, rating string) (*domain.FeedbackEntry, error) {
	query = strings.TrimSpace(query)
	rating = strings.TrimSpace(rating)
	if query == "" || rating == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit feedback", errors.New("query and rating are required"))
	}

	entry := &domain.FeedbackEntry{
		ID:        uuid.NewString(),
		Query:     query,
		Response:  response,
		Rating:    rating,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.store.SaveFeedback(ctx, entry); err != nil {
		return nil, fmt.Errorf("save feedback: %w", err)
	}
	return entry, nil
}
