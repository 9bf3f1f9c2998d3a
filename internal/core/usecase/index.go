package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
)

// IndexService owns the sparse snapshot lifecycle over the document store.
type IndexService struct {
	store    ports.DocumentStore
	sparse   ports.SparseIndex
	observer ports.RAGObserver
}

func NewIndexService(store ports.DocumentStore, sparse ports.SparseIndex, observer ports.RAGObserver) *IndexService {
	return &IndexService{store: store, sparse: sparse, observer: observer}
}

// Rebuild rebuilds the sparse snapshot from the current store contents.
func (s *IndexService) Rebuild(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := s.sparse.Rebuild(ctx, s.store)
	duration := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveSparseRebuild(count, duration, err)
	}
	if err != nil {
		slog.Error("sparse_rebuild_failed", "error", err.Error(), "duration_ms", duration.Milliseconds())
		return 0, domain.WrapError(domain.ErrRetrievalUnavailable, "rebuild sparse index", err)
	}
	slog.Info("sparse_rebuild_done", "chunks", count, "duration_ms", duration.Milliseconds())
	return count, nil
}

// NotifyIndexChanged rebuilds after an ingested batch.
func (s *IndexService) NotifyIndexChanged(ctx context.Context) error {
	_, err := s.Rebuild(ctx)
	return err
}

// ClearAll empties the store and leaves an empty sparse snapshot behind.
func (s *IndexService) ClearAll(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear document store: %w", err)
	}
	s.sparse.Invalidate()
	if _, err := s.Rebuild(ctx); err != nil {
		return err
	}
	return nil
}

// BroadcastNotifier fans one index change out to several notifiers, e.g. the local
// index service and the queue for other API nodes.
type BroadcastNotifier []ports.IndexNotifier

func (b BroadcastNotifier) NotifyIndexChanged(ctx context.Context) error {
	var firstErr error
	for _, n := range b {
		if n == nil {
			continue
		}
		if err := n.NotifyIndexChanged(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// QueueNotifier publishes index-refresh events.
type QueueNotifier struct {
	Queue ports.MessageQueue
}

func (n QueueNotifier) NotifyIndexChanged(ctx context.Context) error {
	if n.Queue == nil {
		return nil
	}
	if err := n.Queue.PublishIndexRefreshed(ctx); err != nil {
		return fmt.Errorf("publish index refreshed: %w", err)
	}
	return nil
}
