package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/infrastructure/resilience"
)

const workerQueueGroup = "workers"

// Queue carries ingest jobs on a queue-group subject (one worker per job) and
// index-refresh events on a plain subject (every subscriber sees each event).
type Queue struct {
	conn         *nats.Conn
	ingestSubj   string
	indexSubj    string
	executor     *resilience.Executor
	instanceID   string
	drainTimeout time.Duration
}

type Options struct {
	IngestSubject        string
	IndexSubject         string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

type indexRefreshed struct {
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

func New(url string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	if options.IngestSubject == "" {
		options.IngestSubject = "plc.ingest.jobs"
	}
	if options.IndexSubject == "" {
		options.IndexSubject = "plc.index.refreshed"
	}
	executor := options.ResilienceExecutor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}

	conn, err := nats.Connect(
		url,
		nats.Name("plc-fault-explainer"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:         conn,
		ingestSubj:   options.IngestSubject,
		indexSubj:    options.IndexSubject,
		executor:     executor,
		instanceID:   uuid.NewString(),
		drainTimeout: 5 * time.Second,
	}, nil
}

func (q *Queue) Close() error {
	if q.conn != nil {
		q.conn.Close()
	}
	return nil
}

func (q *Queue) PublishIngestJob(ctx context.Context, job domain.IngestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal ingest job: %w", err)
	}
	return q.publish(ctx, q.ingestSubj, payload)
}

func (q *Queue) SubscribeIngestJobs(ctx context.Context, handler func(context.Context, domain.IngestJob) error) error {
	sub, err := q.conn.QueueSubscribe(q.ingestSubj, workerQueueGroup, func(msg *nats.Msg) {
		handleIngestMsg(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	return q.serve(ctx, sub)
}

func (q *Queue) PublishIndexRefreshed(ctx context.Context) error {
	payload, err := json.Marshal(indexRefreshed{Origin: q.instanceID, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal index event: %w", err)
	}
	return q.publish(ctx, q.indexSubj, payload)
}

// SubscribeIndexRefreshed skips events this instance published itself.
func (q *Queue) SubscribeIndexRefreshed(ctx context.Context, handler func(context.Context) error) error {
	sub, err := q.conn.Subscribe(q.indexSubj, func(msg *nats.Msg) {
		handleIndexMsg(ctx, q.instanceID, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	return q.serve(ctx, sub)
}

func (q *Queue) publish(ctx context.Context, subject string, payload []byte) error {
	err := q.executor.Execute(ctx, "nats.publish", func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, classifyNATSError)
	if err != nil {
		return wrapPublishError(subject, err)
	}
	return nil
}

// serve blocks until ctx is done, then drains the subscription.
func (q *Queue) serve(ctx context.Context, sub *nats.Subscription) error {
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(q.drainTimeout); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func handleIngestMsg(ctx context.Context, data []byte, handler func(context.Context, domain.IngestJob) error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}

	var job domain.IngestJob
	if err := json.Unmarshal(data, &job); err != nil {
		slog.Error("ingest_job_invalid", "error", err, "payload_bytes", len(data))
		return
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handler(handlerCtx, job); err != nil {
		slog.Error("ingest_job_failed", "job_id", job.ID, "filename", job.Filename, "kind", job.Kind, "error", err)
	}
}

func handleIndexMsg(ctx context.Context, instanceID string, data []byte, handler func(context.Context) error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}

	var event indexRefreshed
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Warn("index_event_invalid", "error", err)
		return
	}
	if event.Origin == instanceID {
		return
	}
	if err := handler(ctx); err != nil {
		slog.Error("index_refresh_failed", "origin", event.Origin, "error", err)
	}
}
