package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/seatwise/seatwise/pkg/metrics"
	"github.com/seatwise/seatwise/pkg/model"
)

// Repository is the slice of the audit store the relay needs.
type Repository interface {
	ListPending(ctx context.Context, limit int) ([]model.AuditLog, error)
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// Relay drains pending audit rows to Kafka. Rows that cannot be published go
// to the DLQ topic and are marked failed.
type Relay struct {
	repo         Repository
	writer       *kafka.Writer
	dlqWriter    *kafka.Writer
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
}

type Message struct {
	ID        string      `json:"id"`
	Entity    string      `json:"entity"`
	Operation string      `json:"operation"`
	RecordID  string      `json:"record_id"`
	ActorID   string      `json:"actor_id,omitempty"`
	Before    model.JSONB `json:"before,omitempty"`
	After     model.JSONB `json:"after,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type DLQMessage struct {
	Event    Message   `json:"event"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func NewRelay(repo Repository, writer, dlqWriter *kafka.Writer, logger *zap.Logger, pollInterval time.Duration, batchSize int) *Relay {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		repo:         repo,
		writer:       writer,
		dlqWriter:    dlqWriter,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("audit relay starting",
		zap.Duration("poll_interval", r.pollInterval),
		zap.Int("batch_size", r.batchSize),
	)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.processPending(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("audit relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.processPending(ctx)
		}
	}
}

func (r *Relay) processPending(ctx context.Context) {
	entries, err := r.repo.ListPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Warn("failed to list pending audit entries", zap.Error(err))
		return
	}

	if len(entries) == 0 {
		return
	}

	for _, entry := range entries {
		if err := r.publishEntry(ctx, entry); err != nil {
			r.logger.Warn("failed to publish audit entry", zap.Error(err), zap.String("id", entry.ID.String()))
		}
	}
}

func (r *Relay) publishEntry(ctx context.Context, entry model.AuditLog) error {
	message := Message{
		ID:        entry.ID.String(),
		Entity:    entry.Entity,
		Operation: entry.Operation,
		RecordID:  entry.RecordID,
		ActorID:   entry.ActorID,
		Before:    entry.Before,
		After:     entry.After,
		CreatedAt: entry.CreatedAt,
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	kafkaMessage := kafka.Message{
		Key:   []byte(entry.ID.String()),
		Value: payload,
		Time:  time.Now(),
	}

	if err := r.writer.WriteMessages(ctx, kafkaMessage); err != nil {
		r.logger.Warn("failed to publish to kafka, sending to DLQ", zap.Error(err), zap.String("id", entry.ID.String()))
		return r.publishDLQ(ctx, message, err, entry.ID)
	}

	if err := r.repo.MarkPublished(ctx, entry.ID, time.Now()); err != nil {
		r.logger.Warn("failed to mark audit entry published", zap.Error(err), zap.String("id", entry.ID.String()))
		return err
	}

	metrics.AuditEventsPublished.WithLabelValues("published").Inc()
	return nil
}

func (r *Relay) publishDLQ(ctx context.Context, message Message, publishErr error, id uuid.UUID) error {
	dlq := DLQMessage{
		Event:    message,
		Error:    publishErr.Error(),
		FailedAt: time.Now(),
	}

	payload, err := json.Marshal(dlq)
	if err != nil {
		return err
	}

	kafkaMessage := kafka.Message{
		Key:   []byte(message.ID),
		Value: payload,
		Time:  time.Now(),
	}

	if err := r.dlqWriter.WriteMessages(ctx, kafkaMessage); err != nil {
		return err
	}

	if err := r.repo.MarkFailed(ctx, id); err != nil {
		r.logger.Warn("failed to mark audit entry failed", zap.Error(err), zap.String("id", id.String()))
		return err
	}

	metrics.AuditEventsPublished.WithLabelValues("dlq").Inc()
	return nil
}
