package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	headerSyncRetryCount  = "sw-sync-retry-count"
	headerSyncRetryAt     = "sw-sync-retry-at"
	headerSyncOriginTopic = "sw-sync-origin-topic"
	headerSyncDLQError    = "sw-sync-dlq-error"

	defaultSyncRetryLimit = 3
	defaultBackoffSecs    = 10
)

type SyncKind string

const (
	SyncUsers    SyncKind = "users"
	SyncLicenses SyncKind = "licenses"
	SyncUsage    SyncKind = "usage"
)

// SyncJob is one queued directory pull for a tenant.
type SyncJob struct {
	JobID          string    `json:"job_id"`
	TenantClientID string    `json:"tenant_client_id"`
	Kind           SyncKind  `json:"kind"`
	RequestedBy    string    `json:"requested_by,omitempty"`
	RequestedAt    time.Time `json:"requested_at"`
}

type JobHandler func(context.Context, *SyncJob) error

type SyncQueue struct {
	writer       *kafka.Writer
	retryWriter  *kafka.Writer
	dlqWriter    *kafka.Writer
	reader       *kafka.Reader
	retryReader  *kafka.Reader
	topic        string
	retryTopic   string
	dlqTopic     string
	maxRetry     int
	messageGroup sync.WaitGroup
}

func newSyncWriter(brokers []string, clientID string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
		Transport: &kafka.Transport{
			ClientID: clientID,
		},
		RequiredAcks: kafka.RequireAll,
	}
}

func NewSyncQueueProducer(brokers []string, clientID, topic string) *SyncQueue {
	return &SyncQueue{
		writer: newSyncWriter(brokers, clientID),
		topic:  topic,
	}
}

func NewSyncQueueConsumer(brokers []string, clientID, groupID, topic, retryTopic, dlqTopic string) *SyncQueue {
	var retryReader *kafka.Reader
	if retryTopic != "" {
		retryReader = kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   retryTopic,
			Dialer: &kafka.Dialer{
				ClientID: clientID,
			},
		})
	}

	return &SyncQueue{
		writer:      newSyncWriter(brokers, clientID),
		retryWriter: newSyncWriter(brokers, clientID),
		dlqWriter:   newSyncWriter(brokers, clientID),
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
			Dialer: &kafka.Dialer{
				ClientID: clientID,
			},
		}),
		retryReader: retryReader,
		topic:       topic,
		retryTopic:  retryTopic,
		dlqTopic:    dlqTopic,
		maxRetry:    defaultSyncRetryLimit,
	}
}

func (q *SyncQueue) Enqueue(ctx context.Context, job *SyncJob) error {
	if q.writer == nil {
		return errors.New("sync queue writer is not configured")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal sync job: %w", err)
	}
	message := kafka.Message{
		Topic: q.topic,
		Key:   []byte(job.TenantClientID),
		Value: payload,
		Time:  time.Now(),
	}
	return q.writer.WriteMessages(ctx, message)
}

func (q *SyncQueue) Consume(ctx context.Context, handler JobHandler) error {
	if q.reader == nil {
		return errors.New("sync queue reader is not configured")
	}
	if handler == nil {
		return errors.New("sync job handler is required")
	}

	messageCh := make(chan queuedMessage, 2)
	errCh := make(chan error, 2)

	q.messageGroup.Add(1)
	go q.consumeReader(ctx, q.reader, messageCh, errCh)

	if q.retryReader != nil && q.retryTopic != "" {
		q.messageGroup.Add(1)
		go q.consumeReader(ctx, q.retryReader, messageCh, errCh)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case msg := <-messageCh:
			if err := q.handleMessage(ctx, msg, handler); err != nil {
				return err
			}
		}
	}
}

type queuedMessage struct {
	reader  *kafka.Reader
	message kafka.Message
}

func (q *SyncQueue) consumeReader(ctx context.Context, reader *kafka.Reader, messageCh chan<- queuedMessage, errCh chan<- error) {
	defer q.messageGroup.Done()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			select {
			case errCh <- err:
			case <-ctx.Done():
			}
			return
		}
		select {
		case messageCh <- queuedMessage{reader: reader, message: msg}:
		case <-ctx.Done():
			return
		}
	}
}

func (q *SyncQueue) handleMessage(ctx context.Context, msg queuedMessage, handler JobHandler) error {
	if msg.message.Topic == q.retryTopic {
		if retryAt := retryTime(msg.message); !retryAt.IsZero() {
			delay := time.Until(retryAt)
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
	}

	job, err := decodeJob(msg.message)
	if err != nil {
		return q.handleFailure(ctx, msg, err)
	}

	if err := handler(ctx, job); err != nil {
		if handleErr := q.handleFailure(ctx, msg, err); handleErr != nil {
			return handleErr
		}
	} else if err := msg.reader.CommitMessages(ctx, msg.message); err != nil {
		return fmt.Errorf("commit sync job offset: %w", err)
	}

	return nil
}

func decodeJob(message kafka.Message) (*SyncJob, error) {
	var job SyncJob
	if err := json.Unmarshal(message.Value, &job); err != nil {
		return nil, fmt.Errorf("unmarshal sync job: %w", err)
	}
	return &job, nil
}

func (q *SyncQueue) handleFailure(ctx context.Context, msg queuedMessage, handlerErr error) error {
	retryCount := retryAttempt(msg.message)

	if retryCount < q.maxRetry && q.retryTopic != "" {
		retryAt := time.Now().Add(calculateBackoff(retryCount + 1))
		headers := appendHeaders(msg.message.Headers,
			kafka.Header{Key: headerSyncRetryCount, Value: []byte(strconv.Itoa(retryCount + 1))},
			kafka.Header{Key: headerSyncRetryAt, Value: []byte(retryAt.Format(time.RFC3339Nano))},
			kafka.Header{Key: headerSyncOriginTopic, Value: []byte(msg.message.Topic)},
		)
		if err := q.publish(ctx, q.retryWriter, q.retryTopic, msg.message.Key, msg.message.Value, headers); err != nil {
			return err
		}
		if err := msg.reader.CommitMessages(ctx, msg.message); err != nil {
			return fmt.Errorf("commit sync job offset: %w", err)
		}
		return nil
	}

	if q.dlqTopic != "" {
		headers := appendHeaders(msg.message.Headers,
			kafka.Header{Key: headerSyncOriginTopic, Value: []byte(msg.message.Topic)},
			kafka.Header{Key: headerSyncDLQError, Value: []byte(handlerErr.Error())},
		)
		if err := q.publish(ctx, q.dlqWriter, q.dlqTopic, msg.message.Key, msg.message.Value, headers); err != nil {
			return err
		}
		if err := msg.reader.CommitMessages(ctx, msg.message); err != nil {
			return fmt.Errorf("commit sync job offset: %w", err)
		}
		return nil
	}

	return handlerErr
}

func calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(defaultBackoffSecs) * math.Pow(2, float64(attempt-1))
	return time.Duration(delay) * time.Second
}

func retryAttempt(message kafka.Message) int {
	for _, header := range message.Headers {
		if header.Key == headerSyncRetryCount {
			count, err := strconv.Atoi(string(header.Value))
			if err == nil {
				return count
			}
			return 0
		}
	}
	return 0
}

func retryTime(message kafka.Message) time.Time {
	for _, header := range message.Headers {
		if header.Key == headerSyncRetryAt {
			parsed, err := time.Parse(time.RFC3339Nano, string(header.Value))
			if err == nil {
				return parsed
			}
			return time.Time{}
		}
	}
	return time.Time{}
}

func appendHeaders(existing []kafka.Header, headers ...kafka.Header) []kafka.Header {
	merged := make([]kafka.Header, 0, len(existing)+len(headers))
	merged = append(merged, existing...)
	merged = append(merged, headers...)
	return merged
}

func (q *SyncQueue) publish(ctx context.Context, writer *kafka.Writer, topic string, key, value []byte, headers []kafka.Header) error {
	if writer == nil {
		return errors.New("sync queue writer is not configured")
	}
	if topic == "" {
		return errors.New("sync queue topic is not configured")
	}

	message := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: headers,
		Time:    time.Now(),
	}
	return writer.WriteMessages(ctx, message)
}

func (q *SyncQueue) Close() error {
	q.messageGroup.Wait()
	if q.writer != nil {
		if err := q.writer.Close(); err != nil {
			return err
		}
	}
	if q.retryWriter != nil {
		if err := q.retryWriter.Close(); err != nil {
			return err
		}
	}
	if q.dlqWriter != nil {
		if err := q.dlqWriter.Close(); err != nil {
			return err
		}
	}
	if q.reader != nil {
		if err := q.reader.Close(); err != nil {
			return err
		}
	}
	if q.retryReader != nil {
		if err := q.retryReader.Close(); err != nil {
			return err
		}
	}
	return nil
}
