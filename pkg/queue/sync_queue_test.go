package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestProducerConstruction(t *testing.T) {
	q := NewSyncQueueProducer([]string{"broker-1:9092", "broker-2:9092"}, "seatwise-test", "sync.jobs")

	if q.writer == nil {
		t.Fatal("expected a configured writer")
	}
	if q.writer.Addr == nil {
		t.Fatal("expected the writer to carry broker addresses")
	}
	if q.writer.RequiredAcks != kafka.RequireAll {
		t.Fatalf("expected RequireAll acks, got %v", q.writer.RequiredAcks)
	}
	if q.topic != "sync.jobs" {
		t.Fatalf("expected topic sync.jobs, got %q", q.topic)
	}
	if q.reader != nil {
		t.Fatal("producer must not hold a reader")
	}
}

func TestConsumerConstruction(t *testing.T) {
	q := NewSyncQueueConsumer(
		[]string{"broker-1:9092"}, "seatwise-test", "workers",
		"sync.jobs", "sync.jobs.retry", "sync.jobs.dlq",
	)

	if q.writer == nil || q.retryWriter == nil || q.dlqWriter == nil {
		t.Fatal("expected main, retry and dlq writers")
	}
	if q.reader == nil || q.retryReader == nil {
		t.Fatal("expected main and retry readers")
	}
	if q.maxRetry != defaultSyncRetryLimit {
		t.Fatalf("expected retry limit %d, got %d", defaultSyncRetryLimit, q.maxRetry)
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 0},
		{attempt: 1, want: 10 * time.Second},
		{attempt: 2, want: 20 * time.Second},
		{attempt: 3, want: 40 * time.Second},
	}

	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryHeaderRoundTrip(t *testing.T) {
	retryAt := time.Now().Add(30 * time.Second).Truncate(time.Millisecond)
	message := kafka.Message{
		Headers: appendHeaders(nil,
			kafka.Header{Key: headerSyncRetryCount, Value: []byte("2")},
			kafka.Header{Key: headerSyncRetryAt, Value: []byte(retryAt.Format(time.RFC3339Nano))},
		),
	}

	if got := retryAttempt(message); got != 2 {
		t.Fatalf("expected retry attempt 2, got %d", got)
	}
	if got := retryTime(message); !got.Equal(retryAt) {
		t.Fatalf("expected retry time %v, got %v", retryAt, got)
	}
}

func TestRetryHeadersAbsent(t *testing.T) {
	message := kafka.Message{}

	if got := retryAttempt(message); got != 0 {
		t.Fatalf("expected attempt 0 without headers, got %d", got)
	}
	if got := retryTime(message); !got.IsZero() {
		t.Fatalf("expected zero retry time without headers, got %v", got)
	}
}

func TestDecodeJob(t *testing.T) {
	job := &SyncJob{
		JobID:          "job-1",
		TenantClientID: "tenant-1",
		Kind:           SyncUsers,
		RequestedBy:    "op-1",
		RequestedAt:    time.Now().UTC().Truncate(time.Second),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}

	decoded, err := decodeJob(kafka.Message{Value: payload})
	if err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if decoded.JobID != job.JobID || decoded.Kind != job.Kind || decoded.TenantClientID != job.TenantClientID {
		t.Fatalf("decoded job %+v does not match %+v", decoded, job)
	}

	if _, err := decodeJob(kafka.Message{Value: []byte("not json")}); err == nil {
		t.Fatal("expected an error for a malformed payload")
	}
}
