package audit

import (
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seatwise/seatwise/pkg/model"
)

// Sink persists audit rows on the caller's transaction.
type Sink interface {
	RecordTx(tx *gorm.DB, entry *model.AuditLog) error
}

// Recorder appends audit rows for entity mutations. Changed runs inside the
// mutation's transaction, so the change and its audit row commit or roll
// back together.
type Recorder struct {
	sink   Sink
	logger *zap.Logger
}

func NewRecorder(sink Sink, logger *zap.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger}
}

func (r *Recorder) Changed(tx *gorm.DB, entity, operation, recordID, actorID string, before, after interface{}) error {
	entry := &model.AuditLog{
		Entity:    entity,
		Operation: operation,
		RecordID:  recordID,
		ActorID:   actorID,
		Before:    toJSONB(before),
		After:     toJSONB(after),
		Status:    model.AuditStatusPending,
	}

	if err := r.sink.RecordTx(tx, entry); err != nil {
		r.logger.Error("failed to record audit entry",
			zap.String("entity", entity),
			zap.String("operation", operation),
			zap.String("record_id", recordID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func toJSONB(value interface{}) model.JSONB {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	var out model.JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
