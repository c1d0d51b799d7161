package audit

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seatwise/seatwise/pkg/model"
)

type captureSink struct {
	tx    *gorm.DB
	entry *model.AuditLog
	err   error
}

func (s *captureSink) RecordTx(tx *gorm.DB, entry *model.AuditLog) error {
	s.tx = tx
	s.entry = entry
	return s.err
}

func TestChangedWritesOnCallerTransaction(t *testing.T) {
	sink := &captureSink{}
	recorder := NewRecorder(sink, zap.NewNop())
	tx := &gorm.DB{}

	err := recorder.Changed(tx, "tenant_clients", model.AuditOpUpdate, "record-1", "op-1",
		map[string]interface{}{"name": "old"},
		map[string]interface{}{"name": "new"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sink.tx != tx {
		t.Fatal("audit row must be written on the caller's transaction")
	}
	entry := sink.entry
	if entry == nil {
		t.Fatal("expected an audit entry")
	}
	if entry.Entity != "tenant_clients" || entry.Operation != model.AuditOpUpdate {
		t.Fatalf("unexpected entry %s/%s", entry.Entity, entry.Operation)
	}
	if entry.RecordID != "record-1" || entry.ActorID != "op-1" {
		t.Fatalf("unexpected record/actor %s/%s", entry.RecordID, entry.ActorID)
	}
	if entry.Status != model.AuditStatusPending {
		t.Fatalf("expected pending entry, got %s", entry.Status)
	}
	if entry.Before["name"] != "old" || entry.After["name"] != "new" {
		t.Fatalf("unexpected payloads: before=%v after=%v", entry.Before, entry.After)
	}
}

func TestChangedPropagatesSinkError(t *testing.T) {
	sink := &captureSink{err: errors.New("insert failed")}
	recorder := NewRecorder(sink, zap.NewNop())

	// The error must surface so the surrounding transaction rolls the
	// mutation back together with the missing audit row.
	err := recorder.Changed(&gorm.DB{}, "analyses", model.AuditOpInsert, "record-2", "", nil, nil)
	if err == nil {
		t.Fatal("expected the sink error to propagate")
	}
}

func TestChangedOmitsNilPayloads(t *testing.T) {
	sink := &captureSink{}
	recorder := NewRecorder(sink, zap.NewNop())

	if err := recorder.Changed(&gorm.DB{}, "analyses", model.AuditOpDelete, "record-3", "op-2", map[string]interface{}{"status": "PENDING"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.entry.After != nil {
		t.Fatalf("expected no after payload, got %v", sink.entry.After)
	}
	if sink.entry.Before == nil {
		t.Fatal("expected a before payload")
	}
}
