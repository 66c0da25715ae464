package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/quickroll/internal/platform/id"
	"github.com/louisbranch/quickroll/internal/services/roll/storage"
)

// Emitter writes reroll audit records.
type Emitter struct {
	store storage.AuditStore
	clock func() time.Time
	ids   id.Generator
}

// NewEmitter creates an emitter backed by store.
func NewEmitter(store storage.AuditStore) *Emitter {
	return &Emitter{store: store, clock: time.Now, ids: id.NewID}
}

// Emit stores rec, assigning an id and timestamp when missing. It is a no-op
// when the emitter or its store is nil, and returns the stored record.
func (e *Emitter) Emit(ctx context.Context, rec storage.AuditRecord) (storage.AuditRecord, error) {
	if e == nil || e.store == nil {
		return rec, nil
	}
	if rec.ID == "" {
		ids := e.ids
		if ids == nil {
			ids = id.NewID
		}
		recordID, err := ids()
		if err != nil {
			return rec, fmt.Errorf("generate audit record id: %w", err)
		}
		rec.ID = recordID
	}
	if rec.CreatedAt.IsZero() {
		if e.clock == nil {
			rec.CreatedAt = time.Now().UTC()
		} else {
			rec.CreatedAt = e.clock().UTC()
		}
	}
	if err := e.store.PutAuditRecord(ctx, rec); err != nil {
		return rec, err
	}
	return rec, nil
}
