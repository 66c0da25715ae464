package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
	"github.com/louisbranch/quickroll/internal/services/roll/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "quickroll.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func sampleMessage(id string) message.Message {
	roll := message.Roll{
		Kind:       message.KindDamage,
		DamageType: "fire",
		Properties: []string{"mgc"},
		Terms:      []message.Term{message.Die(6, 2, 5), message.Plus(), message.Number(3)},
	}
	roll.Recompute()
	return message.Message{
		ID:        id,
		Author:    "user-1",
		Speaker:   message.Speaker{Scene: "scene-1", Token: "token-1", Actor: "actor-1"},
		Type:      message.TypeRoll,
		RollType:  message.RollTypeDamage,
		ItemID:    "item-1",
		Flavor:    "Firebolt",
		Flags:     message.Flags{QuickRoll: true},
		Rolls:     []message.Roll{roll},
		CreatedAt: time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC),
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestPutGetMessageRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	put, err := store.PutMessage(ctx, sampleMessage("msg-1"))
	if err != nil {
		t.Fatalf("put message: %v", err)
	}
	if put.Version != 1 {
		t.Fatalf("version = %d, want 1", put.Version)
	}

	got, err := store.GetMessage(ctx, "msg-1")
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if got.Speaker.Actor != "actor-1" || got.RollType != message.RollTypeDamage || got.Flavor != "Firebolt" {
		t.Fatalf("message = %+v", got)
	}
	if !got.Flags.QuickRoll || got.Flags.Processed {
		t.Fatalf("flags = %+v", got.Flags)
	}
	if len(got.Rolls) != 1 || got.Rolls[0].Total != 10 || got.Rolls[0].Terms[0].Results[1].Value != 5 {
		t.Fatalf("rolls = %+v", got.Rolls)
	}
	if !got.CreatedAt.Equal(put.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, put.CreatedAt)
	}
}

func TestPutMessageReturnsAlreadyExistsOnDuplicate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if _, err := store.PutMessage(ctx, sampleMessage("dup")); err != nil {
		t.Fatalf("put message: %v", err)
	}
	_, err := store.PutMessage(ctx, sampleMessage("dup"))
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate put error = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.GetMessage(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestUpdateMessageDetectsStaleVersion(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	put, err := store.PutMessage(ctx, sampleMessage("msg-1"))
	if err != nil {
		t.Fatalf("put message: %v", err)
	}

	first := put.Clone()
	first.Flags.Processed = true
	updated, err := store.UpdateMessage(ctx, first)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("version = %d, want 2", updated.Version)
	}

	stale := put.Clone()
	stale.Flags.IsCritical = true
	if _, err := store.UpdateMessage(ctx, stale); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("stale update error = %v, want %v", err, storage.ErrVersionConflict)
	}

	got, err := store.GetMessage(ctx, "msg-1")
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if !got.Flags.Processed || got.Flags.IsCritical {
		t.Fatalf("flags = %+v, stale write must not land", got.Flags)
	}
}

func TestUpdateMessageNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	msg := sampleMessage("ghost")
	msg.Version = 1
	if _, err := store.UpdateMessage(context.Background(), msg); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestMergeMessageIsAtomic(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	parent, err := store.PutMessage(ctx, message.Message{ID: "parent", Author: "user-1", Type: message.TypeUsage})
	if err != nil {
		t.Fatalf("put parent: %v", err)
	}
	child := sampleMessage("child")
	child.OriginatingMessageID = "parent"
	if _, err := store.PutMessage(ctx, child); err != nil {
		t.Fatalf("put child: %v", err)
	}

	merged := parent.Clone()
	merged.Flags.RenderDamage = true
	merged.Rolls = append(merged.Rolls, child.Rolls...)
	out, err := store.MergeMessage(ctx, merged, "child")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if out.Version != 2 {
		t.Fatalf("parent version = %d, want 2", out.Version)
	}
	if _, err := store.GetMessage(ctx, "child"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("child lookup error = %v, want %v", err, storage.ErrNotFound)
	}

	// A second merge of the same child finds nothing and leaves the parent alone.
	again := out.Clone()
	again.Rolls = append(again.Rolls, child.Rolls...)
	if _, err := store.MergeMessage(ctx, again, "child"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("re-merge error = %v, want %v", err, storage.ErrNotFound)
	}
	got, err := store.GetMessage(ctx, "parent")
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if len(got.Rolls) != 1 || !got.Flags.RenderDamage || got.Version != 2 {
		t.Fatalf("parent = %+v", got)
	}
}

func TestMergeMessageRollsBackOnStaleParent(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	parent, err := store.PutMessage(ctx, message.Message{ID: "parent", Type: message.TypeUsage})
	if err != nil {
		t.Fatalf("put parent: %v", err)
	}
	child := sampleMessage("child")
	child.OriginatingMessageID = "parent"
	if _, err := store.PutMessage(ctx, child); err != nil {
		t.Fatalf("put child: %v", err)
	}
	if _, err := store.UpdateMessage(ctx, parent); err != nil {
		t.Fatalf("bump parent: %v", err)
	}

	if _, err := store.MergeMessage(ctx, parent, "child"); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("merge error = %v, want %v", err, storage.ErrVersionConflict)
	}
	if _, err := store.GetMessage(ctx, "child"); err != nil {
		t.Fatalf("child should survive a failed merge: %v", err)
	}
}

func TestDeleteMessage(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	put, err := store.PutMessage(ctx, sampleMessage("msg-1"))
	if err != nil {
		t.Fatalf("put message: %v", err)
	}
	if err := store.DeleteMessage(ctx, "msg-1", put.Version+1); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("stale delete error = %v, want %v", err, storage.ErrVersionConflict)
	}
	if err := store.DeleteMessage(ctx, "msg-1", put.Version); err != nil {
		t.Fatalf("delete message: %v", err)
	}
	if err := store.DeleteMessage(ctx, "msg-1", put.Version); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestListMessagesPaginates(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		if _, err := store.PutMessage(ctx, sampleMessage(id)); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	first, err := store.ListMessages(ctx, 2, "")
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first.Messages) != 2 || first.Messages[0].ID != "a" || first.NextPageToken != "b" {
		t.Fatalf("first page = %+v", first)
	}
	second, err := store.ListMessages(ctx, 2, first.NextPageToken)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Messages) != 1 || second.Messages[0].ID != "c" || second.NextPageToken != "" {
		t.Fatalf("second page = %+v", second)
	}
}

func TestAuditRecordsRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	rec := storage.AuditRecord{
		ID:         "audit-1",
		MessageID:  "msg-1",
		Author:     "user-1",
		KeepPolicy: message.KeepNew,
		Rows: []storage.AuditRow{
			{Faces: 6, OldValue: 2, NewValue: 6, FinalValue: 6, Delta: 4},
			{Faces: 6, OldValue: 5, NewValue: 1, FinalValue: 1, Delta: -4},
		},
		CreatedAt: time.Date(2026, time.March, 3, 11, 0, 0, 0, time.UTC),
	}
	if err := store.PutAuditRecord(ctx, rec); err != nil {
		t.Fatalf("put audit record: %v", err)
	}
	if err := store.PutAuditRecord(ctx, rec); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate audit error = %v, want %v", err, storage.ErrAlreadyExists)
	}

	got, err := store.ListAuditRecords(ctx, "msg-1")
	if err != nil {
		t.Fatalf("list audit records: %v", err)
	}
	if len(got) != 1 || len(got[0].Rows) != 2 || got[0].Rows[1].Delta != -4 || got[0].KeepPolicy != message.KeepNew {
		t.Fatalf("records = %+v", got)
	}
	if !got[0].CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got[0].CreatedAt, rec.CreatedAt)
	}
}
