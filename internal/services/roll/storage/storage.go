// Package storage defines persistence contracts for roll messages and their
// reroll audit records.
//
// Message writes are versioned: every update names the version it was derived
// from and fails with ErrVersionConflict when another writer got there first.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a record with the same id already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrVersionConflict indicates the stored message changed since it was read.
	ErrVersionConflict = errors.New("message version conflict")
)

// MessagePage stores one page of messages.
type MessagePage struct {
	Messages      []message.Message
	NextPageToken string
}

// MessageStore persists roll messages.
type MessageStore interface {
	// PutMessage inserts a new message at version 1.
	PutMessage(ctx context.Context, msg message.Message) (message.Message, error)
	GetMessage(ctx context.Context, id string) (message.Message, error)
	ListMessages(ctx context.Context, pageSize int, pageToken string) (MessagePage, error)
	// UpdateMessage replaces flags, rolls and display fields when msg.Version
	// matches the stored version, and returns the message at the next version.
	UpdateMessage(ctx context.Context, msg message.Message) (message.Message, error)
	DeleteMessage(ctx context.Context, id string, version int64) error
	// MergeMessage updates parent and deletes childID in one transaction.
	// A missing child aborts the merge with ErrNotFound.
	MergeMessage(ctx context.Context, parent message.Message, childID string) (message.Message, error)
}

// AuditRow is one rerolled die in an audit record.
type AuditRow struct {
	Faces      int `json:"faces"`
	OldValue   int `json:"old_value"`
	NewValue   int `json:"new_value"`
	FinalValue int `json:"final_value"`
	Delta      int `json:"delta"`
}

// AuditRecord summarizes one completed reroll. It references its message by
// id and is never modified after it is written.
type AuditRecord struct {
	ID         string
	MessageID  string
	Author     string
	KeepPolicy message.KeepPolicy
	Rows       []AuditRow
	TotalDelta int
	CreatedAt  time.Time
}

// AuditStore persists reroll audit records.
type AuditStore interface {
	PutAuditRecord(ctx context.Context, rec AuditRecord) error
	ListAuditRecords(ctx context.Context, messageID string) ([]AuditRecord, error)
}

// Store is the full roll service persistence surface.
type Store interface {
	MessageStore
	AuditStore
	Close() error
}
