// Package sqlite provides a SQLite-backed roll storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/quickroll/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
	"github.com/louisbranch/quickroll/internal/services/roll/storage"
	"github.com/louisbranch/quickroll/internal/services/roll/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists roll state in SQLite.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite roll store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, clock: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

// PutMessage inserts a new message at version 1.
func (s *Store) PutMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	if err := s.ready(ctx); err != nil {
		return message.Message{}, err
	}
	msg.ID = strings.TrimSpace(msg.ID)
	if msg.ID == "" {
		return message.Message{}, fmt.Errorf("message id is required")
	}
	flagsJSON, rollsJSON, err := encodeMessage(msg)
	if err != nil {
		return message.Message{}, err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	msg.UpdatedAt = msg.CreatedAt
	msg.Version = 1

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO roll_messages (
		   id, author, speaker_scene, speaker_token, speaker_actor,
		   message_type, roll_type, activity_type, item_id,
		   originating_message_id, flavor, flags_json, rolls_json,
		   animating, version, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.Author,
		msg.Speaker.Scene,
		msg.Speaker.Token,
		msg.Speaker.Actor,
		string(msg.Type),
		string(msg.RollType),
		msg.ActivityType,
		msg.ItemID,
		msg.OriginatingMessageID,
		msg.Flavor,
		flagsJSON,
		rollsJSON,
		msg.Animating,
		msg.Version,
		toMillis(msg.CreatedAt),
		toMillis(msg.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return message.Message{}, storage.ErrAlreadyExists
		}
		return message.Message{}, fmt.Errorf("put message: %w", err)
	}
	return msg, nil
}

const selectMessage = `SELECT id, author, speaker_scene, speaker_token, speaker_actor,
	        message_type, roll_type, activity_type, item_id,
	        originating_message_id, flavor, flags_json, rolls_json,
	        animating, version, created_at, updated_at
	   FROM roll_messages`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (message.Message, error) {
	var (
		msg                  message.Message
		msgType, rollType    string
		flagsJSON, rollsJSON string
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&msg.ID,
		&msg.Author,
		&msg.Speaker.Scene,
		&msg.Speaker.Token,
		&msg.Speaker.Actor,
		&msgType,
		&rollType,
		&msg.ActivityType,
		&msg.ItemID,
		&msg.OriginatingMessageID,
		&msg.Flavor,
		&flagsJSON,
		&rollsJSON,
		&msg.Animating,
		&msg.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return message.Message{}, err
	}
	msg.Type = message.Type(msgType)
	msg.RollType = message.RollType(rollType)
	if err := json.Unmarshal([]byte(flagsJSON), &msg.Flags); err != nil {
		return message.Message{}, fmt.Errorf("decode flags for %s: %w", msg.ID, err)
	}
	if err := json.Unmarshal([]byte(rollsJSON), &msg.Rolls); err != nil {
		return message.Message{}, fmt.Errorf("decode rolls for %s: %w", msg.ID, err)
	}
	msg.CreatedAt = fromMillis(createdAt)
	msg.UpdatedAt = fromMillis(updatedAt)
	return msg, nil
}

// GetMessage returns one message by id.
func (s *Store) GetMessage(ctx context.Context, id string) (message.Message, error) {
	if err := s.ready(ctx); err != nil {
		return message.Message{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return message.Message{}, fmt.Errorf("message id is required")
	}
	msg, err := scanMessage(s.sqlDB.QueryRowContext(ctx, selectMessage+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return message.Message{}, storage.ErrNotFound
		}
		return message.Message{}, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// ListMessages returns one page of messages ordered by id.
func (s *Store) ListMessages(ctx context.Context, pageSize int, pageToken string) (storage.MessagePage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.MessagePage{}, err
	}
	if pageSize <= 0 {
		return storage.MessagePage{}, fmt.Errorf("page size must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		selectMessage+` WHERE id > ? ORDER BY id ASC LIMIT ?`,
		strings.TrimSpace(pageToken),
		pageSize+1,
	)
	if err != nil {
		return storage.MessagePage{}, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	page := storage.MessagePage{Messages: make([]message.Message, 0, pageSize)}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return storage.MessagePage{}, fmt.Errorf("list messages: %w", err)
		}
		page.Messages = append(page.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return storage.MessagePage{}, fmt.Errorf("list messages: %w", err)
	}
	if len(page.Messages) > pageSize {
		page.NextPageToken = page.Messages[pageSize-1].ID
		page.Messages = page.Messages[:pageSize]
	}
	return page, nil
}

// UpdateMessage writes msg when its version still matches.
func (s *Store) UpdateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	if err := s.ready(ctx); err != nil {
		return message.Message{}, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return message.Message{}, fmt.Errorf("begin update: %w", err)
	}
	out, err := s.updateTx(ctx, tx, msg)
	if err != nil {
		_ = tx.Rollback()
		return message.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return message.Message{}, fmt.Errorf("commit update: %w", err)
	}
	return out, nil
}

func (s *Store) updateTx(ctx context.Context, tx *sql.Tx, msg message.Message) (message.Message, error) {
	flagsJSON, rollsJSON, err := encodeMessage(msg)
	if err != nil {
		return message.Message{}, err
	}
	updatedAt := s.now()
	res, err := tx.ExecContext(
		ctx,
		`UPDATE roll_messages
		    SET flavor = ?, flags_json = ?, rolls_json = ?, animating = ?,
		        version = version + 1, updated_at = ?
		  WHERE id = ? AND version = ?`,
		msg.Flavor,
		flagsJSON,
		rollsJSON,
		msg.Animating,
		toMillis(updatedAt),
		msg.ID,
		msg.Version,
	)
	if err != nil {
		return message.Message{}, fmt.Errorf("update message: %w", err)
	}
	if err := s.expectOneRow(ctx, tx, res, msg.ID); err != nil {
		return message.Message{}, err
	}
	msg.Version++
	msg.UpdatedAt = updatedAt
	return msg, nil
}

// expectOneRow distinguishes a missing row from a stale version when a
// guarded write touched nothing.
func (s *Store) expectOneRow(ctx context.Context, tx *sql.Tx, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}
	var found int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM roll_messages WHERE id = ?`, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check message %s: %w", id, err)
	}
	return storage.ErrVersionConflict
}

// DeleteMessage removes a message when its version still matches.
func (s *Store) DeleteMessage(ctx context.Context, id string, version int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM roll_messages WHERE id = ? AND version = ?`, id, version)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete message: %w", err)
	}
	if err := s.expectOneRow(ctx, tx, res, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// MergeMessage writes the merged parent and deletes the child atomically.
func (s *Store) MergeMessage(ctx context.Context, parent message.Message, childID string) (message.Message, error) {
	if err := s.ready(ctx); err != nil {
		return message.Message{}, err
	}
	childID = strings.TrimSpace(childID)
	if childID == "" || childID == parent.ID {
		return message.Message{}, fmt.Errorf("child id must name another message")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return message.Message{}, fmt.Errorf("begin merge: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM roll_messages WHERE id = ? AND originating_message_id = ?`, childID, parent.ID)
	if err != nil {
		_ = tx.Rollback()
		return message.Message{}, fmt.Errorf("delete merged child: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil || affected != 1 {
		_ = tx.Rollback()
		if err != nil {
			return message.Message{}, fmt.Errorf("rows affected: %w", err)
		}
		return message.Message{}, fmt.Errorf("merge child %s: %w", childID, storage.ErrNotFound)
	}
	out, err := s.updateTx(ctx, tx, parent)
	if err != nil {
		_ = tx.Rollback()
		return message.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return message.Message{}, fmt.Errorf("commit merge: %w", err)
	}
	return out, nil
}

// PutAuditRecord inserts one audit record.
func (s *Store) PutAuditRecord(ctx context.Context, rec storage.AuditRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("audit record id is required")
	}
	if strings.TrimSpace(rec.MessageID) == "" {
		return fmt.Errorf("audit record message id is required")
	}
	rowsJSON, err := json.Marshal(rec.Rows)
	if err != nil {
		return fmt.Errorf("encode audit rows: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO reroll_audit_records (
		   id, message_id, author, keep_policy, rows_json, total_delta, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.MessageID,
		rec.Author,
		string(rec.KeepPolicy),
		string(rowsJSON),
		rec.TotalDelta,
		toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put audit record: %w", err)
	}
	return nil
}

// ListAuditRecords returns the audit records of a message, oldest first.
func (s *Store) ListAuditRecords(ctx context.Context, messageID string) ([]storage.AuditRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, message_id, author, keep_policy, rows_json, total_delta, created_at
		   FROM reroll_audit_records
		  WHERE message_id = ?
		  ORDER BY created_at ASC, id ASC`,
		strings.TrimSpace(messageID),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var out []storage.AuditRecord
	for rows.Next() {
		var (
			rec       storage.AuditRecord
			policy    string
			rowsJSON  string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.MessageID, &rec.Author, &policy, &rowsJSON, &rec.TotalDelta, &createdAt); err != nil {
			return nil, fmt.Errorf("list audit records: %w", err)
		}
		if err := json.Unmarshal([]byte(rowsJSON), &rec.Rows); err != nil {
			return nil, fmt.Errorf("decode audit rows for %s: %w", rec.ID, err)
		}
		rec.KeepPolicy = message.KeepPolicy(policy)
		rec.CreatedAt = fromMillis(createdAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return out, nil
}

func encodeMessage(msg message.Message) (string, string, error) {
	flagsJSON, err := json.Marshal(msg.Flags)
	if err != nil {
		return "", "", fmt.Errorf("encode flags: %w", err)
	}
	rolls := msg.Rolls
	if rolls == nil {
		rolls = []message.Roll{}
	}
	rollsJSON, err := json.Marshal(rolls)
	if err != nil {
		return "", "", fmt.Errorf("encode rolls: %w", err)
	}
	return string(flagsJSON), string(rollsJSON), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
