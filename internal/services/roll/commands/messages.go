package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/quickroll/internal/platform/id"
	"github.com/louisbranch/quickroll/internal/platform/requestctx"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/lifecycle"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
	"github.com/louisbranch/quickroll/internal/services/roll/storage"
)

// CreateMessage stores a new message delivered by the host. A missing id is
// generated and roll totals are recomputed before the write.
func (s *Service) CreateMessage(ctx context.Context, msg message.Message) (_ message.Message, err error) {
	ctx, span := s.start(ctx, "create_message", msg.ID)
	defer func() { finish(span, err) }()

	if strings.TrimSpace(msg.ID) == "" {
		generated, genErr := id.NewID()
		if genErr != nil {
			return message.Message{}, fail(msg.ID, "generate message id", genErr)
		}
		msg.ID = generated
	}
	for i, roll := range msg.Rolls {
		if !roll.Kind.Valid() {
			return message.Message{}, fail(msg.ID, "create message", fmt.Errorf("%w: roll %d has unknown kind %q", errInvalidRequest, i, roll.Kind))
		}
	}
	msg.Recompute()
	now := s.clock().UTC()
	msg.CreatedAt, msg.UpdatedAt = now, now

	stored, err := s.store.PutMessage(ctx, msg)
	if err != nil {
		return message.Message{}, fail(msg.ID, "create message", persistence(err))
	}
	s.logger.DebugContext(ctx, "message created", "roll_type", lifecycle.Classify(stored))
	return stored, nil
}

// GetMessage returns a message with its presentation view.
func (s *Service) GetMessage(ctx context.Context, messageID string) (Outcome, error) {
	msg, err := s.get(ctx, messageID)
	if err != nil {
		return Outcome{}, fail(messageID, "get message", err)
	}
	return s.outcome(ctx, msg), nil
}

// ListMessages pages through stored messages.
func (s *Service) ListMessages(ctx context.Context, pageSize int, cursor string) (storage.MessagePage, error) {
	page, err := s.store.ListMessages(ctx, pageSize, cursor)
	if err != nil {
		return storage.MessagePage{}, fail("", "list messages", persistence(err))
	}
	return page, nil
}

// FinishAnimation clears the animating mark of a message, releasing any
// Process call waiting on it.
func (s *Service) FinishAnimation(ctx context.Context, messageID string) (_ message.Message, err error) {
	ctx, span := s.start(ctx, "finish_animation", messageID)
	defer func() { finish(span, err) }()

	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.get(ctx, messageID)
	if err != nil {
		return message.Message{}, fail(messageID, "finish animation", err)
	}
	if !msg.Animating {
		return msg, nil
	}
	msg.Animating = false
	updated, err := s.update(ctx, msg)
	if err != nil {
		return message.Message{}, fail(messageID, "finish animation", err)
	}
	return updated, nil
}

// Outcome is a message together with how it should be presented to the
// calling user.
type Outcome struct {
	Message  message.Message
	View     lifecycle.View
	Controls lifecycle.Controls
	// MergedInto is the parent id when the message was folded into it and
	// no longer exists.
	MergedInto string
}

func (s *Service) outcome(ctx context.Context, msg message.Message) Outcome {
	return Outcome{
		Message:  msg,
		View:     lifecycle.ViewOf(msg),
		Controls: lifecycle.ControlsFor(msg, requestctx.UserIDFromContext(ctx), requestctx.IsGM(ctx)),
	}
}

func (s *Service) get(ctx context.Context, messageID string) (message.Message, error) {
	if strings.TrimSpace(messageID) == "" {
		return message.Message{}, fmt.Errorf("%w: message id is required", errInvalidRequest)
	}
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return message.Message{}, persistence(err)
	}
	return msg, nil
}

func (s *Service) update(ctx context.Context, msg message.Message) (message.Message, error) {
	updated, err := s.store.UpdateMessage(ctx, msg)
	if err != nil {
		return message.Message{}, persistence(err)
	}
	return updated, nil
}

// persistence tags unexpected store failures; not-found and version
// conflicts keep their own meaning.
func persistence(err error) error {
	if err == nil || errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrVersionConflict) {
		return err
	}
	return fmt.Errorf("%w: %w", errPersistence, err)
}
