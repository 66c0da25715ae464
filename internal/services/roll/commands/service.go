// Package commands exposes the roll pipeline entry points.
//
// Every mutating command follows the same shape: take the per-message lock,
// fetch the current message, mutate a copy through the domain packages and
// write it back with one versioned update. Confirmation prompts, roller calls
// and animation waits are suspension points; the message is fetched again
// after each of them instead of reusing an earlier copy.
package commands

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/quickroll/internal/core/dice"
	"github.com/louisbranch/quickroll/internal/platform/i18n/catalog"
	"github.com/louisbranch/quickroll/internal/platform/logging"
	"github.com/louisbranch/quickroll/internal/platform/requestctx"
	"github.com/louisbranch/quickroll/internal/platform/timeouts"
	"github.com/louisbranch/quickroll/internal/services/roll/audit"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/critical"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/damage"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
	"github.com/louisbranch/quickroll/internal/services/roll/storage"
)

const tracerName = "github.com/louisbranch/quickroll/internal/services/roll/commands"

// Actions runs the activity actions of a usage message. Each action creates a
// sub-roll message that is later processed and merged into the usage message.
type Actions interface {
	RunActivityActions(ctx context.Context, msg message.Message) error
	RunActivityAction(ctx context.Context, msg message.Message, rollType message.RollType) error
}

// Prompt is a confirmation question shown to a user.
type Prompt struct {
	UserID    string
	MessageID string
	Text      string
}

// Confirmer asks a user to confirm a retroactive change.
type Confirmer interface {
	Confirm(ctx context.Context, prompt Prompt) (bool, error)
}

// Level grades a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing message produced by a command.
type Notice struct {
	UserID    string
	MessageID string
	Level     Level
	Key       string
	Text      string
}

// Notifier shows notices to users.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// Animator reports when the dice animation for a message has finished.
type Animator interface {
	WaitForAnimation(ctx context.Context, messageID string) error
}

// Policy holds the behaviour switches read from configuration.
type Policy struct {
	// AlwaysMultiRoll adds a companion d20 to every normal d20 roll.
	AlwaysMultiRoll bool
	// ConfirmRetroAdv asks before a retroactive advantage/disadvantage.
	ConfirmRetroAdv bool
	// ConfirmRetroCrit asks before a retroactive critical.
	ConfirmRetroCrit bool
	// Vanilla adopts messages produced outside the pipeline.
	Vanilla bool
	// AnimationTimeout bounds the wait for dice animations.
	AnimationTimeout time.Duration
}

// Deps are the collaborators of a Service. Store and Roller are required.
type Deps struct {
	Store    storage.Store
	Roller   dice.Roller
	Critical critical.Source
	Actions  Actions
	Confirm  Confirmer
	Notifier Notifier
	Animator Animator
	Actors   damage.Actors
	Audit    *audit.Emitter
	Catalog  *catalog.Bundle
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Service runs roll commands.
type Service struct {
	store    storage.Store
	roller   dice.Roller
	critical critical.Source
	actions  Actions
	confirm  Confirmer
	notifier Notifier
	animator Animator
	actors   damage.Actors
	audit    *audit.Emitter
	catalog  *catalog.Bundle
	logger   *slog.Logger
	clock    func() time.Time
	policy   Policy
	locks    *keyedMutex
	pending  *claimSet
	tracer   trace.Tracer
}

// NewService wires a Service. Missing optional collaborators fall back to
// defaults: a formula critical source, the context confirmer, a logging
// notifier, the embedded catalog and an audit emitter on the store.
func NewService(deps Deps, policy Policy) *Service {
	s := &Service{
		store:    deps.Store,
		roller:   deps.Roller,
		critical: deps.Critical,
		actions:  deps.Actions,
		confirm:  deps.Confirm,
		notifier: deps.Notifier,
		animator: deps.Animator,
		actors:   deps.Actors,
		audit:    deps.Audit,
		catalog:  deps.Catalog,
		logger:   deps.Logger,
		clock:    deps.Clock,
		policy:   policy,
		locks:    newKeyedMutex(),
		pending:  newClaimSet(),
		tracer:   otel.Tracer(tracerName),
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.critical == nil {
		s.critical = critical.FormulaSource{Roller: s.roller}
	}
	if s.confirm == nil {
		s.confirm = ContextConfirmer{}
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	if s.audit == nil {
		s.audit = audit.NewEmitter(s.store)
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.policy.AnimationTimeout <= 0 {
		s.policy.AnimationTimeout = timeouts.AnimationWait
	}
	return s
}

// start opens the span for a command and tags the context with the log
// fields every record of the command carries.
func (s *Service) start(ctx context.Context, operation, messageID string) (context.Context, trace.Span) {
	ctx = logging.WithFields(ctx, logging.Fields{
		MessageID: messageID,
		Operation: operation,
		UserID:    requestctx.UserIDFromContext(ctx),
	})
	return s.tracer.Start(ctx, "roll."+operation, trace.WithAttributes(
		attribute.String("quickroll.message_id", messageID),
	))
}

// finish records err on span and ends it.
func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) notify(ctx context.Context, messageID string, level Level, key string, args ...any) string {
	locale := requestctx.LocaleFromContext(ctx)
	text := s.catalog.Sprintf(locale, key, args...)
	s.notifier.Notify(ctx, Notice{
		UserID:    requestctx.UserIDFromContext(ctx),
		MessageID: messageID,
		Level:     level,
		Key:       key,
		Text:      text,
	})
	return text
}

func (s *Service) text(ctx context.Context, key string, args ...any) string {
	return s.catalog.Sprintf(requestctx.LocaleFromContext(ctx), key, args...)
}

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, notice Notice) {
	if n.Logger == nil {
		return
	}
	level := slog.LevelInfo
	switch notice.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	n.Logger.Log(ctx, level, "notice", "key", notice.Key, "text", notice.Text)
}

type confirmationKey struct{}

// WithConfirmation records whether the caller already confirmed the command.
func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmationKey{}, confirmed)
}

// ContextConfirmer answers prompts with the confirmation stored by
// WithConfirmation. Requests without one are treated as declined.
type ContextConfirmer struct{}

// Confirm implements Confirmer.
func (ContextConfirmer) Confirm(ctx context.Context, _ Prompt) (bool, error) {
	confirmed, _ := ctx.Value(confirmationKey{}).(bool)
	return confirmed, nil
}
