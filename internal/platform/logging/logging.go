// Package logging builds the process slog logger.
//
// Records are enriched with the active trace and span ids and with the roll
// fields carried in the context, so call sites only log the event itself.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"
)

// Config selects the handler.
type Config struct {
	Level  string `env:"QUICKROLL_LOG_LEVEL" envDefault:"info"`
	Format string `env:"QUICKROLL_LOG_FORMAT" envDefault:"text"`
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", raw, err)
	}
	return level, nil
}

// New builds a logger writing to w. When export is true the records go to
// the global OpenTelemetry logger provider instead.
func New(cfg Config, w io.Writer, service string, export bool) (*slog.Logger, error) {
	if export {
		return slog.New(otelslog.NewHandler(service, otelslog.WithLoggerProvider(global.GetLoggerProvider()))), nil
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(NewTraceHandler(handler)).With(slog.String("service", service)), nil
}

// Fields are attributes attached to every record logged with the context.
type Fields struct {
	MessageID string
	Operation string
	UserID    string
}

type fieldsKey struct{}

// WithFields merges fields into ctx; empty values keep what is already set.
func WithFields(ctx context.Context, fields Fields) context.Context {
	merged := FieldsFrom(ctx)
	if fields.MessageID != "" {
		merged.MessageID = fields.MessageID
	}
	if fields.Operation != "" {
		merged.Operation = fields.Operation
	}
	if fields.UserID != "" {
		merged.UserID = fields.UserID
	}
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// FieldsFrom returns the fields stored in ctx.
func FieldsFrom(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}
	fields, _ := ctx.Value(fieldsKey{}).(Fields)
	return fields
}

// TraceHandler adds trace ids and context fields to records.
type TraceHandler struct {
	slog.Handler
}

// NewTraceHandler wraps h.
func NewTraceHandler(h slog.Handler) *TraceHandler {
	return &TraceHandler{Handler: h}
}

// Handle implements slog.Handler.
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	fields := FieldsFrom(ctx)
	if fields.MessageID != "" {
		r.AddAttrs(slog.String("message_id", fields.MessageID))
	}
	if fields.Operation != "" {
		r.AddAttrs(slog.String("operation", fields.Operation))
	}
	if fields.UserID != "" {
		r.AddAttrs(slog.String("user_id", fields.UserID))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name)}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
