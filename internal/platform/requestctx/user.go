// Package requestctx carries caller identity and locale through a request.
package requestctx

import "context"

type userIDContextKey struct{}

type localeContextKey struct{}

type gmContextKey struct{}

// WithUserID stores the calling user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the calling user identifier, or "".
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userIDContextKey{}).(string)
	return value
}

// WithLocale stores the caller's preferred locale tag in context.
func WithLocale(ctx context.Context, locale string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, localeContextKey{}, locale)
}

// LocaleFromContext returns the caller's locale tag, or "".
func LocaleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(localeContextKey{}).(string)
	return value
}

// WithGM marks the caller as a game master.
func WithGM(ctx context.Context, gm bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, gmContextKey{}, gm)
}

// IsGM reports whether the caller was marked as a game master.
func IsGM(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	value, _ := ctx.Value(gmContextKey{}).(bool)
	return value
}
