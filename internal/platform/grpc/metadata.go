package grpc

import (
	"context"
	"strconv"
	"strings"

	"github.com/louisbranch/quickroll/internal/platform/requestctx"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	// UserIDHeader carries the calling user identifier.
	UserIDHeader = "x-quickroll-user-id"
	// LocaleHeader carries the caller's preferred locale.
	LocaleHeader = "x-quickroll-locale"
	// GMHeader is "true" when the host already decided the caller is a game master.
	GMHeader = "x-quickroll-gm"
)

// WithOutgoingIdentity attaches user and locale headers to an outgoing call.
// Empty values are omitted.
func WithOutgoingIdentity(ctx context.Context, userID, locale string) context.Context {
	pairs := make([]string, 0, 4)
	if userID = strings.TrimSpace(userID); userID != "" {
		pairs = append(pairs, UserIDHeader, userID)
	}
	if locale = strings.TrimSpace(locale); locale != "" {
		pairs = append(pairs, LocaleHeader, locale)
	}
	if len(pairs) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

// WithOutgoingGM marks an outgoing call as made by a game master.
func WithOutgoingGM(ctx context.Context, gm bool) context.Context {
	if !gm {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, GMHeader, "true")
}

// IdentityFromIncoming copies identity headers from incoming metadata into
// request context values.
func IdentityFromIncoming(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	if userID := firstValue(md, UserIDHeader); userID != "" {
		ctx = requestctx.WithUserID(ctx, userID)
	}
	if locale := firstValue(md, LocaleHeader); locale != "" {
		ctx = requestctx.WithLocale(ctx, locale)
	}
	if gm, err := strconv.ParseBool(firstValue(md, GMHeader)); err == nil {
		ctx = requestctx.WithGM(ctx, gm)
	}
	return ctx
}

// IdentityUnaryInterceptor applies IdentityFromIncoming to every unary call.
func IdentityUnaryInterceptor() gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		return handler(IdentityFromIncoming(ctx), req)
	}
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
