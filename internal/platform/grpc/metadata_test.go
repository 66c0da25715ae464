package grpc

import (
	"context"
	"testing"

	"github.com/louisbranch/quickroll/internal/platform/requestctx"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestWithOutgoingIdentity(t *testing.T) {
	ctx := WithOutgoingIdentity(context.Background(), " user-1 ", "pt-BR")
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	if got := md.Get(UserIDHeader); len(got) != 1 || got[0] != "user-1" {
		t.Fatalf("user header = %v", got)
	}
	if got := md.Get(LocaleHeader); len(got) != 1 || got[0] != "pt-BR" {
		t.Fatalf("locale header = %v", got)
	}

	bare := context.Background()
	if WithOutgoingIdentity(bare, "", " ") != bare {
		t.Fatal("expected context unchanged without identity")
	}
}

func TestIdentityUnaryInterceptor(t *testing.T) {
	md := metadata.Pairs(UserIDHeader, "user-2", LocaleHeader, "en-US")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	var gotUser, gotLocale string
	handler := func(ctx context.Context, _ any) (any, error) {
		gotUser = requestctx.UserIDFromContext(ctx)
		gotLocale = requestctx.LocaleFromContext(ctx)
		return nil, nil
	}
	if _, err := IdentityUnaryInterceptor()(ctx, nil, &gogrpc.UnaryServerInfo{}, handler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if gotUser != "user-2" || gotLocale != "en-US" {
		t.Fatalf("identity = %q/%q", gotUser, gotLocale)
	}
}

func TestIdentityFromIncomingWithoutMetadata(t *testing.T) {
	ctx := IdentityFromIncoming(context.Background())
	if requestctx.UserIDFromContext(ctx) != "" {
		t.Fatal("expected no user id")
	}
}

func TestOutgoingGMRoundTrip(t *testing.T) {
	out := WithOutgoingGM(context.Background(), true)
	md, _ := metadata.FromOutgoingContext(out)
	ctx := IdentityFromIncoming(metadata.NewIncomingContext(context.Background(), md))
	if !requestctx.IsGM(ctx) {
		t.Fatal("expected game master flag")
	}

	bare := context.Background()
	if WithOutgoingGM(bare, false) != bare {
		t.Fatal("expected context unchanged for non-GM")
	}
}
