package server

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/louisbranch/quickroll/internal/platform/config"
	platformgrpc "github.com/louisbranch/quickroll/internal/platform/grpc"
	rollapi "github.com/louisbranch/quickroll/internal/services/roll/api/grpc/roll"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	var cfg Config
	if err := config.ParseEnvMap(&cfg, map[string]string{
		"QUICKROLL_ADDR":             "127.0.0.1:0",
		"QUICKROLL_DB_PATH":          filepath.Join(t.TempDir(), "data", "quickroll.db"),
		"QUICKROLL_DICE_SEED":        "7",
		"QUICKROLL_VANILLA":          "true",
		"QUICKROLL_ALWAYS_MULTIROLL": "false",
	}); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	if err := config.ParseEnvMap(&cfg, map[string]string{}); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	policy := cfg.Policy()
	if !policy.ConfirmRetroAdv || !policy.ConfirmRetroCrit || !policy.Vanilla || policy.AlwaysMultiRoll {
		t.Fatalf("policy = %+v", policy)
	}
	if policy.AnimationTimeout != 10*time.Second || cfg.Addr != "127.0.0.1:8095" {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestConfigValidation(t *testing.T) {
	var cfg Config
	err := config.ParseEnvMap(&cfg, map[string]string{"QUICKROLL_ANIMATION_TIMEOUT": "0s"})
	if err == nil || !strings.Contains(err.Error(), "QUICKROLL_ANIMATION_TIMEOUT") {
		t.Fatalf("err = %v", err)
	}
}

func TestServerProcessesOverGRPC(t *testing.T) {
	srv, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()
	t.Cleanup(func() {
		runCancel()
		select {
		case serveErr := <-serveDone:
			if serveErr != nil {
				t.Fatalf("serve: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial roll server: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(healthCtx, &grpc_health_v1.HealthCheckRequest{Service: rollapi.ServiceName})
	if err != nil || resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("health = %v, %v", resp, err)
	}

	client := rollapi.NewClient(conn)
	ctx := platformgrpc.WithOutgoingIdentity(context.Background(), "user-1", "en-US")
	usage := message.Message{
		ID:     "usage-1",
		Author: "user-1",
		Type:   message.TypeUsage,
		ItemID: "item-1",
		Flags:  message.Flags{QuickRoll: true},
	}
	if _, err := client.CreateMessage(ctx, rollapi.CreateMessageRequest{Message: usage}); err != nil {
		t.Fatalf("create usage: %v", err)
	}
	out, err := client.ProcessMessage(ctx, "usage-1")
	if err != nil {
		t.Fatalf("process usage: %v", err)
	}
	if !out.Message.Flags.Processed {
		t.Fatal("usage message not marked processed")
	}

	attack := message.Message{
		ID:                   "attack-1",
		Author:               "user-1",
		Type:                 message.TypeRoll,
		RollType:             message.RollTypeAttack,
		ItemID:               "item-1",
		OriginatingMessageID: "usage-1",
		Flags:                message.Flags{QuickRoll: true, Processed: true},
		Rolls:                []message.Roll{{Kind: message.KindD20, Terms: []message.Term{message.Die(20, 15), message.Plus(), message.Number(4)}}},
	}
	if _, err := client.CreateMessage(ctx, rollapi.CreateMessageRequest{Message: attack}); err != nil {
		t.Fatalf("create attack: %v", err)
	}
	merged, err := client.ProcessMessage(ctx, "attack-1")
	if err != nil {
		t.Fatalf("process attack: %v", err)
	}
	if merged.MergedInto != "usage-1" || !merged.Message.Flags.RenderAttack || len(merged.Message.Rolls) != 1 {
		t.Fatalf("merged = %+v", merged)
	}
	if merged.Message.Rolls[0].Total != 19 {
		t.Fatalf("attack total = %d, want 19", merged.Message.Rolls[0].Total)
	}

	manual := usage
	manual.ID = "usage-2"
	manual.Flags = message.Flags{QuickRoll: true, Processed: true, ManualDamage: true}
	if _, err := client.CreateMessage(ctx, rollapi.CreateMessageRequest{Message: manual}); err != nil {
		t.Fatalf("create manual usage: %v", err)
	}
	err = client.Call(ctx, rollapi.MethodRollDamage, rollapi.MessageRequest{MessageID: "usage-2"}, nil)
	if got := status.Code(err); got != codes.Unimplemented {
		t.Fatalf("roll damage code = %s, want %s", got, codes.Unimplemented)
	}
	got, err := client.GetMessage(ctx, "usage-2")
	if err != nil {
		t.Fatalf("get manual usage: %v", err)
	}
	if !got.Message.Flags.ManualDamage {
		t.Fatal("manual damage button closed without a damage roll")
	}
}

func TestOpenStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "quickroll.db")
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
}
