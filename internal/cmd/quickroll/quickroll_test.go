package quickroll

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/quickroll/internal/platform/config"
	server "github.com/louisbranch/quickroll/internal/services/roll/app"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

func startServer(t *testing.T) string {
	t.Helper()
	var cfg server.Config
	if err := config.ParseEnvMap(&cfg, map[string]string{
		"QUICKROLL_ADDR":      "127.0.0.1:0",
		"QUICKROLL_DB_PATH":   filepath.Join(t.TempDir(), "quickroll.db"),
		"QUICKROLL_DICE_SEED": "11",
	}); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	srv, err := server.New(cfg, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("timeout waiting for server shutdown")
		}
	})
	return srv.Addr()
}

func writeMessages(t *testing.T, msgs ...message.Message) string {
	t.Helper()
	data, err := json.Marshal(msgs)
	if err != nil {
		t.Fatalf("marshal messages: %v", err)
	}
	path := filepath.Join(t.TempDir(), "messages.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write messages: %v", err)
	}
	return path
}

func run(t *testing.T, addr string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--addr", addr, "--user", "user-1"}, args...)
	err := Execute(context.Background(), full, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func damageFixture(id string) message.Message {
	return message.Message{
		ID:       id,
		Author:   "user-1",
		Type:     message.TypeRoll,
		RollType: message.RollTypeDamage,
		Flags:    message.Flags{QuickRoll: true, Processed: true, RenderDamage: true},
		Rolls: []message.Roll{{
			Kind:       message.KindDamage,
			Terms:      []message.Term{message.Die(6, 2, 5), message.Plus(), message.Number(3)},
			DamageType: "fire",
			Total:      10,
		}},
	}
}

func TestImportRerollAndAudit(t *testing.T) {
	addr := startServer(t)
	path := writeMessages(t, damageFixture("dmg-1"))

	out, _, err := run(t, addr, "import", path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.HasPrefix(out, "dmg-1 ") {
		t.Fatalf("import output = %q", out)
	}

	out, _, err = run(t, addr, "show", "dmg-1")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "damage fire") || !strings.Contains(out, "2d6 + 3 = 10") {
		t.Fatalf("show output = %q", out)
	}

	out, stderr, err := run(t, addr, "reroll", "dmg-1", "--die", "0:0:1", "--die", "0:5:0")
	if err != nil {
		t.Fatalf("reroll: %v", err)
	}
	if !strings.Contains(out, "Rerolled 1 dice.") || !strings.Contains(out, "Keep new") {
		t.Fatalf("reroll output = %q", out)
	}
	if !strings.Contains(stderr, "skipped 0:5:0") {
		t.Fatalf("reroll stderr = %q", stderr)
	}

	out, _, err = run(t, addr, "audit", "dmg-1")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !strings.Contains(out, "by user-1") || !strings.Contains(out, "d6") {
		t.Fatalf("audit output = %q", out)
	}
}

func TestAuditWithoutRecords(t *testing.T) {
	addr := startServer(t)
	path := writeMessages(t, damageFixture("dmg-2"))
	if _, _, err := run(t, addr, "import", path); err != nil {
		t.Fatalf("import: %v", err)
	}
	out, _, err := run(t, addr, "audit", "dmg-2")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if strings.TrimSpace(out) != "no rerolls recorded for dmg-2" {
		t.Fatalf("audit output = %q", out)
	}
}

func TestRetroCriticalNeedsConfirmation(t *testing.T) {
	addr := startServer(t)
	path := writeMessages(t, damageFixture("dmg-3"))
	if _, _, err := run(t, addr, "import", path); err != nil {
		t.Fatalf("import: %v", err)
	}

	_, _, err := run(t, addr, "retro", "dmg-3", "critical")
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != "FailedPrecondition" {
		t.Fatalf("unconfirmed retro err = %v", err)
	}

	out, _, err := run(t, addr, "retro", "dmg-3", "critical", "--yes")
	if err != nil {
		t.Fatalf("retro critical: %v", err)
	}
	if !strings.Contains(out, "damage fire crit") || !strings.Contains(out, "4d6 + 3") {
		t.Fatalf("retro output = %q", out)
	}
}

func TestLocalizedServiceError(t *testing.T) {
	addr := startServer(t)
	_, _, err := run(t, addr, "--locale", "pt-BR", "show", "missing")
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %v, want ServiceError", err)
	}
	if svcErr.Code != "NotFound" || svcErr.Message != "A mensagem missing não foi encontrada." {
		t.Fatalf("service error = %+v", svcErr)
	}
}

func TestRetroRejectsUnknownChange(t *testing.T) {
	addr := startServer(t)
	_, _, err := run(t, addr, "retro", "dmg-1", "sideways")
	if err == nil || !strings.Contains(err.Error(), "sideways") {
		t.Fatalf("err = %v", err)
	}
}
