package commands

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/quickroll/internal/core/dice"
	"github.com/louisbranch/quickroll/internal/platform/requestctx"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/damage"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
	"github.com/louisbranch/quickroll/internal/services/roll/storage/sqlite"
)

const author = "user-1"

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "quickroll.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func asUser(userID string) context.Context {
	return requestctx.WithUserID(context.Background(), userID)
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (f *fakeNotifier) Notify(_ context.Context, notice Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice)
}

func (f *fakeNotifier) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.notices))
	for i, n := range f.notices {
		out[i] = n.Key
	}
	return out
}

type fakeConfirmer struct {
	answer  bool
	prompts []Prompt
}

func (f *fakeConfirmer) Confirm(_ context.Context, prompt Prompt) (bool, error) {
	f.prompts = append(f.prompts, prompt)
	return f.answer, nil
}

// fakeActions creates one sub-roll per action and processes it, the way a
// host game system would deliver the new message.
type fakeActions struct {
	svc     *Service
	attack  bool
	damage  bool
	calls   []message.RollType
	failErr error
}

func (f *fakeActions) RunActivityActions(ctx context.Context, parent message.Message) error {
	if f.failErr != nil {
		return f.failErr
	}
	if f.attack {
		if err := f.RunActivityAction(ctx, parent, message.RollTypeAttack); err != nil {
			return err
		}
	}
	if f.damage {
		return f.RunActivityAction(ctx, parent, message.RollTypeDamage)
	}
	return nil
}

func (f *fakeActions) RunActivityAction(ctx context.Context, parent message.Message, rollType message.RollType) error {
	f.calls = append(f.calls, rollType)
	child := message.Message{
		Author:               parent.Author,
		Type:                 message.TypeRoll,
		RollType:             rollType,
		ItemID:               parent.ItemID,
		ActivityType:         parent.ActivityType,
		OriginatingMessageID: parent.ID,
		Flags:                message.Flags{QuickRoll: true, Processed: true},
	}
	switch rollType {
	case message.RollTypeAttack:
		child.Rolls = []message.Roll{{Kind: message.KindD20, Terms: []message.Term{message.Die(20, 14), message.Plus(), message.Number(5)}}}
	case message.RollTypeDamage:
		child.Rolls = []message.Roll{{Kind: message.KindDamage, DamageType: "slashing", Terms: []message.Term{message.Die(8, 6), message.Plus(), message.Number(3)}}}
	default:
		return errors.New("unsupported action")
	}
	created, err := f.svc.CreateMessage(ctx, child)
	if err != nil {
		return err
	}
	_, err = f.svc.Process(ctx, created.ID)
	return err
}

type fakeActors struct {
	mu        sync.Mutex
	damaged   map[string][]damage.Damage
	tempHP    map[string]int
	broken    []message.Speaker
	failFor   map[string]error
	lastScale float64
}

func newFakeActors() *fakeActors {
	return &fakeActors{damaged: map[string][]damage.Damage{}, tempHP: map[string]int{}, failFor: map[string]error{}}
}

func (f *fakeActors) ApplyDamage(_ context.Context, target string, damages []damage.Damage, multiplier float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[target]; err != nil {
		return err
	}
	f.damaged[target] = damages
	f.lastScale = multiplier
	return nil
}

func (f *fakeActors) ApplyTempHP(_ context.Context, target string, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tempHP[target] = amount
	return nil
}

func (f *fakeActors) BreakConcentration(_ context.Context, speaker message.Speaker) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broken = append(f.broken, speaker)
	return nil
}

type fixture struct {
	svc      *Service
	store    *sqlite.Store
	notifier *fakeNotifier
	actors   *fakeActors
}

func newFixture(t *testing.T, roller dice.Roller, policy Policy) fixture {
	t.Helper()
	store := openStore(t)
	notifier := &fakeNotifier{}
	actors := newFakeActors()
	svc := NewService(Deps{
		Store:    store,
		Roller:   roller,
		Notifier: notifier,
		Actors:   actors,
		Clock:    func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}, policy)
	return fixture{svc: svc, store: store, notifier: notifier, actors: actors}
}

func (f fixture) put(t *testing.T, msg message.Message) message.Message {
	t.Helper()
	created, err := f.svc.CreateMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	return created
}

func (f fixture) load(t *testing.T, id string) message.Message {
	t.Helper()
	msg, err := f.store.GetMessage(context.Background(), id)
	if err != nil {
		t.Fatalf("get message %s: %v", id, err)
	}
	return msg
}

func damageMessage(id string) message.Message {
	return message.Message{
		ID:       id,
		Author:   author,
		Type:     message.TypeRoll,
		RollType: message.RollTypeDamage,
		Flags:    message.Flags{QuickRoll: true, Processed: true, RenderDamage: true},
		Rolls: []message.Roll{{
			Kind:       message.KindDamage,
			DamageType: "fire",
			Properties: []string{"mgc"},
			Terms:      []message.Term{message.Die(6, 2, 5), message.Plus(), message.Number(3)},
		}},
	}
}

func checkMessage(id string, value int) message.Message {
	return message.Message{
		ID:       id,
		Author:   author,
		Type:     message.TypeRoll,
		RollType: message.RollTypeSkill,
		Flavor:   "Stealth Check",
		Flags:    message.Flags{QuickRoll: true, Processed: true},
		Rolls:    []message.Roll{{Kind: message.KindD20, Terms: []message.Term{message.Die(20, value), message.Plus(), message.Number(3)}}},
	}
}
