package commands

import (
	"errors"
	"slices"
	"testing"

	"github.com/louisbranch/quickroll/internal/core/dice"
	apperrors "github.com/louisbranch/quickroll/internal/platform/errors"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/damage"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

func TestApplyDamage(t *testing.T) {
	f := newFixture(t, dice.NewSequence(), Policy{})
	f.put(t, damageMessage("damage-1"))

	out, err := f.svc.ApplyDamage(asUser("gm"), "damage-1", damage.Request{
		Targets:    []string{"goblin", "orc"},
		Multiplier: 0.5,
		Part:       damage.AllParts,
	})
	if err != nil {
		t.Fatalf("apply damage: %v", err)
	}
	want := []damage.Damage{{Value: 10, Type: "fire", Properties: []string{"mgc"}}}
	if len(out.Damages) != 1 || out.Damages[0].Value != want[0].Value || out.Damages[0].Type != want[0].Type {
		t.Fatalf("damages = %+v, want %+v", out.Damages, want)
	}
	if len(f.actors.damaged) != 2 || f.actors.lastScale != 0.5 {
		t.Fatalf("damaged = %v, scale = %v", f.actors.damaged, f.actors.lastScale)
	}
	if out.Notice != "Applied 10 to 2 targets." {
		t.Fatalf("notice = %q", out.Notice)
	}
}

func TestApplyDamageHealing(t *testing.T) {
	f := newFixture(t, dice.NewSequence(), Policy{})
	f.put(t, damageMessage("damage-1"))

	out, err := f.svc.ApplyDamage(asUser("gm"), "damage-1", damage.Request{
		Targets:    []string{"cleric"},
		Multiplier: -1,
		Part:       damage.AllParts,
	})
	if err != nil {
		t.Fatalf("apply damage: %v", err)
	}
	if out.Damages[0].Type != damage.TypeHealing || f.actors.lastScale != 1 {
		t.Fatalf("damages = %+v, scale = %v", out.Damages, f.actors.lastScale)
	}
}

func TestApplyDamagePartialFailure(t *testing.T) {
	f := newFixture(t, dice.NewSequence(), Policy{})
	f.actors.failFor["orc"] = errors.New("orc is gone")
	f.put(t, damageMessage("damage-1"))

	out, err := f.svc.ApplyDamage(asUser("gm"), "damage-1", damage.Request{
		Targets:    []string{"goblin", "orc"},
		Multiplier: 1,
		Part:       damage.AllParts,
	})
	if err != nil {
		t.Fatalf("apply damage: %v", err)
	}
	if !slices.Equal(out.Report.Applied, []string{"goblin"}) || out.Report.Failed["orc"] == nil {
		t.Fatalf("report = %+v", out.Report)
	}
	if out.Notice != "Damage was applied to 1 of 2 targets." {
		t.Fatalf("notice = %q", out.Notice)
	}
	if _, ok := f.actors.damaged["goblin"]; !ok {
		t.Fatal("successful target was rolled back")
	}
}

func TestApplyDamageRejects(t *testing.T) {
	tests := []struct {
		name string
		msg  message.Message
		req  damage.Request
		want apperrors.Code
	}{
		{name: "no targets", msg: damageMessage("m1"), req: damage.Request{Multiplier: 1, Part: damage.AllParts}, want: apperrors.CodeRollValidationFailed},
		{name: "part out of range", msg: damageMessage("m1"), req: damage.Request{Targets: []string{"a"}, Multiplier: 1, Part: 4}, want: apperrors.CodeRollValidationFailed},
		{name: "no damage rolls", msg: checkMessage("m1", 12), req: damage.Request{Targets: []string{"a"}, Multiplier: 1, Part: damage.AllParts}, want: apperrors.CodeRollNoDamageRolls},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, dice.NewSequence(), Policy{})
			f.put(t, tt.msg)
			_, err := f.svc.ApplyDamage(asUser("gm"), "m1", tt.req)
			if got := apperrors.GetCode(err); got != tt.want {
				t.Fatalf("code = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestApplyDamageWithoutActors(t *testing.T) {
	f := newFixture(t, dice.NewSequence(), Policy{})
	svc := NewService(Deps{Store: f.store, Roller: dice.NewSequence()}, Policy{})
	f.put(t, damageMessage("damage-1"))

	_, err := svc.ApplyDamage(asUser("gm"), "damage-1", damage.Request{Targets: []string{"a"}, Multiplier: 1})
	if got := apperrors.GetCode(err); got != apperrors.CodeRollCollaboratorUnavailable {
		t.Fatalf("code = %s, want %s", got, apperrors.CodeRollCollaboratorUnavailable)
	}
}

func TestBreakConcentration(t *testing.T) {
	f := newFixture(t, dice.NewSequence(), Policy{})
	msg := checkMessage("conc-1", 8)
	msg.RollType = message.RollTypeConcentration
	msg.Flags.IsConcentration = true
	msg.Speaker = message.Speaker{Scene: "scene-1", Token: "token-1", Actor: "actor-1"}
	f.put(t, msg)
	f.put(t, checkMessage("check-1", 8))

	if err := f.svc.BreakConcentration(asUser(author), "conc-1"); err != nil {
		t.Fatalf("break concentration: %v", err)
	}
	if len(f.actors.broken) != 1 || f.actors.broken[0].Token != "token-1" {
		t.Fatalf("broken = %+v", f.actors.broken)
	}

	err := f.svc.BreakConcentration(asUser(author), "check-1")
	if got := apperrors.GetCode(err); got != apperrors.CodeRollValidationFailed {
		t.Fatalf("code = %s, want %s", got, apperrors.CodeRollValidationFailed)
	}
}
