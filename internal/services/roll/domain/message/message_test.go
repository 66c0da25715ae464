package message

import "testing"

func TestRollRecompute(t *testing.T) {
	tests := []struct {
		name  string
		terms []Term
		want  int
	}{
		{name: "single die", terms: []Term{Die(8, 5)}, want: 5},
		{name: "dice plus number", terms: []Term{Die(6, 2, 5), Plus(), Number(3)}, want: 10},
		{name: "minus number", terms: []Term{Die(20, 11), Minus(), Number(1)}, want: 10},
		{name: "minus die", terms: []Term{Number(10), Minus(), Die(4, 3)}, want: 7},
		{name: "empty", terms: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roll := Roll{Kind: KindDamage, Terms: tt.terms, Total: -99}
			roll.Recompute()
			if roll.Total != tt.want {
				t.Fatalf("total = %d, want %d", roll.Total, tt.want)
			}
		})
	}
}

func TestRollRecomputeSkipsInactiveResults(t *testing.T) {
	term := Die(20, 11, 17)
	term.Results[1].Active = false
	roll := Roll{Kind: KindD20, Terms: []Term{term, Plus(), Number(4)}}
	roll.Recompute()
	if roll.Total != 15 {
		t.Fatalf("total = %d, want 15", roll.Total)
	}
}

func TestMessageCloneIsDeep(t *testing.T) {
	msg := Message{
		ID:    "msg-1",
		Rolls: []Roll{{Kind: KindDamage, Terms: []Term{Die(6, 2)}, Properties: []string{"mgc"}}},
	}
	clone := msg.Clone()
	clone.Rolls[0].Terms[0].Results[0].Value = 6
	clone.Rolls[0].Properties[0] = "sil"
	clone.Rolls = append(clone.Rolls, Roll{Kind: KindBasic})

	if msg.Rolls[0].Terms[0].Results[0].Value != 2 {
		t.Fatal("clone shares die results with original")
	}
	if msg.Rolls[0].Properties[0] != "mgc" {
		t.Fatal("clone shares properties with original")
	}
	if len(msg.Rolls) != 1 {
		t.Fatalf("original rolls len = %d, want 1", len(msg.Rolls))
	}
}

func TestRollsOfKind(t *testing.T) {
	msg := Message{Rolls: []Roll{
		{Kind: KindD20},
		{Kind: KindDamage},
		{Kind: KindBasic},
		{Kind: KindDamage},
	}}
	got := msg.RollsOfKind(KindDamage)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("damage indices = %v, want [1 3]", got)
	}
	if msg.FirstRollOfKind(KindD20) != 0 {
		t.Fatal("expected d20 roll at index 0")
	}
	if msg.HasRollOfKind(RollKind("other")) {
		t.Fatal("unexpected roll kind match")
	}
}

func TestRollFormula(t *testing.T) {
	roll := Roll{Terms: []Term{Die(8, 3, 4), Plus(), Number(2)}}
	if got := roll.Formula(); got != "2d8 + 2" {
		t.Fatalf("formula = %q, want %q", got, "2d8 + 2")
	}
}

func TestIsAuthor(t *testing.T) {
	msg := Message{Author: "user-1"}
	if !msg.IsAuthor("user-1") {
		t.Fatal("expected author match")
	}
	if msg.IsAuthor("") || msg.IsAuthor("user-2") {
		t.Fatal("unexpected author match")
	}
}
