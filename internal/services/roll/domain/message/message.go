// Package message defines the roll message aggregate mutated by the roll
// pipeline: the message envelope, its flag map, and the ordered roll, term and
// die-result sequences.
//
// Roll totals are derived values. Every component that mutates a roll calls
// Roll.Recompute before the roll leaves its hands; a stored Total is never
// trusted across a mutation.
package message

import "time"

// Type is the system-declared envelope type of a chat message.
type Type string

const (
	// TypeNone marks messages the game system did not classify.
	TypeNone Type = ""
	// TypeUsage marks an activity usage card (the parent of sub-rolls).
	TypeUsage Type = "usage"
	// TypeRoll marks a standalone roll message.
	TypeRoll Type = "roll"
)

// RollType is the classification tag consumed by the presentation layer.
type RollType string

const (
	RollTypeNone          RollType = ""
	RollTypeActivity      RollType = "activity"
	RollTypeAttack        RollType = "attack"
	RollTypeDamage        RollType = "damage"
	RollTypeFormula       RollType = "formula"
	RollTypeSkill         RollType = "skill"
	RollTypeAbilitySave   RollType = "save"
	RollTypeAbilityTest   RollType = "check"
	RollTypeDeathSave     RollType = "death"
	RollTypeTool          RollType = "tool"
	RollTypeConcentration RollType = "concentration"
)

// Known reports whether the roll type is one the pipeline understands.
func (t RollType) Known() bool {
	switch t {
	case RollTypeActivity, RollTypeAttack, RollTypeDamage, RollTypeFormula,
		RollTypeSkill, RollTypeAbilitySave, RollTypeAbilityTest,
		RollTypeDeathSave, RollTypeTool, RollTypeConcentration:
		return true
	}
	return false
}

// ActivityHeal is the activity type whose damage rolls are healing.
const ActivityHeal = "heal"

// Speaker identifies who a message speaks for.
type Speaker struct {
	Scene string `json:"scene,omitempty"`
	Token string `json:"token,omitempty"`
	Actor string `json:"actor,omitempty"`
}

// Flags is the persisted flag map owned by the roll pipeline.
type Flags struct {
	QuickRoll           bool   `json:"quick_roll,omitempty"`
	Processed           bool   `json:"processed,omitempty"`
	Dual                bool   `json:"dual,omitempty"`
	Advantage           bool   `json:"advantage,omitempty"`
	Disadvantage        bool   `json:"disadvantage,omitempty"`
	IsCritical          bool   `json:"is_critical,omitempty"`
	IsHealing           bool   `json:"is_healing,omitempty"`
	IsConcentration     bool   `json:"is_concentration,omitempty"`
	ManualDamage        bool   `json:"manual_damage,omitempty"`
	RenderAttack        bool   `json:"render_attack,omitempty"`
	RenderDamage        bool   `json:"render_damage,omitempty"`
	RenderFormula       bool   `json:"render_formula,omitempty"`
	Versatile           bool   `json:"versatile,omitempty"`
	UseConfig           bool   `json:"use_config,omitempty"`
	Ammunition          string `json:"ammunition,omitempty"`
	FormulaName         string `json:"formula_name,omitempty"`
	DisplayChallenge    bool   `json:"display_challenge,omitempty"`
	DisplayAttackResult bool   `json:"display_attack_result,omitempty"`
}

// Message is one chat-delivered dice-rolling event plus its presentation flags.
type Message struct {
	ID                   string    `json:"id"`
	Author               string    `json:"author"`
	Speaker              Speaker   `json:"speaker"`
	Type                 Type      `json:"type,omitempty"`
	RollType             RollType  `json:"roll_type,omitempty"`
	ActivityType         string    `json:"activity_type,omitempty"`
	ItemID               string    `json:"item_id,omitempty"`
	OriginatingMessageID string    `json:"originating_message_id,omitempty"`
	Flavor               string    `json:"flavor,omitempty"`
	Flags                Flags     `json:"flags"`
	Rolls                []Roll    `json:"rolls"`
	Animating            bool      `json:"animating,omitempty"`
	Version              int64     `json:"version"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// IsAuthor reports whether userID authored the message.
func (m Message) IsAuthor(userID string) bool {
	return userID != "" && m.Author == userID
}

// Clone returns a deep copy safe to mutate without touching m.
func (m Message) Clone() Message {
	out := m
	if m.Rolls != nil {
		out.Rolls = make([]Roll, len(m.Rolls))
		for i, roll := range m.Rolls {
			out.Rolls[i] = roll.Clone()
		}
	}
	return out
}

// RollsOfKind returns the indices into Rolls of every roll with the given kind,
// in message order.
func (m Message) RollsOfKind(kind RollKind) []int {
	var out []int
	for i, roll := range m.Rolls {
		if roll.Kind == kind {
			out = append(out, i)
		}
	}
	return out
}

// FirstRollOfKind returns the index of the first roll with the given kind, or -1.
func (m Message) FirstRollOfKind(kind RollKind) int {
	for i, roll := range m.Rolls {
		if roll.Kind == kind {
			return i
		}
	}
	return -1
}

// HasRollOfKind reports whether any roll has the given kind.
func (m Message) HasRollOfKind(kind RollKind) bool {
	return m.FirstRollOfKind(kind) >= 0
}

// Recompute refreshes the derived total of every roll.
func (m *Message) Recompute() {
	for i := range m.Rolls {
		m.Rolls[i].Recompute()
	}
}
