package lifecycle

import "github.com/louisbranch/quickroll/internal/services/roll/domain/message"

// Section names a block the presentation layer renders for a message.
type Section string

const (
	SectionAttack        Section = "attack"
	SectionDamage        Section = "damage"
	SectionFormula       Section = "formula"
	SectionManualDamage  Section = "manual-damage"
	SectionMultiRoll     Section = "multiroll"
	SectionConcentration Section = "concentration"
)

// View is the stateless presentation summary of a message.
type View struct {
	RollType  message.RollType `json:"roll_type"`
	Phase     Phase            `json:"phase"`
	Hidden    bool             `json:"hidden"`
	Sections  []Section        `json:"sections,omitempty"`
	Critical  bool             `json:"critical,omitempty"`
	Healing   bool             `json:"healing,omitempty"`
	Versatile bool             `json:"versatile,omitempty"`
}

// ViewOf derives the presentation summary from flags and rolls only.
func ViewOf(msg message.Message) View {
	rollType := Classify(msg)
	view := View{
		RollType:  rollType,
		Phase:     PhaseOf(msg),
		Hidden:    msg.Flags.QuickRoll && !msg.Flags.Processed,
		Critical:  msg.Flags.IsCritical,
		Healing:   msg.Flags.IsHealing,
		Versatile: msg.Flags.Versatile,
	}
	switch rollType {
	case message.RollTypeActivity:
		if msg.Flags.RenderAttack {
			view.Sections = append(view.Sections, SectionAttack)
		}
		if msg.Flags.ManualDamage {
			view.Sections = append(view.Sections, SectionManualDamage)
		}
		if msg.Flags.RenderDamage {
			view.Sections = append(view.Sections, SectionDamage)
		}
		if msg.Flags.RenderFormula {
			view.Sections = append(view.Sections, SectionFormula)
		}
	case message.RollTypeDamage:
		if msg.Flags.RenderDamage {
			view.Sections = append(view.Sections, SectionDamage)
		}
	case message.RollTypeSkill, message.RollTypeAbilitySave, message.RollTypeAbilityTest,
		message.RollTypeDeathSave, message.RollTypeTool, message.RollTypeConcentration:
		view.Sections = append(view.Sections, SectionMultiRoll)
		if msg.Flags.IsConcentration {
			view.Sections = append(view.Sections, SectionConcentration)
		}
	case message.RollTypeAttack, message.RollTypeFormula, message.RollTypeNone:
	}
	return view
}

// Controls lists the retroactive commands a viewer may be offered. It has no
// bearing on message state.
type Controls struct {
	RetroMultiRoll bool `json:"retro_multiroll"`
	RetroCritical  bool `json:"retro_critical"`
	Reroll         bool `json:"reroll"`
}

// ControlsFor computes overlay controls for a viewer. isGM and the author
// check are the only permission inputs.
func ControlsFor(msg message.Message, viewerID string, isGM bool) Controls {
	allowed := isGM || msg.IsAuthor(viewerID)
	hasDamage := msg.HasRollOfKind(message.KindDamage)
	return Controls{
		RetroMultiRoll: allowed && !IsMultiRoll(msg) && msg.HasRollOfKind(message.KindD20),
		RetroCritical:  allowed && hasDamage && msg.ItemID != "" && !IsCritical(msg),
		Reroll:         allowed && hasDamage,
	}
}
