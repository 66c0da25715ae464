package lifecycle

import (
	"errors"
	"fmt"

	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

// ErrRollKindMismatch indicates the declared roll type disagrees with the
// roll kinds actually present on the message.
var ErrRollKindMismatch = errors.New("declared roll type does not match roll kinds")

// Phase is the lifecycle phase of a message.
type Phase string

const (
	PhaseUnseen    Phase = "unseen"
	PhasePending   Phase = "pending"
	PhaseMerging   Phase = "merging"
	PhaseInjected  Phase = "injected"
	PhaseFinalized Phase = "finalized"
)

// Classify returns the roll type of a message. It reads only the system
// declaration, so repeated calls on an unchanged message agree.
func Classify(msg message.Message) message.RollType {
	switch msg.Type {
	case message.TypeUsage:
		return message.RollTypeActivity
	case message.TypeRoll:
		if msg.RollType.Known() && msg.RollType != message.RollTypeActivity {
			return msg.RollType
		}
	}
	return message.RollTypeNone
}

// PhaseOf returns the lifecycle phase implied by the message flags.
func PhaseOf(msg message.Message) Phase {
	switch {
	case !msg.Flags.QuickRoll:
		return PhaseUnseen
	case !msg.Flags.Processed:
		return PhasePending
	case IsStandaloneSubRoll(msg):
		return PhaseMerging
	case msg.Flags.ManualDamage:
		return PhaseInjected
	default:
		return PhaseFinalized
	}
}

// IsStandaloneSubRoll reports whether msg is an attack or item damage roll
// raised by a parent activity message and therefore due to be folded into it.
// Damage rolls without an item are inline enrichers and stay standalone.
func IsStandaloneSubRoll(msg message.Message) bool {
	if msg.OriginatingMessageID == "" || msg.OriginatingMessageID == msg.ID {
		return false
	}
	switch Classify(msg) {
	case message.RollTypeAttack:
		return true
	case message.RollTypeDamage:
		return msg.ItemID != ""
	default:
		return false
	}
}

// Validate checks the declared roll type against the roll kinds present.
func Validate(msg message.Message, rollType message.RollType) error {
	switch rollType {
	case message.RollTypeNone, message.RollTypeActivity:
		return nil
	case message.RollTypeAttack:
		return require(msg, rollType, msg.HasRollOfKind(message.KindD20))
	case message.RollTypeDamage:
		return require(msg, rollType, msg.HasRollOfKind(message.KindDamage))
	case message.RollTypeFormula:
		return require(msg, rollType, msg.HasRollOfKind(message.KindBasic))
	case message.RollTypeSkill, message.RollTypeAbilitySave, message.RollTypeAbilityTest,
		message.RollTypeDeathSave, message.RollTypeTool, message.RollTypeConcentration:
		return require(msg, rollType, len(msg.Rolls) > 0 && msg.Rolls[0].Kind == message.KindD20)
	default:
		return fmt.Errorf("%w: unknown roll type %q", ErrRollKindMismatch, rollType)
	}
}

func require(msg message.Message, rollType message.RollType, ok bool) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%w: message %s declared %q", ErrRollKindMismatch, msg.ID, rollType)
}

// IsMultiRoll reports whether the message already carries an advantage,
// disadvantage or dual roll.
func IsMultiRoll(msg message.Message) bool {
	if msg.Flags.Advantage || msg.Flags.Disadvantage || msg.Flags.Dual {
		return true
	}
	return len(msg.Rolls) > 0 &&
		msg.Rolls[0].Kind == message.KindD20 &&
		msg.Rolls[0].AdvantageMode != message.ModeNormal
}

// IsCritical reports whether the message is flagged as a critical hit.
func IsCritical(msg message.Message) bool {
	return msg.Flags.IsCritical
}

// MarkVanilla adopts a message produced outside the pipeline so it renders
// as already processed.
func MarkVanilla(msg *message.Message) {
	msg.Flags = message.Flags{QuickRoll: true, Processed: true}
}
