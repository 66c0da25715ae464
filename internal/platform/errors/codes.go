// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeNotFound reports a missing message or record.
	CodeNotFound Code = "NOT_FOUND"

	// Roll pipeline failures
	CodeRollValidationFailed    Code = "ROLL_VALIDATION_FAILED"
	CodeRollSelectionUnresolved Code = "ROLL_SELECTION_UNRESOLVED"
	CodeRollGenerationFailed    Code = "ROLL_GENERATION_FAILED"
	CodeRollPersistenceFailed   Code = "ROLL_PERSISTENCE_FAILED"
	CodeRollAuditFailed         Code = "ROLL_AUDIT_FAILED"
	CodeRollVersionConflict     Code = "ROLL_VERSION_CONFLICT"

	// Roll state preconditions
	CodeRollAlreadyMultiRoll      Code = "ROLL_ALREADY_MULTIROLL"
	CodeRollAlreadyCritical       Code = "ROLL_ALREADY_CRITICAL"
	CodeRollNoDiceSelected        Code = "ROLL_NO_DICE_SELECTED"
	CodeRollNoDamageRolls         Code = "ROLL_NO_DAMAGE_ROLLS"
	CodeRollConfirmationCancelled Code = "ROLL_CONFIRMATION_CANCELLED"

	// Collaborators
	CodeRollCollaboratorUnavailable Code = "ROLL_COLLABORATOR_UNAVAILABLE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - the request cannot be applied to this message
	case CodeRollValidationFailed,
		CodeRollSelectionUnresolved,
		CodeRollNoDiceSelected,
		CodeRollNoDamageRolls:
		return codes.InvalidArgument

	// FailedPrecondition - message state disallows the operation
	case CodeRollAlreadyMultiRoll,
		CodeRollAlreadyCritical,
		CodeRollConfirmationCancelled:
		return codes.FailedPrecondition

	case CodeRollVersionConflict:
		return codes.Aborted

	case CodeNotFound:
		return codes.NotFound

	case CodeRollGenerationFailed:
		return codes.Unavailable

	case CodeRollCollaboratorUnavailable:
		return codes.Unimplemented

	default:
		return codes.Internal
	}
}
