package lifecycle

import (
	"filetrack-backend/internal/shared/apperr"
)

// Path distinguishes normal progress from administrative correction.
type Path string

const (
	PathHandover Path = "handover"
	PathForward  Path = "forward"
	PathOverride Path = "override"
)

// CheckForward enforces the forward-only rule: the target must be the
// immediate successor of current, and the received -> under_scanning step
// is reserved for handovers.
func CheckForward(current, target Status) error {
	if !target.Valid() {
		return apperr.Invalid("status", "unknown status "+string(target))
	}
	if current == PendingHandover && target == HandedOver {
		return apperr.InvalidState("file must be handed over to move to %s", target)
	}
	next, ok := current.Next()
	if !ok {
		return apperr.InvalidState("file is already %s", current)
	}
	if target != next {
		return apperr.InvalidState("cannot move from %s to %s; next stage is %s", current, target, next)
	}
	return nil
}

// CheckHandover verifies the file is waiting for a handover.
func CheckHandover(current Status) error {
	if current != PendingHandover {
		return apperr.InvalidState("file is %s; handover requires %s", current, PendingHandover)
	}
	return nil
}

// CheckOverride accepts any enumerated target.
func CheckOverride(target Status) error {
	if !target.Valid() {
		return apperr.Invalid("status", "unknown status "+string(target))
	}
	return nil
}

// CheckExpected enforces an optimistic status precondition.
func CheckExpected(current, expected Status) error {
	if expected == "" || expected == current {
		return nil
	}
	return apperr.InvalidState("file status is %s, expected %s", current, expected)
}
