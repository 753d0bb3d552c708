package order

import "fmt"

// InvalidParametersError is returned by new() when the submitted command
// fails field-level validation.
type InvalidParametersError struct {
	Field string
	Message string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Message)
}

// InvalidStateTransitionError is returned when an operation is attempted
// from a status that does not permit it.
type InvalidStateTransitionError struct {
	From Status
	To Status
	Reason string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s: %s", e.From, e.To, e.Reason)
}

// FixInvariantViolationError is returned when applying a fill would break
// the FIX CumQty+LeavesQty=OrderQty invariant (I3) or the AvgPx law (I4).
// It is never auto-corrected: the fill is rejected outright.
type FixInvariantViolationError struct {
	Invariant string
	State string
}

func (e *FixInvariantViolationError) Error() string {
	return fmt.Sprintf("FIX invariant %s violated: %s", e.Invariant, e.State)
}

// CannotFillError is returned when apply_fill is called on an order whose
// status does not permit fills (terminal, or not yet accepted).
type CannotFillError struct {
	Status Status
}

func (e *CannotFillError) Error() string {
	return fmt.Sprintf("cannot apply fill: order status is %s", e.Status)
}

// CannotCancelError is returned when cancel is called on an order whose
// status does not permit cancellation.
type CannotCancelError struct {
	Status Status
}

func (e *CannotCancelError) Error() string {
	return fmt.Sprintf("cannot cancel: order status is %s", e.Status)
}
