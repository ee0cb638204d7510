package domain

// ValidationError rejects malformed input before any mutation happens. The
// message is passed through to the caller verbatim.
type ValidationError struct {
	Message string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StateError rejects an operation that is well-formed on its own but would
// violate an invariant given the existing history, e.g. selling more shares
// than are held or a gap in the cycle id sequence. State errors are never
// clamped or auto-repaired.
type StateError struct {
	Message string
}

func NewStateError(msg string) *StateError {
	return &StateError{Message: msg}
}

func (e *StateError) Error() string {
	return e.Message
}
