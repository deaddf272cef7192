package types

import "errors"

// Sentinel errors shared across packages so callers can branch with
// errors.Is instead of string matching.
var (
	// ErrStepNotFound is returned when a step id has no record in the store.
	ErrStepNotFound = errors.New("step not found")

	// ErrStepDataNotFound is returned when a step's output payload has not
	// been set yet (or was already garbage-collected).
	ErrStepDataNotFound = errors.New("step data not found")

	// ErrAdmissionConflict is returned when a bundle being admitted reuses
	// an id already present in the store. Admission is all-or-nothing: a
	// conflict on any step rejects the entire bundle.
	ErrAdmissionConflict = errors.New("admission conflict")

	// ErrProtocolMalformed is returned when a wire frame cannot be split
	// into a method and payload on the separator token.
	ErrProtocolMalformed = errors.New("malformed protocol frame")

	// ErrUnknownMethod is returned when a wire frame names a method the
	// protocol server does not implement.
	ErrUnknownMethod = errors.New("unknown method")
)
