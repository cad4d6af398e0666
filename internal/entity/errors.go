package entity

import "errors"

var (
	// ErrValidation marks a rejected mutation that would break a structural
	// invariant. Nothing has been changed when it is returned.
	ErrValidation = errors.New("validation error")

	// ErrReferenceIntegrity marks a required reference that is missing.
	ErrReferenceIntegrity = errors.New("reference integrity error")

	// ErrPersistence marks a failed save, load or flush. The active graph is
	// unchanged when it is returned.
	ErrPersistence = errors.New("persistence error")
)
