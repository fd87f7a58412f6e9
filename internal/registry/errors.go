package registry

import (
	"errors"
	"fmt"
)

// Recoverable submission errors, surfaced to the submitter with no state change.
var (
	ErrInvalidInput      = errors.New("invalid registration input")
	ErrDuplicateLocation = errors.New("location fingerprint already registered")
	ErrDuplicateEvidence = errors.New("evidence fingerprint already registered")
	ErrProjectExists     = fmt.Errorf("%w: project id already registered", ErrInvalidInput)
)

// Caller logic errors on lifecycle transitions, no state change.
var (
	ErrProjectNotFound        = errors.New("project not found")
	ErrNotPending             = errors.New("project is not pending")
	ErrNotVerifying           = errors.New("project is not verifying")
	ErrNotLocked              = errors.New("project is not locked")
	ErrAlreadyLocked          = errors.New("project is already locked")
	ErrVerificationInProgress = errors.New("verification already in progress")
	ErrInvalidAmount          = errors.New("credited amount must be positive")
)

// Fingerprint store errors.
var (
	ErrEmptyFingerprint = errors.New("fingerprint must not be empty")
	ErrFingerprintTaken = errors.New("fingerprint already reserved")
)
