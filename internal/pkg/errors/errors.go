package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMissingOrgSalt means an org has no provisioned pseudonym salt.
	// Callers must fail the request; falling back to a shared salt would
	// let handles correlate across orgs.
	ErrMissingOrgSalt = errors.New("org salt not provisioned")
	// ErrInvalidEpsilon means a noise policy carries a non-positive epsilon.
	// This is a setup error, never a runtime fallback.
	ErrInvalidEpsilon = errors.New("epsilon must be strictly positive")
)
