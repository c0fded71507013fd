package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and remote gateway
// clients return these (optionally wrapped) so services can translate them
// into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrAlreadyUsed: key already taken (registry name uniqueness)
// - ErrSessionRejected: gateway refused the cached session token
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyUsed     = errors.New("already used")
	ErrSessionRejected = errors.New("session rejected")
	ErrUnavailable     = errors.New("unavailable")
)
