package region

import "fmt"

// AuthError reports a failed authentication against a region's control
// plane. It is not retried beyond the single re-auth attempt the manager
// performs for rejected sessions.
type AuthError struct {
	RegionID string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("region %s: authentication failed: %v", e.RegionID, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// CreateError reports a client-creation call rejected by a region.
type CreateError struct {
	RegionID string
	Msg      string
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("region %s: create client failed: %s", e.RegionID, e.Msg)
}

// CallError reports any other failed control-plane call.
type CallError struct {
	RegionID string
	Op       string
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("region %s: %s: %v", e.RegionID, e.Op, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
