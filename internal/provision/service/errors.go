package service

import "fmt"

// PartialProvisioningError reports that one region accepted the identity and
// the other rejected it. The orchestrator has already attempted the
// compensating delete on the succeeded region by the time this surfaces;
// Compensated records whether that delete went through.
type PartialProvisioningError struct {
	SucceededRegion string
	FailedRegion    string
	Cause           error
	Compensated     bool
}

func (e *PartialProvisioningError) Error() string {
	outcome := "compensating delete succeeded"
	if !e.Compensated {
		outcome = "compensating delete failed, remote identity may be orphaned"
	}
	return fmt.Sprintf("provisioning failed on region %s after region %s succeeded (%s): %v",
		e.FailedRegion, e.SucceededRegion, outcome, e.Cause)
}

func (e *PartialProvisioningError) Unwrap() error { return e.Cause }

// RemoteIdentityMissingError reports drift between the registry and live
// region state: the stored per-region id is absent from the region's
// listing. Surfaced, never silently repaired.
type RemoteIdentityMissingError struct {
	RegionID string
	Name     string
}

func (e *RemoteIdentityMissingError) Error() string {
	return fmt.Sprintf("client %s has no live identity on region %s", e.Name, e.RegionID)
}
