// Package region owns the control-plane clients and authenticated sessions
// for the two proxy gateways. Everything above this package addresses a
// gateway by its region id; everything below it is HTTP.
package region

import "time"

// Role distinguishes the two gateways in the detour topology. Secondary
// traffic is tunneled through the primary outbound.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// Egress holds the static connection parameters clients use to reach a
// region's proxy endpoint. These are configured at process start and are the
// only source of truth for document synthesis; they are never read back from
// previously generated documents.
type Egress struct {
	Server      string
	Port        int
	PublicKey   string
	ShortID     string
	ServerName  string
	Fingerprint string
	OutboundTag string
}

// Descriptor describes one region's control plane and egress endpoint.
// Immutable after startup.
type Descriptor struct {
	ID       string
	Role     Role
	BaseURL  string
	Username string
	Password string

	// InboundID is the panel inbound the tunnel clients are attached to.
	InboundID int

	// InsecureSkipVerify disables TLS verification against the control
	// plane. Panels are commonly deployed with self-signed certificates.
	InsecureSkipVerify bool

	// Timeout bounds every control-plane call. Zero means DefaultTimeout.
	Timeout time.Duration

	Egress Egress
}

// DefaultTimeout bounds a single control-plane call.
const DefaultTimeout = 10 * time.Second

// FlowVision is the xtls flow every provisioned client uses, on the panel
// side and in synthesized documents alike.
const FlowVision = "xtls-rprx-vision"

func (d Descriptor) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}
