package models

import (
	"time"

	"detour/internal/singbox"
	dErrors "detour/pkg/domain-errors"
)

// RemoteIdentity is the locally generated identity pushed to one region.
// The identity, not the region, is the source of truth for these ids.
type RemoteIdentity struct {
	UUID  string `json:"uuid"`
	SubID string `json:"sub_id"`
}

// Client is the aggregate root for a provisioned tunnel client.
//
// Invariants:
//   - Name is non-empty, at most 64 characters, and globally unique among
//     active clients (uniqueness enforced atomically by the registry)
//   - Platform is one of the supported platforms
//   - Regions holds exactly one RemoteIdentity per provisioned region
//   - Name and the per-region UUIDs are immutable after construction
type Client struct {
	Name      string                    `json:"name"`
	Email     string                    `json:"email,omitempty"`
	Platform  singbox.Platform          `json:"platform"`
	Regions   map[string]RemoteIdentity `json:"regions"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

func NewClient(name, email string, platform singbox.Platform, regions map[string]RemoteIdentity, now time.Time) (*Client, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client name cannot be empty")
	}
	if len(name) > 64 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client name must be 64 characters or less")
	}
	if _, err := singbox.ParsePlatform(string(platform)); err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown platform")
	}
	if len(regions) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client must carry at least one region identity")
	}
	for regionID, identity := range regions {
		if identity.UUID == "" || identity.SubID == "" {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "region "+regionID+" identity is incomplete")
		}
	}
	return &Client{
		Name:      name,
		Email:     email,
		Platform:  platform,
		Regions:   regions,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DocumentRef locates the synthesized configuration document for a client.
type DocumentRef struct {
	FileName  string `json:"file_name"`
	PublicURL string `json:"public_url"`
}

// Record is the registry projection of a client plus its document location.
type Record struct {
	Client   *Client     `json:"client"`
	Document DocumentRef `json:"document"`
}
