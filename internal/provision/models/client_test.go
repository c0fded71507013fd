package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detour/internal/singbox"
	dErrors "detour/pkg/domain-errors"
)

func validRegions() map[string]RemoteIdentity {
	return map[string]RemoteIdentity{
		"primary":   {UUID: "uuid-a", SubID: "1111222233334444"},
		"secondary": {UUID: "uuid-b", SubID: "5555666677778888"},
	}
}

func TestNewClient(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid client", func(t *testing.T) {
		client, err := NewClient("alice", "a@b.c", singbox.PlatformIOS, validRegions(), now)
		require.NoError(t, err)
		assert.Equal(t, "alice", client.Name)
		assert.Equal(t, now, client.CreatedAt)
		assert.Equal(t, now, client.UpdatedAt)
	})

	tests := []struct {
		name     string
		client   string
		platform singbox.Platform
		regions  map[string]RemoteIdentity
	}{
		{"empty name", "", singbox.PlatformIOS, validRegions()},
		{"name too long", strings.Repeat("a", 65), singbox.PlatformIOS, validRegions()},
		{"unknown platform", "alice", singbox.Platform("linux"), validRegions()},
		{"no regions", "alice", singbox.PlatformIOS, map[string]RemoteIdentity{}},
		{"missing uuid", "alice", singbox.PlatformIOS, map[string]RemoteIdentity{
			"primary": {SubID: "1111222233334444"},
		}},
		{"missing sub id", "alice", singbox.PlatformIOS, map[string]RemoteIdentity{
			"primary": {UUID: "uuid-a"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.client, "", tt.platform, tt.regions, now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}
