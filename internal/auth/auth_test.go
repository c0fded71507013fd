package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "detour/pkg/domain-errors"
)

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenService("test-signing-key", time.Hour)

	token, err := tokens.Generate("admin")
	require.NoError(t, err)

	subject, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	tokens := NewTokenService("test-signing-key", -time.Minute)

	token, err := tokens.Generate("admin")
	require.NoError(t, err)

	_, err = tokens.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	token, err := NewTokenService("key-one", time.Hour).Generate("admin")
	require.NoError(t, err)

	_, err = NewTokenService("key-two", time.Hour).ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	tokens := NewTokenService("test-signing-key", time.Hour)

	_, err := tokens.ValidateToken("not-a-token")
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	tokens := NewTokenService("test-signing-key", time.Hour)
	svc := NewService("admin", string(hash), tokens)

	t.Run("valid credentials issue a token", func(t *testing.T) {
		token, err := svc.Login("admin", "secret")
		require.NoError(t, err)

		subject, err := tokens.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "admin", subject)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login("admin", "wrong")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong username", func(t *testing.T) {
		_, err := svc.Login("root", "secret")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unconfigured hash disables login", func(t *testing.T) {
		unconfigured := NewService("admin", "", tokens)
		_, err := unconfigured.Login("admin", "secret")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}
