package auth

import (
	"golang.org/x/crypto/bcrypt"

	dErrors "detour/pkg/domain-errors"
)

// Service verifies admin credentials and hands out bearer tokens. A single
// admin account is configured through the environment; there is no user
// store behind it.
type Service struct {
	username     string
	passwordHash []byte
	tokens       *TokenService
}

func NewService(username, passwordHash string, tokens *TokenService) *Service {
	return &Service{
		username:     username,
		passwordHash: []byte(passwordHash),
		tokens:       tokens,
	}
}

// Login checks the credentials and returns a signed token. The same coded
// error is returned for a wrong username and a wrong password.
func (s *Service) Login(username, password string) (string, error) {
	if len(s.passwordHash) == 0 {
		return "", dErrors.New(dErrors.CodeUnavailable, "admin login is not configured")
	}
	if username != s.username {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return s.tokens.Generate(username)
}
