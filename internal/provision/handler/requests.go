package handler

import (
	"strings"

	"detour/internal/singbox"
	dErrors "detour/pkg/domain-errors"
)

// CreateClientRequest is the HTTP request body for POST /api/clients.
type CreateClientRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Platform string `json:"platform"`
}

// Validate normalizes and validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateClientRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 64 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 64 characters")
	}
	if strings.ContainsAny(r.Name, "/\\ ") {
		return dErrors.New(dErrors.CodeValidation, "name must not contain spaces or path separators")
	}

	r.Email = strings.TrimSpace(r.Email)
	if len(r.Email) > 254 {
		return dErrors.New(dErrors.CodeValidation, "email must be at most 254 characters")
	}

	r.Platform = strings.TrimSpace(r.Platform)
	if r.Platform == "" {
		return dErrors.New(dErrors.CodeValidation, "platform is required")
	}
	if _, err := singbox.ParsePlatform(r.Platform); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "unsupported platform")
	}

	return nil
}

// LoginRequest is the HTTP request body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" {
		return dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	return nil
}
