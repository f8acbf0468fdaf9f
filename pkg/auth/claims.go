package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IdentityPayload captures the identity a token asserts. Roles are never
// carried in tokens; they are resolved from the accounts table per request.
type IdentityPayload struct {
	AccountID uuid.UUID
	Email     string
	Name      string
}

// AccessTokenClaims represents the typed JWT presented by callers.
type AccessTokenClaims struct {
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	jwt.RegisteredClaims
}
