package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketwatch-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

var (
	ErrSecretRequired  = errors.New("jwt secret is required")
	ErrSubjectMismatch = errors.New("token subject does not match account_id")
)

// MintAccessToken signs a token for payload. Production tokens come from the
// identity provider; this mint serves local runs and tests.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload IdentityPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", ErrSecretRequired
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("jwt expiration minutes must be positive")
	case payload.AccountID == uuid.Nil:
		return "", errors.New("account id is required")
	case strings.TrimSpace(payload.Email) == "":
		return "", errors.New("email is required")
	}

	registered := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Subject:   payload.AccountID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
		ID:        uuid.NewString(),
	}
	if cfg.Audience != "" {
		registered.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	claims := AccessTokenClaims{
		AccountID:        payload.AccountID,
		Email:            strings.TrimSpace(payload.Email),
		Name:             strings.TrimSpace(payload.Name),
		RegisteredClaims: registered,
	}
	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer, expiry and (when configured)
// audience, allowing cfg.Leeway of clock skew. A subject, when present, must
// name the same account as account_id.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, ErrSecretRequired
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	if claims.AccountID == uuid.Nil {
		return nil, errors.New("token missing account_id")
	}
	if claims.Subject != "" && claims.Subject != claims.AccountID.String() {
		return nil, ErrSubjectMismatch
	}
	return claims, nil
}
