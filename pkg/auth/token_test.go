package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketwatch-backend/pkg/config"
)

func testConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "marketwatch", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testConfig()
	now := time.Now().UTC()
	accountID := uuid.New()

	token, err := MintAccessToken(cfg, now, IdentityPayload{AccountID: accountID, Email: "a@example.com", Name: "Ann"})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, accountID, claims.AccountID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "Ann", claims.Name)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
	assert.Equal(t, accountID.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestMintValidatesInput(t *testing.T) {
	now := time.Now()
	_, err := MintAccessToken(config.JWTConfig{}, now, IdentityPayload{AccountID: uuid.New(), Email: "a@b.c"})
	assert.Error(t, err)
	_, err = MintAccessToken(testConfig(), now, IdentityPayload{Email: "a@b.c"})
	assert.Error(t, err)
	_, err = MintAccessToken(testConfig(), now, IdentityPayload{AccountID: uuid.New()})
	assert.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), IdentityPayload{AccountID: uuid.New(), Email: "a@b.c"})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseRejectsWrongIssuerAndSecret(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now(), IdentityPayload{AccountID: uuid.New(), Email: "a@b.c"})
	require.NoError(t, err)

	other := cfg
	other.Issuer = "someone-else"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)

	other = cfg
	other.Secret = "different"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	claims := AccessTokenClaims{
		AccountID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "marketwatch",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseAccessToken(testConfig(), unsigned)
	assert.Error(t, err)
}

func TestParseHonoursAudience(t *testing.T) {
	cfg := testConfig()
	cfg.Audience = "marketwatch-api"
	token, err := MintAccessToken(cfg, time.Now(), IdentityPayload{AccountID: uuid.New(), Email: "a@b.c"})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.NoError(t, err)

	other := cfg
	other.Audience = "billing"
	_, err = ParseAccessToken(other, token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
}

func TestParseAllowsLeeway(t *testing.T) {
	cfg := testConfig()
	cfg.ExpirationMinutes = 1
	token, err := MintAccessToken(cfg, time.Now().Add(-70*time.Second), IdentityPayload{AccountID: uuid.New(), Email: "a@b.c"})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	cfg.Leeway = 30 * time.Second
	_, err = ParseAccessToken(cfg, token)
	assert.NoError(t, err)
}

func TestParseRejectsSubjectMismatch(t *testing.T) {
	cfg := testConfig()
	claims := AccessTokenClaims{
		AccountID: uuid.New(),
		Email:     "a@b.c",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, signed)
	assert.ErrorIs(t, err, ErrSubjectMismatch)
}
