package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dev-Manje/helpdesk/internal/domain"
)

func TestTokenRoundTripCarriesActor(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, _, err := tm.GenerateToken(domain.Actor{ID: "agent-1", Role: domain.RoleAgent})
	require.NoError(t, err)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", claims.Subject)
	assert.Equal(t, domain.RoleAgent, claims.Role)
}

func TestParseTokenRejectsWrongSecretAndSystemRole(t *testing.T) {
	issuer := NewTokenManager("secret", 5)
	token, _, err := issuer.GenerateToken(domain.Actor{ID: "c1", Role: domain.RoleClient})
	require.NoError(t, err)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)

	system, _, err := issuer.GenerateToken(domain.SystemActor)
	require.NoError(t, err)
	_, err = issuer.ParseToken(system)
	assert.Error(t, err)
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{Role: domain.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenManager("secret", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpiredAndUnexpiring(t *testing.T) {
	tm := NewTokenManager("secret", 5)

	expired := &Claims{Role: domain.RoleAgent, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "agent-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	forever := &Claims{Role: domain.RoleAgent, RegisteredClaims: jwt.RegisteredClaims{Subject: "agent-1"}}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, forever).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaimsActor(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, _, err := tm.GenerateToken(domain.Actor{ID: "mgr-1", Role: domain.RoleManager})
	require.NoError(t, err)
	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{ID: "mgr-1", Role: domain.RoleManager}, claims.Actor())
}
