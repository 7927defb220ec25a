package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	h := HashPassword("secret")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashPassword("secret"))
	assert.NotEqual(t, h, HashPassword("other"))
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	tok, err := issuer.Issue("user-1", "a@example.com")
	require.NoError(t, err)

	claims, err := issuer.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	tok, err := NewTokenIssuer("secret-a", time.Hour).Issue("user-1", "a@example.com")
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret-b", time.Hour).Verify(tok)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)
	tok, err := issuer.Issue("user-1", "a@example.com")
	require.NoError(t, err)

	_, err = issuer.Verify(tok)
	assert.Error(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	_, err := NewTokenIssuer("test-secret", time.Hour).Verify("not-a-token")
	assert.Error(t, err)
}
