package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaarahi/storefront/internal/config"
	"golang.org/x/crypto/bcrypt"
)

func testJWT() *JWTManager {
	return NewJWTManager(config.JWTConfig{
		Secret:            "test-secret-that-is-long-enough-for-hs256",
		AccessTokenExpiry: time.Hour,
		RememberMeExpiry:  30 * 24 * time.Hour,
	}, "vaarahi-test")
}

func TestAccessTokenRoundTrip(t *testing.T) {
	j := testJWT()

	token, exp, err := j.GenerateAccessToken("u1", "asha@example.com", "sess-1", false)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := j.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.False(t, claims.RememberMe)
}

func TestRememberMeUsesLongExpiry(t *testing.T) {
	_, exp, err := testJWT().GenerateAccessToken("u1", "a@b.c", "s", true)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now().Add(29*24*time.Hour)))
}

func TestValidateRejectsExpiredAndForeignTokens(t *testing.T) {
	j := testJWT()
	token, _, err := j.GenerateAccessToken("u1", "a@b.c", "s", false)
	require.NoError(t, err)

	j.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = j.ValidateAccessToken(token)
	assert.Error(t, err)

	other := NewJWTManager(config.JWTConfig{Secret: "a-completely-different-secret-value!!", AccessTokenExpiry: time.Hour}, "vaarahi-test")
	_, err = other.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromHeader("Bearer abc"))
	assert.Empty(t, ExtractTokenFromHeader("Basic abc"))
	assert.Empty(t, ExtractTokenFromHeader(""))
}

func TestPasswordPolicyAndHash(t *testing.T) {
	p := NewPasswordManager(bcrypt.MinCost)

	for _, weak := range []string{"short1", "lettersonly", "1234567890"} {
		_, err := p.HashPassword(weak)
		assert.ErrorIs(t, err, ErrWeakPassword, weak)
	}

	hash, err := p.HashPassword("saree2024")
	require.NoError(t, err)
	assert.NoError(t, p.VerifyPassword("saree2024", hash))
	assert.Error(t, p.VerifyPassword("saree2025", hash))
}
