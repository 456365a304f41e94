package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digest(password string) string {
	h := sha256.Sum256([]byte(password))
	return hex.EncodeToString(h[:])
}

func TestHashAndVerifyPassword(t *testing.T) {
	d := digest("hunter22")

	stored, err := HashPassword(d)
	require.NoError(t, err)
	assert.NotEqual(t, d, stored)

	ok, legacy := VerifyPassword(stored, d)
	assert.True(t, ok)
	assert.False(t, legacy)

	ok, _ = VerifyPassword(stored, digest("wrong"))
	assert.False(t, ok)
}

func TestVerifyPassword_LegacyDigest(t *testing.T) {
	d := digest("hunter22")

	// Stored value is a bare SHA-256 digest from before the bcrypt wrap.
	ok, legacy := VerifyPassword(d, d)
	assert.True(t, ok)
	assert.True(t, legacy)

	// Case differences in the hex encoding must not matter.
	ok, legacy = VerifyPassword(d, hexUpper(d))
	assert.True(t, ok)
	assert.True(t, legacy)

	ok, _ = VerifyPassword(d, digest("wrong"))
	assert.False(t, ok)
}

func TestVerifyPassword_UnknownStoredFormat(t *testing.T) {
	ok, legacy := VerifyPassword("plaintext-oops", digest("hunter22"))
	assert.False(t, ok)
	assert.False(t, legacy)
}

func hexUpper(s string) string {
	out := []byte(s)
	for i, b := range out {
		if b >= 'a' && b <= 'f' {
			out[i] = b - 'a' + 'A'
		}
	}
	return string(out)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret-at-least-16-chars")

	token, err := m.Sign("usr_123")
	require.NoError(t, err)

	userID, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_123", userID)
}

func TestTokenManager_RejectsBadTokens(t *testing.T) {
	m := NewTokenManager("test-secret-at-least-16-chars")

	_, err := m.Verify("not-a-token")
	assert.Error(t, err)

	other := NewTokenManager("a-different-secret-entirely")
	token, err := other.Sign("usr_123")
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.Error(t, err)
}
