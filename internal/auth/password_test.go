package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	for _, pw := range []string{"correct horse battery staple", "p", "pässwörd-ünïcode"} {
		hashed, err := h.Hash(pw)
		require.NoError(t, err)
		assert.NotEqual(t, pw, hashed)
		assert.True(t, h.Verify(pw, hashed), pw)
		assert.False(t, h.Verify(pw+"x", hashed), pw)
	}
}

func TestPasswordHasher_Salted(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("same", a))
	assert.True(t, h.Verify("same", b))
}

func TestPasswordHasher_VerifyMalformedHash(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	assert.False(t, h.Verify("anything", ""))
	assert.False(t, h.Verify("anything", "not-a-bcrypt-hash"))
}

func TestNewPasswordHasher_InvalidCost(t *testing.T) {
	for _, cost := range []int{0, bcrypt.MinCost - 1, bcrypt.MaxCost + 1} {
		_, err := NewPasswordHasher(cost)
		assert.ErrorIs(t, err, ErrEncoding, "cost %d", cost)
	}
}

func TestPasswordHasher_HashTooLong(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	_, err = h.Hash(string(long))
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestPasswordHasher_NeedsRehash(t *testing.T) {
	weak, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	strong, err := NewPasswordHasher(bcrypt.MinCost + 1)
	require.NoError(t, err)

	hashed, err := weak.Hash("pw")
	require.NoError(t, err)

	assert.False(t, weak.NeedsRehash(hashed))
	assert.True(t, strong.NeedsRehash(hashed))
	assert.False(t, strong.NeedsRehash("garbage"))
}
