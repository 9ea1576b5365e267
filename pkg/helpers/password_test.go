package helpers_test

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardroom/pkg/helpers"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	for i := 0; i < 8; i++ {
		b := make([]byte, 12)
		_, err := rand.Read(b)
		require.NoError(t, err)
		plain := hex.EncodeToString(b)

		hash, err := helpers.HashPassword(plain)
		require.NoError(t, err)
		require.NotEmpty(t, hash)
		assert.NotEqual(t, plain, hash)

		ok, err := helpers.VerifyPassword(hash, plain)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = helpers.VerifyPassword(hash, plain+"x")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestHashPasswordSalted(t *testing.T) {
	h1, err := helpers.HashPassword("correct horse battery")
	require.NoError(t, err)
	h2, err := helpers.HashPassword("correct horse battery")
	require.NoError(t, err)
	// Fresh salt per call; the hashes differ but both verify.
	assert.NotEqual(t, h1, h2)

	for _, h := range []string{h1, h2} {
		ok, err := helpers.VerifyPassword(h, "correct horse battery")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	ok, err := helpers.VerifyPassword("not-a-bcrypt-hash", "whatever1")
	assert.False(t, ok)
	// A broken stored hash is an error, not a mismatch.
	assert.Error(t, err)
}
