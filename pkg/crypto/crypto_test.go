package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret-pass", hash)

	require.True(t, VerifyPassword(hash, "s3cret-pass"))
	require.False(t, VerifyPassword(hash, "wrong-pass"))
}

func TestGenerateHexToken(t *testing.T) {
	token, err := GenerateHexToken(24)
	require.NoError(t, err)
	require.Len(t, token, 48)

	decoded, err := hex.DecodeString(token)
	require.NoError(t, err)
	require.Len(t, decoded, 24)

	other, err := GenerateHexToken(24)
	require.NoError(t, err)
	require.NotEqual(t, token, other)
}
