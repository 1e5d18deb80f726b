package keygen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		length int
	}{
		{"minimum", MinPasswordLength},
		{"long", 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pw, err := GeneratePassword(tt.length)
			require.NoError(t, err)
			assert.Len(t, pw, tt.length)
			for _, r := range pw {
				assert.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
			}
		})
	}
}

func TestGeneratePassword_Unique(t *testing.T) {
	t.Parallel()
	seen := make(map[string]bool)
	for range 50 {
		pw, err := GeneratePassword(24)
		require.NoError(t, err)
		assert.False(t, seen[pw], "duplicate password generated")
		seen[pw] = true
	}
}

func TestGeneratePassword_TooShort(t *testing.T) {
	t.Parallel()
	for _, n := range []int{-1, 0, MinPasswordLength - 1} {
		_, err := GeneratePassword(n)
		assert.Error(t, err, "length %d", n)
	}
}

func TestSSHA(t *testing.T) {
	t.Parallel()
	hash, err := SSHA("secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "{SSHA}"))
	assert.True(t, VerifySSHA("secret", hash))
	assert.False(t, VerifySSHA("Secret", hash))

	other, err := SSHA("secret")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts must differ")
}

func TestSSHA_KnownVector(t *testing.T) {
	t.Parallel()
	hash := sshaWithSalt("password", []byte("12345678"))
	assert.True(t, VerifySSHA("password", hash))
	assert.Len(t, hash, len("{SSHA}")+40)
}

func TestVerifySSHA_Malformed(t *testing.T) {
	t.Parallel()
	for _, h := range []string{"", "{SSHA}", "{SHA}abc", "{SSHA}!!!", "{SSHA}c2hvcnQ="} {
		assert.False(t, VerifySSHA("x", h), h)
	}
}
