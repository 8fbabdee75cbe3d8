package keys_test

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"

	apperrors "github.com/charlesng35/urlcache/pkg/errors"
	"github.com/charlesng35/urlcache/pkg/keys"
)

func TestDerive_SHA256(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		expected   string
	}{
		{
			name:       "empty identifier",
			identifier: "",
			expected:   "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:       "simple string",
			identifier: "hello world",
			expected:   "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
		{
			name:       "longer text",
			identifier: "The quick brown fox jumps over the lazy dog",
			expected:   "d7a8fbb307d7809469ca9abcb0082e4f8d5651e46d3cdb762d02d0bf37c9e592",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := keys.Derive(tt.identifier)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, key)
			assert.True(t, keys.Valid(key))
		})
	}
}

func TestDeriver_Algorithms(t *testing.T) {
	identifier := "https://example.com/api?page=2"

	sha3Sum := sha3.Sum256([]byte(identifier))
	blakeSum := blake3.Sum256([]byte(identifier))

	tests := []struct {
		algorithm string
		expected  string
	}{
		{algorithm: "sha3-256", expected: hex.EncodeToString(sha3Sum[:])},
		{algorithm: "BLAKE3", expected: hex.EncodeToString(blakeSum[:])},
	}

	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			deriver, err := keys.NewDeriver(tt.algorithm)
			require.NoError(t, err)

			key, err := deriver.Derive(identifier)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, key)
			assert.Len(t, key, keys.KeyLength)
		})
	}
}

func TestDeriver_DefaultsToSHA256(t *testing.T) {
	deriver, err := keys.NewDeriver("")
	require.NoError(t, err)
	assert.Equal(t, keys.AlgorithmSHA256, deriver.Algorithm())
}

func TestDeriver_UnknownAlgorithm(t *testing.T) {
	_, err := keys.NewDeriver("md5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig))
}

func TestDerive_Deterministic(t *testing.T) {
	first, err := keys.Derive("example.com")
	require.NoError(t, err)
	second, err := keys.Derive("example.com")
	require.NoError(t, err)
	other, err := keys.Derive("example.org")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
}

func TestDerive_InvalidUTF8(t *testing.T) {
	_, err := keys.Derive(string([]byte{0xff, 0xfe, 'a'}))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrEncoding)
}

func TestValid(t *testing.T) {
	assert.False(t, keys.Valid("abc"))
	assert.False(t, keys.Valid("zz4d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"))
	assert.True(t, keys.Valid("b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"))
}
