package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMasterKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestNewCipher(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		expectError bool
	}{
		{name: "valid 32-byte hex key", key: testMasterKey},
		{name: "empty key", key: "", expectError: true},
		{name: "non-hex key", key: strings.Repeat("z", 64), expectError: true},
		{name: "short key", key: "abcd", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCipher(tt.key)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher(testMasterKey)
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("sk-secret-value", "openai")
	require.NoError(t, err)
	assert.NotEqual(t, "sk-secret-value", ciphertext)

	plaintext, err := c.Decrypt(ciphertext, "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-value", plaintext)
}

func TestCipher_ScopeIsolation(t *testing.T) {
	c, err := NewCipher(testMasterKey)
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("sk-secret-value", "openai")
	require.NoError(t, err)

	// A ciphertext sealed for one scope must not open under another.
	_, err = c.Decrypt(ciphertext, "azure")
	assert.Error(t, err)
}

func TestCipher_EmptyValues(t *testing.T) {
	c, err := NewCipher(testMasterKey)
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("", "openai")
	require.NoError(t, err)
	assert.Equal(t, "", ciphertext)

	plaintext, err := c.Decrypt("", "openai")
	require.NoError(t, err)
	assert.Equal(t, "", plaintext)
}

func TestCipher_GarbageCiphertext(t *testing.T) {
	c, err := NewCipher(testMasterKey)
	require.NoError(t, err)

	_, err = c.Decrypt("not base64!!", "openai")
	assert.Error(t, err)

	_, err = c.Decrypt("YWJj", "openai") // valid base64, too short for a nonce
	assert.Error(t, err)
}
