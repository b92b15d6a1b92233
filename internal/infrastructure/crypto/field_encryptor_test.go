package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAEADFieldEncryptor_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	enc, err := NewAEADFieldEncryptor(key)
	require.NoError(t, err)

	plaintext := "consumer-secret-value-1234"
	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, plaintext)

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAEADFieldEncryptor_FreshNoncePerField(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	enc, err := NewAEADFieldEncryptor(key)
	require.NoError(t, err)

	c1, err := enc.Encrypt("same-value")
	require.NoError(t, err)
	c2, err := enc.Encrypt("same-value")
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2, "identical plaintexts must not share ciphertext")
}

func TestAEADFieldEncryptor_RejectsBadKey(t *testing.T) {
	_, err := NewAEADFieldEncryptor("deadbeef")
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = NewAEADFieldEncryptor("not hex at all")
	assert.Error(t, err)
}

func TestAEADFieldEncryptor_RejectsTamperedCiphertext(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	enc, err := NewAEADFieldEncryptor(key)
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("api-key")
	require.NoError(t, err)

	tampered := strings.Replace(ciphertext, ciphertext[10:11], "A", 1)
	if tampered == ciphertext {
		tampered = strings.Replace(ciphertext, ciphertext[10:11], "B", 1)
	}
	_, err = enc.Decrypt(tampered)
	assert.Error(t, err)
}
