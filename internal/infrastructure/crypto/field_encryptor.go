package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/bricksync/backend/internal/domain/credential"
)

// Errors for the field encryptor
var (
	ErrInvalidKeySize     = errors.New("crypto: encryption key must be 32 bytes")
	ErrCiphertextTooShort = errors.New("crypto: ciphertext shorter than nonce")
)

// AEADFieldEncryptor encrypts individual credential fields with
// XChaCha20-Poly1305. Each field gets a fresh random nonce, so identical
// plaintexts produce unrelated ciphertexts and single fields can be rotated
// independently.
type AEADFieldEncryptor struct {
	key []byte
}

// NewAEADFieldEncryptor creates an encryptor from a hex-encoded 32-byte key
func NewAEADFieldEncryptor(hexKey string) (*AEADFieldEncryptor, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid hex key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKeySize
	}
	return &AEADFieldEncryptor{key: key}, nil
}

// Encrypt returns base64(nonce || ciphertext) for one secret field
func (e *AEADFieldEncryptor) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return "", fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt
func (e *AEADFieldEncryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("crypto: invalid base64 ciphertext: %w", err)
	}

	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return "", fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	if len(raw) < aead.NonceSize() {
		return "", ErrCiphertextTooShort
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decryption failed: %w", err)
	}
	return string(plaintext), nil
}

// GenerateKey returns a fresh hex-encoded 32-byte key, for setup tooling
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("crypto: failed to generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Ensure AEADFieldEncryptor implements the vault's encryptor port
var _ credential.FieldEncryptor = (*AEADFieldEncryptor)(nil)
