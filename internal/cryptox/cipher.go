package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	ivLength      = 16
	authTagLength = 16
)

var (
	// ErrKeyNotConfigured is returned when the cipher is constructed without
	// a usable key.
	ErrKeyNotConfigured = errors.New("encryption key not configured")

	// ErrInvalidEnvelope is returned when an encrypted value does not have
	// the iv:authTag:ciphertext shape.
	ErrInvalidEnvelope = errors.New("invalid encrypted data format")

	// ErrDecryptFailed is returned when the authentication tag does not
	// verify (tampered data or wrong key).
	ErrDecryptFailed = errors.New("decryption failed")
)

// Cipher encrypts and decrypts tokens with AES-256-GCM. Values are encoded
// as three colon-separated base64 fields: iv:authTag:ciphertext.
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a hex-encoded 32-byte key.
func New(hexKey string) (*Cipher, error) {
	if hexKey == "" {
		return nil, ErrKeyNotConfigured
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, errors.New("invalid encryption key length, must be 64 hex characters (32 bytes)")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-authTagLength]
	authTag := sealed[len(sealed)-authTagLength:]

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(authTag),
		base64.StdEncoding.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt opens an iv:authTag:ciphertext envelope.
func (c *Cipher) Decrypt(encrypted string) (string, error) {
	parts := strings.Split(encrypted, ":")
	if len(parts) != 3 {
		return "", ErrInvalidEnvelope
	}

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalidEnvelope
	}
	authTag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrInvalidEnvelope
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", ErrInvalidEnvelope
	}
	if len(iv) != ivLength {
		return "", ErrInvalidEnvelope
	}

	plaintext, err := c.aead.Open(nil, iv, append(ciphertext, authTag...), nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

// GenerateKey returns a fresh hex-encoded 32-byte key, for setup purposes.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}
