package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	formatVersion = 0x01

	saltSize    = 16
	keySize     = 32
	nonceSize   = 12
	memory      = 64 * 1024 // 64 MB
	iterations  = 3
	parallelism = 4

	// version + salt + nonce + at least one byte of ciphertext
	minBlobSize = 1 + saltSize + nonceSize + 1
)

// Sealer encrypts the access token at rest with a key derived from a passphrase.
// Blob layout: [version(1B)][salt(16B)][nonce(12B)][ciphertext(N)], base64 encoded.
type Sealer struct {
	passphrase []byte
}

// NewSealer returns nil for an empty passphrase, which disables sealing.
func NewSealer(passphrase string) *Sealer {
	if passphrase == "" {
		return nil
	}
	return &Sealer{passphrase: []byte(passphrase)}
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(s.passphrase, salt, iterations, memory, uint8(parallelism), keySize)
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts token and returns the encoded blob.
func (s *Sealer) Seal(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	blob := []byte{formatVersion}
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, []byte(token), nil)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Open decodes and decrypts a blob produced by Seal.
func (s *Sealer) Open(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid encoding: %w", err)
	}
	if len(blob) < minBlobSize {
		return "", fmt.Errorf("invalid blob length: %d (minimum: %d)", len(blob), minBlobSize)
	}
	if blob[0] != formatVersion {
		return "", fmt.Errorf("unsupported format version: %d", blob[0])
	}
	salt := blob[1 : 1+saltSize]
	nonce := blob[1+saltSize : 1+saltSize+nonceSize]

	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, nonce, blob[1+saltSize+nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	return string(plain), nil
}
