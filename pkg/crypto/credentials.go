// Package crypto seals data source connection details at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDecryptionFailed is returned when decryption fails due to invalid ciphertext or wrong key.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or wrong key")
	// ErrNoKey is returned when opening an encrypted value without a key.
	ErrNoKey = errors.New("connection details are encrypted but no credentials key is configured")
)

const (
	plainPrefix  = "v0:"
	sealedPrefix = "v1:"
)

// DetailsSealer converts connection details to and from their stored form.
// The data source id is bound to the ciphertext so sealed details cannot be
// swapped between rows.
type DetailsSealer struct {
	gcm cipher.AEAD // nil when no key is configured
}

// NewDetailsSealer creates a sealer from a key string.
// The key can be:
//   - A base64-encoded 32-byte key (e.g., from: openssl rand -base64 32)
//   - Any passphrase (hashed to 32 bytes with SHA-256)
//   - Empty, in which case details are stored as plain JSON
func NewDetailsSealer(keyInput string) (*DetailsSealer, error) {
	if keyInput == "" {
		return &DetailsSealer{}, nil
	}

	key, err := base64.StdEncoding.DecodeString(keyInput)
	if err != nil || len(key) != 32 {
		sum := sha256.Sum256([]byte(keyInput))
		key = sum[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &DetailsSealer{gcm: gcm}, nil
}

// Encrypted reports whether Seal produces ciphertext.
func (s *DetailsSealer) Encrypted() bool {
	return s.gcm != nil
}

// Seal serializes details for storage under the given data source id.
func (s *DetailsSealer) Seal(id string, details map[string]any) (string, error) {
	if details == nil {
		details = map[string]any{}
	}
	plaintext, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("failed to marshal connection details: %w", err)
	}

	if s.gcm == nil {
		return plainPrefix + string(plaintext), nil
	}

	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	// nonce || ciphertext || tag
	sealed := s.gcm.Seal(nonce, nonce, plaintext, []byte(id))
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. An empty stored value yields an empty map.
func (s *DetailsSealer) Open(id, stored string) (map[string]any, error) {
	var plaintext []byte

	switch {
	case stored == "":
		return map[string]any{}, nil
	case strings.HasPrefix(stored, plainPrefix):
		plaintext = []byte(strings.TrimPrefix(stored, plainPrefix))
	case strings.HasPrefix(stored, sealedPrefix):
		if s.gcm == nil {
			return nil, ErrNoKey
		}
		data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: base64 decode failed", ErrDecryptionFailed)
		}
		nonceSize := s.gcm.NonceSize()
		if len(data) < nonceSize+s.gcm.Overhead() {
			return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
		}
		plaintext, err = s.gcm.Open(nil, data[:nonceSize], data[nonceSize:], []byte(id))
		if err != nil {
			return nil, fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format", ErrDecryptionFailed)
	}

	details := map[string]any{}
	if err := json.Unmarshal(plaintext, &details); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection details: %w", err)
	}
	return details, nil
}
