// Package secrets encrypts short secret strings (OAuth client secrets, refresh tokens,
// private keys) before they are written to the settings store, and decrypts them on read.
//
// Envelopes are "iv:tag:ciphertext", each segment standard base64. The cipher is
// AES-256-GCM with a 16-byte random IV per call, keyed from the process-wide master key.
// Plaintext MUST NOT be logged by callers; errors never include secret material.
package secrets

import (
	"errors"
	"fmt"
)

// MinMasterKeyLen is the minimum master key length in bytes (AES-256).
const MinMasterKeyLen = 32

var (
	// ErrMasterKeyMissing is returned when neither ENCRYPTION_KEY nor JWT_SECRET is set.
	ErrMasterKeyMissing = errors.New("encryption master key is not configured")
	// ErrMasterKeyTooShort is returned when the master key is shorter than 32 bytes.
	ErrMasterKeyTooShort = fmt.Errorf("encryption master key must be at least %d characters", MinMasterKeyLen)
	// ErrEmptyPlaintext is returned by Encrypt for an empty input.
	ErrEmptyPlaintext = errors.New("plaintext must not be empty")
	// ErrInvalidEnvelope is returned when an envelope is not three non-empty base64 segments.
	ErrInvalidEnvelope = errors.New("invalid encrypted envelope")
	// ErrDecryptionFailed is returned when the authentication tag does not verify.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// Master key environment variables, in lookup order.
const (
	EnvEncryptionKey = "ENCRYPTION_KEY"
	EnvJWTSecret     = "JWT_SECRET"
)

// MasterKey returns the master key from ENCRYPTION_KEY, falling back to JWT_SECRET.
// lookup is usually os.LookupEnv.
func MasterKey(lookup func(string) (string, bool)) (string, error) {
	for _, name := range []string{EnvEncryptionKey, EnvJWTSecret} {
		if v, ok := lookup(name); ok && v != "" {
			return v, nil
		}
	}
	return "", ErrMasterKeyMissing
}
