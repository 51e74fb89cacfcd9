package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

const (
	ivLen  = 16
	tagLen = 16
)

// Cipher seals and opens secret envelopes. Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewCipher creates a Cipher keyed with the first 32 bytes of masterKey.
// It fails with ErrMasterKeyMissing or ErrMasterKeyTooShort; callers treat either
// as fatal at startup.
func NewCipher(masterKey string) (*Cipher, error) {
	if masterKey == "" {
		return nil, ErrMasterKeyMissing
	}
	if len(masterKey) < MinMasterKeyLen {
		return nil, ErrMasterKeyTooShort
	}
	block, err := aes.NewCipher([]byte(masterKey[:MinMasterKeyLen]))
	if err != nil {
		return nil, fmt.Errorf("AES cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return nil, fmt.Errorf("GCM: %w", err)
	}
	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext under a fresh random IV and returns "iv:tag:ciphertext".
// Two calls with the same input return different envelopes.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}
	iv := make([]byte, ivLen)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("generating IV: %w", err)
	}

	// GCM appends the tag to the ciphertext; the envelope stores it separately.
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagLen], sealed[len(sealed)-tagLen:]

	return strings.Join([]string{b64(iv), b64(tag), b64(ct)}, ":"), nil
}

// Decrypt opens an envelope produced by Encrypt.
// Malformed envelopes fail with ErrInvalidEnvelope; a tag that does not verify
// (tampering or a different master key) fails with ErrDecryptionFailed.
func (c *Cipher) Decrypt(envelope string) (string, error) {
	iv, tag, ct, err := splitEnvelope(envelope)
	if err != nil {
		return "", err
	}
	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// IsEnvelope reports whether s has the shape of an envelope. It does not verify the tag.
func IsEnvelope(s string) bool {
	_, _, _, err := splitEnvelope(s)
	return err == nil
}

func splitEnvelope(envelope string) (iv, tag, ct []byte, err error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return nil, nil, nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrInvalidEnvelope, len(parts))
	}
	decoded := make([][]byte, 3)
	for i, p := range parts {
		if p == "" {
			return nil, nil, nil, fmt.Errorf("%w: segment %d is empty", ErrInvalidEnvelope, i)
		}
		b, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: segment %d is not base64", ErrInvalidEnvelope, i)
		}
		decoded[i] = b
	}
	if len(decoded[0]) != ivLen {
		return nil, nil, nil, fmt.Errorf("%w: iv must be %d bytes", ErrInvalidEnvelope, ivLen)
	}
	if len(decoded[1]) != tagLen {
		return nil, nil, nil, fmt.Errorf("%w: tag must be %d bytes", ErrInvalidEnvelope, tagLen)
	}
	return decoded[0], decoded[1], decoded[2], nil
}

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }
