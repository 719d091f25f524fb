// Package aesgcm implements the credential cipher with AES-256-GCM.
package aesgcm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// NonceSize is the GCM nonce length prepended to every payload.
const NonceSize = 12

// Compile-time interface satisfaction check.
var _ driven.Cipher = (*Cipher)(nil)

// Cipher encrypts with AES-256-GCM. Payloads are base64(nonce || ciphertext || tag).
// It holds no state; the nonce is drawn from the OS CSPRNG on every call.
type Cipher struct {
	rand io.Reader
}

// New creates a Cipher backed by crypto/rand.
func New() *Cipher {
	return &Cipher{rand: rand.Reader}
}

// Encrypt seals plaintext under key with a fresh random nonce.
func (c *Cipher) Encrypt(plaintext []byte, key model.SymmetricKey) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a payload produced by Encrypt. Every failure maps to
// driven.ErrInvalidPayload without further detail.
func (c *Cipher) Decrypt(payload string, key model.SymmetricKey) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) < NonceSize {
		return nil, driven.ErrInvalidPayload
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, driven.ErrInvalidPayload
	}

	nonce, sealed := data[:NonceSize], data[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, driven.ErrInvalidPayload
	}

	return plaintext, nil
}

func newGCM(key model.SymmetricKey) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
