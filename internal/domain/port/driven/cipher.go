package driven

import (
	"errors"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
)

// ErrInvalidKey is a fatal configuration error: the key material on disk is
// not a hex-encoded 32-byte key.
var ErrInvalidKey = errors.New("invalid encryption key")

// ErrInvalidPayload is the single error kind for every decryption failure:
// bad encoding, short payload, wrong key or tampering.
var ErrInvalidPayload = errors.New("invalid encrypted payload")

// Cipher is the authenticated-encryption primitive used for stored passwords.
type Cipher interface {
	Encrypt(plaintext []byte, key model.SymmetricKey) (string, error)
	Decrypt(payload string, key model.SymmetricKey) ([]byte, error)
}

// KeyStore materializes the process-wide symmetric key.
type KeyStore interface {
	LoadOrCreate() (model.SymmetricKey, error)
}
