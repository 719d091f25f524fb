package application

import (
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// errNoPassword marks an endpoint without a stored payload. It never leaves
// this package; Reveal collapses it and decryption failures into "absent".
var errNoPassword = errors.New("no stored password")

// CredentialVault encrypts endpoint passwords for storage and reveals them for
// outgoing requests. The key is injected once at startup and never changes.
type CredentialVault struct {
	cipher driven.Cipher
	key    model.SymmetricKey
	logger *slog.Logger
}

// NewCredentialVault creates a vault around the given cipher and key.
func NewCredentialVault(cipher driven.Cipher, key model.SymmetricKey, logger *slog.Logger) *CredentialVault {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialVault{cipher: cipher, key: key, logger: logger}
}

// Store encrypts plaintext and returns the payload the caller persists on the
// endpoint record.
func (v *CredentialVault) Store(endpointID int64, plaintext string) (string, error) {
	payload, err := v.cipher.Encrypt([]byte(plaintext), v.key)
	if err != nil {
		return "", fmt.Errorf("encrypt password for endpoint %d: %w", endpointID, err)
	}
	return payload, nil
}

// Reveal returns the endpoint's plaintext password. The boolean is false both
// when no password is configured and when the stored payload cannot be
// decrypted; the latter is logged as a warning.
func (v *CredentialVault) Reveal(endpoint model.Endpoint) (string, bool) {
	password, err := v.open(endpoint)
	switch {
	case err == nil:
		return password, true
	case errors.Is(err, errNoPassword):
		return "", false
	default:
		v.logger.Warn("stored password could not be decrypted; continuing without credentials",
			"endpoint_id", endpoint.ID,
			"endpoint", endpoint.Name,
			"error", err,
		)
		return "", false
	}
}

func (v *CredentialVault) open(endpoint model.Endpoint) (string, error) {
	if !endpoint.HasStoredPassword() {
		return "", errNoPassword
	}

	plaintext, err := v.cipher.Decrypt(*endpoint.PasswordEncrypted, v.key)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plaintext) {
		return "", driven.ErrInvalidPayload
	}
	return string(plaintext), nil
}

// ConnectionSettings resolves everything needed to build a remote client for
// the endpoint. The password is revealed only when a username is set, since
// basic auth needs both.
func (v *CredentialVault) ConnectionSettings(endpoint model.Endpoint) model.ConnectionSettings {
	settings := model.ConnectionSettings{
		URL:      endpoint.URL,
		Insecure: endpoint.Insecure,
		Username: endpoint.Username,
	}
	if endpoint.Username != "" {
		if password, ok := v.Reveal(endpoint); ok {
			settings.Password = password
		}
	}
	return settings
}
