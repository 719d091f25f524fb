// Package keyring reads passwords that older installations kept in the OS
// keychain (macOS Keychain, Secret Service, Windows Credential Manager).
package keyring

import (
	"errors"
	"fmt"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// ServiceName is the keychain service the legacy entries were stored under.
const ServiceName = "esdesk"

// Compile-time interface satisfaction check.
var _ driven.SecretStore = (*Store)(nil)

// Store is a SecretStore over the OS keychain.
type Store struct {
	service string
}

// NewStore creates a Store for the given keychain service name.
func NewStore(service string) *Store {
	return &Store{service: service}
}

// Get returns the secret for id, or driven.ErrSecretNotFound.
func (s *Store) Get(id string) (string, error) {
	secret, err := gokeyring.Get(s.service, id)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return "", fmt.Errorf("keychain entry %q: %w", id, driven.ErrSecretNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("keychain entry %q: %w", id, err)
	}
	return secret, nil
}

// Delete removes the entry for id. A missing entry is not an error.
func (s *Store) Delete(id string) error {
	err := gokeyring.Delete(s.service, id)
	if err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
		return fmt.Errorf("delete keychain entry %q: %w", id, err)
	}
	return nil
}
