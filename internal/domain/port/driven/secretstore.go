package driven

import "errors"

// ErrSecretNotFound is returned by SecretStore when no entry exists.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore is the legacy external secret store (the OS keychain) that held
// endpoint passwords before they were encrypted in the database. It is only
// read during migration.
type SecretStore interface {
	Get(id string) (string, error)
	Delete(id string) error
}
