package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
)

// ErrEndpointNotFound indicates the requested endpoint does not exist.
var ErrEndpointNotFound = errors.New("endpoint not found")

// EndpointStore defines the driven port for endpoint persistence. The store
// treats PasswordEncrypted as an opaque string; encryption happens above it.
// Get, Update and Delete return ErrEndpointNotFound for unknown ids.
type EndpointStore interface {
	Get(ctx context.Context, id int64) (model.Endpoint, error)
	List(ctx context.Context) ([]model.Endpoint, error)
	Insert(ctx context.Context, endpoint model.Endpoint) (int64, error)
	Update(ctx context.Context, endpoint model.Endpoint) error
	SetPassword(ctx context.Context, id int64, payload *string) error
	Delete(ctx context.Context, id int64) error
}

// LegacySchema describes which password columns the endpoints table carries.
type LegacySchema struct {
	HasKeychainColumn  bool
	HasFallbackColumn  bool
	HasEncryptedColumn bool
}

// NeedsMigration reports whether any legacy column is still present or the
// encrypted column is missing.
func (s LegacySchema) NeedsMigration() bool {
	return s.HasKeychainColumn || s.HasFallbackColumn || !s.HasEncryptedColumn
}

// LegacyEndpointStore exposes the pre-encryption schema for the one-time
// upgrade. Finalize writes the re-encrypted payloads (nil clears) and drops
// the legacy columns atomically.
type LegacyEndpointStore interface {
	InspectSchema(ctx context.Context) (LegacySchema, error)
	PrepareEncryptedColumn(ctx context.Context) error
	ListLegacy(ctx context.Context) ([]model.LegacyEndpointRecord, error)
	Finalize(ctx context.Context, payloads map[int64]*string) error
}
