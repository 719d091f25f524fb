package application

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// MigrationReport summarizes one LegacyMigrator run.
type MigrationReport struct {
	Skipped  bool
	Migrated int
	Lost     int
}

// LegacyMigrator moves endpoint passwords from the keychain + base64 fallback
// scheme into encrypted database payloads. It is safe to run on every start:
// once the legacy columns are gone it only inspects the schema.
type LegacyMigrator struct {
	store   driven.LegacyEndpointStore
	secrets driven.SecretStore
	vault   *CredentialVault
	logger  *slog.Logger
}

// NewLegacyMigrator creates a migrator. secrets may be nil when no keychain is
// available; the fallback column is then the only source.
func NewLegacyMigrator(store driven.LegacyEndpointStore, secrets driven.SecretStore, vault *CredentialVault, logger *slog.Logger) *LegacyMigrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LegacyMigrator{
		store:   store,
		secrets: secrets,
		vault:   vault,
		logger:  logger,
	}
}

// Run performs the upgrade. Records whose password cannot be recovered from
// either source end up without a password and are logged; they never fail
// the run. Storage errors do.
func (m *LegacyMigrator) Run(ctx context.Context) (MigrationReport, error) {
	schema, err := m.store.InspectSchema(ctx)
	if err != nil {
		return MigrationReport{}, fmt.Errorf("inspect schema: %w", err)
	}
	if !schema.NeedsMigration() {
		return MigrationReport{Skipped: true}, nil
	}

	if !schema.HasEncryptedColumn {
		if err := m.store.PrepareEncryptedColumn(ctx); err != nil {
			return MigrationReport{}, fmt.Errorf("prepare encrypted column: %w", err)
		}
	}

	records, err := m.store.ListLegacy(ctx)
	if err != nil {
		return MigrationReport{}, fmt.Errorf("list legacy endpoints: %w", err)
	}

	var report MigrationReport
	payloads := make(map[int64]*string, len(records))
	var keychainIDs []string

	for _, rec := range records {
		if !rec.HasLegacySecret() {
			continue
		}

		plaintext, ok := m.resolve(rec)
		if !ok {
			m.logger.Warn("legacy password could not be recovered; endpoint will have no password",
				"endpoint_id", rec.ID,
				"endpoint", rec.Name,
			)
			payloads[rec.ID] = nil
			report.Lost++
			continue
		}

		payload, err := m.vault.Store(rec.ID, plaintext)
		if err != nil {
			return MigrationReport{}, err
		}
		payloads[rec.ID] = &payload
		report.Migrated++
		if rec.KeychainID != "" {
			keychainIDs = append(keychainIDs, rec.KeychainID)
		}
	}

	if err := m.store.Finalize(ctx, payloads); err != nil {
		return MigrationReport{}, fmt.Errorf("finalize legacy migration: %w", err)
	}

	m.forgetKeychainEntries(keychainIDs)

	m.logger.Info("migrated legacy endpoint passwords",
		"migrated", report.Migrated,
		"lost", report.Lost,
	)
	return report, nil
}

// resolve tries the keychain first, then the base64 fallback column.
func (m *LegacyMigrator) resolve(rec model.LegacyEndpointRecord) (string, bool) {
	if rec.KeychainID != "" && m.secrets != nil {
		secret, err := m.secrets.Get(rec.KeychainID)
		switch {
		case err == nil && secret != "":
			return secret, true
		case err != nil && !errors.Is(err, driven.ErrSecretNotFound):
			m.logger.Debug("keychain lookup failed, trying fallback",
				"endpoint_id", rec.ID, "error", err)
		}
	}

	if rec.PasswordFallback == "" {
		return "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(rec.PasswordFallback)
	if err != nil {
		m.logger.Debug("legacy fallback is not valid base64",
			"endpoint_id", rec.ID, "error", err)
		return "", false
	}
	if !utf8.Valid(decoded) {
		m.logger.Warn("legacy fallback does not decode to UTF-8 text",
			"endpoint_id", rec.ID, "endpoint", rec.Name)
		return "", false
	}
	return string(decoded), true
}

func (m *LegacyMigrator) forgetKeychainEntries(ids []string) {
	if m.secrets == nil {
		return
	}
	for _, id := range ids {
		if err := m.secrets.Delete(id); err != nil {
			m.logger.Debug("could not delete migrated keychain entry", "keychain_id", id, "error", err)
		}
	}
}
