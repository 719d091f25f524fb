package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LegacyEndpointStore = (*LegacyRepo)(nil)

const (
	colKeychainID = "password_keychain_id"
	colFallback   = "password_fallback"
	colEncrypted  = "password_encrypted"
)

// LegacyRepo reads and retires the password columns of the pre-encryption
// endpoints schema: password_keychain_id (OS keychain reference) and
// password_fallback (base64 plaintext).
type LegacyRepo struct {
	db *DB
}

// NewLegacyRepo creates a new LegacyRepo backed by the given DB.
func NewLegacyRepo(db *DB) *LegacyRepo {
	return &LegacyRepo{db: db}
}

// InspectSchema reports which password columns the endpoints table has.
func (r *LegacyRepo) InspectSchema(ctx context.Context) (driven.LegacySchema, error) {
	const query = `SELECT name FROM pragma_table_info('endpoints')`

	rows, err := r.db.Writer.QueryContext(ctx, query)
	if err != nil {
		return driven.LegacySchema{}, fmt.Errorf("inspect endpoints schema: %w", err)
	}
	defer rows.Close()

	var schema driven.LegacySchema
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return driven.LegacySchema{}, fmt.Errorf("scan column name: %w", err)
		}
		switch name {
		case colKeychainID:
			schema.HasKeychainColumn = true
		case colFallback:
			schema.HasFallbackColumn = true
		case colEncrypted:
			schema.HasEncryptedColumn = true
		}
	}
	if err := rows.Err(); err != nil {
		return driven.LegacySchema{}, fmt.Errorf("iterate columns: %w", err)
	}

	return schema, nil
}

// PrepareEncryptedColumn adds password_encrypted when it is missing.
func (r *LegacyRepo) PrepareEncryptedColumn(ctx context.Context) error {
	schema, err := r.InspectSchema(ctx)
	if err != nil {
		return err
	}
	if schema.HasEncryptedColumn {
		return nil
	}

	if _, err := r.db.Writer.ExecContext(ctx, `ALTER TABLE endpoints ADD COLUMN `+colEncrypted+` TEXT`); err != nil {
		return fmt.Errorf("add %s column: %w", colEncrypted, err)
	}
	return nil
}

// ListLegacy returns every endpoint with its legacy secret fields. Columns
// missing from the schema read as empty.
func (r *LegacyRepo) ListLegacy(ctx context.Context) ([]model.LegacyEndpointRecord, error) {
	schema, err := r.InspectSchema(ctx)
	if err != nil {
		return nil, err
	}

	keychainExpr, fallbackExpr := "''", "''"
	if schema.HasKeychainColumn {
		keychainExpr = "COALESCE(" + colKeychainID + ", '')"
	}
	if schema.HasFallbackColumn {
		fallbackExpr = "COALESCE(" + colFallback + ", '')"
	}

	query := `SELECT id, name, ` + keychainExpr + `, ` + fallbackExpr + ` FROM endpoints ORDER BY id`
	rows, err := r.db.Writer.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list legacy endpoints: %w", err)
	}
	defer rows.Close()

	var records []model.LegacyEndpointRecord
	for rows.Next() {
		var rec model.LegacyEndpointRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.KeychainID, &rec.PasswordFallback); err != nil {
			return nil, fmt.Errorf("scan legacy endpoint: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy endpoints: %w", err)
	}

	return records, nil
}

// Finalize writes the re-encrypted payloads and drops the legacy columns in a
// single transaction, so a crash leaves either the old or the new schema.
func (r *LegacyRepo) Finalize(ctx context.Context, payloads map[int64]*string) (err error) {
	schema, err := r.InspectSchema(ctx)
	if err != nil {
		return err
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin legacy finalize: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const update = `UPDATE endpoints SET ` + colEncrypted + ` = ? WHERE id = ?`
	for id, payload := range payloads {
		if _, err = tx.ExecContext(ctx, update, payload, id); err != nil {
			return fmt.Errorf("store migrated password for endpoint %d: %w", id, err)
		}
	}

	var drops []string
	if schema.HasKeychainColumn {
		drops = append(drops, colKeychainID)
	}
	if schema.HasFallbackColumn {
		drops = append(drops, colFallback)
	}
	for _, col := range drops {
		if _, err = tx.ExecContext(ctx, `ALTER TABLE endpoints DROP COLUMN `+col); err != nil {
			return fmt.Errorf("drop legacy columns (%s): %w", strings.Join(drops, ", "), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit legacy finalize: %w", err)
	}
	return nil
}
