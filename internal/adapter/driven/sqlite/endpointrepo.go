package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EndpointStore = (*EndpointRepo)(nil)

// EndpointRepo is the SQLite implementation of the EndpointStore port interface.
// password_encrypted is stored exactly as handed in; the repo never sees plaintext.
type EndpointRepo struct {
	db *DB
}

// NewEndpointRepo creates a new EndpointRepo backed by the given DB.
func NewEndpointRepo(db *DB) *EndpointRepo {
	return &EndpointRepo{db: db}
}

const endpointColumns = `id, name, url, insecure, username, password_encrypted, created_at, updated_at`

// Get retrieves an endpoint by id.
func (r *EndpointRepo) Get(ctx context.Context, id int64) (model.Endpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM endpoints WHERE id = ?`

	ep, err := scanEndpoint(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Endpoint{}, fmt.Errorf("get endpoint %d: %w", id, driven.ErrEndpointNotFound)
	}
	if err != nil {
		return model.Endpoint{}, fmt.Errorf("get endpoint %d: %w", id, err)
	}
	return ep, nil
}

// List returns all endpoints ordered by name.
func (r *EndpointRepo) List(ctx context.Context) ([]model.Endpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM endpoints ORDER BY name, id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	endpoints := []model.Endpoint{}
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		endpoints = append(endpoints, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoints: %w", err)
	}

	return endpoints, nil
}

// Insert stores a new endpoint and returns its id. Zero timestamps default to now.
func (r *EndpointRepo) Insert(ctx context.Context, ep model.Endpoint) (int64, error) {
	const query = `INSERT INTO endpoints (name, url, insecure, username, password_encrypted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	createdAt := ep.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := ep.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		ep.Name, ep.URL, ep.Insecure, nullString(ep.Username), ep.PasswordEncrypted,
		formatTime(createdAt), formatTime(updatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert endpoint %q: %w", ep.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert endpoint %q: last insert id: %w", ep.Name, err)
	}
	return id, nil
}

// Update replaces the identity fields of an endpoint. The stored password is
// left untouched; use SetPassword for that.
func (r *EndpointRepo) Update(ctx context.Context, ep model.Endpoint) error {
	const query = `UPDATE endpoints SET name = ?, url = ?, insecure = ?, username = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query,
		ep.Name, ep.URL, ep.Insecure, nullString(ep.Username), formatTime(time.Now().UTC()), ep.ID,
	)
	if err != nil {
		return fmt.Errorf("update endpoint %d: %w", ep.ID, err)
	}
	return expectOneRow(result, "update endpoint", ep.ID)
}

// SetPassword replaces the encrypted password payload; nil clears it.
func (r *EndpointRepo) SetPassword(ctx context.Context, id int64, payload *string) error {
	const query = `UPDATE endpoints SET password_encrypted = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, payload, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("set password for endpoint %d: %w", id, err)
	}
	return expectOneRow(result, "set password for endpoint", id)
}

// Delete removes an endpoint.
func (r *EndpointRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM endpoints WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete endpoint %d: %w", id, err)
	}
	return expectOneRow(result, "delete endpoint", id)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(s scanner) (model.Endpoint, error) {
	var ep model.Endpoint
	var username, password sql.NullString
	var createdAt, updatedAt string

	if err := s.Scan(&ep.ID, &ep.Name, &ep.URL, &ep.Insecure, &username, &password, &createdAt, &updatedAt); err != nil {
		return model.Endpoint{}, err
	}

	ep.Username = username.String
	if password.Valid {
		payload := password.String
		ep.PasswordEncrypted = &payload
	}

	var err error
	ep.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return model.Endpoint{}, fmt.Errorf("parse created_at: %w", err)
	}
	ep.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.Endpoint{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return ep, nil
}

func expectOneRow(result sql.Result, op string, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %d: %w", op, id, driven.ErrEndpointNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
