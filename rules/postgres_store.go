package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
)

// PostgresSchemaStore implements SchemaStore backed by PostgreSQL.
// Each schema name has a history of versions of which exactly one is active.
type PostgresSchemaStore struct {
	db    *sql.DB
	cache SchemaCache
}

// NewPostgresSchemaStore creates a new PostgreSQL-backed SchemaStore. cache may be nil.
func NewPostgresSchemaStore(db *sql.DB, cache SchemaCache) *PostgresSchemaStore {
	return &PostgresSchemaStore{
		db:    db,
		cache: cache,
	}
}

// Load returns the active version of a schema
func (s *PostgresSchemaStore) Load(ctx context.Context, transactionType, ownershipStatus string) (*Schema, error) {
	if err := ValidateSchemaKey(transactionType, ownershipStatus); err != nil {
		return nil, err
	}
	name := SchemaName(transactionType, ownershipStatus)

	var version int
	err := s.db.QueryRowContext(ctx, `
		SELECT version
		FROM intake_schemas
		WHERE name = $1 AND active = true
	`, name).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &SchemaNotFoundError{TransactionType: transactionType, OwnershipStatus: ownershipStatus}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}

	fingerprint := strconv.Itoa(version)
	if s.cache != nil {
		if schema, ok := s.cache.Get(name, fingerprint); ok {
			return schema, nil
		}
	}

	var definition []byte
	err = s.db.QueryRowContext(ctx, `
		SELECT definition
		FROM intake_schemas
		WHERE name = $1 AND version = $2
	`, name, version).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &SchemaNotFoundError{TransactionType: transactionType, OwnershipStatus: ownershipStatus}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema definition: %w", err)
	}

	schema, err := DecodeSchema(name, definition)
	if err != nil {
		return nil, err
	}
	schema.TransactionType = transactionType
	schema.OwnershipStatus = ownershipStatus

	if s.cache != nil {
		s.cache.Set(name, fingerprint, schema)
	}
	return schema, nil
}

// Publish validates a schema document and stores it as the new active version.
// Invalid documents are rejected before anything is written.
func (s *PostgresSchemaStore) Publish(ctx context.Context, transactionType, ownershipStatus string, definition []byte) (int, error) {
	if err := ValidateSchemaKey(transactionType, ownershipStatus); err != nil {
		return 0, err
	}
	name := SchemaName(transactionType, ownershipStatus)

	if _, err := DecodeSchema(name, definition); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Serialize publishers of the same schema so version numbers stay unique
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, name); err != nil {
		return 0, fmt.Errorf("failed to lock schema %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE intake_schemas
		SET active = false
		WHERE name = $1 AND active = true
	`, name); err != nil {
		return 0, fmt.Errorf("failed to deactivate old schemas: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO intake_schemas (name, transaction_type, ownership_status, version, definition, active, created_at)
		SELECT $1, $2, $3, COALESCE(MAX(version), 0) + 1, $4, true, NOW()
		FROM intake_schemas
		WHERE name = $1
		RETURNING version
	`, name, transactionType, ownershipStatus, string(definition)).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to save new schema: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit schema: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(name)
	}
	return version, nil
}

// List returns the names of all schemas with an active version
func (s *PostgresSchemaStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name
		FROM intake_schemas
		WHERE active = true
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan schema: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schemas: %w", err)
	}

	return names, nil
}
