package transaction

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/liamcoop/docrules/rules"
)

// PostgresRepository implements Repository backed by PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL-backed Repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectTransaction = `
	SELECT id, tenant_id, transaction_type, ownership_status, property_address,
	       answers, status, created_at, updated_at
	FROM transactions
`

func (r *PostgresRepository) Create(ctx context.Context, tx *Transaction) error {
	answers, err := json.Marshal(tx.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, tenant_id, transaction_type, ownership_status,
		                          property_address, answers, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tx.ID, tx.TenantID, tx.TransactionType, tx.OwnershipStatus,
		tx.PropertyAddress, string(answers), tx.Status, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, tenantID, id string) (*Transaction, error) {
	return getTransaction(ctx, r.db, tenantID, id, "")
}

func (r *PostgresRepository) List(ctx context.Context, tenantID string) ([]*Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransaction+`
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	list := []*Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return list, nil
}

func (r *PostgresRepository) Documents(ctx context.Context, tenantID, id string) ([]Document, error) {
	if _, err := getTransaction(ctx, r.db, tenantID, id, ""); err != nil {
		return nil, err
	}
	return listDocuments(ctx, r.db, id)
}

// Mutate locks the transaction row for the duration of fn
func (r *PostgresRepository) Mutate(ctx context.Context, tenantID, id string, fn MutateFunc) (*Transaction, error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	tx, err := getTransaction(ctx, dbtx, tenantID, id, "FOR UPDATE")
	if err != nil {
		return nil, err
	}

	existing, err := listDocuments(ctx, dbtx, id)
	if err != nil {
		return nil, err
	}

	added, err := fn(tx, existing)
	if err != nil {
		return nil, err
	}

	answers, err := json.Marshal(tx.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answers: %w", err)
	}

	if _, err := dbtx.ExecContext(ctx, `
		UPDATE transactions
		SET property_address = $1, answers = $2, status = $3, updated_at = $4
		WHERE id = $5
	`, tx.PropertyAddress, string(answers), tx.Status, tx.UpdatedAt, tx.ID); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	for i, doc := range added {
		if _, err := dbtx.ExecContext(ctx, `
			INSERT INTO transaction_documents (id, transaction_id, slug, name, included_reason, status, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (transaction_id, slug) DO NOTHING
		`, doc.ID, tx.ID, doc.Slug, doc.Name, doc.IncludedReason, doc.Status, len(existing)+i, doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to insert document %s: %w", doc.Slug, err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tx, nil
}

func getTransaction(ctx context.Context, q queryer, tenantID, id, lock string) (*Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	row := q.QueryRowContext(ctx, selectTransaction+`
		WHERE id = $1 AND tenant_id = $2
	`+lock, id, tenantID)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (*Transaction, error) {
	var (
		tx      Transaction
		answers []byte
	)
	err := s.Scan(&tx.ID, &tx.TenantID, &tx.TransactionType, &tx.OwnershipStatus,
		&tx.PropertyAddress, &answers, &tx.Status, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Answers = rules.AnswerSet{}
	if err := json.Unmarshal(answers, &tx.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers for transaction %s: %w", tx.ID, err)
	}
	return &tx, nil
}

func listDocuments(ctx context.Context, q queryer, transactionID string) ([]Document, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, transaction_id, slug, name, included_reason, status, created_at
		FROM transaction_documents
		WHERE transaction_id = $1
		ORDER BY position ASC
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	documents := []Document{}
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.TransactionID, &doc.Slug, &doc.Name,
			&doc.IncludedReason, &doc.Status, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return documents, nil
}
