package transaction

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
)

// MutateFunc edits a locked transaction in place and returns the documents to attach.
// Returning an error discards every change.
type MutateFunc func(tx *Transaction, documents []Document) ([]Document, error)

// Repository persists transactions and their document packages.
// All lookups are scoped by tenant id; a transaction of another tenant is ErrNotFound.
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, tenantID, id string) (*Transaction, error)
	List(ctx context.Context, tenantID string) ([]*Transaction, error)
	Documents(ctx context.Context, tenantID, id string) ([]Document, error)

	// Mutate serializes edits to one transaction. The mutated transaction is saved and
	// the returned documents are inserted unless a document with the same slug exists.
	Mutate(ctx context.Context, tenantID, id string, fn MutateFunc) (*Transaction, error)
}

// MemoryRepository is a Repository held in process memory
type MemoryRepository struct {
	transactions map[string]*Transaction
	documents    map[string][]Document
	mu           sync.Mutex
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		transactions: make(map[string]*Transaction),
		documents:    make(map[string][]Document),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, tx *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transactions[tx.ID] = cloneTransaction(tx)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, tenantID, id string) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.lookup(tenantID, id)
	if err != nil {
		return nil, err
	}
	return cloneTransaction(tx), nil
}

func (r *MemoryRepository) List(ctx context.Context, tenantID string) ([]*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := []*Transaction{}
	for _, tx := range r.transactions {
		if tx.TenantID == tenantID {
			list = append(list, cloneTransaction(tx))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (r *MemoryRepository) Documents(ctx context.Context, tenantID, id string) ([]Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.lookup(tenantID, id); err != nil {
		return nil, err
	}
	return append([]Document{}, r.documents[id]...), nil
}

func (r *MemoryRepository) Mutate(ctx context.Context, tenantID, id string, fn MutateFunc) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.lookup(tenantID, id)
	if err != nil {
		return nil, err
	}

	tx := cloneTransaction(stored)
	existing := r.documents[id]
	added, err := fn(tx, slices.Clone(existing))
	if err != nil {
		return nil, err
	}

	for _, doc := range added {
		if hasSlug(existing, doc.Slug) {
			continue
		}
		existing = append(existing, doc)
	}
	r.documents[id] = existing
	r.transactions[id] = cloneTransaction(tx)
	return tx, nil
}

func (r *MemoryRepository) lookup(tenantID, id string) (*Transaction, error) {
	tx, exists := r.transactions[id]
	if !exists || tx.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return tx, nil
}

func cloneTransaction(tx *Transaction) *Transaction {
	c := *tx
	c.Answers = maps.Clone(tx.Answers)
	return &c
}

func hasSlug(documents []Document, slug string) bool {
	for _, d := range documents {
		if d.Slug == slug {
			return true
		}
	}
	return false
}
