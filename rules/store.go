package rules

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// SchemaStore loads validated schemas by (transaction type, ownership status).
// Every successful Load returns a fully validated schema.
type SchemaStore interface {
	// Load returns the schema for a transaction configuration
	Load(ctx context.Context, transactionType, ownershipStatus string) (*Schema, error)

	// List returns the names of all available schemas, sorted
	List(ctx context.Context) ([]string, error)
}

// SchemaFileExt is the extension of schema files in a schema directory
const SchemaFileExt = ".json"

// FileSchemaStore reads schema files named {transaction_type}_{ownership_status}.json
// from a directory. Parsed schemas are cached by file mod time and size when a cache
// is configured, so an edited file is picked up on the next Load.
type FileSchemaStore struct {
	fsys  fs.FS
	cache SchemaCache
	sf    singleflight.Group
}

// NewFileSchemaStore creates a store over fsys. cache may be nil.
func NewFileSchemaStore(fsys fs.FS, cache SchemaCache) *FileSchemaStore {
	return &FileSchemaStore{fsys: fsys, cache: cache}
}

// Load reads, decodes and validates one schema file
func (s *FileSchemaStore) Load(ctx context.Context, transactionType, ownershipStatus string) (*Schema, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateSchemaKey(transactionType, ownershipStatus); err != nil {
		return nil, err
	}

	name := SchemaName(transactionType, ownershipStatus)
	file := name + SchemaFileExt

	info, err := fs.Stat(s.fsys, file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &SchemaNotFoundError{TransactionType: transactionType, OwnershipStatus: ownershipStatus}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat schema %s: %w", file, err)
	}
	if info.IsDir() {
		return nil, &SchemaNotFoundError{TransactionType: transactionType, OwnershipStatus: ownershipStatus}
	}

	fingerprint := fmt.Sprintf("%d/%d", info.ModTime().UnixNano(), info.Size())
	if s.cache != nil {
		if schema, ok := s.cache.Get(name, fingerprint); ok {
			return schema, nil
		}
	}

	// Collapse concurrent loads of the same file version into one read
	v, err, _ := s.sf.Do(name+"@"+fingerprint, func() (any, error) {
		data, err := fs.ReadFile(s.fsys, file)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &SchemaNotFoundError{TransactionType: transactionType, OwnershipStatus: ownershipStatus}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", file, err)
		}

		schema, err := DecodeSchema(name, data)
		if err != nil {
			return nil, err
		}
		schema.TransactionType = transactionType
		schema.OwnershipStatus = ownershipStatus

		if s.cache != nil {
			s.cache.Set(name, fingerprint, schema)
		}
		return schema, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Schema), nil
}

// List returns the names of every schema file in the directory
func (s *FileSchemaStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := fs.Glob(s.fsys, "*"+SchemaFileExt)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, strings.TrimSuffix(path.Base(f), SchemaFileExt))
	}
	sort.Strings(names)
	return names, nil
}

// LintAll decodes and validates every schema file, returning the error for each
// file that fails. An empty map means every schema is valid.
func (s *FileSchemaStore) LintAll(ctx context.Context) (map[string]error, error) {
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	failures := make(map[string]error)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !schemaKeyPattern.MatchString(name) {
			failures[name] = fmt.Errorf("%w: file name %q is not a snake_case schema name", ErrInvalidSchemaKey, name+SchemaFileExt)
			continue
		}
		data, err := fs.ReadFile(s.fsys, name+SchemaFileExt)
		if err != nil {
			failures[name] = fmt.Errorf("failed to read schema: %w", err)
			continue
		}
		if _, err := DecodeSchema(name, data); err != nil {
			failures[name] = err
		}
	}
	return failures, nil
}

// InMemorySchemaStore holds validated schemas in a map
type InMemorySchemaStore struct {
	schemas map[string]*Schema
	mu      sync.RWMutex
}

// NewInMemorySchemaStore creates an empty in-memory schema store
func NewInMemorySchemaStore() *InMemorySchemaStore {
	return &InMemorySchemaStore{
		schemas: make(map[string]*Schema),
	}
}

// Put validates schema and stores it under the given key, replacing any previous schema
func (s *InMemorySchemaStore) Put(transactionType, ownershipStatus string, schema *Schema) error {
	if err := ValidateSchemaKey(transactionType, ownershipStatus); err != nil {
		return err
	}

	stored := *schema
	stored.Questions = slices.Clone(schema.Questions)
	for i := range stored.Questions {
		stored.Questions[i].Options = slices.Clone(stored.Questions[i].Options)
	}
	stored.DocumentRules = slices.Clone(schema.DocumentRules)
	stored.Name = SchemaName(transactionType, ownershipStatus)
	stored.TransactionType = transactionType
	stored.OwnershipStatus = ownershipStatus
	stored.compiled = nil
	if err := ValidateSchema(&stored); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[stored.Name] = &stored
	return nil
}

// Load returns a stored schema
func (s *InMemorySchemaStore) Load(ctx context.Context, transactionType, ownershipStatus string) (*Schema, error) {
	if err := ValidateSchemaKey(transactionType, ownershipStatus); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	schema, exists := s.schemas[SchemaName(transactionType, ownershipStatus)]
	if !exists {
		return nil, &SchemaNotFoundError{TransactionType: transactionType, OwnershipStatus: ownershipStatus}
	}
	return schema, nil
}

// List returns the names of all stored schemas
func (s *InMemorySchemaStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.schemas))
	for name := range s.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
