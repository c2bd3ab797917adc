package rules

import (
	"context"
	"errors"

	"github.com/liamcoop/docrules/internal/logger"
)

// Engine loads schemas from a SchemaStore and evaluates answer sets against them.
// It holds no per-call state; concurrent use is safe when the store is.
type Engine struct {
	store SchemaStore
}

// NewEngine creates an engine backed by store
func NewEngine(store SchemaStore) *Engine {
	return &Engine{store: store}
}

// Store returns the engine's schema store
func (en *Engine) Store() SchemaStore {
	return en.store
}

// LoadSchema loads and validates the schema for a transaction configuration.
// Schema errors are logged and returned unchanged.
func (en *Engine) LoadSchema(ctx context.Context, transactionType, ownershipStatus string) (*Schema, error) {
	schema, err := en.store.Load(ctx, transactionType, ownershipStatus)
	if err != nil {
		reportSchemaError(SchemaName(transactionType, ownershipStatus), err)
		return nil, err
	}
	return schema, nil
}

// Evaluate loads the schema for a transaction configuration and evaluates answers
// against it
func (en *Engine) Evaluate(ctx context.Context, transactionType, ownershipStatus string, answers AnswerSet) (*Evaluation, error) {
	schema, err := en.LoadSchema(ctx, transactionType, ownershipStatus)
	if err != nil {
		return nil, err
	}
	return EvaluateSchema(schema, answers)
}

// EvaluateSchema runs the completeness check and the document rules for one answer set
func EvaluateSchema(schema *Schema, answers AnswerSet) (*Evaluation, error) {
	docs, err := EvaluateDocumentRules(schema, answers)
	if err != nil {
		reportSchemaError(schema.Name, err)
		return nil, err
	}

	complete, missing := CheckCompleteness(schema, answers)
	logger.Debug("evaluated document rules",
		"schema", schema.Name,
		"documents", len(docs),
		"complete", complete,
		"missing", len(missing),
	)

	return &Evaluation{
		Schema:    schema,
		Complete:  complete,
		Missing:   missing,
		Documents: docs,
	}, nil
}

// reportSchemaError logs configuration errors that block a transaction workflow.
// Unsupported configurations are a caller problem and only logged at info level.
func reportSchemaError(name string, err error) {
	var (
		notFound   *SchemaNotFoundError
		validation *SchemaValidationError
		syntax     *ConditionSyntaxError
	)
	switch {
	case errors.As(err, &validation):
		logger.ErrorSchema()
		logger.Error("schema failed validation",
			"schema", name,
			"violations", validation.Violations,
		)
	case errors.As(err, &syntax):
		logger.ErrorSchema()
		logger.Error("document rule condition failed to parse",
			"schema", name,
			"condition", syntax.Expression,
			"offset", syntax.Offset,
			"error", syntax.Message,
		)
	case errors.As(err, &notFound):
		logger.Info("schema not found", "schema", name)
	case errors.Is(err, ErrInvalidSchemaKey):
		logger.Debug("rejected schema key", "error", err)
	default:
		logger.Error("failed to load schema", "schema", name, "error", err)
	}
}
