package transaction

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/liamcoop/docrules/internal/logger"
	"github.com/liamcoop/docrules/rules"
)

// Service runs the intake workflow: answers are collected against the transaction's
// schema and a document package is generated once the questionnaire is complete.
type Service struct {
	repo     Repository
	engine   *rules.Engine
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a workflow service
func NewService(repo Repository, engine *rules.Engine) *Service {
	return &Service{
		repo:     repo,
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Repository returns the service's repository
func (s *Service) Repository() Repository {
	return s.repo
}

// Create starts a transaction. The transaction type and ownership status must name an
// existing schema.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Transaction, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	schema, err := s.loadSchema(ctx, params.TransactionType, params.OwnershipStatus)
	if err != nil {
		return nil, err
	}

	answers := rules.AnswerSet{}
	maps.Copy(answers, params.Answers)

	now := s.now()
	tx := &Transaction{
		ID:              uuid.NewString(),
		TenantID:        params.TenantID,
		TransactionType: params.TransactionType,
		OwnershipStatus: params.OwnershipStatus,
		PropertyAddress: strings.TrimSpace(params.PropertyAddress),
		Answers:         answers,
		Status:          StatusIntake,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if complete, _ := rules.CheckCompleteness(schema, answers); complete {
		tx.Status = StatusReady
	}

	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, err
	}

	logger.Info("created transaction",
		"tenant_id", tx.TenantID,
		"transaction_id", tx.ID,
		"schema", schema.Name,
		"status", tx.Status,
	)
	return tx, nil
}

// Get returns one transaction
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Transaction, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns a tenant's transactions, newest first
func (s *Service) List(ctx context.Context, tenantID string) ([]*Transaction, error) {
	return s.repo.List(ctx, tenantID)
}

// Documents returns the documents attached to a transaction in the order they were added
func (s *Service) Documents(ctx context.Context, tenantID, id string) ([]Document, error) {
	return s.repo.Documents(ctx, tenantID, id)
}

// SubmitAnswers merges answers into the transaction, or replaces them when replace is
// set, and returns the evaluation of the resulting answer set. A nil value removes
// the stored answer when merging. Nothing is saved if the schema cannot be evaluated.
func (s *Service) SubmitAnswers(ctx context.Context, tenantID, id string, answers rules.AnswerSet, replace bool) (*Transaction, *rules.Evaluation, error) {
	current, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
	}
	schema, err := s.loadSchema(ctx, current.TransactionType, current.OwnershipStatus)
	if err != nil {
		return nil, nil, err
	}

	var evaluation *rules.Evaluation
	tx, err := s.repo.Mutate(ctx, tenantID, id, func(tx *Transaction, _ []Document) ([]Document, error) {
		if replace || tx.Answers == nil {
			tx.Answers = rules.AnswerSet{}
		}
		for k, v := range answers {
			if v == nil {
				delete(tx.Answers, k)
				continue
			}
			tx.Answers[k] = v
		}

		ev, err := rules.EvaluateSchema(schema, tx.Answers)
		if err != nil {
			return nil, err
		}
		evaluation = ev

		tx.Status = nextStatus(tx.Status, evaluation.Complete)
		tx.UpdatedAt = s.now()
		return nil, nil
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("submitted answers",
		"tenant_id", tenantID,
		"transaction_id", id,
		"answers", len(answers),
		"replace", replace,
		"status", tx.Status,
	)
	return tx, evaluation, nil
}

// Preview evaluates the transaction's current answers without saving anything
func (s *Service) Preview(ctx context.Context, tenantID, id string) (*rules.Evaluation, error) {
	tx, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	schema, err := s.loadSchema(ctx, tx.TransactionType, tx.OwnershipStatus)
	if err != nil {
		return nil, err
	}
	logger.EvaluationRequests.Add(1)
	return rules.EvaluateSchema(schema, tx.Answers)
}

// GeneratePackage attaches the documents the schema's rules select for the current
// answers. The questionnaire must be complete. Documents already attached are kept
// as they are, so generating twice for the same answers adds nothing the second time.
func (s *Service) GeneratePackage(ctx context.Context, tenantID, id string) (*PackageResult, error) {
	current, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	schema, err := s.loadSchema(ctx, current.TransactionType, current.OwnershipStatus)
	if err != nil {
		return nil, err
	}

	result := &PackageResult{}
	tx, err := s.repo.Mutate(ctx, tenantID, id, func(tx *Transaction, existing []Document) ([]Document, error) {
		evaluation, err := rules.EvaluateSchema(schema, tx.Answers)
		if err != nil {
			return nil, err
		}
		if !evaluation.Complete {
			return nil, &IncompleteError{TransactionID: tx.ID, Missing: evaluation.Missing}
		}

		now := s.now()
		added := Reconcile(existing, evaluation.Documents)
		for i := range added {
			added[i].ID = uuid.NewString()
			added[i].TransactionID = tx.ID
			added[i].CreatedAt = now
		}

		result.Added = added
		result.Existing = existing
		tx.Status = StatusDocumentsGenerated
		tx.UpdatedAt = now
		return added, nil
	})

	var incomplete *IncompleteError
	if errors.As(err, &incomplete) {
		logger.IncompletePackages.Add(1)
		logger.Info("package generation blocked by missing answers",
			"tenant_id", tenantID,
			"transaction_id", id,
			"missing", incomplete.Missing,
		)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if result.Existing == nil {
		result.Existing = []Document{}
	}
	result.Transaction = tx

	logger.Info("generated document package",
		"tenant_id", tenantID,
		"transaction_id", id,
		"added", len(result.Added),
		"existing", len(result.Existing),
	)
	return result, nil
}

// loadSchema maps a missing schema to ErrUnsupportedConfiguration. Other schema errors
// are returned unchanged.
func (s *Service) loadSchema(ctx context.Context, transactionType, ownershipStatus string) (*rules.Schema, error) {
	schema, err := s.engine.LoadSchema(ctx, transactionType, ownershipStatus)
	var notFound *rules.SchemaNotFoundError
	if errors.As(err, &notFound) {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedConfiguration, err)
	}
	if err != nil {
		return nil, err
	}
	return schema, nil
}

// nextStatus keeps a generated package's status while the answers stay complete
func nextStatus(current Status, complete bool) Status {
	switch {
	case !complete:
		return StatusIntake
	case current == StatusDocumentsGenerated:
		return StatusDocumentsGenerated
	default:
		return StatusReady
	}
}
