package transaction

import (
	"time"

	"github.com/liamcoop/docrules/rules"
)

// Status tracks where a transaction is in the intake workflow
type Status string

const (
	// StatusIntake means required questions are still unanswered
	StatusIntake Status = "intake"
	// StatusReady means the questionnaire is complete and a package can be generated
	StatusReady Status = "ready"
	// StatusDocumentsGenerated means a document package has been attached
	StatusDocumentsGenerated Status = "documents_generated"
)

// DocumentStatus tracks a single document in a package
type DocumentStatus string

const (
	DocumentPending DocumentStatus = "pending"
)

// Transaction is a real estate deal together with its intake answers
type Transaction struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	TransactionType string          `json:"transaction_type"`
	OwnershipStatus string          `json:"ownership_status"`
	PropertyAddress string          `json:"property_address"`
	Answers         rules.AnswerSet `json:"answers"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Document is a legal document attached to a transaction. Slug is unique per transaction.
type Document struct {
	ID             string         `json:"id"`
	TransactionID  string         `json:"transaction_id"`
	Slug           string         `json:"slug"`
	Name           string         `json:"name"`
	IncludedReason string         `json:"included_reason"`
	Status         DocumentStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// CreateParams describes a new transaction
type CreateParams struct {
	TenantID        string          `json:"tenant_id" validate:"required"`
	TransactionType string          `json:"transaction_type" validate:"required"`
	OwnershipStatus string          `json:"ownership_status" validate:"required"`
	PropertyAddress string          `json:"property_address"`
	Answers         rules.AnswerSet `json:"answers,omitempty"`
}

// PackageResult is the outcome of generating a transaction's document package
type PackageResult struct {
	Transaction *Transaction `json:"transaction"`
	Added       []Document   `json:"added"`
	Existing    []Document   `json:"existing"`
}
