package main

import (
	"github.com/liamcoop/docrules/rules"
	"github.com/liamcoop/docrules/transaction"
)

// API request and response models

// EvaluateRequest is the body of POST /api/v1/evaluate
type EvaluateRequest struct {
	TransactionType string          `json:"transactionType" validate:"required"`
	OwnershipStatus string          `json:"ownershipStatus" validate:"required"`
	Answers         rules.AnswerSet `json:"answers"`
}

// EvaluationResponse is the result of evaluating an answer set
type EvaluationResponse struct {
	Schema    string                   `json:"schema"`
	Complete  bool                     `json:"complete"`
	Missing   []string                 `json:"missing"`
	Documents []rules.DocumentDecision `json:"documents"`
}

func newEvaluationResponse(eval *rules.Evaluation) EvaluationResponse {
	resp := EvaluationResponse{
		Complete:  eval.Complete,
		Missing:   eval.Missing,
		Documents: eval.Documents,
	}
	if eval.Schema != nil {
		resp.Schema = eval.Schema.Name
	}
	if resp.Missing == nil {
		resp.Missing = []string{}
	}
	if resp.Documents == nil {
		resp.Documents = []rules.DocumentDecision{}
	}
	return resp
}

// CreateTransactionRequest is the body of POST /api/v1/tenants/{tenantId}/transactions
type CreateTransactionRequest struct {
	TransactionType string          `json:"transactionType"`
	OwnershipStatus string          `json:"ownershipStatus"`
	PropertyAddress string          `json:"propertyAddress"`
	Answers         rules.AnswerSet `json:"answers"`
}

// SubmitAnswersRequest is the body of PUT .../transactions/{transactionId}/answers.
// Answers are merged into the stored set unless Replace is set.
type SubmitAnswersRequest struct {
	Answers rules.AnswerSet `json:"answers" validate:"required"`
	Replace bool            `json:"replace"`
}

// SubmitAnswersResponse returns the updated transaction and its evaluation preview
type SubmitAnswersResponse struct {
	Transaction *transaction.Transaction `json:"transaction"`
	Evaluation  EvaluationResponse       `json:"evaluation"`
}

// TransactionsListResponse lists a tenant's transactions
type TransactionsListResponse struct {
	Transactions []*transaction.Transaction `json:"transactions"`
}

// DocumentsListResponse lists the documents attached to a transaction
type DocumentsListResponse struct {
	Documents []transaction.Document `json:"documents"`
}

// PackageResponse is the outcome of POST .../transactions/{transactionId}/documents
type PackageResponse struct {
	Transaction *transaction.Transaction `json:"transaction"`
	Added       []transaction.Document   `json:"added"`
	Existing    []transaction.Document   `json:"existing"`
}

// SchemasListResponse lists available schema names
type SchemasListResponse struct {
	Schemas []string `json:"schemas"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// IncompleteResponse is returned when a package is requested before every required
// question is answered
type IncompleteResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing"`
}

// SchemaErrorResponse describes a schema that cannot be used
type SchemaErrorResponse struct {
	Error      string   `json:"error"`
	Schema     string   `json:"schema,omitempty"`
	Violations []string `json:"violations,omitempty"`
	Condition  string   `json:"condition,omitempty"`
	Offset     *int     `json:"offset,omitempty"`
	Fragment   string   `json:"fragment,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Schemas int    `json:"schemas"`
	Error   string `json:"error,omitempty"`
}

// MetricsResponse exposes process counters
type MetricsResponse struct {
	Counters map[string]int64 `json:"counters"`
	Cache    *CacheMetrics    `json:"cache,omitempty"`
}

// CacheMetrics reports schema cache usage
type CacheMetrics struct {
	Entries int    `json:"entries"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
}
