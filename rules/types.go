package rules

import "strings"

// QuestionType enumerates the answer shapes an intake question accepts
type QuestionType string

const (
	QuestionYesNo  QuestionType = "yes_no"
	QuestionSelect QuestionType = "select"
	QuestionText   QuestionType = "text"
	QuestionNumber QuestionType = "number"
)

// AlwaysCondition marks a rule whose document is part of every package
const AlwaysCondition = "always"

// AlwaysIncludedReason is reported for documents included by an always rule
const AlwaysIncludedReason = "Always included"

// QuestionDefinition is a single intake questionnaire entry
type QuestionDefinition struct {
	ID       string       `json:"id" validate:"required"`
	Label    string       `json:"label"`
	Type     QuestionType `json:"type" validate:"required,oneof=yes_no select text number"`
	Options  []string     `json:"options,omitempty"`
	Required bool         `json:"required"`
}

// DocumentRule decides whether a legal document belongs in a transaction's package
type DocumentRule struct {
	Slug      string `json:"slug" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Condition string `json:"condition" validate:"required"`
	Reason    string `json:"reason,omitempty"`
}

// IsAlways reports whether the rule uses the always shortcut
func (r DocumentRule) IsAlways() bool {
	return strings.TrimSpace(r.Condition) == AlwaysCondition
}

// Schema is the validated question/rule set for one (transaction type, ownership status) pair.
// Schemas returned by a SchemaStore are shared and must not be mutated.
type Schema struct {
	Name            string               `json:"name,omitempty"`
	TransactionType string               `json:"transaction_type,omitempty"`
	OwnershipStatus string               `json:"ownership_status,omitempty"`
	Questions       []QuestionDefinition `json:"questions" validate:"dive"`
	DocumentRules   []DocumentRule       `json:"document_rules" validate:"dive"`

	// compiled holds one parsed condition per document rule (nil for always rules).
	// It is populated by ValidateSchema and left empty on hand-built schemas.
	compiled []Expr
}

// Question looks up a question definition by id
func (s *Schema) Question(id string) (QuestionDefinition, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return QuestionDefinition{}, false
}

// AnswerSet maps question ids to answers. Values are strings for yes_no, select
// and text questions and numbers for number questions, as decoded from JSON.
type AnswerSet map[string]any

// DocumentDecision is one document the rules include in a package
type DocumentDecision struct {
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	IncludedReason string `json:"included_reason"`
}

// Evaluation is the combined completeness and document result for one answer set
type Evaluation struct {
	Schema    *Schema            `json:"-"`
	Complete  bool               `json:"complete"`
	Missing   []string           `json:"missing"`
	Documents []DocumentDecision `json:"documents"`
}
