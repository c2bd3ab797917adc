package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	schemaKeyPattern  = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)
	questionIDPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

func schemaValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		structValidator = v
	})
	return structValidator
}

// SchemaName returns the source name for a (transaction type, ownership status) pair
func SchemaName(transactionType, ownershipStatus string) string {
	return transactionType + "_" + ownershipStatus
}

// ValidateSchemaKey checks that both key parts are non-empty snake_case identifiers
func ValidateSchemaKey(transactionType, ownershipStatus string) error {
	if !schemaKeyPattern.MatchString(transactionType) {
		return fmt.Errorf("%w: transaction type %q must be a lowercase snake_case identifier", ErrInvalidSchemaKey, transactionType)
	}
	if !schemaKeyPattern.MatchString(ownershipStatus) {
		return fmt.Errorf("%w: ownership status %q must be a lowercase snake_case identifier", ErrInvalidSchemaKey, ownershipStatus)
	}
	return nil
}

// DecodeSchema strictly decodes a JSON schema document and validates it
func DecodeSchema(name string, data []byte) (*Schema, error) {
	var s Schema
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, &SchemaValidationError{Schema: name, Violations: []string{"malformed JSON: " + err.Error()}}
	}
	if dec.More() {
		return nil, &SchemaValidationError{Schema: name, Violations: []string{"malformed JSON: trailing data after schema document"}}
	}
	s.Name = name
	if err := ValidateSchema(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ValidateSchema checks every structural and referential invariant of a schema and
// compiles its conditions. All violations are collected into one *SchemaValidationError.
func ValidateSchema(s *Schema) error {
	verr := &SchemaValidationError{Schema: s.Name}

	if err := schemaValidator().Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate schema %s: %w", s.Name, err)
		}
		for _, fe := range fieldErrs {
			verr.addf("%s: %s", fieldPath(fe), describeTag(fe))
		}
	}

	declared := make(map[string]bool, len(s.Questions))
	for i, q := range s.Questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		id := strings.TrimSpace(q.ID)
		if id == "" {
			if q.ID != "" {
				verr.addf("%s.id: is blank", prefix)
			}
			continue
		}
		if err := validateQuestionID(q.ID); err != nil {
			verr.addf("%s.id: %v", prefix, err)
		}
		if declared[q.ID] {
			verr.addf("%s.id: duplicate question id %q", prefix, q.ID)
		}
		declared[q.ID] = true

		if q.Type == QuestionSelect && len(q.Options) == 0 {
			verr.addf("%s: select question %q must declare options", prefix, q.ID)
		}
		if q.Type != QuestionSelect && len(q.Options) > 0 {
			verr.addf("%s: options are only allowed on select questions, %q is %s", prefix, q.ID, q.Type)
		}
		for j, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				verr.addf("%s.options[%d]: is blank", prefix, j)
			}
		}
	}

	compiled := make([]Expr, len(s.DocumentRules))
	for i, r := range s.DocumentRules {
		prefix := fmt.Sprintf("document_rules[%d]", i)
		if r.Slug != "" && strings.TrimSpace(r.Slug) == "" {
			verr.addf("%s.slug: is blank", prefix)
		}
		if r.Name != "" && strings.TrimSpace(r.Name) == "" {
			verr.addf("%s.name: is blank", prefix)
		}
		if strings.TrimSpace(r.Condition) == "" {
			if r.Condition != "" {
				verr.addf("%s.condition: is blank", prefix)
			}
			continue
		}
		if r.IsAlways() {
			continue
		}

		e, err := ParseCondition(r.Condition)
		if err != nil {
			verr.addCause(prefix+".condition", err)
			continue
		}
		for _, ref := range References(e) {
			if !declared[ref] {
				verr.addf("%s.condition: references undeclared question %q", prefix, ref)
			}
		}
		compiled[i] = e
	}

	if verr.hasViolations() {
		return verr
	}
	s.compiled = compiled
	return nil
}

// validateQuestionID ensures a question id can be referenced from a condition
func validateQuestionID(id string) error {
	if !questionIDPattern.MatchString(id) {
		return fmt.Errorf("%q must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$", id)
	}
	if isReservedWord(id) {
		return fmt.Errorf("cannot use reserved word %q as a question id", id)
	}
	return nil
}

// isReservedWord reports condition keywords that would be ambiguous as question ids
func isReservedWord(name string) bool {
	if _, ok := keywords[strings.ToLower(name)]; ok {
		return true
	}
	return name == AlwaysCondition
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("%q is not one of [%s]", fe.Value(), fe.Param())
	default:
		return "failed " + fe.Tag() + " check"
	}
}
