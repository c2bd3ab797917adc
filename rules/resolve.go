package rules

import (
	"fmt"
	"strings"
)

// EvaluateDocumentRules returns the documents a schema's rules include for answers,
// in declared rule order. When several rules share a slug only the first one that
// includes its document counts. Every condition is compiled before any is evaluated,
// so a syntax error anywhere yields no decisions at all.
func EvaluateDocumentRules(schema *Schema, answers AnswerSet) ([]DocumentDecision, error) {
	conditions, err := compiledConditions(schema)
	if err != nil {
		return nil, err
	}

	decisions := make([]DocumentDecision, 0, len(schema.DocumentRules))
	included := make(map[string]bool)
	for i, rule := range schema.DocumentRules {
		if included[rule.Slug] {
			continue
		}

		reason := AlwaysIncludedReason
		if !rule.IsAlways() {
			if !Eval(conditions[i], answers) {
				continue
			}
			reason = rule.Reason
		}

		included[rule.Slug] = true
		decisions = append(decisions, DocumentDecision{
			Slug:           rule.Slug,
			Name:           rule.Name,
			IncludedReason: reason,
		})
	}
	return decisions, nil
}

// compiledConditions returns one parsed condition per rule, reusing the conditions
// compiled at validation time when the schema came from ValidateSchema
func compiledConditions(schema *Schema) ([]Expr, error) {
	if len(schema.compiled) == len(schema.DocumentRules) && schema.compiled != nil {
		return schema.compiled, nil
	}

	conditions := make([]Expr, len(schema.DocumentRules))
	for i, rule := range schema.DocumentRules {
		if rule.IsAlways() {
			continue
		}
		e, err := ParseCondition(rule.Condition)
		if err != nil {
			return nil, err
		}
		conditions[i] = e
	}
	return conditions, nil
}

// CheckCompleteness reports whether every required question has an answer. The
// returned ids follow question order. A select answer outside the question's options
// is reported as missing whether or not the question is required.
func CheckCompleteness(schema *Schema, answers AnswerSet) (bool, []string) {
	missing := []string{}
	for _, q := range schema.Questions {
		value, present := answers[q.ID]
		answered := present && !isBlank(value)

		if answered && q.Type == QuestionSelect && !isOption(q, value) {
			missing = append(missing, q.ID)
			continue
		}
		if q.Required && !answered {
			missing = append(missing, q.ID)
		}
	}
	return len(missing) == 0, missing
}

func isBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	default:
		return false
	}
}

func isOption(q QuestionDefinition, value any) bool {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprint(value)
	}
	// same normalization conditions use when comparing strings
	s = strings.TrimSpace(s)
	for _, opt := range q.Options {
		if strings.EqualFold(strings.TrimSpace(opt), s) {
			return true
		}
	}
	return false
}
