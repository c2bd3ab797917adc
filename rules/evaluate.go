package rules

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// EvaluateCondition parses and evaluates a condition against answers
func EvaluateCondition(expression string, answers AnswerSet) (bool, error) {
	e, err := ParseCondition(expression)
	if err != nil {
		return false, err
	}
	return Eval(e, answers), nil
}

// Eval evaluates a parsed condition. A comparison on a question with no answer is
// false regardless of the operator.
func Eval(e Expr, answers AnswerSet) bool {
	switch n := e.(type) {
	case *Comparison:
		return compare(n, answers)
	case *And:
		return Eval(n.Left, answers) && Eval(n.Right, answers)
	case *Or:
		return Eval(n.Left, answers) || Eval(n.Right, answers)
	case *Not:
		return !Eval(n.Operand, answers)
	default:
		return false
	}
}

func compare(c *Comparison, answers AnswerSet) bool {
	answer, ok := answers[c.Question]
	if !ok || answer == nil {
		return false
	}
	eq := equals(answer, c.Value)
	if c.Op == OpNotEqual {
		return !eq
	}
	return eq
}

func equals(answer any, lit Literal) bool {
	if lit.Kind == LiteralBool {
		b, ok := answerBool(answer)
		return ok && b == lit.Bool
	}

	// yes/no questions answered with a JSON boolean compare against 'yes' / 'no'
	if b, isBool := answer.(bool); isBool {
		lb, ok := stringBool(lit.Text)
		return ok && lb == b
	}

	if ai, ok := answerInt(answer); ok {
		if li, ok := parseInt(lit.Text); ok {
			return ai == li
		}
	}

	if an, ok := answerNumber(answer); ok {
		if ln, ok := parseNumber(lit.Text); ok {
			return an == ln
		}
	}

	s, ok := answerString(answer)
	if !ok {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(lit.Text))
}

func answerBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		return stringBool(b)
	default:
		return false, false
	}
}

func stringBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true":
		return true, true
	case "no", "false":
		return false, true
	default:
		return false, false
	}
}

func answerNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		return parseNumber(n.String())
	case string:
		return parseNumber(n)
	default:
		return 0, false
	}
}

// answerInt reports integral answers exactly so large values are not rounded
// through float64
func answerInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		return parseInt(n.String())
	case string:
		return parseInt(n)
	default:
		return 0, false
	}
}

func parseInt(s string) (int64, bool) {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return i, err == nil
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func answerString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		if n, ok := answerNumber(v); ok {
			return strconv.FormatFloat(n, 'f', -1, 64), true
		}
		return "", false
	}
}
