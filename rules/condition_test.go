package rules

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseConditionValid(t *testing.T) {
	testCases := []struct {
		name       string
		expression string
		want       string
	}{
		{"String equality", `built_before_1978 == 'yes'`, `built_before_1978 == 'yes'`},
		{"Not equal", `has_hoa != 'no'`, `has_hoa != 'no'`},
		{"Number literal", `unit_count == 4`, `unit_count == 4`},
		{"Negative decimal", `balance == -12.5`, `balance == -12.5`},
		{"Boolean literal", `is_vacant == TRUE`, `is_vacant == true`},
		{"Or", `a == 'x' or b == 'y'`, `(a == 'x' or b == 'y')`},
		{"And binds tighter than or", `a == 'x' or b == 'y' and c == 'z'`, `(a == 'x' or (b == 'y' and c == 'z'))`},
		{"Not binds tighter than and", `not a == 'x' and b == 'y'`, `(not a == 'x' and b == 'y')`},
		{"Parentheses override", `(a == 'x' or b == 'y') and c == 'z'`, `((a == 'x' or b == 'y') and c == 'z')`},
		{"Double negation", `not not a == 'x'`, `not not a == 'x'`},
		{"Escaped quote", `owner_name == 'O\'Brien'`, `owner_name == 'O\'Brien'`},
		{"Keywords are case-insensitive", `a == 'x' AND NOT b == 'y'`, `(a == 'x' and not b == 'y')`},
		{"No spaces", `a=='x'`, `a == 'x'`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, err := ParseCondition(tc.expression)
			if err != nil {
				t.Fatalf("ParseCondition(%q) failed: %v", tc.expression, err)
			}
			if got := e.String(); got != tc.want {
				t.Errorf("ParseCondition(%q) = %s, want %s", tc.expression, got, tc.want)
			}
		})
	}
}

func TestParseConditionSyntaxErrors(t *testing.T) {
	testCases := []struct {
		name         string
		expression   string
		wantOffset   int
		wantFragment string
	}{
		{"Trailing triple equals", `built_before_1978 ===`, 20, "="},
		{"Missing operand", `built_before_1978 ==`, 20, "=="},
		{"Missing operator", `built_before_1978 'yes'`, 18, "'yes'"},
		{"Bare identifier", `has_hoa`, 7, "has_hoa"},
		{"Unterminated string", `a == 'yes`, 5, "'yes"},
		{"Unbalanced parenthesis", `(a == 'x'`, 9, "'x'"},
		{"Stray closing parenthesis", `a == 'x')`, 8, ")"},
		{"Function call", `len(a) == 1`, 3, "("},
		{"Attribute access", `a.b == 'x'`, 1, "."},
		{"Arithmetic", `a + 1 == 2`, 2, "+"},
		{"Literal on the left", `'yes' == a`, 0, "'yes'"},
		{"Dangling and", `a == 'x' and`, 12, "and"},
		{"Empty", `   `, 3, ""},
		{"Single equals", `a = 'x'`, 2, "="},
		{"Identifier as value", `a == b`, 5, "b"},
		{"Malformed number", `a == 12abc`, 5, "12a"},
		{"Offset counts characters", `x == 'é' =`, 9, "="},
		{"Non-ASCII unexpected character", `prix == 'x' and é == 'y'`, 16, "é"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCondition(tc.expression)
			if err == nil {
				t.Fatalf("ParseCondition(%q) should fail", tc.expression)
			}

			var syntaxErr *ConditionSyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Fatalf("error should be *ConditionSyntaxError, got %T: %v", err, err)
			}
			if syntaxErr.Offset != tc.wantOffset {
				t.Errorf("Offset = %d, want %d (%v)", syntaxErr.Offset, tc.wantOffset, err)
			}
			if syntaxErr.Fragment != tc.wantFragment {
				t.Errorf("Fragment = %q, want %q", syntaxErr.Fragment, tc.wantFragment)
			}
			if syntaxErr.Expression != tc.expression {
				t.Errorf("Expression = %q, want %q", syntaxErr.Expression, tc.expression)
			}
		})
	}
}

func TestReferences(t *testing.T) {
	e, err := ParseCondition(`has_survey == 'no' or (not has_hoa == 'yes' and has_survey != 'yes')`)
	if err != nil {
		t.Fatalf("ParseCondition failed: %v", err)
	}

	got := References(e)
	want := []string{"has_survey", "has_hoa"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("References() = %v, want %v", got, want)
	}
}
