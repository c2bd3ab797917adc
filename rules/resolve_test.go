package rules

import (
	"errors"
	"reflect"
	"testing"
)

func leadPaintSchema(t *testing.T) *Schema {
	t.Helper()
	s := &Schema{
		Name: "seller_conventional",
		Questions: []QuestionDefinition{
			{ID: "built_before_1978", Label: "Was the property built before 1978?", Type: QuestionYesNo, Required: true},
		},
		DocumentRules: []DocumentRule{
			{Slug: "listing-agreement", Name: "Residential Listing Agreement", Condition: "always"},
			{Slug: "lead-paint", Name: "Lead-Based Paint Addendum", Condition: "built_before_1978 == 'yes'", Reason: "Property built before 1978"},
		},
	}
	if err := ValidateSchema(s); err != nil {
		t.Fatalf("ValidateSchema() failed: %v", err)
	}
	return s
}

func TestEvaluateDocumentRulesScenarios(t *testing.T) {
	listing := DocumentDecision{Slug: "listing-agreement", Name: "Residential Listing Agreement", IncludedReason: "Always included"}
	leadPaint := DocumentDecision{Slug: "lead-paint", Name: "Lead-Based Paint Addendum", IncludedReason: "Property built before 1978"}

	testCases := []struct {
		name    string
		answers AnswerSet
		want    []DocumentDecision
	}{
		{"Built before 1978", AnswerSet{"built_before_1978": "yes"}, []DocumentDecision{listing, leadPaint}},
		{"Built after 1978", AnswerSet{"built_before_1978": "no"}, []DocumentDecision{listing}},
		{"Unanswered", AnswerSet{}, []DocumentDecision{listing}},
	}

	schema := leadPaintSchema(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EvaluateDocumentRules(schema, tc.answers)
			if err != nil {
				t.Fatalf("EvaluateDocumentRules() failed: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("EvaluateDocumentRules() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestEvaluateDocumentRulesIdempotent(t *testing.T) {
	schema := leadPaintSchema(t)
	answers := AnswerSet{"built_before_1978": "yes"}

	first, err := EvaluateDocumentRules(schema, answers)
	if err != nil {
		t.Fatalf("EvaluateDocumentRules() failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := EvaluateDocumentRules(schema, answers)
		if err != nil {
			t.Fatalf("EvaluateDocumentRules() failed: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("evaluation %d = %+v, want %+v", i, again, first)
		}
	}
}

func TestEvaluateDocumentRulesAlwaysRules(t *testing.T) {
	schema := leadPaintSchema(t)

	for _, answers := range []AnswerSet{nil, {}, {"built_before_1978": "no"}, {"built_before_1978": "yes"}, {"unrelated": 1}} {
		got, err := EvaluateDocumentRules(schema, answers)
		if err != nil {
			t.Fatalf("EvaluateDocumentRules(%v) failed: %v", answers, err)
		}
		if len(got) == 0 || got[0].Slug != "listing-agreement" || got[0].IncludedReason != AlwaysIncludedReason {
			t.Errorf("EvaluateDocumentRules(%v) = %+v, want listing-agreement included first", answers, got)
		}
	}
}

func TestEvaluateDocumentRulesSlugPrecedence(t *testing.T) {
	schema := &Schema{
		Name: "seller_conventional",
		Questions: []QuestionDefinition{
			{ID: "has_hoa", Type: QuestionYesNo, Required: true},
		},
		DocumentRules: []DocumentRule{
			{Slug: "hoa-addendum", Name: "HOA Addendum", Condition: "has_hoa == 'yes'", Reason: "Property is in an HOA"},
			{Slug: "hoa-addendum", Name: "HOA Addendum (general)", Condition: "always"},
		},
	}
	if err := ValidateSchema(schema); err != nil {
		t.Fatalf("ValidateSchema() failed: %v", err)
	}

	got, err := EvaluateDocumentRules(schema, AnswerSet{"has_hoa": "yes"})
	if err != nil {
		t.Fatalf("EvaluateDocumentRules() failed: %v", err)
	}
	want := []DocumentDecision{{Slug: "hoa-addendum", Name: "HOA Addendum", IncludedReason: "Property is in an HOA"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("EvaluateDocumentRules() = %+v, want %+v", got, want)
	}

	// When the first rule does not include the document the later one still can
	got, err = EvaluateDocumentRules(schema, AnswerSet{"has_hoa": "no"})
	if err != nil {
		t.Fatalf("EvaluateDocumentRules() failed: %v", err)
	}
	if len(got) != 1 || got[0].IncludedReason != AlwaysIncludedReason {
		t.Errorf("EvaluateDocumentRules() = %+v, want the always rule", got)
	}
}

func TestEvaluateDocumentRulesPreservesRuleOrder(t *testing.T) {
	schema := &Schema{
		Questions: []QuestionDefinition{{ID: "a", Type: QuestionText}},
		DocumentRules: []DocumentRule{
			{Slug: "first", Name: "First", Condition: "a == 'x'", Reason: "a is x"},
			{Slug: "second", Name: "Second", Condition: "always"},
			{Slug: "first", Name: "First again", Condition: "always"},
			{Slug: "third", Name: "Third", Condition: "a != 'x'", Reason: "a is not x"},
		},
	}

	got, err := EvaluateDocumentRules(schema, AnswerSet{"a": "y"})
	if err != nil {
		t.Fatalf("EvaluateDocumentRules() failed: %v", err)
	}
	var slugs []string
	for _, d := range got {
		slugs = append(slugs, d.Slug)
	}
	want := []string{"second", "first", "third"}
	if !reflect.DeepEqual(slugs, want) {
		t.Errorf("slugs = %v, want %v", slugs, want)
	}
}

func TestEvaluateDocumentRulesSyntaxErrorAborts(t *testing.T) {
	// Hand-built schemas skip validation, so the bad condition surfaces at evaluation time
	schema := &Schema{
		Questions: []QuestionDefinition{{ID: "built_before_1978", Type: QuestionYesNo}},
		DocumentRules: []DocumentRule{
			{Slug: "listing-agreement", Name: "Residential Listing Agreement", Condition: "always"},
			{Slug: "lead-paint", Name: "Lead-Based Paint Addendum", Condition: "built_before_1978 ==="},
		},
	}

	got, err := EvaluateDocumentRules(schema, AnswerSet{"built_before_1978": "yes"})
	if got != nil {
		t.Errorf("EvaluateDocumentRules() returned partial result %+v", got)
	}
	var syntaxErr *ConditionSyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("error should be *ConditionSyntaxError, got %T: %v", err, err)
	}
	if syntaxErr.Offset != 20 {
		t.Errorf("Offset = %d, want 20", syntaxErr.Offset)
	}
}

func TestCheckCompleteness(t *testing.T) {
	schema := &Schema{
		Questions: []QuestionDefinition{
			{ID: "built_before_1978", Type: QuestionYesNo, Required: true},
			{ID: "has_survey", Type: QuestionSelect, Options: []string{"yes", "no", "not_sure"}, Required: true},
			{ID: "unit_count", Type: QuestionNumber, Required: true},
			{ID: "notes", Type: QuestionText},
			{ID: "roof_type", Type: QuestionSelect, Options: []string{"shingle", "tile"}},
		},
	}

	testCases := []struct {
		name         string
		answers      AnswerSet
		wantComplete bool
		wantMissing  []string
	}{
		{
			name:         "Empty answers",
			answers:      AnswerSet{},
			wantComplete: false,
			wantMissing:  []string{"built_before_1978", "has_survey", "unit_count"},
		},
		{
			name:         "All required answered",
			answers:      AnswerSet{"built_before_1978": "no", "has_survey": "not_sure", "unit_count": 1},
			wantComplete: true,
			wantMissing:  []string{},
		},
		{
			name:         "Zero and false are answers",
			answers:      AnswerSet{"built_before_1978": false, "has_survey": "no", "unit_count": 0},
			wantComplete: true,
			wantMissing:  []string{},
		},
		{
			name:         "Blank and nil are missing",
			answers:      AnswerSet{"built_before_1978": "  ", "has_survey": "yes", "unit_count": nil},
			wantComplete: false,
			wantMissing:  []string{"built_before_1978", "unit_count"},
		},
		{
			name:         "Invalid select choice",
			answers:      AnswerSet{"built_before_1978": "yes", "has_survey": "perhaps", "unit_count": 2},
			wantComplete: false,
			wantMissing:  []string{"has_survey"},
		},
		{
			name:         "Invalid optional select choice",
			answers:      AnswerSet{"built_before_1978": "yes", "has_survey": "yes", "unit_count": 2, "roof_type": "metal"},
			wantComplete: false,
			wantMissing:  []string{"roof_type"},
		},
		{
			name:         "Select choice matches case-insensitively",
			answers:      AnswerSet{"built_before_1978": "yes", "has_survey": " NOT_SURE ", "unit_count": 2, "roof_type": "Tile"},
			wantComplete: true,
			wantMissing:  []string{},
		},
		{
			name:         "Optional questions may stay blank",
			answers:      AnswerSet{"built_before_1978": "yes", "has_survey": "yes", "unit_count": 2, "notes": "", "roof_type": ""},
			wantComplete: true,
			wantMissing:  []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			complete, missing := CheckCompleteness(schema, tc.answers)
			if complete != tc.wantComplete {
				t.Errorf("complete = %v, want %v", complete, tc.wantComplete)
			}
			if !reflect.DeepEqual(missing, tc.wantMissing) {
				t.Errorf("missing = %v, want %v", missing, tc.wantMissing)
			}
		})
	}
}

func TestCheckCompletenessScenarioUnanswered(t *testing.T) {
	complete, missing := CheckCompleteness(leadPaintSchema(t), AnswerSet{})
	if complete {
		t.Error("complete = true, want false")
	}
	if !reflect.DeepEqual(missing, []string{"built_before_1978"}) {
		t.Errorf("missing = %v, want [built_before_1978]", missing)
	}
}
