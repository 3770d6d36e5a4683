package attempt

import (
	"testing"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/assessment"
)

func gradedDef() assessment.Assessment {
	return assessment.Assessment{
		ID:              "a1",
		Title:           "Intro Quiz",
		Kind:            assessment.KindGraded,
		DurationSeconds: 600,
		IsPublished:     true,
		Questions: []assessment.Question{
			{ID: "q1", Prompt: "Pick one", Type: assessment.TypeSingleChoice, Points: 20, Choices: []string{"a", "b", "c", "d"}, AnswerKey: "2"},
			{ID: "q2", Prompt: "True or false", Type: assessment.TypeBoolean, Points: 20, AnswerKey: "true"},
			{ID: "q3", Prompt: "Pick another", Type: assessment.TypeSingleChoice, Points: 20, Choices: []string{"a", "b"}, AnswerKey: "0"},
			{ID: "q4", Prompt: "Explain", Type: assessment.TypeFreeText, Points: 20},
			{ID: "q5", Prompt: "Last one", Type: assessment.TypeBoolean, Points: 20, AnswerKey: "false"},
		},
	}
}

func TestScore(t *testing.T) {
	def := gradedDef()

	// q1 and q2 correct, q3 wrong, q4 free text, q5 unanswered
	answers := []AnswerRecord{
		{QuestionID: "q1", Value: float64(2)}, // JSON number
		{QuestionID: "q2", Value: true},
		{QuestionID: "q3", Value: "1"},
		{QuestionID: "q4", Value: "because reasons"},
		{QuestionID: "q5"},
	}

	res := Score(def, answers)
	if !res.Graded {
		t.Error("Score() Graded = false, want true")
	}
	if res.Earned != 40 {
		t.Errorf("Score() Earned = %d, want 40", res.Earned)
	}
	if res.Max != 100 {
		t.Errorf("Score() Max = %d, want 100", res.Max)
	}
	if res.Percentage != 40 {
		t.Errorf("Score() Percentage = %d, want 40", res.Percentage)
	}
	if len(res.Questions) != 5 {
		t.Fatalf("Score() len(Questions) = %d, want 5", len(res.Questions))
	}

	wantCorrect := map[string]*bool{
		"q1": bPtr(true),
		"q2": bPtr(true),
		"q3": bPtr(false),
		"q4": nil, // free text has no automatic correctness
		"q5": bPtr(false),
	}
	for _, qr := range res.Questions {
		want := wantCorrect[qr.QuestionID]
		switch {
		case want == nil && qr.Correct != nil:
			t.Errorf("Score() %s Correct = %v, want nil", qr.QuestionID, *qr.Correct)
		case want != nil && qr.Correct == nil:
			t.Errorf("Score() %s Correct = nil, want %v", qr.QuestionID, *want)
		case want != nil && *qr.Correct != *want:
			t.Errorf("Score() %s Correct = %v, want %v", qr.QuestionID, *qr.Correct, *want)
		}
	}
}

func TestScoreValueCoercion(t *testing.T) {
	def := assessment.Assessment{
		ID:   "a2",
		Kind: assessment.KindGraded,
		Questions: []assessment.Question{
			{ID: "q1", Type: assessment.TypeSingleChoice, Points: 10, Choices: []string{"a", "b", "c"}, AnswerKey: "2"},
		},
	}

	tests := []struct {
		name    string
		value   interface{}
		correct bool
	}{
		{name: "json number", value: float64(2), correct: true},
		{name: "int", value: 2, correct: true},
		{name: "int64", value: int64(2), correct: true},
		{name: "string", value: "2", correct: true},
		{name: "padded string", value: " 2 ", correct: true},
		{name: "wrong index", value: float64(1), correct: false},
		{name: "wrong string", value: "0", correct: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Score(def, []AnswerRecord{{QuestionID: "q1", Value: tt.value}})
			if got := *res.Questions[0].Correct; got != tt.correct {
				t.Errorf("Score() Correct = %v, want %v", got, tt.correct)
			}
		})
	}
}

func TestScoreBooleanCoercion(t *testing.T) {
	def := assessment.Assessment{
		ID:   "a3",
		Kind: assessment.KindGraded,
		Questions: []assessment.Question{
			{ID: "q1", Type: assessment.TypeBoolean, Points: 5, AnswerKey: "true"},
		},
	}

	tests := []struct {
		name    string
		value   interface{}
		correct bool
	}{
		{name: "bool", value: true, correct: true},
		{name: "string", value: "true", correct: true},
		{name: "title case string", value: "True", correct: true},
		{name: "upper case string", value: "TRUE", correct: true},
		{name: "wrong bool", value: false, correct: false},
		{name: "wrong string any case", value: "False", correct: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Score(def, []AnswerRecord{{QuestionID: "q1", Value: tt.value}})
			if got := *res.Questions[0].Correct; got != tt.correct {
				t.Errorf("Score() Correct = %v, want %v", got, tt.correct)
			}
		})
	}
}

func TestScoreFreeTextLowerBound(t *testing.T) {
	def := assessment.Assessment{
		ID:   "a4",
		Kind: assessment.KindGraded,
		Questions: []assessment.Question{
			{ID: "q1", Type: assessment.TypeBoolean, Points: 10, AnswerKey: "true"},
			{ID: "q2", Type: assessment.TypeFreeText, Points: 30},
		},
	}

	res := Score(def, []AnswerRecord{
		{QuestionID: "q1", Value: true},
		{QuestionID: "q2", Value: "an essay"},
	})
	if res.Earned != 10 {
		t.Errorf("Score() Earned = %d, want 10", res.Earned)
	}
	if res.Max != 40 {
		t.Errorf("Score() Max = %d, want 40", res.Max)
	}
	if res.Percentage != 25 {
		t.Errorf("Score() Percentage = %d, want 25", res.Percentage)
	}
}

func TestScoreSingleChoicePlusEssay(t *testing.T) {
	def := assessment.Assessment{
		ID:   "a6",
		Kind: assessment.KindGraded,
		Questions: []assessment.Question{
			{ID: "q1", Type: assessment.TypeSingleChoice, Points: 60, Choices: []string{"a", "b"}, AnswerKey: "1"},
			{ID: "q2", Type: assessment.TypeFreeText, Points: 40},
		},
	}

	res := Score(def, []AnswerRecord{
		{QuestionID: "q1", Value: 1},
		{QuestionID: "q2", Value: "some essay"},
	})
	if res.Earned != 60 || res.Max != 100 || res.Percentage != 60 {
		t.Errorf("Score() = %d/%d (%d%%), want 60/100 (60%%)", res.Earned, res.Max, res.Percentage)
	}
}

func TestScoreZeroMax(t *testing.T) {
	def := assessment.Assessment{
		ID:        "a5",
		Kind:      assessment.KindGraded,
		Questions: []assessment.Question{},
	}
	if res := Score(def, nil); res.Percentage != 0 {
		t.Errorf("Score() Percentage = %d, want 0", res.Percentage)
	}
}

func bPtr(b bool) *bool { return &b }
