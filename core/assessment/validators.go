package assessment

import (
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core"
)

var (
	assessKindTag  = "assesskind"
	assessKindText = "invalid assessment kind"

	questionTypeTag  = "questiontype"
	questionTypeText = "invalid question type"

	questionsTag  = "questions"
	questionsText = "invalid question set"
)

// InitValidators registers the assessment domain validators and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(assessKindTag, assessKindValidation)
	core.RegisterCustomTranslation(validate, translator, assessKindTag, assessKindText)

	_ = validate.RegisterValidation(questionTypeTag, questionTypeValidation)
	core.RegisterCustomTranslation(validate, translator, questionTypeTag, questionTypeText)

	validate.RegisterStructValidation(newAssessmentStructValidation, NewAssessment{})
	validate.RegisterStructValidation(updateAssessmentStructValidation, UpdateAssessment{})
	core.RegisterCustomTranslation(validate, translator, questionsTag, questionsText)
}

func assessKindValidation(fl validator.FieldLevel) bool {
	kind := fl.Field().String()
	for _, k := range AllKinds {
		if kind == k {
			return true
		}
	}
	return false
}

func questionTypeValidation(fl validator.FieldLevel) bool {
	typ := fl.Field().String()
	for _, t := range AllQuestionTypes {
		if typ == t {
			return true
		}
	}
	return false
}

func newAssessmentStructValidation(sl validator.StructLevel) {
	na := sl.Current().Interface().(NewAssessment)
	validateQuestions(na.Kind, na.Questions, sl)
}

func updateAssessmentStructValidation(sl validator.StructLevel) {
	ua := sl.Current().Interface().(UpdateAssessment)
	if len(ua.Questions) > 0 {
		// kind cannot change on update; question rules common to both kinds still apply
		validateQuestions("", ua.Questions, sl)
	}
}

// validateQuestions enforces the per-kind question rules:
// - survey questions carry no points and no answer keys
// - graded scorable questions need positive points
// - single_choice needs at least 2 choices and an in-range answer key
// - boolean answer keys are canonical "true"/"false"
func validateQuestions(kind string, questions []NewQuestion, sl validator.StructLevel) {
	reportErr := func(q NewQuestion) {
		sl.ReportError(q, questionsTag, "Questions", questionsTag, "")
	}

	for _, q := range questions {
		switch kind {
		case KindSurvey:
			if q.Points != 0 || q.AnswerKey != "" {
				reportErr(q)
				return
			}
		case KindGraded:
			if q.Type != TypeFreeText && q.Points <= 0 {
				reportErr(q)
				return
			}
		}

		switch q.Type {
		case TypeSingleChoice:
			if len(q.Choices) < 2 {
				reportErr(q)
				return
			}
			if kind != KindSurvey {
				idx, err := strconv.Atoi(q.AnswerKey)
				if err != nil || idx < 0 || idx >= len(q.Choices) {
					reportErr(q)
					return
				}
			}
		case TypeBoolean:
			if kind != KindSurvey && !(q.AnswerKey == "true" || q.AnswerKey == "false") {
				reportErr(q)
				return
			}
		case TypeFreeText:
			if q.AnswerKey != "" {
				reportErr(q)
				return
			}
		}
	}
}
