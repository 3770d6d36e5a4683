package assessment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core"
)

// Kinds
const (
	KindGraded = "graded"
	KindSurvey = "survey"
)

// Question types
const (
	TypeSingleChoice = "single_choice"
	TypeFreeText     = "free_text"
	TypeBoolean      = "boolean"
)

var (
	AllKinds         = []string{KindGraded, KindSurvey}
	AllQuestionTypes = []string{TypeSingleChoice, TypeFreeText, TypeBoolean}
)

type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Type    string   `json:"type"`
	Points  int      `json:"points"`
	Choices []string `json:"choices,omitempty"`

	// AnswerKey is the correct-answer reference for single_choice (the chosen
	// index as a string) and boolean ("true"/"false") questions. It is only
	// meaningful to the scorer; ForSession strips it so it never reaches a
	// session-facing transport.
	AnswerKey string `json:"answer_key,omitempty"`
}

// HasAnswerKey reports whether this question type carries a correct-answer
// reference. free_text questions have none; they are graded by humans later.
func (q Question) HasAnswerKey() bool {
	return q.Type == TypeSingleChoice || q.Type == TypeBoolean
}

// Assessment is an immutable definition of questions, scoring rules and a
// time budget. The attempt engine only reads it.
type Assessment struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Kind            string     `json:"kind"`
	DurationSeconds int        `json:"duration_seconds"`
	CampaignID      string     `json:"campaign_id,omitempty"` // non-empty: a one-time consent gate applies
	Questions       []Question `json:"questions"`
	IsPublished     bool       `json:"is_published"`
	CreatedBy       string     `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"` // UTC
	UpdatedAt       time.Time  `json:"updated_at"` // UTC
}

func (a Assessment) IsGraded() bool { return a.Kind == KindGraded }

func (a Assessment) Duration() time.Duration {
	return time.Duration(a.DurationSeconds) * time.Second
}

// MaxPoints is the maximum possible automatic score. free_text questions
// count toward it even though automatic scoring awards them zero.
func (a Assessment) MaxPoints() int {
	var max int
	for _, q := range a.Questions {
		max += q.Points
	}
	return max
}

func (a Assessment) QuestionByID(id string) (Question, bool) {
	for _, q := range a.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// ForSession returns a copy safe to hand to the session-facing API surface:
// answer keys are stripped for every kind. Leaking a key to the client is a
// security defect, not a feature.
func (a Assessment) ForSession() Assessment {
	qs := make([]Question, len(a.Questions))
	copy(qs, a.Questions)
	for i := range qs {
		qs[i].AnswerKey = ""
	}
	a.Questions = qs
	return a
}

// NewAssessment contains information needed to create a new Assessment.
type NewAssessment struct {
	Title           string        `json:"title" validate:"required"`
	Kind            string        `json:"kind" validate:"required,assesskind"`
	DurationSeconds int           `json:"duration_seconds" validate:"required,gt=0"`
	CampaignID      string        `json:"campaign_id"`
	Questions       []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

type NewQuestion struct {
	Prompt    string   `json:"prompt" validate:"required"`
	Type      string   `json:"type" validate:"required,questiontype"`
	Points    int      `json:"points" validate:"gte=0"`
	Choices   []string `json:"choices"`
	AnswerKey string   `json:"answer_key"`
}

func (na *NewAssessment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Kind = core.CleanString(na.Kind, true /* lower */)
	for i := range na.Questions {
		na.Questions[i].Prompt = core.CleanString(na.Questions[i].Prompt)
		na.Questions[i].Type = core.CleanString(na.Questions[i].Type, true /* lower */)
	}
	return validate.Struct(na)
}

// UpdateAssessment defines what may be modified on an unpublished Assessment.
type UpdateAssessment struct {
	Title           string        `json:"title"`
	DurationSeconds int           `json:"duration_seconds" validate:"omitempty,gt=0"`
	CampaignID      string        `json:"campaign_id"`
	Questions       []NewQuestion `json:"questions" validate:"omitempty,min=1,dive"`
}

func (ua *UpdateAssessment) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	for i := range ua.Questions {
		ua.Questions[i].Prompt = core.CleanString(ua.Questions[i].Prompt)
		ua.Questions[i].Type = core.CleanString(ua.Questions[i].Type, true /* lower */)
	}
	return validate.Struct(ua)
}
