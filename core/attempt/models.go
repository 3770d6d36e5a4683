package attempt

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Termination reasons. Integrity violations are a first-class reason, not an error.
const (
	ReasonManual             = "manual"
	ReasonTimeout            = "timeout"
	ReasonIntegrityViolation = "integrity_violation"
)

// Integrity signals reported by the client environment.
const (
	SignalFocusLost = "focus_lost"
	SignalCopy      = "copy"
	SignalPaste     = "paste"
)

var (
	// policy errors, rejected before a session starts; non-retryable
	ErrAlreadyAttempted = errors.New("assessment already attempted")
	ErrConsentRequired  = errors.New("campaign consent required")
	ErrNotPublished     = errors.New("assessment is not published")

	// precondition violations; a caller bug must be observable, never silent
	ErrNotInProgress   = errors.New("session is not in progress")
	ErrNotStarted      = errors.New("session has not been started")
	ErrAlreadyStarted  = errors.New("session already started")
	ErrIndexOutOfRange = errors.New("question index out of range")
	ErrUnknownQuestion = errors.New("unknown question id")
	ErrUnknownSignal   = errors.New("unknown integrity signal")

	// transient persistence failure after retries exhausted; the session and
	// its computed result are kept so a manual retry does not lose work
	ErrPersistenceFailed = errors.New("attempt could not be persisted")

	ErrSessionNotFound = errors.New("attempt session not found")
	ErrAttemptNotFound = errors.New("attempt not found")
)

// AnswerRecord holds one question's submitted value and the advisory
// accumulated time. One record per question, created null at session start.
type AnswerRecord struct {
	QuestionID string      `json:"question_id"`
	Value      interface{} `json:"value"`   // nil until answered
	Seconds    int         `json:"seconds"` // monotonically non-decreasing
}

func (ar AnswerRecord) Answered() bool { return ar.Value != nil }

// IntegrityEvent records one environment signal observed during a session.
type IntegrityEvent struct {
	Signal   string    `json:"signal"`
	At       time.Time `json:"at"`
	Blocked  bool      `json:"blocked"`  // the underlying action was suppressed
	Terminal bool      `json:"terminal"` // the signal forced termination
}

// QuestionResult is the per-question correctness flag of a scoring result.
// Correct is nil for free_text questions: automatic correctness is undefined
// there and a later human-grading workflow supersedes it.
type QuestionResult struct {
	QuestionID string `json:"question_id"`
	Answered   bool   `json:"answered"`
	Correct    *bool  `json:"correct,omitempty"`
	Earned     int    `json:"earned"`
}

// ScoringResult is the automatic score of a finalized attempt. For graded
// kinds it is a lower bound: free_text questions weigh into Max but earn 0.
type ScoringResult struct {
	Earned     int              `json:"earned"`
	Max        int              `json:"max"`
	Percentage int              `json:"percentage"` // 0-100, rounded
	Graded     bool             `json:"graded"`     // false for survey kinds: no correctness concept
	Questions  []QuestionResult `json:"questions,omitempty"`
}

// AttemptRecord is the durable artifact of a finalized attempt. At most one
// exists per (subject, assessment) pair.
type AttemptRecord struct {
	ID           string    `json:"id"`
	SubjectID    string    `json:"subject_id"`
	AssessmentID string    `json:"assessment_id"`

	ScoringResult

	Reason         string           `json:"reason"`
	ElapsedSeconds int              `json:"elapsed_seconds"` // wall clock, authoritative for audit
	StartedAt      time.Time        `json:"started_at"`      // UTC
	CompletedAt    time.Time        `json:"completed_at"`    // UTC
	Answers        []AnswerRecord   `json:"answers"`
	Events         []IntegrityEvent `json:"events,omitempty"`
}

// Outcome is what every finalize caller observes: the same result no matter
// which trigger won the race.
type Outcome struct {
	Result ScoringResult `json:"result"`
	Reason string        `json:"reason"`
}

type (
	// Repository is the attempt store contract. UpsertAttempt is keyed by
	// (subject, assessment): insert when absent, overwrite when present.
	// The key is the concurrency boundary; no distributed locking needed.
	Repository interface {
		UpsertAttempt(ctx context.Context, rec AttemptRecord) (AttemptRecord, error)
		HasPriorAttempt(ctx context.Context, subjectID, assessmentID string) (bool, error)
		GetAttempt(ctx context.Context, subjectID, assessmentID string) (AttemptRecord, error)
		QueryAttemptsByAssessment(ctx context.Context, assessmentID string) ([]AttemptRecord, error)
	}

	// ConsentChecker is the external collaborator holding one-time campaign
	// consents. Consent is never re-solicited once granted.
	ConsentChecker interface {
		HasConsent(ctx context.Context, subjectID, campaignID string) (bool, error)
	}
)
