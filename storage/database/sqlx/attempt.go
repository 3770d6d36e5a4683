package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/attempt"
)

const attemptColumns = `id, subject_id, assessment_id, earned, max_points, percentage, graded, reason, elapsed_seconds, started_at, completed_at, answers, events, question_results`

type attemptRow struct {
	ID              string          `db:"id"`
	SubjectID       string          `db:"subject_id"`
	AssessmentID    string          `db:"assessment_id"`
	Earned          int             `db:"earned"`
	MaxPoints       int             `db:"max_points"`
	Percentage      int             `db:"percentage"`
	Graded          bool            `db:"graded"`
	Reason          string          `db:"reason"`
	ElapsedSeconds  int             `db:"elapsed_seconds"`
	StartedAt       null.Time       `db:"started_at"`
	CompletedAt     null.Time       `db:"completed_at"`
	Answers         json.RawMessage `db:"answers"`
	Events          json.RawMessage `db:"events"`
	QuestionResults json.RawMessage `db:"question_results"`
}

type attemptRepository struct {
	db core.DB
}

var _ attempt.Repository = (*attemptRepository)(nil) // interface compliance check

func NewAttemptRepository(db core.DB) *attemptRepository {
	return &attemptRepository{db: db}
}

func (repo attemptRepository) row(rec attempt.AttemptRecord) (attemptRow, error) {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return attemptRow{}, errors.Wrap(err, "marshaling answers")
	}
	events, err := json.Marshal(rec.Events)
	if err != nil {
		return attemptRow{}, errors.Wrap(err, "marshaling events")
	}
	questionResults, err := json.Marshal(rec.Questions)
	if err != nil {
		return attemptRow{}, errors.Wrap(err, "marshaling question results")
	}
	return attemptRow{
		ID:              rec.ID,
		SubjectID:       rec.SubjectID,
		AssessmentID:    rec.AssessmentID,
		Earned:          rec.Earned,
		MaxPoints:       rec.Max,
		Percentage:      rec.Percentage,
		Graded:          rec.Graded,
		Reason:          rec.Reason,
		ElapsedSeconds:  rec.ElapsedSeconds,
		StartedAt:       null.NewTime(rec.StartedAt.UTC(), !rec.StartedAt.IsZero()),
		CompletedAt:     null.NewTime(rec.CompletedAt.UTC(), !rec.CompletedAt.IsZero()),
		Answers:         answers,
		Events:          events,
		QuestionResults: questionResults,
	}, nil
}

func (repo attemptRepository) unrow(row attemptRow) (attempt.AttemptRecord, error) {
	rec := attempt.AttemptRecord{
		ID:           row.ID,
		SubjectID:    row.SubjectID,
		AssessmentID: row.AssessmentID,
		ScoringResult: attempt.ScoringResult{
			Earned:     row.Earned,
			Max:        row.MaxPoints,
			Percentage: row.Percentage,
			Graded:     row.Graded,
		},
		Reason:         row.Reason,
		ElapsedSeconds: row.ElapsedSeconds,
		StartedAt:      row.StartedAt.Time,
		CompletedAt:    row.CompletedAt.Time,
	}
	if len(row.Answers) > 0 {
		if err := json.Unmarshal(row.Answers, &rec.Answers); err != nil {
			return attempt.AttemptRecord{}, errors.Wrap(err, "unmarshaling answers")
		}
	}
	if len(row.Events) > 0 {
		if err := json.Unmarshal(row.Events, &rec.Events); err != nil {
			return attempt.AttemptRecord{}, errors.Wrap(err, "unmarshaling events")
		}
	}
	if len(row.QuestionResults) > 0 {
		if err := json.Unmarshal(row.QuestionResults, &rec.Questions); err != nil {
			return attempt.AttemptRecord{}, errors.Wrap(err, "unmarshaling question results")
		}
	}
	return rec, nil
}

func (repo attemptRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return attempt.ErrAttemptNotFound
	}
	return errors.Wrap(err, msg)
}

// UpsertAttempt inserts the record, or replaces the existing one for the
// same (subject, assessment) pair. The unique key makes concurrent upserts
// converge on a single row.
func (repo attemptRepository) UpsertAttempt(ctx context.Context, rec attempt.AttemptRecord) (attempt.AttemptRecord, error) {
	row, err := repo.row(rec)
	if err != nil {
		return attempt.AttemptRecord{}, err
	}
	_, err = repo.db.NamedExecContext(ctx,
		`INSERT INTO attempt (`+attemptColumns+`)
		 VALUES (:id, :subject_id, :assessment_id, :earned, :max_points, :percentage, :graded, :reason,
		         :elapsed_seconds, :started_at, :completed_at, :answers, :events, :question_results)
		 ON CONFLICT ON CONSTRAINT attempt_subject_assessment_key DO UPDATE
		 SET earned = EXCLUDED.earned, max_points = EXCLUDED.max_points, percentage = EXCLUDED.percentage,
		     graded = EXCLUDED.graded, reason = EXCLUDED.reason, elapsed_seconds = EXCLUDED.elapsed_seconds,
		     started_at = EXCLUDED.started_at, completed_at = EXCLUDED.completed_at,
		     answers = EXCLUDED.answers, events = EXCLUDED.events, question_results = EXCLUDED.question_results`,
		row,
	)
	if err != nil {
		return attempt.AttemptRecord{}, errors.Wrap(err, "upserting attempt")
	}
	return rec, nil
}

func (repo attemptRepository) HasPriorAttempt(ctx context.Context, subjectID, assessmentID string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM attempt WHERE subject_id = $1 AND assessment_id = $2)`,
		subjectID, assessmentID,
	)
	if err != nil {
		return false, errors.Wrap(err, "checking prior attempt")
	}
	return exists, nil
}

func (repo attemptRepository) GetAttempt(ctx context.Context, subjectID, assessmentID string) (attempt.AttemptRecord, error) {
	var row attemptRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+attemptColumns+` FROM attempt WHERE subject_id = $1 AND assessment_id = $2`,
		subjectID, assessmentID,
	)
	if err != nil {
		return attempt.AttemptRecord{}, repo.trapNoRowsErr(err, "getting attempt")
	}
	return repo.unrow(row)
}

func (repo attemptRepository) QueryAttemptsByAssessment(ctx context.Context, assessmentID string) ([]attempt.AttemptRecord, error) {
	ordering := core.DBOrdering{Field: "completed_at", Ascending: true}
	var rows []attemptRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+attemptColumns+` FROM attempt WHERE assessment_id = $1 ORDER BY `+ordering.String(),
		assessmentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}
	recs := make([]attempt.AttemptRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := repo.unrow(row)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
