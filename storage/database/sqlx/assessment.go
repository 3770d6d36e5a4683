package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/assessment"
)

const assessmentColumns = `id, title, kind, duration_seconds, campaign_id, questions, is_published, created_by, created_at, updated_at`

type assessmentRow struct {
	ID              string          `db:"id"`
	Title           string          `db:"title"`
	Kind            string          `db:"kind"`
	DurationSeconds int             `db:"duration_seconds"`
	CampaignID      null.String     `db:"campaign_id"`
	Questions       json.RawMessage `db:"questions"`
	IsPublished     bool            `db:"is_published"`
	CreatedBy       null.String     `db:"created_by"`
	CreatedAt       null.Time       `db:"created_at"`
	UpdatedAt       null.Time       `db:"updated_at"`
}

type assessmentRepository struct {
	db core.DB
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(db core.DB) *assessmentRepository {
	return &assessmentRepository{db: db}
}

func (repo assessmentRepository) row(a assessment.Assessment) (assessmentRow, error) {
	questions, err := json.Marshal(a.Questions)
	if err != nil {
		return assessmentRow{}, errors.Wrap(err, "marshaling questions")
	}
	return assessmentRow{
		ID:              a.ID,
		Title:           a.Title,
		Kind:            a.Kind,
		DurationSeconds: a.DurationSeconds,
		CampaignID:      null.NewString(a.CampaignID, a.CampaignID != ""),
		Questions:       questions,
		IsPublished:     a.IsPublished,
		CreatedBy:       null.NewString(a.CreatedBy, a.CreatedBy != ""),
		CreatedAt:       null.NewTime(a.CreatedAt.UTC(), !a.CreatedAt.IsZero()),
		UpdatedAt:       null.NewTime(a.UpdatedAt.UTC(), !a.UpdatedAt.IsZero()),
	}, nil
}

func (repo assessmentRepository) unrow(row assessmentRow) (assessment.Assessment, error) {
	a := assessment.Assessment{
		ID:              row.ID,
		Title:           row.Title,
		Kind:            row.Kind,
		DurationSeconds: row.DurationSeconds,
		CampaignID:      row.CampaignID.String,
		IsPublished:     row.IsPublished,
		CreatedBy:       row.CreatedBy.String,
		CreatedAt:       row.CreatedAt.Time,
		UpdatedAt:       row.UpdatedAt.Time,
	}
	if err := json.Unmarshal(row.Questions, &a.Questions); err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "unmarshaling questions")
	}
	return a, nil
}

func (repo assessmentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return assessment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo assessmentRepository) CreateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	row, err := repo.row(a)
	if err != nil {
		return assessment.Assessment{}, err
	}
	_, err = repo.db.NamedExecContext(ctx,
		`INSERT INTO assessment (`+assessmentColumns+`)
		 VALUES (:id, :title, :kind, :duration_seconds, :campaign_id, :questions, :is_published, :created_by, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "inserting assessment")
	}
	return a, nil
}

func (repo assessmentRepository) GetAssessmentByID(ctx context.Context, id string) (assessment.Assessment, error) {
	var row assessmentRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+assessmentColumns+` FROM assessment WHERE id = $1`, id)
	if err != nil {
		return assessment.Assessment{}, repo.trapNoRowsErr(err, "getting assessment")
	}
	return repo.unrow(row)
}

func (repo assessmentRepository) QueryAllAssessments(ctx context.Context) ([]assessment.Assessment, error) {
	ordering := core.DBOrdering{Field: "created_at"}
	var rows []assessmentRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT `+assessmentColumns+` FROM assessment ORDER BY `+ordering.String())
	if err != nil {
		return nil, errors.Wrap(err, "querying assessments")
	}
	all := make([]assessment.Assessment, 0, len(rows))
	for _, row := range rows {
		a, err := repo.unrow(row)
		if err != nil {
			return nil, err
		}
		all = append(all, a)
	}
	return all, nil
}

func (repo assessmentRepository) UpdateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	row, err := repo.row(a)
	if err != nil {
		return assessment.Assessment{}, err
	}
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE assessment
		 SET title = :title, duration_seconds = :duration_seconds, campaign_id = :campaign_id,
		     questions = :questions, is_published = :is_published, updated_at = :updated_at
		 WHERE id = :id`,
		row,
	)
	if err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "updating assessment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	return a, nil
}

func (repo assessmentRepository) DeleteAssessmentsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM assessment WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return errors.Wrap(err, "deleting assessments")
	}
	return nil
}
