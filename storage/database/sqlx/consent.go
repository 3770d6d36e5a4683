package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/attempt"
)

type consentRepository struct {
	db core.DB
}

var _ attempt.ConsentChecker = (*consentRepository)(nil) // interface compliance check

func NewConsentRepository(db core.DB) *consentRepository {
	return &consentRepository{db: db}
}

func (repo consentRepository) HasConsent(ctx context.Context, subjectID, campaignID string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM campaign_consent WHERE subject_id = $1 AND campaign_id = $2)`,
		subjectID, campaignID,
	)
	if err != nil {
		return false, errors.Wrap(err, "checking consent")
	}
	return exists, nil
}

// Grant records a one-time consent. Granting twice is a no-op.
func (repo consentRepository) Grant(ctx context.Context, subjectID, campaignID string) error {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO campaign_consent (subject_id, campaign_id, granted_at) VALUES ($1, $2, $3)
		 ON CONFLICT (subject_id, campaign_id) DO NOTHING`,
		subjectID, campaignID, time.Now().UTC(),
	)
	return errors.Wrap(err, "granting consent")
}
