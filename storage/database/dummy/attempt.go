package dummydb

import (
	"context"
	"sort"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/attempt"
)

type attemptRepository struct {
	db *attemptTable
}

var _ attempt.Repository = (*attemptRepository)(nil) // interface compliance check

func NewAttemptRepository(db *DB) *attemptRepository {
	return &attemptRepository{db: db.attempt}
}

func (repo *attemptRepository) UpsertAttempt(ctx context.Context, rec attempt.AttemptRecord) (attempt.AttemptRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// keyed by pair: a retake replaces the prior record instead of adding one
	repo.db.table[pairKey(rec.SubjectID, rec.AssessmentID)] = &rec
	return rec, nil
}

func (repo *attemptRepository) HasPriorAttempt(ctx context.Context, subjectID, assessmentID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	_, ok := repo.db.table[pairKey(subjectID, assessmentID)]
	return ok, nil
}

func (repo *attemptRepository) GetAttempt(ctx context.Context, subjectID, assessmentID string) (attempt.AttemptRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[pairKey(subjectID, assessmentID)]; ok {
		return *rec, nil
	}
	return attempt.AttemptRecord{}, attempt.ErrAttemptNotFound
}

func (repo *attemptRepository) QueryAttemptsByAssessment(ctx context.Context, assessmentID string) ([]attempt.AttemptRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var recs []attempt.AttemptRecord
	for _, rec := range repo.db.table {
		if rec.AssessmentID == assessmentID {
			recs = append(recs, *rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CompletedAt.Before(recs[j].CompletedAt) })
	return recs, nil
}
