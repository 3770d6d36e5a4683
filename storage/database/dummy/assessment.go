package dummydb

import (
	"context"
	"sort"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/assessment"
)

type assessmentRepository struct {
	db *assessmentTable
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(db *DB) *assessmentRepository {
	return &assessmentRepository{db: db.assessment}
}

func (repo *assessmentRepository) CreateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *assessmentRepository) GetAssessmentByID(ctx context.Context, id string) (assessment.Assessment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return *a, nil
	}
	return assessment.Assessment{}, assessment.ErrNotFound
}

func (repo *assessmentRepository) QueryAllAssessments(ctx context.Context) ([]assessment.Assessment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	all := make([]assessment.Assessment, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		all = append(all, *a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

func (repo *assessmentRepository) UpdateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[a.ID]; !ok {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *assessmentRepository) DeleteAssessmentsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
