package assessment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound     = errors.New("assessment not found")
	ErrNotPublished = errors.New("assessment is not published")
	ErrPublished    = errors.New("a published assessment cannot be modified")
)

type (
	Repository interface {
		CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		GetAssessmentByID(ctx context.Context, id string) (Assessment, error)
		QueryAllAssessments(ctx context.Context) ([]Assessment, error)
		UpdateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		DeleteAssessmentsByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, na NewAssessment, createdBy string) (Assessment, error) {
	now := time.Now().UTC()
	a := Assessment{
		ID:              uuid.New().String(),
		Title:           na.Title,
		Kind:            na.Kind,
		DurationSeconds: na.DurationSeconds,
		CampaignID:      na.CampaignID,
		Questions:       buildQuestions(na.Questions),
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return svc.repo.CreateAssessment(ctx, a)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Assessment, error) {
	return svc.repo.QueryAllAssessments(ctx)
}

// GetByID returns the full definition, answer keys included. Author-facing;
// never serve this to a session.
func (svc *Service) GetByID(ctx context.Context, id string) (Assessment, error) {
	return svc.repo.GetAssessmentByID(ctx, id)
}

// GetForSession returns the published definition with answer keys stripped.
func (svc *Service) GetForSession(ctx context.Context, id string) (Assessment, error) {
	a, err := svc.repo.GetAssessmentByID(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	if !a.IsPublished {
		return Assessment{}, ErrNotPublished
	}
	return a.ForSession(), nil
}

func (svc *Service) Update(ctx context.Context, id string, ua UpdateAssessment) (Assessment, error) {
	a, err := svc.repo.GetAssessmentByID(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	if a.IsPublished {
		return Assessment{}, ErrPublished
	}

	if ua.Title != "" {
		a.Title = ua.Title
	}
	if ua.DurationSeconds > 0 {
		a.DurationSeconds = ua.DurationSeconds
	}
	if ua.CampaignID != "" {
		a.CampaignID = ua.CampaignID
	}
	if len(ua.Questions) > 0 {
		a.Questions = buildQuestions(ua.Questions)
	}
	a.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAssessment(ctx, a)
}

func (svc *Service) Publish(ctx context.Context, id string) (Assessment, error) {
	a, err := svc.repo.GetAssessmentByID(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	if a.IsPublished {
		return a, nil
	}
	a.IsPublished = true
	a.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAssessment(ctx, a)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteAssessmentsByID(ctx, ids...)
}

func buildQuestions(nqs []NewQuestion) []Question {
	qs := make([]Question, 0, len(nqs))
	for _, nq := range nqs {
		qs = append(qs, Question{
			ID:        uuid.New().String(),
			Prompt:    nq.Prompt,
			Type:      nq.Type,
			Points:    nq.Points,
			Choices:   nq.Choices,
			AnswerKey: nq.AnswerKey,
		})
	}
	return qs
}
