package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/assessment"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateAssessment(
	t *testing.T,
	repo assessment.Repository,
	title, kind string,
	durationSeconds int,
	published bool,
	questions ...assessment.Question,
) assessment.Assessment {
	t.Helper()

	now := time.Now().UTC()
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = uuid.New().String()
		}
	}
	a := assessment.Assessment{
		ID:              uuid.New().String(),
		Title:           title,
		Kind:            kind,
		DurationSeconds: durationSeconds,
		Questions:       questions,
		IsPublished:     published,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	a, err := repo.CreateAssessment(context.Background(), a)
	if err != nil {
		t.Fatalf("CreateAssessment() failed: %v", err)
	}
	return a
}

// GradedQuestions is a small reusable graded question set: two auto-scorable
// questions and one free text.
func GradedQuestions() []assessment.Question {
	return []assessment.Question{
		{ID: uuid.New().String(), Prompt: "Pick one", Type: assessment.TypeSingleChoice, Points: 10, Choices: []string{"a", "b", "c"}, AnswerKey: "1"},
		{ID: uuid.New().String(), Prompt: "True or false", Type: assessment.TypeBoolean, Points: 10, AnswerKey: "true"},
		{ID: uuid.New().String(), Prompt: "Explain", Type: assessment.TypeFreeText, Points: 10},
	}
}
