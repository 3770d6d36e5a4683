package dummydb

import (
	"sync"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/assessment"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/attempt"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/user"
)

type (
	DB struct {
		user       *userTable
		assessment *assessmentTable
		attempt    *attemptTable
		consent    *consentTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	assessmentTable struct {
		sync.RWMutex
		table map[string]*assessment.Assessment
	}

	attemptTable struct {
		sync.RWMutex
		table map[string]*attempt.AttemptRecord // by (subject, assessment) pair
	}

	consentTable struct {
		sync.RWMutex
		table map[string]bool // by (subject, campaign) pair
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		assessment: &assessmentTable{table: make(map[string]*assessment.Assessment)},
		attempt:    &attemptTable{table: make(map[string]*attempt.AttemptRecord)},
		consent:    &consentTable{table: make(map[string]bool)},
	}
	return db, nil
}

// Reset empties all tables; meant for tests.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.assessment.Lock()
	db.assessment.table = make(map[string]*assessment.Assessment)
	db.assessment.Unlock()

	db.attempt.Lock()
	db.attempt.table = make(map[string]*attempt.AttemptRecord)
	db.attempt.Unlock()

	db.consent.Lock()
	db.consent.table = make(map[string]bool)
	db.consent.Unlock()
}

func pairKey(a, b string) string { return a + "/" + b }
