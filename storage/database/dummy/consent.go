package dummydb

import (
	"context"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/attempt"
)

// ConsentRegistry stands in for the consent platform service. Grants are
// one-time: once recorded, consent is never re-solicited.
type ConsentRegistry struct {
	db *consentTable
}

var _ attempt.ConsentChecker = (*ConsentRegistry)(nil) // interface compliance check

func NewConsentRegistry(db *DB) *ConsentRegistry {
	return &ConsentRegistry{db: db.consent}
}

func (reg *ConsentRegistry) HasConsent(ctx context.Context, subjectID, campaignID string) (bool, error) {
	reg.db.RLock()
	defer reg.db.RUnlock()
	return reg.db.table[pairKey(subjectID, campaignID)], nil
}

func (reg *ConsentRegistry) Grant(ctx context.Context, subjectID, campaignID string) error {
	reg.db.Lock()
	defer reg.db.Unlock()
	reg.db.table[pairKey(subjectID, campaignID)] = true
	return nil
}
