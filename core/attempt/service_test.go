package attempt

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/assessment"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/user"
)

// memAttemptRepo is an in-memory Repository keyed like the real store:
// one record per (subject, assessment).
type memAttemptRepo struct {
	mu       sync.Mutex
	failures int // fail the first n upserts
	upserts  int
	records  map[string]AttemptRecord
}

func newMemAttemptRepo() *memAttemptRepo {
	return &memAttemptRepo{records: make(map[string]AttemptRecord)}
}

func (r *memAttemptRepo) UpsertAttempt(ctx context.Context, rec AttemptRecord) (AttemptRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.upserts <= r.failures {
		return AttemptRecord{}, errors.New("store unavailable")
	}
	r.records[pairKey(rec.SubjectID, rec.AssessmentID)] = rec
	return rec, nil
}

func (r *memAttemptRepo) HasPriorAttempt(ctx context.Context, subjectID, assessmentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[pairKey(subjectID, assessmentID)]
	return ok, nil
}

func (r *memAttemptRepo) GetAttempt(ctx context.Context, subjectID, assessmentID string) (AttemptRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[pairKey(subjectID, assessmentID)]
	if !ok {
		return AttemptRecord{}, ErrAttemptNotFound
	}
	return rec, nil
}

func (r *memAttemptRepo) QueryAttemptsByAssessment(ctx context.Context, assessmentID string) ([]AttemptRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var recs []AttemptRecord
	for _, rec := range r.records {
		if rec.AssessmentID == assessmentID {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (r *memAttemptRepo) upsertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upserts
}

type memCatalogRepo struct {
	mu    sync.Mutex
	items map[string]assessment.Assessment
}

func (r *memCatalogRepo) CreateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[a.ID] = a
	return a, nil
}

func (r *memCatalogRepo) GetAssessmentByID(ctx context.Context, id string) (assessment.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	return a, nil
}

func (r *memCatalogRepo) QueryAllAssessments(ctx context.Context) ([]assessment.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]assessment.Assessment, 0, len(r.items))
	for _, a := range r.items {
		all = append(all, a)
	}
	return all, nil
}

func (r *memCatalogRepo) UpdateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[a.ID] = a
	return a, nil
}

func (r *memCatalogRepo) DeleteAssessmentsByID(ctx context.Context, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.items, id)
	}
	return nil
}

type consentStub struct {
	mu      sync.Mutex
	granted map[string]bool // subjectID/campaignID
}

func (c *consentStub) HasConsent(ctx context.Context, subjectID, campaignID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.granted[subjectID+"/"+campaignID], nil
}

type mailRecorder struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, messages...)
}

func (m *mailRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type svcFixture struct {
	svc     *Service
	repo    *memAttemptRepo
	catalog *memCatalogRepo
	consent *consentStub
	mail    *mailRecorder
	conf    *core.Config
}

func newSvcFixture(t *testing.T, defs ...assessment.Assessment) *svcFixture {
	t.Helper()
	fx := &svcFixture{
		repo:    newMemAttemptRepo(),
		catalog: &memCatalogRepo{items: make(map[string]assessment.Assessment)},
		consent: &consentStub{granted: make(map[string]bool)},
		mail:    &mailRecorder{},
		conf:    core.NewTestConfig(),
	}
	for _, def := range defs {
		fx.catalog.items[def.ID] = def
	}
	fx.svc = NewService(fx.repo, assessment.NewService(fx.catalog), fx.consent, fx.mail, core.NopLogger{}, fx.conf)
	return fx
}

var subject = user.User{ID: "u1", Name: "Test Subject", Email: "subject@test.local"}

func TestServiceStart(t *testing.T) {
	ctx := context.Background()
	fx := newSvcFixture(t, gradedDef())

	sess, err := fx.svc.Start(ctx, subject, "a1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if sess.Status() != StatusInProgress {
		t.Errorf("Status() = %v, want %v", sess.Status(), StatusInProgress)
	}

	// Get resolves the live session
	got, err := fx.svc.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != sess {
		t.Error("Get() returned a different session")
	}

	// a second Start for the same pair resumes the live session
	again, err := fx.svc.Start(ctx, subject, "a1")
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if again != sess {
		t.Error("second Start() opened a new session, want the live one")
	}
}

func TestServiceStartUnpublished(t *testing.T) {
	def := gradedDef()
	def.IsPublished = false
	fx := newSvcFixture(t, def)

	if _, err := fx.svc.Start(context.Background(), subject, "a1"); err != ErrNotPublished {
		t.Errorf("Start() error = %v, want %v", err, ErrNotPublished)
	}
}

func TestServiceStartUnknownAssessment(t *testing.T) {
	fx := newSvcFixture(t)
	if _, err := fx.svc.Start(context.Background(), subject, "nope"); errors.Cause(err) != assessment.ErrNotFound {
		t.Errorf("Start() error = %v, want %v", err, assessment.ErrNotFound)
	}
}

func TestServiceRetakeDenied(t *testing.T) {
	ctx := context.Background()
	fx := newSvcFixture(t, gradedDef())

	sess, err := fx.svc.Start(ctx, subject, "a1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err = sess.Finalize(ReasonManual); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	// the pair now has a durable record; a new session is refused
	if _, err = fx.svc.Start(ctx, subject, "a1"); err != ErrAlreadyAttempted {
		t.Errorf("Start() error = %v, want %v", err, ErrAlreadyAttempted)
	}

	// another subject is unaffected
	other := user.User{ID: "u2", Name: "Other"}
	if _, err = fx.svc.Start(ctx, other, "a1"); err != nil {
		t.Errorf("Start() for another subject error = %v", err)
	}
}

func TestServiceRetakeOverwrite(t *testing.T) {
	ctx := context.Background()
	fx := newSvcFixture(t, gradedDef())
	fx.conf.Assess.RetakePolicy = core.RetakeOverwrite

	sess, err := fx.svc.Start(ctx, subject, "a1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := sess.RecordAnswer("q1", "2"); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}
	if _, err = sess.Finalize(ReasonManual); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	sess2, err := fx.svc.Start(ctx, subject, "a1")
	if err != nil {
		t.Fatalf("retake Start() error = %v", err)
	}
	if sess2 == sess {
		t.Fatal("retake Start() returned the terminated session")
	}
	if _, err = sess2.Finalize(ReasonManual); err != nil {
		t.Fatalf("retake Finalize() error = %v", err)
	}

	// the upsert replaced the prior record; still exactly one per pair
	rec, err := fx.svc.GetRecord(ctx, subject.ID, "a1")
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if rec.Earned != 0 {
		t.Errorf("Earned = %d, want 0 (the retake had no answers)", rec.Earned)
	}
	recs, err := fx.svc.QueryByAssessment(ctx, "a1")
	if err != nil {
		t.Fatalf("QueryByAssessment() error = %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("records for pair = %d, want 1", len(recs))
	}
}

func TestServiceSurveyRetakeAllowed(t *testing.T) {
	ctx := context.Background()
	def := gradedDef()
	def.Kind = assessment.KindSurvey
	fx := newSvcFixture(t, def)

	sess, err := fx.svc.Start(ctx, subject, "a1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err = sess.Finalize(ReasonManual); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	// the deny policy only guards graded kinds
	if _, err = fx.svc.Start(ctx, subject, "a1"); err != nil {
		t.Errorf("survey retake Start() error = %v", err)
	}
}

func TestServiceConsentGate(t *testing.T) {
	ctx := context.Background()
	def := gradedDef()
	def.CampaignID = "camp1"
	fx := newSvcFixture(t, def)

	if _, err := fx.svc.Start(ctx, subject, "a1"); err != ErrConsentRequired {
		t.Fatalf("Start() error = %v, want %v", err, ErrConsentRequired)
	}

	fx.consent.mu.Lock()
	fx.consent.granted[subject.ID+"/camp1"] = true
	fx.consent.mu.Unlock()

	if _, err := fx.svc.Start(ctx, subject, "a1"); err != nil {
		t.Errorf("Start() after consent error = %v", err)
	}
}

func TestServiceResultMail(t *testing.T) {
	ctx := context.Background()
	fx := newSvcFixture(t, gradedDef())

	sess, err := fx.svc.Start(ctx, subject, "a1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err = sess.Finalize(ReasonManual); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if fx.mail.count() != 1 {
		t.Errorf("mails sent = %d, want 1", fx.mail.count())
	}
	// the terminated session is unregistered
	if _, err = fx.svc.Get(sess.ID); err != ErrSessionNotFound {
		t.Errorf("Get() error = %v, want %v", err, ErrSessionNotFound)
	}
}

func TestServicePersistRetries(t *testing.T) {
	ctx := context.Background()
	fx := newSvcFixture(t, gradedDef())
	fx.repo.failures = 2 // two transient failures, the third upsert succeeds

	sess, err := fx.svc.Start(ctx, subject, "a1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err = sess.Finalize(ReasonManual); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if fx.repo.upsertCount() != 3 {
		t.Errorf("upserts = %d, want 3", fx.repo.upsertCount())
	}
	if sess.Status() != StatusTerminated {
		t.Errorf("Status() = %v, want %v", sess.Status(), StatusTerminated)
	}
}

func TestServicePersistExhausted(t *testing.T) {
	ctx := context.Background()
	fx := newSvcFixture(t, gradedDef())
	fx.repo.failures = 10 // more than the retry budget

	sess, err := fx.svc.Start(ctx, subject, "a1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err = sess.Finalize(ReasonManual); errors.Cause(err) != ErrPersistenceFailed {
		t.Fatalf("Finalize() error = %v, want %v", err, ErrPersistenceFailed)
	}
	if fx.repo.upsertCount() != fx.conf.Assess.UpsertRetries {
		t.Errorf("upserts = %d, want %d", fx.repo.upsertCount(), fx.conf.Assess.UpsertRetries)
	}
	if fx.mail.count() != 0 {
		t.Errorf("mails sent = %d, want 0", fx.mail.count())
	}

	// the session stays resolvable for a manual retry
	if _, err = fx.svc.Get(sess.ID); err != nil {
		t.Errorf("Get() error = %v, want the session retained", err)
	}

	// the store recovered; the retry terminates and stores exactly once
	fx.repo.mu.Lock()
	fx.repo.failures = 0
	fx.repo.mu.Unlock()
	if _, err = sess.Finalize(ReasonManual); err != nil {
		t.Fatalf("retry Finalize() error = %v", err)
	}
	if _, err := fx.svc.GetRecord(ctx, subject.ID, "a1"); err != nil {
		t.Errorf("GetRecord() error = %v", err)
	}
	if _, err = fx.svc.Get(sess.ID); err != ErrSessionNotFound {
		t.Errorf("Get() after retry error = %v, want %v", err, ErrSessionNotFound)
	}
}
