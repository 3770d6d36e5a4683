package attempt

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/assessment"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/user"
)

// Service orchestrates attempt sessions: the re-entry policy gate, the live
// session registry (one active session per subject+assessment), the bounded
// retry around the store upsert, and result notification.
type Service struct {
	repo       Repository
	catalogSvc *assessment.Service
	consent    ConsentChecker
	mailSvc    core.EmailService
	logger     core.Logger
	conf       *core.Config

	mu       sync.Mutex
	sessions map[string]*Session // by session ID
	byPair   map[string]string   // subject+assessment -> session ID
}

func NewService(
	repo Repository,
	catalogSvc *assessment.Service,
	consent ConsentChecker,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:       repo,
		catalogSvc: catalogSvc,
		consent:    consent,
		mailSvc:    mailSvc,
		logger:     logger,
		conf:       conf,
		sessions:   make(map[string]*Session),
		byPair:     make(map[string]string),
	}
}

func pairKey(subjectID, assessmentID string) string {
	return subjectID + "/" + assessmentID
}

// Start opens (or resumes) a session for the subject on the given published
// assessment. The policy gate runs before any session exists: under the
// deny retake policy a prior record for a graded assessment refuses a new
// session instead of silently overwriting it later.
func (svc *Service) Start(ctx context.Context, subject user.User, assessmentID string) (*Session, error) {
	def, err := svc.catalogSvc.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if !def.IsPublished {
		return nil, ErrNotPublished
	}

	// resume a live session if one exists for this pair
	svc.mu.Lock()
	if id, ok := svc.byPair[pairKey(subject.ID, def.ID)]; ok {
		sess := svc.sessions[id]
		svc.mu.Unlock()
		return sess, nil
	}
	svc.mu.Unlock()

	if def.IsGraded() && svc.conf.Assess.RetakePolicy == core.RetakeDeny {
		prior, err := svc.repo.HasPriorAttempt(ctx, subject.ID, def.ID)
		if err != nil {
			return nil, errors.Wrap(err, "checking prior attempt")
		}
		if prior {
			return nil, ErrAlreadyAttempted
		}
	}

	if def.CampaignID != "" && svc.consent != nil {
		granted, err := svc.consent.HasConsent(ctx, subject.ID, def.CampaignID)
		if err != nil {
			return nil, errors.Wrap(err, "checking campaign consent")
		}
		if !granted {
			return nil, ErrConsentRequired
		}
	}

	sess := newSession(def, subject.ID, svc.conf.Assess.EnforceIntegrity, svc.persister(subject, def))

	svc.mu.Lock()
	// re-check under the lock; a concurrent Start for the same pair may have
	// won in the meantime
	if id, ok := svc.byPair[pairKey(subject.ID, def.ID)]; ok {
		existing := svc.sessions[id]
		svc.mu.Unlock()
		return existing, nil
	}
	svc.sessions[sess.ID] = sess
	svc.byPair[pairKey(subject.ID, def.ID)] = sess.ID
	svc.mu.Unlock()

	if err := sess.Start(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns a live session by ID. Terminated sessions are unregistered
// once their record is durably stored.
func (svc *Service) Get(sessionID string) (*Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	sess, ok := svc.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// GetRecord returns the persisted attempt for a pair.
func (svc *Service) GetRecord(ctx context.Context, subjectID, assessmentID string) (AttemptRecord, error) {
	return svc.repo.GetAttempt(ctx, subjectID, assessmentID)
}

// QueryByAssessment returns all persisted attempts on an assessment;
// teacher-facing reporting.
func (svc *Service) QueryByAssessment(ctx context.Context, assessmentID string) ([]AttemptRecord, error) {
	return svc.repo.QueryAttemptsByAssessment(ctx, assessmentID)
}

// persister builds the session's store-write callback: a bounded idempotent
// retry around the upsert with the already-computed result. On durable
// success the session is unregistered and the subject notified.
func (svc *Service) persister(subject user.User, def assessment.Assessment) persistFunc {
	return func(rec AttemptRecord) error {
		retries := svc.conf.Assess.UpsertRetries
		if retries < 1 {
			retries = 1
		}

		var err error
		for i := 1; i <= retries; i++ {
			if i > 1 {
				time.Sleep(time.Duration(i-1) * 100 * time.Millisecond)
			}
			if _, err = svc.repo.UpsertAttempt(context.Background(), rec); err == nil {
				break
			}
		}
		if err != nil {
			svc.logger.Error("persisting attempt", errors.Wrap(err, "upserting attempt"), subject)
			return err
		}

		svc.unregister(subject.ID, def.ID)
		svc.sendResultMail(subject, def, rec)
		return nil
	}
}

func (svc *Service) unregister(subjectID, assessmentID string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	key := pairKey(subjectID, assessmentID)
	if id, ok := svc.byPair[key]; ok {
		delete(svc.sessions, id)
		delete(svc.byPair, key)
	}
}

func (svc *Service) sendResultMail(subject user.User, def assessment.Assessment, rec AttemptRecord) {
	if subject.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: subject.Name, Address: subject.Email}},
		Subject:      "Your attempt on " + def.Title,
		TemplateName: "attempt-result",
		TemplateData: struct {
			Name            string
			AssessmentTitle string
			Graded          bool
			Earned          int
			Max             int
			Percentage      int
			Reason          string
		}{subject.Name, def.Title, rec.Graded, rec.Earned, rec.Max, rec.Percentage, rec.Reason},
	})
}
