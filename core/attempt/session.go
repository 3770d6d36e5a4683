package attempt

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/assessment"
)

// NowFunc is the session clock; mockable in tests.
var NowFunc = time.Now

// Session states. Terminated is absorbing.
type Status int32

const (
	StatusNotStarted Status = iota
	StatusInProgress
	StatusFinalizing
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusInProgress:
		return "in_progress"
	case StatusFinalizing:
		return "finalizing"
	case StatusTerminated:
		return "terminated"
	}
	return "unknown"
}

// QuestionProgress is the per-question answered flag rendered on the
// navigation map. It never carries values or answer keys.
type QuestionProgress struct {
	QuestionID string `json:"question_id"`
	Answered   bool   `json:"answered"`
}

type persistFunc func(rec AttemptRecord) error

// Session owns one attempt: the lifecycle state machine, answer buffering
// and time accounting. Finalize is callable from three independent trigger
// sources (manual submit, countdown, integrity monitor); the compare-and-swap
// on status makes exactly one of them effective. No caller is special-cased
// as more authoritative.
type Session struct {
	ID        string
	SubjectID string

	def       assessment.Assessment // full definition; never serialized out
	monitorOn bool                  // integrity monitoring applies (graded kind + config)
	persist   persistFunc

	status int32 // Status; mutated only through sync/atomic

	mu         sync.Mutex // guards the fields below
	answers    []AnswerRecord
	events     []IntegrityEvent
	currentIdx int
	startedAt  time.Time
	lastMoveAt time.Time
	countdown  *Countdown
	record     *AttemptRecord // computed exactly once by the finalize winner
	outcome    Outcome
	outcomeErr error

	persistMu sync.Mutex    // serializes store writes (first attempt and manual retries)
	done      chan struct{} // closed once the first finalize has run to completion
}

func newSession(def assessment.Assessment, subjectID string, monitorOn bool, persist persistFunc) *Session {
	answers := make([]AnswerRecord, 0, len(def.Questions))
	for _, q := range def.Questions {
		answers = append(answers, AnswerRecord{QuestionID: q.ID})
	}
	return &Session{
		ID:        uuid.New().String(),
		SubjectID: subjectID,
		def:       def,
		monitorOn: monitorOn && def.IsGraded(),
		persist:   persist,
		answers:   answers,
		done:      make(chan struct{}),
	}
}

// Definition returns the session-facing view of the assessment: answer keys
// are stripped.
func (s *Session) Definition() assessment.Assessment { return s.def.ForSession() }

func (s *Session) Status() Status {
	return Status(atomic.LoadInt32(&s.status))
}

// Start activates the session: records the start timestamp and arms the
// countdown. The integrity monitor is only live from here on, never during
// construction, so pre-start screens cannot self-inflict a violation.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// CAS under s.mu: a finalize trigger can only observe InProgress once
	// the start timestamp and countdown below are in place
	if !atomic.CompareAndSwapInt32(&s.status, int32(StatusNotStarted), int32(StatusInProgress)) {
		return ErrAlreadyStarted
	}
	now := NowFunc()
	s.startedAt = now
	s.lastMoveAt = now
	s.countdown = newCountdown(s.def.Duration(), func() {
		_, _ = s.Finalize(ReasonTimeout)
	})
	return nil
}

// RecordAnswer overwrites the buffered value for a question. It does not
// advance time accounting; only navigation commits time.
func (s *Session) RecordAnswer(questionID string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status() != StatusInProgress {
		return ErrNotInProgress
	}
	for i := range s.answers {
		if s.answers[i].QuestionID == questionID {
			s.answers[i].Value = value
			return nil
		}
	}
	return ErrUnknownQuestion
}

// Navigate moves to another question, committing the wall-clock time spent
// on the question being left. This commit-on-leave is the only place
// per-question time accrues outside of finalize.
func (s *Session) Navigate(targetIdx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status() != StatusInProgress {
		return ErrNotInProgress
	}
	if targetIdx < 0 || targetIdx >= len(s.answers) {
		return ErrIndexOutOfRange
	}
	s.commitPendingTime(NowFunc())
	s.currentIdx = targetIdx
	return nil
}

// commitPendingTime accrues the time since the last navigation (or start) to
// the currently displayed question. Callers hold s.mu.
func (s *Session) commitPendingTime(now time.Time) {
	if len(s.answers) == 0 || s.lastMoveAt.IsZero() {
		return
	}
	if d := now.Sub(s.lastMoveAt); d > 0 {
		s.answers[s.currentIdx].Seconds += int(d.Seconds())
	}
	s.lastMoveAt = now
}

// ReportIntegrity applies the integrity policy to an environment signal.
// copy/paste are suppressed and recorded but never terminal; focus loss on a
// monitored session forces termination: it cannot be distinguished from a
// deliberate lookup of outside material, so the policy is zero tolerance.
// Signals outside InProgress (or on unmonitored kinds) are no-ops.
func (s *Session) ReportIntegrity(signal string) (IntegrityEvent, error) {
	switch signal {
	case SignalFocusLost, SignalCopy, SignalPaste:
	default:
		return IntegrityEvent{}, errors.Wrapf(ErrUnknownSignal, "%q", signal)
	}

	ev := IntegrityEvent{Signal: signal, At: NowFunc().UTC()}
	if !s.monitorOn {
		return ev, nil
	}

	s.mu.Lock()
	if s.Status() != StatusInProgress {
		s.mu.Unlock()
		return ev, nil
	}
	switch signal {
	case SignalCopy, SignalPaste:
		ev.Blocked = true
	case SignalFocusLost:
		ev.Terminal = true
	}
	s.events = append(s.events, ev)
	s.mu.Unlock()

	if ev.Terminal {
		// the finalize guard makes this race-safe against manual submit
		// and the countdown
		if _, err := s.Finalize(ReasonIntegrityViolation); err != nil && errors.Cause(err) != ErrPersistenceFailed {
			return ev, err
		}
	}
	return ev, nil
}

// Remaining returns the time left on the budget. Zero once the session has
// left InProgress.
func (s *Session) Remaining() time.Duration {
	switch s.Status() {
	case StatusNotStarted:
		return s.def.Duration()
	case StatusInProgress:
		s.mu.Lock()
		startedAt := s.startedAt
		s.mu.Unlock()
		if left := s.def.Duration() - NowFunc().Sub(startedAt); left > 0 {
			return left
		}
	}
	return 0
}

func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIdx
}

// Progress returns the answered/unanswered flags used to render the
// navigation map.
func (s *Session) Progress() []QuestionProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog := make([]QuestionProgress, 0, len(s.answers))
	for _, ar := range s.answers {
		prog = append(prog, QuestionProgress{QuestionID: ar.QuestionID, Answered: ar.Answered()})
	}
	return prog
}

// Finalize ends the session for the given reason. Exactly one caller wins
// the InProgress→Finalizing transition and computes/persists the result; all
// others block until that completes and observe the identical outcome. A
// call after Terminated returns the original outcome without re-scoring or
// re-writing the store.
func (s *Session) Finalize(reason string) (Outcome, error) {
	for {
		switch Status(atomic.LoadInt32(&s.status)) {
		case StatusNotStarted:
			return Outcome{}, ErrNotStarted
		case StatusInProgress:
			if atomic.CompareAndSwapInt32(&s.status, int32(StatusInProgress), int32(StatusFinalizing)) {
				return s.runFinalize(reason)
			}
			// lost the race; loop and join the winner
		case StatusFinalizing, StatusTerminated:
			return s.joinFinalize()
		}
	}
}

// runFinalize is executed by the single winner of the status CAS.
func (s *Session) runFinalize(reason string) (Outcome, error) {
	now := NowFunc()

	s.mu.Lock()
	// stop the deadline the instant InProgress is left; a stale fire is
	// neutralized by the CAS anyway
	s.countdown.Stop()
	// commit the displayed question's pending time; navigate cannot do it
	// for the final question
	s.commitPendingTime(now)

	answers := make([]AnswerRecord, len(s.answers))
	copy(answers, s.answers)
	events := make([]IntegrityEvent, len(s.events))
	copy(events, s.events)
	startedAt := s.startedAt
	s.mu.Unlock()

	// total elapsed time is wall clock, not the per-question sum; the two
	// diverge under suspended execution and the wall clock is authoritative
	elapsed := int(now.Sub(startedAt).Seconds())

	var result ScoringResult
	if s.def.IsGraded() {
		result = Score(s.def, answers)
	}
	// survey kinds bypass the scorer entirely: no correctness concept

	rec := AttemptRecord{
		ID:             uuid.New().String(),
		SubjectID:      s.SubjectID,
		AssessmentID:   s.def.ID,
		ScoringResult:  result,
		Reason:         reason,
		ElapsedSeconds: elapsed,
		StartedAt:      startedAt.UTC(),
		CompletedAt:    now.UTC(),
		Answers:        answers,
		Events:         events,
	}

	s.mu.Lock()
	s.record = &rec
	s.outcome = Outcome{Result: result, Reason: reason}
	s.mu.Unlock()

	out, err := s.completePersist()
	close(s.done)
	return out, err
}

// joinFinalize is the path for finalize losers and post-termination calls:
// wait for the winner, then observe its outcome. If the winner's store write
// failed, a manual retry re-attempts it with the already-computed record;
// the score is never recomputed.
func (s *Session) joinFinalize() (Outcome, error) {
	<-s.done

	s.mu.Lock()
	out, err := s.outcome, s.outcomeErr
	s.mu.Unlock()
	if err == nil {
		return out, nil
	}
	return s.completePersist()
}

// completePersist writes the computed record through the idempotent store
// API. On failure the session stays in Finalizing with the record retained;
// on success it terminates.
func (s *Session) completePersist() (Outcome, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	out := s.outcome
	rec := *s.record
	s.mu.Unlock()

	if s.Status() == StatusTerminated {
		return out, nil
	}

	err := s.persist(rec)

	s.mu.Lock()
	if err != nil {
		s.outcomeErr = errors.Wrap(ErrPersistenceFailed, err.Error())
	} else {
		s.outcomeErr = nil
	}
	outErr := s.outcomeErr
	s.mu.Unlock()

	if err == nil {
		atomic.StoreInt32(&s.status, int32(StatusTerminated))
	}
	return out, outErr
}
