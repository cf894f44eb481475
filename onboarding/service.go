package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/youcodecowboy/disco-grid/contract"
	"github.com/youcodecowboy/disco-grid/storage"
)

// maxUpdateAttempts bounds read-modify-write retries on revision conflicts.
const maxUpdateAttempts = 2

// Progress summarises how far a session is through the visible questions.
type Progress struct {
	Answered        int     `json:"answered"`
	Total           int     `json:"total"`
	RequiredMissing int     `json:"required_missing"`
	PercentComplete float64 `json:"percent_complete"`
}

// State is the view of a session the question-rendering flow needs.
type State struct {
	Session  *Session    `json:"session"`
	Visible  []*Question `json:"visible"`
	Next     *Question   `json:"next,omitempty"`
	Progress Progress    `json:"progress"`
}

// ComputeState derives visible questions, the next unanswered question and
// progress for a contract. Hidden questions are never counted.
func ComputeState(cat *Catalog, c *contract.Contract) ([]*Question, *Question, Progress) {
	visible := cat.Visible(c)
	var (
		next     *Question
		progress Progress
	)
	progress.Total = len(visible)
	for _, q := range visible {
		if q.Answered(c) {
			progress.Answered++
			continue
		}
		if next == nil {
			next = q
		}
		if q.Required {
			progress.RequiredMissing++
		}
	}
	if progress.Total > 0 {
		progress.PercentComplete = float64(progress.Answered) / float64(progress.Total) * 100
	}
	return visible, next, progress
}

// Service runs onboarding sessions against the current catalog.
type Service struct {
	catalog *CatalogHolder
	store   SessionStore
	logger  *slog.Logger
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an onboarding service.
func NewService(catalog *CatalogHolder, store SessionStore, opts ...ServiceOption) *Service {
	s := &Service{
		catalog: catalog,
		store:   store,
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the current catalog.
func (s *Service) Catalog() *Catalog { return s.catalog.Catalog() }

// Start creates a new session, optionally seeded with answers.
func (s *Service) Start(ctx context.Context, seed *contract.Contract) (*Session, error) {
	sess := NewSession()
	now := s.now()
	sess.CreatedAt, sess.UpdatedAt = now, now
	if seed != nil {
		sess.Contract = seed.Clone()
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.logger.Info("Onboarding session started", "session_id", sess.ID)
	return sess, nil
}

// ErrNoContract is returned by ContractFor when neither source is given.
var ErrNoContract = errors.New("contract or sessionId is required")

// ContractFor returns the contract of sessionID when set, otherwise inline.
func (s *Service) ContractFor(ctx context.Context, sessionID string, inline *contract.Contract) (*contract.Contract, error) {
	if sessionID != "" {
		sess, err := s.store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return sess.Contract, nil
	}
	if inline == nil {
		return nil, ErrNoContract
	}
	return inline, nil
}

// Get loads a session.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// State returns the rendering view of a session.
func (s *Service) State(ctx context.Context, id string) (*State, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	visible, next, progress := ComputeState(s.Catalog(), sess.Contract)
	return &State{Session: sess, Visible: visible, Next: next, Progress: progress}, nil
}

// Answer validates and records the answer to one question. The question must
// exist and be visible for the session's current contract.
func (s *Service) Answer(ctx context.Context, sessionID, questionID string, value contract.Value) (*Session, error) {
	cat := s.Catalog()
	q, ok := cat.Question(questionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if err := q.Validate(value); err != nil {
		return nil, err
	}

	return s.update(ctx, sessionID, func(sess *Session) error {
		if !ShouldShow(q, sess.Contract) {
			return fmt.Errorf("%w: %s", ErrQuestionHidden, questionID)
		}
		if err := sess.Contract.Set(q.Path(), value); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
		}
		s.logger.Debug("Answer recorded",
			"session_id", sessionID,
			"question_id", questionID,
			"path", q.Path())
		return nil
	})
}

// Complete marks a session finished. It fails with ErrIncomplete while
// required visible questions are unanswered.
func (s *Service) Complete(ctx context.Context, sessionID string) (*Session, error) {
	cat := s.Catalog()
	return s.update(ctx, sessionID, func(sess *Session) error {
		if sess.Completed {
			return nil
		}
		_, _, progress := ComputeState(cat, sess.Contract)
		if progress.RequiredMissing > 0 {
			return fmt.Errorf("%w: %d remaining", ErrIncomplete, progress.RequiredMissing)
		}
		now := s.now()
		sess.Completed = true
		sess.CompletedAt = &now
		s.logger.Info("Onboarding session completed", "session_id", sessionID, "answers", sess.Contract.Len())
		return nil
	})
}

// update runs a read-modify-write cycle, retrying once on a revision conflict.
func (s *Service) update(ctx context.Context, id string, mutate func(*Session) error) (*Session, error) {
	var lastErr error
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		sess, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(sess); err != nil {
			return nil, err
		}
		sess.UpdatedAt = s.now()

		err = s.store.Update(ctx, sess)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("Session revision conflict, retrying", "session_id", id, "attempt", attempt)
	}
	return nil, lastErr
}
