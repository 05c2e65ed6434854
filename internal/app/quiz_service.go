package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/platform/logger"
)

// SessionRegistry owns every live session. Create rejects a key that is
// already live; End removes s only while it is still the live entry.
type SessionRegistry interface {
	CreateIndividual(s *IndividualSession) error
	Individual(participantID int64) (*IndividualSession, bool)
	EndIndividual(participantID int64, s *IndividualSession) bool
	CreateGroup(s *GroupSession) error
	Group(chatID int64) (*GroupSession, bool)
	EndGroup(chatID int64, s *GroupSession) bool
}

// sessionToucher is implemented by registries that keep an expiring
// marker per live session.
type sessionToucher interface {
	Touch(key SessionKey)
}

// QuizStore persists quiz definitions.
type QuizStore interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadQuizByShareCode(ctx context.Context, code string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context, ownerID int64) ([]domain.Quiz, error)
	DeleteQuiz(ctx context.Context, quizID string) error
}

// ResultStore persists results and per-participant aggregates.
type ResultStore interface {
	SaveResult(ctx context.Context, result domain.Result) error
	QuizResults(ctx context.Context, quizID string) ([]domain.Result, error)
	UserResults(ctx context.Context, participantID int64) ([]domain.Result, error)
	UpdateUserStatistics(ctx context.Context, update domain.StatisticsUpdate) error
	UserStatistics(ctx context.Context, participantID int64) (domain.UserStatistics, error)
}

// Options tunes session pacing and limits.
type Options struct {
	TickInterval           time.Duration
	StartDelay             time.Duration
	AdvancePause           time.Duration
	RevealPause            time.Duration
	FinishPause            time.Duration
	PersistTimeout         time.Duration
	GroupModeThreshold     int
	MaxRandomCount         int
	DefaultTimePerQuestion int
}

func DefaultOptions() Options {
	return Options{
		TickInterval:           time.Second,
		StartDelay:             10 * time.Second,
		AdvancePause:           1500 * time.Millisecond,
		RevealPause:            3 * time.Second,
		FinishPause:            2 * time.Second,
		PersistTimeout:         5 * time.Second,
		GroupModeThreshold:     20,
		MaxRandomCount:         200,
		DefaultTimePerQuestion: 30,
	}
}

// ServiceOption customizes a QuizService.
type ServiceOption func(*QuizService)

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *QuizService) { s.now = now }
}

// WithTickerFactory replaces the wall-clock ticker behind countdowns.
func WithTickerFactory(f TickerFactory) ServiceOption {
	return func(s *QuizService) { s.newTicker = f }
}

// WithQuestionSetBuilder injects a seeded builder.
func WithQuestionSetBuilder(b *QuestionSetBuilder) ServiceOption {
	return func(s *QuizService) { s.builder = b }
}

// QuizService contains the quiz use cases and drives live sessions.
type QuizService struct {
	registry SessionRegistry
	quizzes  QuizStore
	results  ResultStore
	log      *logger.Logger
	opts     Options

	builder   *QuestionSetBuilder
	newTicker TickerFactory
	timers    *TimerCoordinator
	events    *EventBus
	now       func() time.Time

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewQuizService(registry SessionRegistry, quizzes QuizStore, results ResultStore, log *logger.Logger, opts Options, extra ...ServiceOption) *QuizService {
	if log == nil {
		log = logger.NewNop()
	}
	s := &QuizService{
		registry: registry,
		quizzes:  quizzes,
		results:  results,
		log:      log,
		opts:     opts,
		events:   NewEventBus(32),
		now:      time.Now,
		done:     make(chan struct{}),
	}
	for _, opt := range extra {
		opt(s)
	}
	if s.builder == nil {
		s.builder = NewQuestionSetBuilder()
	}
	s.timers = NewTimerCoordinator(opts.TickInterval, s.newTicker, DefaultCadence)
	return s
}

// Close stops every countdown and pending pause.
func (s *QuizService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.timers.Stop()
	s.wg.Wait()
}

// Subscribe returns a channel of events for key.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(key SessionKey) (<-chan Event, func()) {
	return s.events.Subscribe(key)
}

// QuizRef points at a quiz by id or by share code.
type QuizRef struct {
	ID        string
	ShareCode string
}

func ByID(id string) QuizRef { return QuizRef{ID: id} }
func ByShareCode(code string) QuizRef { return QuizRef{ShareCode: code} }
func (r QuizRef) String() string {
	if r.ShareCode != "" {
		return "code:" + domain.NormalizeShareCode(r.ShareCode)
	}
	return r.ID
}

// LoadQuiz resolves ref through the quiz store.
func (s *QuizService) LoadQuiz(ctx context.Context, ref QuizRef) (domain.Quiz, error) {
	if code := domain.NormalizeShareCode(ref.ShareCode); code != "" {
		return s.quizzes.LoadQuizByShareCode(ctx, code)
	}
	if ref.ID == "" {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return s.quizzes.LoadQuiz(ctx, ref.ID)
}

// QuizDraft carries owner-chosen quiz attributes.
type QuizDraft struct {
	Title           string
	OwnerID         int64
	OwnerName       string
	TimePerQuestion *int // nil uses the configured default, 0 is unlimited
	KeepOptionOrder bool
}

const shareCodeAttempts = 5

// CreateQuiz builds a quiz from parser output and saves it. Ingestion
// warnings are passed back to the caller.
func (s *QuizService) CreateQuiz(ctx context.Context, draft QuizDraft, ingestion domain.IngestionResult) (domain.Quiz, []string, error) {
	if !ingestion.Success {
		msg := strings.TrimSpace(ingestion.ErrorMessage)
		if msg == "" {
			msg = "document could not be parsed"
		}
		return domain.Quiz{}, ingestion.Warnings, fmt.Errorf("%w: %s", domain.ErrInvalidQuiz, msg)
	}
	if err := domain.ValidateQuestions(ingestion.Questions); err != nil {
		return domain.Quiz{}, ingestion.Warnings, err
	}

	timeLimit := s.opts.DefaultTimePerQuestion
	if draft.TimePerQuestion != nil {
		timeLimit = *draft.TimePerQuestion
	}
	if timeLimit < 0 {
		return domain.Quiz{}, ingestion.Warnings, fmt.Errorf("%w: negative time limit", domain.ErrInvalidQuiz)
	}

	questions := make([]domain.Question, len(ingestion.Questions))
	for i, q := range ingestion.Questions {
		q.Options = append([]string(nil), q.Options...)
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		questions[i] = q
	}
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		title = "Quiz"
	}
	quiz := domain.Quiz{
		ID:              newQuizID(),
		Title:           title,
		Questions:       questions,
		OwnerID:         draft.OwnerID,
		TimePerQuestion: timeLimit,
		ShuffleOptions:  !draft.KeepOptionOrder,
		CreatedAt:       s.now(),
	}

	var err error
	for attempt := 0; attempt < shareCodeAttempts; attempt++ {
		quiz.ShareCode = newShareCode()
		if err = s.quizzes.SaveQuiz(ctx, quiz); !errors.Is(err, domain.ErrShareCodeTaken) {
			break
		}
		s.log.Debug("share code collision", "quiz_id", quiz.ID, "attempt", attempt+1)
	}
	if err != nil {
		return domain.Quiz{}, ingestion.Warnings, fmt.Errorf("save quiz: %w", err)
	}

	s.log.Info("quiz created", "quiz_id", quiz.ID, "owner", quiz.OwnerID, "questions", len(quiz.Questions))
	s.updateStatistics(domain.StatisticsUpdate{
		ParticipantID: draft.OwnerID,
		DisplayName:   draft.OwnerName,
		QuizCreated:   true,
		At:            s.now(),
	})
	return quiz, ingestion.Warnings, nil
}

// ListQuizzes returns quizzes owned by ownerID.
func (s *QuizService) ListQuizzes(ctx context.Context, ownerID int64) ([]domain.Quiz, error) {
	return s.quizzes.ListQuizzes(ctx, ownerID)
}

// DeleteQuiz removes a quiz. Only its owner may delete it.
func (s *QuizService) DeleteQuiz(ctx context.Context, ownerID int64, quizID string) error {
	quiz, err := s.quizzes.LoadQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if quiz.OwnerID != ownerID {
		return domain.ErrNotAuthorized
	}
	if err := s.quizzes.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	s.log.Info("quiz deleted", "quiz_id", quizID, "owner", ownerID)
	return nil
}

func newQuizID() string {
	return uuid.NewString()[:8]
}

func newShareCode() string {
	return strings.ToUpper(uuid.NewString()[:domain.ShareCodeLength])
}

// after runs fn once d has elapsed unless the service closes first.
// Non-positive delays run fn on the calling goroutine.
func (s *QuizService) after(d time.Duration, fn func()) {
	if d <= 0 {
		fn()
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			fn()
		case <-s.done:
		}
	}()
}

// ticksFor converts d into countdown ticks, rounding up.
func (s *QuizService) ticksFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	interval := s.opts.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	return int((d + interval - 1) / interval)
}

// touch extends the registry's liveness marker for key, if it keeps one.
func (s *QuizService) touch(key SessionKey) {
	if t, ok := s.registry.(sessionToucher); ok {
		t.Touch(key)
	}
}

func (s *QuizService) persistCtx() (context.Context, context.CancelFunc) {
	timeout := s.opts.PersistTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (s *QuizService) saveResult(result domain.Result) {
	ctx, cancel := s.persistCtx()
	defer cancel()
	if err := s.results.SaveResult(ctx, result); err != nil {
		s.log.Error("save result failed", "result_id", result.ID, "quiz_id", result.QuizID, "error", err)
	}
}

func (s *QuizService) updateStatistics(update domain.StatisticsUpdate) {
	ctx, cancel := s.persistCtx()
	defer cancel()
	if err := s.results.UpdateUserStatistics(ctx, update); err != nil {
		s.log.Warn("update user statistics failed", "participant", update.ParticipantID, "error", err)
	}
}
