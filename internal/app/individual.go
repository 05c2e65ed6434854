package app

import (
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// IndividualSession is one participant working through a private run.
// Every mutation is checked against the current index and generation so a
// late answer and a timer expiry can never both act on the same question.
// After each step the next question stays pending until Open presents it.
type IndividualSession struct {
	participantID int64
	displayName   string
	quiz          domain.Quiz
	questions     []domain.PreparedQuestion
	startedAt     time.Time
	now           func() time.Time

	mu         sync.Mutex
	index      int
	generation uint64
	answers    map[int]int
	correct    int
	missed     []int
	skipped    []int
	open       bool
	stopped    bool
}

// NewIndividualSession binds a prepared question list to a participant.
func NewIndividualSession(participantID int64, displayName string, quiz domain.Quiz, questions []domain.PreparedQuestion, now func() time.Time) *IndividualSession {
	if now == nil {
		now = time.Now
	}
	return &IndividualSession{
		participantID: participantID,
		displayName:   displayName,
		quiz:          quiz,
		questions:     questions,
		startedAt:     now(),
		now:           now,
		answers:       make(map[int]int),
	}
}

func (s *IndividualSession) ParticipantID() int64 { return s.participantID }
func (s *IndividualSession) Quiz() domain.Quiz { return s.quiz }
func (s *IndividualSession) Len() int { return len(s.questions) }

// Open presents the pending question of generation gen. It returns false
// when gen is stale or the question is already open, so each question is
// presented at most once.
func (s *IndividualSession) Open(gen uint64) (QuestionView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() || s.open || gen != s.generation {
		return QuestionView{}, false
	}
	s.open = true
	return s.viewLocked(), true
}

// Current returns the question being asked. It reports false while the next
// question is pending and once the run is over.
func (s *IndividualSession) Current() (QuestionView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.openLocked() {
		return QuestionView{}, false
	}
	return s.viewLocked(), true
}

// Finished reports whether the pointer ran past the last question or the
// session was stopped.
func (s *IndividualSession) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.activeLocked()
}

// Answer records option (a display index) for questionIndex and advances.
func (s *IndividualSession) Answer(questionIndex, option int) (AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(questionIndex); err != nil {
		return AnswerOutcome{}, err
	}
	q := s.questions[s.index]
	canonical, ok := q.Canonical(option)
	if !ok {
		return AnswerOutcome{}, domain.ErrInvalidOption
	}

	correct := canonical == q.CorrectIndex
	s.answers[s.index] = canonical
	if correct {
		s.correct++
	} else {
		s.missed = append(s.missed, s.index)
	}
	return s.advanceLocked(q, correct, false), nil
}

// Skip records questionIndex as missed without a choice and advances.
func (s *IndividualSession) Skip(questionIndex int) (AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(questionIndex); err != nil {
		return AnswerOutcome{}, err
	}
	return s.skipLocked(), nil
}

// Expire skips the current question if gen is still the live generation.
func (s *IndividualSession) Expire(gen uint64) (AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return AnswerOutcome{}, domain.ErrNoCurrentQuestion
	}
	if gen != s.generation || !s.open {
		return AnswerOutcome{}, domain.ErrQuestionClosed
	}
	return s.skipLocked(), nil
}

// IsLive reports whether gen still identifies the open question.
func (s *IndividualSession) IsLive(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked() && gen == s.generation
}

// Stop ends the run early. Pending timers become inert.
func (s *IndividualSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		s.generation++
	}
}

// Result materializes the run. TotalQuestions is the number of questions
// presented so far, which equals the run length on organic completion.
func (s *IndividualSession) Result() domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, s.index)
	for _, q := range s.questions[:s.index] {
		ids = append(ids, q.ID)
	}
	answers := make(map[int]int, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return domain.Result{
		QuizID:         s.quiz.ID,
		ParticipantID:  s.participantID,
		DisplayName:    s.displayName,
		TotalQuestions: s.index,
		QuestionIDs:    ids,
		CorrectAnswers: s.correct,
		Missed:         append([]int(nil), s.missed...),
		Skipped:        append([]int(nil), s.skipped...),
		Answers:        answers,
		StartedAt:      s.startedAt,
		FinishedAt:     s.now(),
		Completed:      s.index >= len(s.questions),
	}
}

func (s *IndividualSession) activeLocked() bool {
	return !s.stopped && s.index < len(s.questions)
}

func (s *IndividualSession) openLocked() bool {
	return s.activeLocked() && s.open
}

func (s *IndividualSession) viewLocked() QuestionView {
	return newQuestionView(s.questions[s.index], s.index, len(s.questions), s.quiz.TimePerQuestion, s.generation)
}

func (s *IndividualSession) checkLocked(questionIndex int) error {
	if !s.activeLocked() {
		return domain.ErrNoCurrentQuestion
	}
	if questionIndex != s.index {
		return domain.ErrQuestionClosed
	}
	if !s.open {
		return domain.ErrNoCurrentQuestion
	}
	return nil
}

func (s *IndividualSession) skipLocked() AnswerOutcome {
	q := s.questions[s.index]
	s.missed = append(s.missed, s.index)
	s.skipped = append(s.skipped, s.index)
	return s.advanceLocked(q, false, true)
}

func (s *IndividualSession) advanceLocked(q domain.PreparedQuestion, correct, skipped bool) AnswerOutcome {
	out := AnswerOutcome{
		QuestionIndex: s.index,
		Correct:       correct,
		Skipped:       skipped,
		CorrectOption: q.CorrectDisplayIndex(),
		CorrectAnswer: q.CorrectAnswer(),
	}
	s.index++
	s.generation++
	s.open = false
	out.More = s.index < len(s.questions)
	out.Generation = s.generation
	return out
}
