package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-session-service/internal/domain"
)

// Store keeps quizzes, results and statistics in process memory. It backs
// the service when no database is configured and doubles as a test fake.
type Store struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
	codes   map[string]string
	results []domain.Result
	stats   map[int64]domain.UserStatistics
}

func NewStore(quizzes ...domain.Quiz) *Store {
	s := &Store{
		quizzes: make(map[string]domain.Quiz),
		codes:   make(map[string]string),
		stats:   make(map[int64]domain.UserStatistics),
	}
	for _, q := range quizzes {
		s.quizzes[q.ID] = q
		if code := domain.NormalizeShareCode(q.ShareCode); code != "" {
			s.codes[code] = q.ID
		}
	}
	return s
}

func (s *Store) SaveQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := domain.NormalizeShareCode(quiz.ShareCode)
	if owner, ok := s.codes[code]; ok && owner != quiz.ID {
		return domain.ErrShareCodeTaken
	}
	if prev, ok := s.quizzes[quiz.ID]; ok {
		delete(s.codes, domain.NormalizeShareCode(prev.ShareCode))
	}
	s.quizzes[quiz.ID] = quiz
	s.codes[code] = quiz.ID
	return nil
}

func (s *Store) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if quiz, ok := s.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (s *Store) LoadQuizByShareCode(_ context.Context, code string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.codes[domain.NormalizeShareCode(code)]; ok {
		return s.quizzes[id], nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (s *Store) ListQuizzes(_ context.Context, ownerID int64) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0)
	for _, q := range s.quizzes {
		if q.OwnerID == ownerID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	delete(s.quizzes, quizID)
	delete(s.codes, domain.NormalizeShareCode(quiz.ShareCode))
	kept := s.results[:0]
	for _, r := range s.results {
		if r.QuizID != quizID {
			kept = append(kept, r)
		}
	}
	s.results = kept
	return nil
}

func (s *Store) SaveResult(_ context.Context, result domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func (s *Store) QuizResults(_ context.Context, quizID string) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Result, 0)
	for _, r := range s.results {
		if r.QuizID == quizID && r.Completed {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CorrectAnswers > out[j].CorrectAnswers })
	return out, nil
}

func (s *Store) UserResults(_ context.Context, participantID int64) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Result, 0)
	for _, r := range s.results {
		if r.ParticipantID == participantID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinishedAt.After(out[j].FinishedAt) })
	return out, nil
}

func (s *Store) UpdateUserStatistics(_ context.Context, update domain.StatisticsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[update.ParticipantID] = s.stats[update.ParticipantID].Apply(update)
	return nil
}

func (s *Store) UserStatistics(_ context.Context, participantID int64) (domain.UserStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.stats[participantID]
	if !ok {
		return domain.UserStatistics{}, domain.ErrStatisticsNotFound
	}
	return stats, nil
}
