package app

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// QuestionSetBuilder derives the ordered question list for one run.
// It is safe for concurrent use.
type QuestionSetBuilder struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionSetBuilder() *QuestionSetBuilder {
	return NewQuestionSetBuilderWithSeed(time.Now().UnixNano())
}

// NewQuestionSetBuilderWithSeed is used by tests for reproducible runs.
func NewQuestionSetBuilderWithSeed(seed int64) *QuestionSetBuilder {
	return &QuestionSetBuilder{rnd: rand.New(rand.NewSource(seed))}
}

// Build selects questions per settings and, when both the quiz and the
// settings allow it, attaches a random option permutation to each one.
// Invalid settings are rejected before anything is built.
func (b *QuestionSetBuilder) Build(quiz domain.Quiz, settings domain.RunSettings) ([]domain.PreparedQuestion, error) {
	total := len(quiz.Questions)
	if err := settings.Validate(total); err != nil {
		return nil, err
	}

	var picked []domain.Question
	switch settings.Mode {
	case domain.ModeRange:
		picked = quiz.Questions[settings.Start-1 : settings.End]
	case domain.ModeRandom:
		perm := b.perm(total)
		picked = make([]domain.Question, 0, settings.Count)
		for _, idx := range perm[:settings.Count] {
			picked = append(picked, quiz.Questions[idx])
		}
	default:
		picked = quiz.Questions
	}

	shuffle := settings.Shuffle && quiz.ShuffleOptions
	out := make([]domain.PreparedQuestion, 0, len(picked))
	for _, q := range picked {
		prepared := domain.Prepare(q)
		if shuffle {
			prepared.Order = b.perm(len(q.Options))
		}
		out = append(out, prepared)
	}
	if len(out) != settings.Size(total) {
		return nil, fmt.Errorf("%w: built %d questions, want %d", domain.ErrInvalidSettings, len(out), settings.Size(total))
	}
	return out, nil
}

// Reshuffle returns q with a fresh option permutation. The canonical options
// are untouched.
func (b *QuestionSetBuilder) Reshuffle(q domain.PreparedQuestion) domain.PreparedQuestion {
	q.Order = b.perm(len(q.Options))
	return q
}

func (b *QuestionSetBuilder) perm(n int) []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rnd.Perm(n)
}
