package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"quiz-session-service/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleQuiz(id, code string, created time.Time) domain.Quiz {
	return domain.Quiz{
		ID:    id,
		Title: "Capitals",
		Questions: []domain.Question{
			{ID: "q1", Text: "Capital of France?", Options: []string{"Paris", "Rome"}, CorrectIndex: 0},
			{ID: "q2", Text: "Capital of Italy?", Options: []string{"Paris", "Rome", "Oslo"}, CorrectIndex: 1},
		},
		OwnerID:         7,
		TimePerQuestion: 20,
		ShuffleOptions:  true,
		ShareCode:       code,
		CreatedAt:       created,
	}
}

func TestStoreQuizRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveQuiz(ctx, sampleQuiz("quiz-1", "ABC123", created)))

	got, err := store.LoadQuiz(ctx, "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, "Capitals", got.Title)
	assert.Equal(t, int64(7), got.OwnerID)
	assert.Equal(t, 20, got.TimePerQuestion)
	assert.True(t, got.ShuffleOptions)
	assert.True(t, got.CreatedAt.Equal(created))
	require.Len(t, got.Questions, 2)
	assert.Equal(t, []string{"Paris", "Rome", "Oslo"}, got.Questions[1].Options)

	byCode, err := store.LoadQuizByShareCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "quiz-1", byCode.ID)

	_, err = store.LoadQuiz(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestStoreShareCodeCollision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveQuiz(ctx, sampleQuiz("quiz-1", "ABC123", now)))
	err := store.SaveQuiz(ctx, sampleQuiz("quiz-2", "ABC123", now))
	assert.ErrorIs(t, err, domain.ErrShareCodeTaken)

	// Re-saving the same quiz keeps its code.
	require.NoError(t, store.SaveQuiz(ctx, sampleQuiz("quiz-1", "ABC123", now)))
}

func TestStoreListAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveQuiz(ctx, sampleQuiz("old", "AAAAAA", base)))
	require.NoError(t, store.SaveQuiz(ctx, sampleQuiz("new", "BBBBBB", base.Add(time.Hour))))
	other := sampleQuiz("other", "CCCCCC", base)
	other.OwnerID = 8
	require.NoError(t, store.SaveQuiz(ctx, other))

	list, err := store.ListQuizzes(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)

	require.NoError(t, store.SaveResult(ctx, domain.Result{ID: "r1", QuizID: "old", ParticipantID: 1, TotalQuestions: 2, Completed: true}))
	require.NoError(t, store.DeleteQuiz(ctx, "old"))
	assert.ErrorIs(t, store.DeleteQuiz(ctx, "old"), domain.ErrQuizNotFound)

	results, err := store.UserResults(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStoreResults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveQuiz(ctx, sampleQuiz("quiz-1", "ABC123", base)))

	results := []domain.Result{
		{ID: "a", QuizID: "quiz-1", ParticipantID: 1, TotalQuestions: 2, CorrectAnswers: 1, Completed: true,
			QuestionIDs: []string{"q1", "q2"}, Missed: []int{1}, Skipped: []int{1}, Answers: map[int]int{0: 0},
			StartedAt: base, FinishedAt: base.Add(time.Minute)},
		{ID: "b", QuizID: "quiz-1", ParticipantID: 2, TotalQuestions: 2, CorrectAnswers: 2, Completed: true,
			QuestionIDs: []string{"q1", "q2"}, Answers: map[int]int{0: 0, 1: 1},
			StartedAt: base, FinishedAt: base.Add(2 * time.Minute)},
		{ID: "c", QuizID: "quiz-1", ParticipantID: 1, TotalQuestions: 1, CorrectAnswers: 1, Completed: false,
			QuestionIDs: []string{"q1"}, Answers: map[int]int{0: 0},
			StartedAt: base, FinishedAt: base.Add(3 * time.Minute)},
	}
	for _, r := range results {
		require.NoError(t, store.SaveResult(ctx, r))
	}

	byQuiz, err := store.QuizResults(ctx, "quiz-1")
	require.NoError(t, err)
	require.Len(t, byQuiz, 2)
	assert.Equal(t, "b", byQuiz[0].ID)
	assert.Equal(t, "a", byQuiz[1].ID)
	assert.Equal(t, []int{1}, byQuiz[1].Skipped)
	assert.Equal(t, map[int]int{0: 0}, byQuiz[1].Answers)

	byUser, err := store.UserResults(ctx, 1)
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	assert.Equal(t, "c", byUser[0].ID)
	assert.True(t, byUser[0].FinishedAt.Equal(base.Add(3*time.Minute)))
}

func TestStoreUserStatistics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.UserStatistics(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrStatisticsNotFound)

	require.NoError(t, store.UpdateUserStatistics(ctx, domain.StatisticsUpdate{ParticipantID: 1, DisplayName: "ann", QuizCreated: true, At: at}))
	require.NoError(t, store.UpdateUserStatistics(ctx, domain.StatisticsUpdate{
		ParticipantID: 1,
		Result:        &domain.Result{TotalQuestions: 4, CorrectAnswers: 3, Completed: true},
		At:            at.Add(time.Minute),
	}))
	require.NoError(t, store.UpdateUserStatistics(ctx, domain.StatisticsUpdate{
		ParticipantID: 1,
		Result:        &domain.Result{TotalQuestions: 2, CorrectAnswers: 0, Completed: false},
		At:            at.Add(2 * time.Minute),
	}))

	stats, err := store.UserStatistics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ann", stats.DisplayName)
	assert.Equal(t, 1, stats.QuizzesCreated)
	assert.Equal(t, 1, stats.QuizzesTaken)
	assert.Equal(t, 4, stats.QuestionsAnswered)
	assert.Equal(t, 3, stats.CorrectAnswers)
	assert.Equal(t, 75.0, stats.BestScore)
	assert.Equal(t, 75.0, stats.AverageScore)
	assert.True(t, stats.LastActivity.Equal(at.Add(2*time.Minute)))
}
