package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

func TestBuildLeaderboardOrdering(t *testing.T) {
	scores := []domain.ParticipantScore{
		{ParticipantID: 1, DisplayName: "slow", Answered: 5, Correct: 3},
		{ParticipantID: 2, DisplayName: "fast", Answered: 3, Correct: 3},
		{ParticipantID: 3, DisplayName: "best", Answered: 4, Correct: 4},
		{ParticipantID: 4, DisplayName: "idle", Answered: 0, Correct: 0},
		{ParticipantID: 5, DisplayName: "tied", Answered: 0, Correct: 0},
	}

	board := app.BuildLeaderboard(scores)
	require.Len(t, board, 5)

	names := make([]string, 0, len(board))
	markers := make([]string, 0, len(board))
	for _, e := range board {
		names = append(names, e.DisplayName)
		markers = append(markers, e.Marker)
	}
	assert.Equal(t, []string{"best", "fast", "slow", "idle", "tied"}, names)
	assert.Equal(t, []string{"🥇", "🥈", "🥉", "4.", "5."}, markers)
	assert.Equal(t, 4, board[3].Rank)
	assert.Equal(t, 60.0, board[2].Accuracy)
	assert.Zero(t, board[3].Accuracy)

	// The input slice is left untouched.
	assert.Equal(t, "slow", scores[0].DisplayName)
}

func TestBuildLeaderboardEmpty(t *testing.T) {
	assert.Empty(t, app.BuildLeaderboard(nil))
}
