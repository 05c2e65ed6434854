package app

import (
	"sort"
	"strconv"

	"quiz-session-service/internal/domain"
)

var rankMarkers = [...]string{"🥇", "🥈", "🥉"}

// BuildLeaderboard ranks scores by correct answers descending, then answered
// ascending. Equal entries keep their input order.
func BuildLeaderboard(scores []domain.ParticipantScore) []domain.LeaderboardEntry {
	ranked := append([]domain.ParticipantScore(nil), scores...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Correct != ranked[j].Correct {
			return ranked[i].Correct > ranked[j].Correct
		}
		return ranked[i].Answered < ranked[j].Answered
	})

	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for i, score := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:             i + 1,
			Marker:           rankMarker(i),
			Accuracy:         score.Accuracy(),
			ParticipantScore: score,
		})
	}
	return entries
}

func rankMarker(pos int) string {
	if pos < len(rankMarkers) {
		return rankMarkers[pos]
	}
	return strconv.Itoa(pos+1) + "."
}
