package app

import (
	"context"
	"sort"

	"quiz-session-service/internal/domain"
)

const (
	hardestQuestions = 3
	recentResults    = 10
	statTextLimit    = 50
)

// QuizStatistics summarizes completed attempts of quizID.
func (s *QuizService) QuizStatistics(ctx context.Context, quizID string) (domain.QuizStatistics, error) {
	quiz, err := s.quizzes.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizStatistics{}, err
	}
	results, err := s.results.QuizResults(ctx, quizID)
	if err != nil {
		return domain.QuizStatistics{}, err
	}
	return summarizeQuiz(quiz, results), nil
}

func summarizeQuiz(quiz domain.Quiz, results []domain.Result) domain.QuizStatistics {
	stats := domain.QuizStatistics{Quiz: quiz, Questions: []domain.QuestionStat{}, Hardest: []domain.QuestionStat{}}

	completed := make([]domain.Result, 0, len(results))
	for _, r := range results {
		if r.Completed {
			completed = append(completed, r)
		}
	}
	if len(completed) == 0 {
		return stats
	}

	stats.Attempts = len(completed)
	stats.LowestScore = completed[0].ScorePercent()
	var sum float64
	for _, r := range completed {
		score := r.ScorePercent()
		sum += score
		if score > stats.HighestScore {
			stats.HighestScore = score
		}
		if score < stats.LowestScore {
			stats.LowestScore = score
		}
	}
	stats.AverageScore = domain.Round1(sum / float64(len(completed)))

	position := make(map[string]int, len(quiz.Questions))
	for i, q := range quiz.Questions {
		position[q.ID] = i
		stats.Questions = append(stats.Questions, domain.QuestionStat{
			Index:      i + 1,
			QuestionID: q.ID,
			Text:       truncate(q.Text, statTextLimit),
		})
	}
	for _, r := range completed {
		missed := make(map[int]struct{}, len(r.Missed))
		for _, idx := range r.Missed {
			missed[idx] = struct{}{}
		}
		for runIdx, id := range r.QuestionIDs {
			pos, ok := position[id]
			if !ok {
				continue
			}
			stat := &stats.Questions[pos]
			stat.Asked++
			if _, wrong := missed[runIdx]; wrong {
				stat.WrongCount++
			} else {
				stat.CorrectCount++
			}
		}
	}

	var asked []domain.QuestionStat
	for i := range stats.Questions {
		stat := &stats.Questions[i]
		if stat.Asked > 0 {
			stat.Accuracy = domain.Round1(float64(stat.CorrectCount) / float64(stat.Asked) * 100)
			asked = append(asked, *stat)
		}
	}
	sort.SliceStable(asked, func(i, j int) bool { return asked[i].Accuracy < asked[j].Accuracy })
	if len(asked) > hardestQuestions {
		asked = asked[:hardestQuestions]
	}
	stats.Hardest = append(stats.Hardest, asked...)

	recent := append([]domain.Result(nil), completed...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].FinishedAt.After(recent[j].FinishedAt) })
	if len(recent) > recentResults {
		recent = recent[:recentResults]
	}
	stats.RecentResults = recent
	return stats
}

// UserStatistics returns the aggregate for participantID.
func (s *QuizService) UserStatistics(ctx context.Context, participantID int64) (domain.UserStatistics, error) {
	return s.results.UserStatistics(ctx, participantID)
}

// HistoryEntry pairs a result with the title of its quiz.
type HistoryEntry struct {
	Result    domain.Result `json:"result"`
	QuizTitle string        `json:"quizTitle"`
}

// UserHistory returns the participant's latest results, newest first.
func (s *QuizService) UserHistory(ctx context.Context, participantID int64, limit int) ([]HistoryEntry, error) {
	results, err := s.results.UserResults(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	titles := make(map[string]string)
	out := make([]HistoryEntry, 0, len(results))
	for _, r := range results {
		title, ok := titles[r.QuizID]
		if !ok {
			if quiz, err := s.quizzes.LoadQuiz(ctx, r.QuizID); err == nil {
				title = quiz.Title
			}
			titles[r.QuizID] = title
		}
		out = append(out, HistoryEntry{Result: r, QuizTitle: title})
	}
	return out, nil
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
