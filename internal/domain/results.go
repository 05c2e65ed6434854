package domain

import (
	"math"
	"time"
)

// Result is the outcome of one individual run.
type Result struct {
	ID             string      `json:"id"`
	QuizID         string      `json:"quizId"`
	ParticipantID  int64       `json:"participantId"`
	DisplayName    string      `json:"displayName"`
	TotalQuestions int         `json:"totalQuestions"`
	QuestionIDs    []string    `json:"questionIds"` // questions presented, run order
	CorrectAnswers int         `json:"correctAnswers"`
	Missed         []int       `json:"missed"`  // wrong or skipped, run order
	Skipped        []int       `json:"skipped"` // subset of Missed with no choice
	Answers        map[int]int `json:"answers"` // run index -> canonical option index
	StartedAt      time.Time   `json:"startedAt"`
	FinishedAt     time.Time   `json:"finishedAt"`
	Completed      bool        `json:"completed"`
}

// ScorePercent returns correct answers over questions asked, one decimal.
func (r Result) ScorePercent() float64 {
	if r.TotalQuestions == 0 {
		return 0
	}
	return Round1(float64(r.CorrectAnswers) / float64(r.TotalQuestions) * 100)
}

// Wrong returns the indices answered with a wrong choice.
func (r Result) Wrong() []int {
	skipped := make(map[int]struct{}, len(r.Skipped))
	for _, idx := range r.Skipped {
		skipped[idx] = struct{}{}
	}
	out := make([]int, 0, len(r.Missed))
	for _, idx := range r.Missed {
		if _, ok := skipped[idx]; !ok {
			out = append(out, idx)
		}
	}
	return out
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Grade buckets a percentage score.
type Grade string

const (
	GradeExcellent    Grade = "excellent"
	GradeGood         Grade = "good"
	GradeSatisfactory Grade = "satisfactory"
	GradeAverage      Grade = "average"
	GradeSufficient   Grade = "sufficient"
	GradeRetry        Grade = "retry"
)

// GradeFor maps a percentage to its grade band.
func GradeFor(percent float64) Grade {
	switch {
	case percent >= 90:
		return GradeExcellent
	case percent >= 80:
		return GradeGood
	case percent >= 70:
		return GradeSatisfactory
	case percent >= 60:
		return GradeAverage
	case percent >= 50:
		return GradeSufficient
	}
	return GradeRetry
}

// ParticipantScore is a running group tally.
type ParticipantScore struct {
	ParticipantID int64  `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Answered      int    `json:"answered"`
	Correct       int    `json:"correct"`
}

// Accuracy returns correct over answered, one decimal.
func (p ParticipantScore) Accuracy() float64 {
	if p.Answered == 0 {
		return 0
	}
	return Round1(float64(p.Correct) / float64(p.Answered) * 100)
}

// LeaderboardEntry is a ranked participant score.
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	Marker   string  `json:"marker"`
	Accuracy float64 `json:"accuracy"`
	ParticipantScore
}

// UserStatistics aggregates one participant's activity across quizzes.
type UserStatistics struct {
	ParticipantID     int64     `json:"participantId"`
	DisplayName       string    `json:"displayName"`
	QuizzesTaken      int       `json:"quizzesTaken"`
	QuestionsAnswered int       `json:"questionsAnswered"`
	CorrectAnswers    int       `json:"correctAnswers"`
	QuizzesCreated    int       `json:"quizzesCreated"`
	BestScore         float64   `json:"bestScore"`
	AverageScore      float64   `json:"averageScore"`
	LastActivity      time.Time `json:"lastActivity"`
}

// OverallAccuracy returns correct over answered across all completed runs.
func (s UserStatistics) OverallAccuracy() float64 {
	if s.QuestionsAnswered == 0 {
		return 0
	}
	return Round1(float64(s.CorrectAnswers) / float64(s.QuestionsAnswered) * 100)
}

// StatisticsUpdate is one event folded into UserStatistics.
type StatisticsUpdate struct {
	ParticipantID int64
	DisplayName   string
	Result        *Result
	QuizCreated   bool
	At            time.Time
}

// Apply folds u into s. Only completed results count toward totals.
func (s UserStatistics) Apply(u StatisticsUpdate) UserStatistics {
	s.ParticipantID = u.ParticipantID
	if u.DisplayName != "" {
		s.DisplayName = u.DisplayName
	}
	s.LastActivity = u.At
	if r := u.Result; r != nil && r.Completed {
		s.QuizzesTaken++
		s.QuestionsAnswered += r.TotalQuestions
		s.CorrectAnswers += r.CorrectAnswers
		if score := r.ScorePercent(); score > s.BestScore {
			s.BestScore = score
		}
		s.AverageScore = s.OverallAccuracy()
	}
	if u.QuizCreated {
		s.QuizzesCreated++
	}
	return s
}

// QuestionStat is per-question accuracy over the completed attempts that
// presented the question.
type QuestionStat struct {
	Index        int     `json:"index"`
	QuestionID   string  `json:"questionId"`
	Text         string  `json:"text"`
	Asked        int     `json:"asked"`
	CorrectCount int     `json:"correctCount"`
	WrongCount   int     `json:"wrongCount"`
	Accuracy     float64 `json:"accuracy"`
}

// QuizStatistics summarizes results recorded for one quiz.
type QuizStatistics struct {
	Quiz          Quiz           `json:"quiz"`
	Attempts      int            `json:"attempts"`
	AverageScore  float64        `json:"averageScore"`
	HighestScore  float64        `json:"highestScore"`
	LowestScore   float64        `json:"lowestScore"`
	Questions     []QuestionStat `json:"questions"`
	Hardest       []QuestionStat `json:"hardest"`
	RecentResults []Result       `json:"recentResults"`
}
