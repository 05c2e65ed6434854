package app

import (
	"fmt"

	"quiz-session-service/internal/domain"
)

// QuestionView is a read-only snapshot of the question being asked.
type QuestionView struct {
	Index      int      `json:"index"`
	Total      int      `json:"total"`
	QuestionID string   `json:"questionId"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	TimeLimit  int      `json:"timeLimit"`
	Generation uint64   `json:"generation"`
	Answered   int      `json:"answered,omitempty"`
}

// Progress renders "k/n" with a 1-based k.
func (v QuestionView) Progress() string {
	return fmt.Sprintf("%d/%d", v.Index+1, v.Total)
}

func newQuestionView(q domain.PreparedQuestion, index, total, timeLimit int, gen uint64) QuestionView {
	return QuestionView{
		Index:      index,
		Total:      total,
		QuestionID: q.ID,
		Text:       q.Text,
		Options:    q.DisplayOptions(),
		TimeLimit:  timeLimit,
		Generation: gen,
	}
}

// AnswerOutcome is returned for every accepted answer or skip.
type AnswerOutcome struct {
	QuestionIndex int    `json:"questionIndex"`
	Correct       bool   `json:"correct"`
	Skipped       bool   `json:"skipped,omitempty"`
	CorrectOption int    `json:"correctOption"`
	CorrectAnswer string `json:"correctAnswer"`
	More          bool   `json:"more"`
	Answered      int    `json:"answered,omitempty"`
	Generation    uint64 `json:"-"` // of the question that follows
}

// Reveal describes a group question closed by its timer.
type Reveal struct {
	QuestionIndex int    `json:"questionIndex"`
	CorrectOption int    `json:"correctOption"`
	CorrectAnswer string `json:"correctAnswer"`
	Answered      int    `json:"answered"`
	More          bool   `json:"more"`
	Generation    uint64 `json:"-"` // of the question that follows
}
