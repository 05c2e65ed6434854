package domain

import (
	"strings"
	"time"
)

const (
	// MinOptions is the smallest number of options a question may carry.
	MinOptions = 2
	// MaxOptions is the largest number of options a question may carry.
	MaxOptions = 6
	// ShareCodeLength is the length of generated share codes.
	ShareCodeLength = 6
)

// Question models a multiple-choice question. Options keep their authored
// order and are never reordered in place.
type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// CorrectAnswer returns the text of the correct option.
func (q Question) CorrectAnswer() string {
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return ""
	}
	return q.Options[q.CorrectIndex]
}

func (q Question) problem() string {
	switch {
	case strings.TrimSpace(q.Text) == "":
		return "question text is empty"
	case len(q.Options) < MinOptions:
		return "needs at least 2 options"
	case len(q.Options) > MaxOptions:
		return "has more than 6 options"
	case q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options):
		return "correct answer is not marked"
	}
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return "option text is empty"
		}
	}
	return ""
}

// PreparedQuestion is a question bound to a display permutation for one run.
// Order[i] is the canonical option index shown at display position i.
type PreparedQuestion struct {
	Question
	Order []int `json:"order"`
}

// Prepare binds q to the identity permutation.
func Prepare(q Question) PreparedQuestion {
	order := make([]int, len(q.Options))
	for i := range order {
		order[i] = i
	}
	return PreparedQuestion{Question: q, Order: order}
}

// DisplayOptions returns the options in display order.
func (p PreparedQuestion) DisplayOptions() []string {
	out := make([]string, len(p.Order))
	for i, idx := range p.Order {
		out[i] = p.Options[idx]
	}
	return out
}

// CorrectDisplayIndex returns the display position of the correct option.
func (p PreparedQuestion) CorrectDisplayIndex() int {
	for i, idx := range p.Order {
		if idx == p.CorrectIndex {
			return i
		}
	}
	return -1
}

// Canonical maps a display position back to the canonical option index.
func (p PreparedQuestion) Canonical(display int) (int, bool) {
	if display < 0 || display >= len(p.Order) {
		return 0, false
	}
	return p.Order[display], true
}

// OptionLetter renders a display index as A, B, C...
func OptionLetter(index int) string {
	if index < 0 || index >= 26 {
		return "?"
	}
	return string(rune('A' + index))
}

// Quiz is an ordered collection of questions owned by one participant.
type Quiz struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Questions       []Question `json:"questions"`
	OwnerID         int64      `json:"ownerId"`
	TimePerQuestion int        `json:"timePerQuestion"` // seconds, 0 = unlimited
	ShuffleOptions  bool       `json:"shuffleOptions"`
	ShareCode       string     `json:"shareCode"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// TimeLimit returns the per-question budget as a duration.
func (q Quiz) TimeLimit() time.Duration {
	return time.Duration(q.TimePerQuestion) * time.Second
}

// Validate reports every malformed question as a *QuizValidationError.
func (q Quiz) Validate() error {
	return ValidateQuestions(q.Questions)
}

// ValidateQuestions checks the structural invariants of a question list.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return &QuizValidationError{Issues: []QuestionIssue{{Index: -1, Reason: "quiz has no questions"}}}
	}
	var issues []QuestionIssue
	for i, question := range questions {
		if reason := question.problem(); reason != "" {
			issues = append(issues, QuestionIssue{Index: i, Reason: reason})
		}
	}
	if len(issues) > 0 {
		return &QuizValidationError{Issues: issues}
	}
	return nil
}

// NormalizeShareCode trims and uppercases a user-supplied share code.
func NormalizeShareCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IngestionResult is what a document parser hands over for quiz creation.
type IngestionResult struct {
	Success      bool       `json:"success"`
	Questions    []Question `json:"questions"`
	Warnings     []string   `json:"warnings"`
	ErrorMessage string     `json:"errorMessage"`
}
