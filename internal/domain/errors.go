package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound is returned when no live session exists for a key.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionExists is returned when a key already owns a live session.
	ErrSessionExists = errors.New("quiz session already active")
	// ErrSessionStarted is returned when run settings arrive after questions were fixed.
	ErrSessionStarted = errors.New("quiz session already started")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrStatisticsNotFound indicates a participant has no recorded activity.
	ErrStatisticsNotFound = errors.New("statistics not found")
	// ErrQuestionClosed is returned for submissions aimed at a question that already advanced.
	ErrQuestionClosed = errors.New("question closed")
	// ErrAlreadyAnswered is returned when a participant answers the same question twice.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrNoCurrentQuestion is returned when the session is not collecting answers.
	ErrNoCurrentQuestion = errors.New("no current question")
	// ErrInvalidOption indicates the chosen option index is out of range.
	ErrInvalidOption = errors.New("option not found")
	// ErrInvalidSettings indicates run settings that do not fit the quiz.
	ErrInvalidSettings = errors.New("invalid run settings")
	// ErrInvalidQuiz indicates a quiz that breaks its structural invariants.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrNotAuthorized is returned when a non-owner attempts an owner action.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrNotAwaitingInput is returned when free-text settings arrive outside the waiting mode.
	ErrNotAwaitingInput = errors.New("session is not awaiting input")
	// ErrShareCodeTaken is returned by stores when a share code collides.
	ErrShareCodeTaken = errors.New("share code already in use")
)

// IsRace reports whether err is an expected rejection caused by concurrent
// submissions rather than bad input.
func IsRace(err error) bool {
	return errors.Is(err, ErrQuestionClosed) ||
		errors.Is(err, ErrAlreadyAnswered) ||
		errors.Is(err, ErrNoCurrentQuestion)
}

// QuestionIssue describes one malformed question.
type QuestionIssue struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// QuizValidationError lists every malformed question found while building a quiz.
type QuizValidationError struct {
	Issues []QuestionIssue
}

func (e *QuizValidationError) Error() string {
	if len(e.Issues) == 0 {
		return ErrInvalidQuiz.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Index < 0 {
			parts = append(parts, issue.Reason)
			continue
		}
		parts = append(parts, fmt.Sprintf("question %d: %s", issue.Index+1, issue.Reason))
	}
	return ErrInvalidQuiz.Error() + ": " + strings.Join(parts, "; ")
}

func (e *QuizValidationError) Unwrap() error {
	return ErrInvalidQuiz
}
