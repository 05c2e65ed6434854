package app

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"quiz-session-service/internal/domain"
)

// StartIndividual prepares a run of ref for participantID and presents its
// first question. Nothing is registered when the quiz or settings are invalid.
func (s *QuizService) StartIndividual(ctx context.Context, participantID int64, displayName string, ref QuizRef, settings domain.RunSettings) (QuestionView, error) {
	if _, ok := s.registry.Individual(participantID); ok {
		return QuestionView{}, domain.ErrSessionExists
	}
	quiz, err := s.LoadQuiz(ctx, ref)
	if err != nil {
		return QuestionView{}, err
	}
	if err := quiz.Validate(); err != nil {
		return QuestionView{}, err
	}
	questions, err := s.builder.Build(quiz, settings)
	if err != nil {
		return QuestionView{}, err
	}

	sess := NewIndividualSession(participantID, displayName, quiz, questions, s.now)
	if err := s.registry.CreateIndividual(sess); err != nil {
		return QuestionView{}, err
	}
	s.log.Info("individual session started",
		"participant", participantID, "quiz_id", quiz.ID, "mode", settings.Mode, "questions", len(questions))

	view, ok := sess.Open(0)
	if !ok {
		return QuestionView{}, domain.ErrNoCurrentQuestion
	}
	s.showIndividual(sess, view)
	return view, nil
}

// CurrentIndividual returns the question participantID is answering.
func (s *QuizService) CurrentIndividual(participantID int64) (QuestionView, error) {
	sess, ok := s.registry.Individual(participantID)
	if !ok {
		return QuestionView{}, domain.ErrSessionNotFound
	}
	view, ok := sess.Current()
	if !ok {
		return QuestionView{}, domain.ErrNoCurrentQuestion
	}
	return view, nil
}

// AnswerIndividual records option for questionIndex. Answers aimed at a
// question that already closed are rejected with ErrQuestionClosed.
func (s *QuizService) AnswerIndividual(ctx context.Context, participantID int64, questionIndex, option int) (AnswerOutcome, error) {
	sess, ok := s.registry.Individual(participantID)
	if !ok {
		return AnswerOutcome{}, domain.ErrSessionNotFound
	}
	out, err := sess.Answer(questionIndex, option)
	if err != nil {
		s.logRejection("individual answer rejected", err, "participant", participantID, "question", questionIndex)
		return AnswerOutcome{}, err
	}
	s.afterIndividualStep(sess, EventFeedback, out)
	return out, nil
}

// SkipIndividual marks the current question as missed.
func (s *QuizService) SkipIndividual(ctx context.Context, participantID int64, questionIndex int) (AnswerOutcome, error) {
	sess, ok := s.registry.Individual(participantID)
	if !ok {
		return AnswerOutcome{}, domain.ErrSessionNotFound
	}
	out, err := sess.Skip(questionIndex)
	if err != nil {
		s.logRejection("individual skip rejected", err, "participant", participantID, "question", questionIndex)
		return AnswerOutcome{}, err
	}
	s.afterIndividualStep(sess, EventTimeout, out)
	return out, nil
}

// StopIndividual ends a run early and returns its partial result.
func (s *QuizService) StopIndividual(ctx context.Context, participantID int64) (domain.Result, error) {
	sess, ok := s.registry.Individual(participantID)
	if !ok {
		return domain.Result{}, domain.ErrSessionNotFound
	}
	sess.Stop()
	result, ok := s.finishIndividual(sess, true)
	if !ok {
		return domain.Result{}, domain.ErrSessionNotFound
	}
	return result, nil
}

func (s *QuizService) afterIndividualStep(sess *IndividualSession, kind EventKind, out AnswerOutcome) {
	key := IndividualKey(sess.ParticipantID())
	s.timers.Cancel(key)
	s.events.Publish(key, Event{Kind: kind, Outcome: &out})
	gen := out.Generation
	s.after(s.opts.AdvancePause, func() { s.presentIndividual(sess, gen) })
}

// presentIndividual opens the question of generation gen, or finishes the
// run once nothing is left. Stale calls do nothing.
func (s *QuizService) presentIndividual(sess *IndividualSession, gen uint64) {
	if sess.Finished() {
		s.finishIndividual(sess, false)
		return
	}
	view, ok := sess.Open(gen)
	if !ok {
		return
	}
	s.showIndividual(sess, view)
}

func (s *QuizService) showIndividual(sess *IndividualSession, view QuestionView) {
	key := IndividualKey(sess.ParticipantID())
	s.touch(key)
	s.events.Publish(key, Event{Kind: EventQuestion, Question: &view})
	s.timers.Start(key, Countdown{
		Index:      view.Index,
		Generation: view.Generation,
		Budget:     view.TimeLimit,
		Live:       sess.IsLive,
	}, func(ev TimerEvent) { s.onIndividualTimer(sess, ev) })
}

func (s *QuizService) onIndividualTimer(sess *IndividualSession, ev TimerEvent) {
	key := IndividualKey(sess.ParticipantID())
	switch ev.Kind {
	case TimerTick:
		s.events.Publish(key, Event{Kind: EventTick, Remaining: ev.Remaining})
	case TimerExpired:
		out, err := sess.Expire(ev.Generation)
		if err != nil {
			s.log.Debug("stale expiry ignored", "session", key.String(), "question", ev.Index)
			return
		}
		s.events.Publish(key, Event{Kind: EventTimeout, Outcome: &out})
		gen := out.Generation
		s.after(s.opts.AdvancePause, func() { s.presentIndividual(sess, gen) })
	}
}

// finishIndividual evicts sess and materializes its result. Only the first
// caller for a given session gets ok=true.
func (s *QuizService) finishIndividual(sess *IndividualSession, stopped bool) (domain.Result, bool) {
	key := IndividualKey(sess.ParticipantID())
	if !s.registry.EndIndividual(sess.ParticipantID(), sess) {
		return domain.Result{}, false
	}
	s.timers.Cancel(key)

	result := sess.Result()
	result.ID = uuid.NewString()
	s.log.Info("individual session finished",
		"participant", result.ParticipantID, "quiz_id", result.QuizID,
		"correct", result.CorrectAnswers, "total", result.TotalQuestions, "completed", result.Completed)

	s.saveResult(result)
	s.updateStatistics(domain.StatisticsUpdate{
		ParticipantID: result.ParticipantID,
		DisplayName:   result.DisplayName,
		Result:        &result,
		At:            s.now(),
	})
	s.events.Publish(key, Event{Kind: EventFinished, Result: &result, Stopped: stopped})
	return result, true
}

func (s *QuizService) logRejection(msg string, err error, keysAndValues ...interface{}) {
	if domain.IsRace(err) || errors.Is(err, domain.ErrInvalidOption) {
		s.log.Debug(msg, append(keysAndValues, "reason", err)...)
		return
	}
	s.log.Warn(msg, append(keysAndValues, "error", err)...)
}
