package app

import (
	"context"
	"fmt"

	"quiz-session-service/internal/domain"
)

// Actor is a chat member issuing a command. Admin is resolved by the caller
// against the chat's membership; the engine only reads the flag.
type Actor struct {
	ID    int64
	Name  string
	Admin bool
}

// GroupStatus is a snapshot of a group session for presentation.
type GroupStatus struct {
	ChatID      int64                     `json:"chatId"`
	QuizID      string                    `json:"quizId"`
	Title       string                    `json:"title"`
	OwnerID     int64                     `json:"ownerId"`
	Phase       GroupPhase                `json:"phase"`
	Total       int                       `json:"total"`
	Awaiting    domain.SelectionMode      `json:"awaiting,omitempty"`
	Question    *QuestionView             `json:"question,omitempty"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

// StartGroup opens a group session for chatID. Short quizzes run in full
// right away; longer ones wait for the owner to pick a mode.
func (s *QuizService) StartGroup(ctx context.Context, chatID int64, owner Actor, ref QuizRef) (GroupStatus, error) {
	if _, ok := s.registry.Group(chatID); ok {
		return GroupStatus{}, domain.ErrSessionExists
	}
	quiz, err := s.LoadQuiz(ctx, ref)
	if err != nil {
		return GroupStatus{}, err
	}
	if err := quiz.Validate(); err != nil {
		return GroupStatus{}, err
	}

	g := NewGroupSession(chatID, owner.ID, quiz, s.now)
	if err := s.registry.CreateGroup(g); err != nil {
		return GroupStatus{}, err
	}
	s.log.Info("group session created", "chat", chatID, "owner", owner.ID, "quiz_id", quiz.ID, "questions", len(quiz.Questions))

	if len(quiz.Questions) <= s.opts.GroupModeThreshold {
		if err := s.beginGroup(g, domain.FullRun(true)); err != nil {
			s.registry.EndGroup(chatID, g)
			return GroupStatus{}, err
		}
	} else {
		s.events.Publish(GroupKey(chatID), Event{Kind: EventModePrompt, Prompt: &Prompt{Total: len(quiz.Questions), MaxCount: s.maxCount(quiz)}})
	}
	return s.groupStatus(g), nil
}

// ChooseGroupMode applies the owner's mode choice. Range and random modes
// switch the session into waiting for free-text input.
func (s *QuizService) ChooseGroupMode(ctx context.Context, chatID int64, actor Actor, mode domain.SelectionMode) (GroupStatus, error) {
	g, err := s.authorizedGroup(chatID, actor)
	if err != nil {
		return GroupStatus{}, err
	}
	switch mode {
	case domain.ModeFull:
		if err := s.beginGroup(g, domain.FullRun(true)); err != nil {
			return GroupStatus{}, err
		}
	case domain.ModeRange, domain.ModeRandom:
		if err := g.AwaitInput(mode); err != nil {
			return GroupStatus{}, err
		}
		quiz := g.Quiz()
		s.events.Publish(GroupKey(chatID), Event{Kind: EventInputPrompt, Prompt: &Prompt{Mode: mode, Total: len(quiz.Questions), MaxCount: s.maxCount(quiz)}})
	default:
		return GroupStatus{}, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidSettings, mode)
	}
	return s.groupStatus(g), nil
}

// GroupInput interprets owner text while the session waits for settings.
// Text from anyone else gets ErrNotAuthorized and changes nothing. A parse
// failure keeps the session waiting so the owner can retry.
func (s *QuizService) GroupInput(ctx context.Context, chatID int64, actor Actor, text string) (GroupStatus, error) {
	g, ok := s.registry.Group(chatID)
	if !ok {
		return GroupStatus{}, domain.ErrSessionNotFound
	}
	mode, waiting := g.Awaiting()
	if !waiting {
		return GroupStatus{}, domain.ErrNotAwaitingInput
	}
	if !g.IsAuthorized(actor.ID) {
		return GroupStatus{}, domain.ErrNotAuthorized
	}

	quiz := g.Quiz()
	settings, err := ParseSettingsInput(mode, text, len(quiz.Questions), s.opts.MaxRandomCount, true)
	if err != nil {
		s.events.Publish(GroupKey(chatID), Event{Kind: EventInputPrompt, Prompt: &Prompt{
			Mode: mode, Total: len(quiz.Questions), MaxCount: s.maxCount(quiz), Problem: err.Error(),
		}})
		return GroupStatus{}, err
	}
	if err := s.beginGroup(g, settings); err != nil {
		return GroupStatus{}, err
	}
	return s.groupStatus(g), nil
}

// RegisterParticipant adds a participant to the chat's scoreboard.
func (s *QuizService) RegisterParticipant(chatID int64, participantID int64, displayName string) error {
	g, ok := s.registry.Group(chatID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	g.AddParticipant(participantID, displayName)
	return nil
}

// AnswerGroup records actor's answer to questionIndex. Duplicate and stale
// answers are rejected without touching any tally.
func (s *QuizService) AnswerGroup(ctx context.Context, chatID int64, actor Actor, questionIndex, option int) (AnswerOutcome, error) {
	g, ok := s.registry.Group(chatID)
	if !ok {
		return AnswerOutcome{}, domain.ErrSessionNotFound
	}
	out, err := g.Answer(actor.ID, actor.Name, questionIndex, option)
	if err != nil {
		s.logRejection("group answer rejected", err, "chat", chatID, "participant", actor.ID, "question", questionIndex)
		return AnswerOutcome{}, err
	}
	s.events.Publish(GroupKey(chatID), Event{Kind: EventAnswerAccepted, Answered: out.Answered})
	return out, nil
}

// NextGroup advances past fromIndex on behalf of the owner or an admin.
// If the timer already advanced it, ErrQuestionClosed is returned.
func (s *QuizService) NextGroup(ctx context.Context, chatID int64, actor Actor, fromIndex int) (Reveal, error) {
	g, err := s.authorizedGroup(chatID, actor)
	if err != nil {
		return Reveal{}, err
	}
	reveal, err := g.Advance(fromIndex)
	if err != nil {
		s.logRejection("group advance rejected", err, "chat", chatID, "question", fromIndex)
		return Reveal{}, err
	}
	key := GroupKey(chatID)
	s.timers.Cancel(key)
	s.events.Publish(key, Event{Kind: EventReveal, Reveal: &reveal})
	if reveal.More {
		s.presentGroup(g, reveal.Generation)
	} else {
		s.finishGroup(g, false)
	}
	return reveal, nil
}

// StopGroup ends the chat's session early and returns the final leaderboard.
func (s *QuizService) StopGroup(ctx context.Context, chatID int64, actor Actor) ([]domain.LeaderboardEntry, error) {
	g, err := s.authorizedGroup(chatID, actor)
	if err != nil {
		return nil, err
	}
	g.Stop()
	board, ok := s.finishGroup(g, true)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return board, nil
}

// RestartGroup replaces any live session in chatID with a fresh run of ref.
func (s *QuizService) RestartGroup(ctx context.Context, chatID int64, actor Actor, ref QuizRef) (GroupStatus, error) {
	if g, ok := s.registry.Group(chatID); ok {
		if !s.authorized(g, actor) {
			return GroupStatus{}, domain.ErrNotAuthorized
		}
		g.Stop()
		s.finishGroup(g, true)
	}
	return s.StartGroup(ctx, chatID, actor, ref)
}

// GroupSnapshot returns the chat's current state and running leaderboard.
func (s *QuizService) GroupSnapshot(chatID int64) (GroupStatus, error) {
	g, ok := s.registry.Group(chatID)
	if !ok {
		return GroupStatus{}, domain.ErrSessionNotFound
	}
	return s.groupStatus(g), nil
}

func (s *QuizService) beginGroup(g *GroupSession, settings domain.RunSettings) error {
	questions, err := s.builder.Build(g.Quiz(), settings)
	if err != nil {
		return err
	}
	gen, err := g.Begin(settings, questions)
	if err != nil {
		return err
	}
	s.log.Info("group session started", "chat", g.ChatID(), "mode", settings.Mode, "questions", len(questions))
	s.readyCountdown(g, gen)
	return nil
}

// readyCountdown ticks down the start delay while participants register,
// then opens question 0.
func (s *QuizService) readyCountdown(g *GroupSession, gen uint64) {
	key := GroupKey(g.ChatID())
	budget := s.ticksFor(s.opts.StartDelay)
	if budget <= 0 {
		s.events.Publish(key, Event{Kind: EventStarting})
		s.presentGroup(g, gen)
		return
	}
	s.timers.Start(key, Countdown{
		Generation: gen,
		Budget:     budget,
		Live:       g.IsStarting,
	}, func(ev TimerEvent) {
		switch ev.Kind {
		case TimerTick:
			s.events.Publish(key, Event{Kind: EventStarting, StartsIn: ev.Remaining})
		case TimerExpired:
			s.presentGroup(g, ev.Generation)
		}
	})
}

// presentGroup opens the question of generation gen. Stale calls, such as
// a delayed present racing a manual advance, do nothing.
func (s *QuizService) presentGroup(g *GroupSession, gen uint64) {
	if live, ok := s.registry.Group(g.ChatID()); !ok || live != g {
		return
	}
	view, ok := g.Open(gen)
	if !ok {
		return
	}
	key := GroupKey(g.ChatID())
	s.touch(key)
	s.events.Publish(key, Event{Kind: EventQuestion, Question: &view})
	s.timers.Start(key, Countdown{
		Index:      view.Index,
		Generation: view.Generation,
		Budget:     view.TimeLimit,
		Live:       g.IsLive,
	}, func(ev TimerEvent) { s.onGroupTimer(g, ev) })
}

func (s *QuizService) onGroupTimer(g *GroupSession, ev TimerEvent) {
	key := GroupKey(g.ChatID())
	switch ev.Kind {
	case TimerTick:
		s.events.Publish(key, Event{Kind: EventTick, Remaining: ev.Remaining, Answered: g.AnsweredCount()})
	case TimerExpired:
		reveal, err := g.Expire(ev.Generation)
		if err != nil {
			s.log.Debug("stale expiry ignored", "session", key.String(), "question", ev.Index)
			return
		}
		s.events.Publish(key, Event{Kind: EventReveal, Reveal: &reveal})
		if reveal.More {
			s.after(s.opts.RevealPause, func() { s.presentGroup(g, reveal.Generation) })
			return
		}
		s.after(s.opts.FinishPause, func() { s.finishGroup(g, false) })
	}
}

func (s *QuizService) finishGroup(g *GroupSession, stopped bool) ([]domain.LeaderboardEntry, bool) {
	if !s.registry.EndGroup(g.ChatID(), g) {
		return nil, false
	}
	g.Stop()
	key := GroupKey(g.ChatID())
	s.timers.Cancel(key)

	board := g.Leaderboard()
	s.log.Info("group session finished", "chat", g.ChatID(), "quiz_id", g.Quiz().ID, "participants", len(board), "stopped", stopped)
	s.events.Publish(key, Event{Kind: EventFinished, Leaderboard: board, Stopped: stopped})
	return board, true
}

func (s *QuizService) authorizedGroup(chatID int64, actor Actor) (*GroupSession, error) {
	g, ok := s.registry.Group(chatID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !s.authorized(g, actor) {
		return nil, domain.ErrNotAuthorized
	}
	return g, nil
}

func (s *QuizService) authorized(g *GroupSession, actor Actor) bool {
	return g.IsAuthorized(actor.ID) || actor.Admin
}

func (s *QuizService) maxCount(quiz domain.Quiz) int {
	limit := len(quiz.Questions)
	if s.opts.MaxRandomCount > 0 && s.opts.MaxRandomCount < limit {
		limit = s.opts.MaxRandomCount
	}
	return limit
}

func (s *QuizService) groupStatus(g *GroupSession) GroupStatus {
	quiz := g.Quiz()
	status := GroupStatus{
		ChatID:      g.ChatID(),
		QuizID:      quiz.ID,
		Title:       quiz.Title,
		OwnerID:     g.OwnerID(),
		Phase:       g.Phase(),
		Total:       len(quiz.Questions),
		Leaderboard: g.Leaderboard(),
	}
	if mode, ok := g.Awaiting(); ok {
		status.Awaiting = mode
	}
	if view, ok := g.Current(); ok {
		status.Question = &view
		status.Total = view.Total
	}
	return status
}
