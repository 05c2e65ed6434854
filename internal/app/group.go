package app

import (
	"fmt"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// GroupPhase is the lifecycle state of a GroupSession.
type GroupPhase string

const (
	PhaseAwaitingMode  GroupPhase = "awaiting_mode"
	PhaseAwaitingInput GroupPhase = "awaiting_input"
	PhaseStarting      GroupPhase = "starting"
	PhaseCollecting    GroupPhase = "collecting"
	PhaseFinished      GroupPhase = "finished"
)

// GroupSession broadcasts one run to every participant in a chat.
type GroupSession struct {
	chatID    int64
	ownerID   int64
	quiz      domain.Quiz
	startedAt time.Time

	mu         sync.Mutex
	phase      GroupPhase
	awaiting   domain.SelectionMode
	settings   domain.RunSettings
	questions  []domain.PreparedQuestion
	index      int
	generation uint64
	open       bool
	answered   map[int64]struct{}
	scores     map[int64]*domain.ParticipantScore
	joined     []int64
}

// NewGroupSession creates a session that waits for its run settings.
func NewGroupSession(chatID, ownerID int64, quiz domain.Quiz, now func() time.Time) *GroupSession {
	if now == nil {
		now = time.Now
	}
	return &GroupSession{
		chatID:    chatID,
		ownerID:   ownerID,
		quiz:      quiz,
		startedAt: now(),
		phase:     PhaseAwaitingMode,
		answered:  make(map[int64]struct{}),
		scores:    make(map[int64]*domain.ParticipantScore),
	}
}

func (g *GroupSession) ChatID() int64 { return g.chatID }
func (g *GroupSession) OwnerID() int64 { return g.ownerID }
func (g *GroupSession) Quiz() domain.Quiz { return g.quiz }
func (g *GroupSession) StartedAt() time.Time { return g.startedAt }

// IsAuthorized reports whether participantID may advance or stop the run.
func (g *GroupSession) IsAuthorized(participantID int64) bool {
	return participantID == g.ownerID
}

func (g *GroupSession) Phase() GroupPhase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Settings returns the run settings fixed by Begin.
func (g *GroupSession) Settings() domain.RunSettings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settings
}

// AwaitInput moves the session into the waiting mode for range or random
// settings. Owner free text is then read as settings, not answers.
func (g *GroupSession) AwaitInput(mode domain.SelectionMode) error {
	if mode != domain.ModeRange && mode != domain.ModeRandom {
		return fmt.Errorf("%w: mode %q takes no input", domain.ErrInvalidSettings, mode)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseAwaitingMode && g.phase != PhaseAwaitingInput {
		return domain.ErrSessionStarted
	}
	g.phase = PhaseAwaitingInput
	g.awaiting = mode
	return nil
}

// Awaiting returns the mode whose input the session is waiting for.
func (g *GroupSession) Awaiting() (domain.SelectionMode, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseAwaitingInput {
		return "", false
	}
	return g.awaiting, true
}

// Begin fixes the question list and enters the starting phase. Participants
// may register while starting; answers and advances wait for Open. The
// returned generation identifies question 0.
func (g *GroupSession) Begin(settings domain.RunSettings, questions []domain.PreparedQuestion) (uint64, error) {
	if len(questions) == 0 {
		return 0, fmt.Errorf("%w: no questions selected", domain.ErrInvalidSettings)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseAwaitingMode && g.phase != PhaseAwaitingInput {
		return 0, domain.ErrSessionStarted
	}
	g.settings = settings
	g.questions = questions
	g.index = 0
	g.generation++
	g.phase = PhaseStarting
	g.awaiting = ""
	return g.generation, nil
}

// IsStarting reports whether gen still identifies the starting phase.
func (g *GroupSession) IsStarting(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase == PhaseStarting && gen == g.generation
}

// Open presents the pending question of generation gen. Stale or repeated
// calls return false, so each question is presented at most once.
func (g *GroupSession) Open(gen uint64) (QuestionView, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseStarting && g.phase != PhaseCollecting {
		return QuestionView{}, false
	}
	if g.open || gen != g.generation || g.index >= len(g.questions) {
		return QuestionView{}, false
	}
	g.phase = PhaseCollecting
	g.open = true
	return g.viewLocked(), true
}

// AddParticipant registers id on first sight. Existing tallies are kept.
func (g *GroupSession) AddParticipant(id int64, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registerLocked(id, name)
}

// HasAnswered reports whether id answered the current question.
func (g *GroupSession) HasAnswered(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.answered[id]
	return ok
}

// AnsweredCount returns how many participants answered the current question.
func (g *GroupSession) AnsweredCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.answered)
}

// Answer records one answer per participant per question. Option is a
// display index.
func (g *GroupSession) Answer(id int64, name string, questionIndex, option int) (AnswerOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkLocked(questionIndex); err != nil {
		return AnswerOutcome{}, err
	}
	if _, ok := g.answered[id]; ok {
		return AnswerOutcome{}, domain.ErrAlreadyAnswered
	}
	q := g.questions[g.index]
	canonical, ok := q.Canonical(option)
	if !ok {
		return AnswerOutcome{}, domain.ErrInvalidOption
	}

	score := g.registerLocked(id, name)
	g.answered[id] = struct{}{}
	score.Answered++
	correct := canonical == q.CorrectIndex
	if correct {
		score.Correct++
	}
	return AnswerOutcome{
		QuestionIndex: g.index,
		Correct:       correct,
		CorrectOption: q.CorrectDisplayIndex(),
		CorrectAnswer: q.CorrectAnswer(),
		More:          g.index+1 < len(g.questions),
		Answered:      len(g.answered),
	}, nil
}

// Advance closes fromIndex and moves on. A second caller racing for the
// same index gets ErrQuestionClosed and changes nothing.
func (g *GroupSession) Advance(fromIndex int) (Reveal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkLocked(fromIndex); err != nil {
		return Reveal{}, err
	}
	return g.closeLocked(), nil
}

// Expire closes the current question if gen is still live and returns what
// should be revealed.
func (g *GroupSession) Expire(gen uint64) (Reveal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseCollecting || g.index >= len(g.questions) {
		return Reveal{}, domain.ErrNoCurrentQuestion
	}
	if gen != g.generation {
		return Reveal{}, domain.ErrQuestionClosed
	}
	if !g.open {
		return Reveal{}, domain.ErrNoCurrentQuestion
	}
	return g.closeLocked(), nil
}

// IsLive reports whether gen still identifies the open question.
func (g *GroupSession) IsLive(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.collectingLocked() && gen == g.generation
}

// Current returns the open question.
func (g *GroupSession) Current() (QuestionView, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.collectingLocked() {
		return QuestionView{}, false
	}
	return g.viewLocked(), true
}

// Stop finishes the run. Pending timers become inert.
func (g *GroupSession) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseFinished {
		g.phase = PhaseFinished
		g.generation++
	}
}

// Scores returns participant tallies in join order.
func (g *GroupSession) Scores() []domain.ParticipantScore {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.ParticipantScore, 0, len(g.joined))
	for _, id := range g.joined {
		out = append(out, *g.scores[id])
	}
	return out
}

// Leaderboard ranks every registered participant.
func (g *GroupSession) Leaderboard() []domain.LeaderboardEntry {
	return BuildLeaderboard(g.Scores())
}

func (g *GroupSession) collectingLocked() bool {
	return g.phase == PhaseCollecting && g.open && g.index < len(g.questions)
}

// A stale index is a lost race; a pending question is not askable yet.
func (g *GroupSession) checkLocked(questionIndex int) error {
	if g.phase != PhaseCollecting || g.index >= len(g.questions) {
		return domain.ErrNoCurrentQuestion
	}
	if questionIndex != g.index {
		return domain.ErrQuestionClosed
	}
	if !g.open {
		return domain.ErrNoCurrentQuestion
	}
	return nil
}

func (g *GroupSession) viewLocked() QuestionView {
	view := newQuestionView(g.questions[g.index], g.index, len(g.questions), g.quiz.TimePerQuestion, g.generation)
	view.Answered = len(g.answered)
	return view
}

func (g *GroupSession) closeLocked() Reveal {
	q := g.questions[g.index]
	reveal := Reveal{
		QuestionIndex: g.index,
		CorrectOption: q.CorrectDisplayIndex(),
		CorrectAnswer: q.CorrectAnswer(),
		Answered:      len(g.answered),
	}
	reveal.More = g.advanceLocked()
	reveal.Generation = g.generation
	return reveal
}

func (g *GroupSession) advanceLocked() bool {
	g.index++
	g.generation++
	g.open = false
	g.answered = make(map[int64]struct{})
	if g.index >= len(g.questions) {
		g.phase = PhaseFinished
		return false
	}
	return true
}

func (g *GroupSession) registerLocked(id int64, name string) *domain.ParticipantScore {
	if score, ok := g.scores[id]; ok {
		return score
	}
	score := &domain.ParticipantScore{ParticipantID: id, DisplayName: name}
	g.scores[id] = score
	g.joined = append(g.joined, id)
	return score
}
