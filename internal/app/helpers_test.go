package app_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

const waitTimeout = 2 * time.Second

// manualClock hands countdowns tick channels the test drives by hand.
type manualClock struct {
	created chan chan time.Time
}

func newManualClock() *manualClock {
	return &manualClock{created: make(chan chan time.Time, 64)}
}

func (m *manualClock) factory(time.Duration) (<-chan time.Time, func()) {
	ch := make(chan time.Time)
	m.created <- ch
	return ch, func() {}
}

// next returns the tick channel of the next countdown started.
func (m *manualClock) next(t *testing.T) chan time.Time {
	t.Helper()
	select {
	case ch := <-m.created:
		return ch
	case <-time.After(waitTimeout):
		t.Fatal("no countdown started")
		return nil
	}
}

// tick delivers n ticks to ch, failing if the countdown stops reading.
func tick(t *testing.T, ch chan time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case ch <- time.Now():
		case <-time.After(waitTimeout):
			t.Fatalf("countdown stopped after %d of %d ticks", i, n)
		}
	}
}

// waitFor skips events until one of kind arrives.
func waitFor(t *testing.T, events <-chan app.Event, kind app.EventKind) app.Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed waiting for %s", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

type harness struct {
	service *app.QuizService
	store   *memory.Store
	clock   *manualClock
}

func newHarness(t *testing.T, mutate func(*app.Options), quizzes ...domain.Quiz) *harness {
	t.Helper()
	opts := app.DefaultOptions()
	opts.StartDelay = 0
	opts.AdvancePause = 0
	opts.RevealPause = 0
	opts.FinishPause = 0
	if mutate != nil {
		mutate(&opts)
	}
	h := &harness{store: memory.NewStore(quizzes...), clock: newManualClock()}
	h.service = app.NewQuizService(memory.NewSessionStore(), h.store, h.store, nil, opts,
		app.WithTickerFactory(h.clock.factory),
		app.WithQuestionSetBuilder(app.NewQuestionSetBuilderWithSeed(7)),
		app.WithClock(func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }),
	)
	t.Cleanup(h.service.Close)
	return h
}

// makeQuiz builds n questions whose correct option is always index 0.
func makeQuiz(id string, n, timeLimit int) domain.Quiz {
	questions := make([]domain.Question, 0, n)
	for i := 1; i <= n; i++ {
		questions = append(questions, domain.Question{
			ID:           fmt.Sprintf("q%d", i),
			Text:         fmt.Sprintf("Question %d?", i),
			Options:      []string{fmt.Sprintf("right %d", i), "wrong a", "wrong b", "wrong c"},
			CorrectIndex: 0,
		})
	}
	return domain.Quiz{
		ID:              id,
		Title:           "Quiz " + id,
		Questions:       questions,
		OwnerID:         1,
		TimePerQuestion: timeLimit,
		ShareCode:       "CODE" + id,
	}
}

// correctDisplay returns the display index of the right answer in v.
func correctDisplay(t *testing.T, v app.QuestionView) int {
	t.Helper()
	for i, opt := range v.Options {
		if len(opt) > 5 && opt[:5] == "right" {
			return i
		}
	}
	require.Failf(t, "no correct option shown", "%+v", v)
	return -1
}

// wrongDisplay returns the display index of some wrong answer in v.
func wrongDisplay(t *testing.T, v app.QuestionView) int {
	t.Helper()
	for i, opt := range v.Options {
		if opt == "wrong a" {
			return i
		}
	}
	require.Failf(t, "no wrong option shown", "%+v", v)
	return -1
}

// drain collects events until none arrives for quiet.
func drain(events <-chan app.Event, quiet time.Duration) []app.Event {
	var got []app.Event
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-time.After(quiet):
			return got
		}
	}
}

// questionsShown counts question events per index.
func questionsShown(events []app.Event) map[int]int {
	shown := make(map[int]int)
	for _, ev := range events {
		if ev.Kind == app.EventQuestion {
			shown[ev.Question.Index]++
		}
	}
	return shown
}
