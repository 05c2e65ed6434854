package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	questions := []domain.PreparedQuestion{domain.Prepare(sampleQuiz().Questions[0])}
	individual := app.NewIndividualSession(7, "Alice", sampleQuiz(), questions, nil)
	if err := store.CreateIndividual(individual); err != nil {
		t.Fatalf("create individual: %v", err)
	}
	if !mr.Exists("quiz:session:individual:7") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("quiz:session:individual:7"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}

	group := app.NewGroupSession(-100, 7, sampleQuiz(), nil)
	if err := store.CreateGroup(group); err != nil {
		t.Fatalf("create group: %v", err)
	}
	if !mr.Exists("quiz:session:group:-100") {
		t.Fatalf("expected group key to be set")
	}

	store.EndIndividual(7, individual)
	store.EndGroup(-100, group)
	if mr.Exists("quiz:session:individual:7") || mr.Exists("quiz:session:group:-100") {
		t.Fatalf("expected redis keys to be removed")
	}
}

func TestSessionStoreKeepsKeyWhenEndIsStale(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	live := app.NewGroupSession(-5, 1, sampleQuiz(), nil)
	stale := app.NewGroupSession(-5, 1, sampleQuiz(), nil)
	if err := store.CreateGroup(live); err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.EndGroup(-5, stale) {
		t.Fatalf("expected stale end to be ignored")
	}
	if !mr.Exists("quiz:session:group:-5") {
		t.Fatalf("expected key to survive stale end")
	}
}

func TestSessionStoreTouchExtendsMarker(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	group := app.NewGroupSession(-9, 1, sampleQuiz(), nil)
	if err := store.CreateGroup(group); err != nil {
		t.Fatalf("create: %v", err)
	}

	mr.FastForward(40 * time.Second)
	store.Touch(app.GroupKey(-9))
	if ttl := mr.TTL("quiz:session:group:-9"); ttl != time.Minute {
		t.Fatalf("expected ttl reset to 1m, got %v", ttl)
	}
	mr.FastForward(40 * time.Second)
	if !mr.Exists("quiz:session:group:-9") {
		t.Fatalf("expected touched key to outlive the first ttl")
	}

	// Touching an ended session does not resurrect its marker.
	store.EndGroup(-9, group)
	store.Touch(app.GroupKey(-9))
	if mr.Exists("quiz:session:group:-9") {
		t.Fatalf("expected no key after end")
	}
}

func TestSessionMarkerRefreshedOnEveryQuestion(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	quiz := sampleQuiz()
	quiz.Questions = append(quiz.Questions, domain.Question{ID: "q2", Text: "What is 3 + 3?", Options: []string{"5", "6"}, CorrectIndex: 1})
	store := memory.NewStore(quiz)
	opts := app.DefaultOptions()
	opts.AdvancePause = 0
	silent := func(time.Duration) (<-chan time.Time, func()) { return make(chan time.Time), func() {} }
	service := app.NewQuizService(NewSessionStore(newClient(mr), time.Minute), store, store, nil, opts, app.WithTickerFactory(silent))
	defer service.Close()

	ctx := context.Background()
	if _, err := service.StartIndividual(ctx, 7, "Alice", app.ByID(quiz.ID), domain.FullRun(false)); err != nil {
		t.Fatalf("start: %v", err)
	}
	mr.FastForward(50 * time.Second)
	if _, err := service.AnswerIndividual(ctx, 7, 0, 1); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ttl := mr.TTL("quiz:session:individual:7"); ttl != time.Minute {
		t.Fatalf("expected presenting q2 to refresh the ttl, got %v", ttl)
	}
}
