package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	pgstore "quiz-session-service/internal/infra/postgres"
	pgmigrations "quiz-session-service/internal/infra/postgres/migrations"
	infraredis "quiz-session-service/internal/infra/redis"
)

func TestIndividualRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	store := pgstore.NewStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()
	quizzes := infraredis.NewQuizCache(redisClient, store, 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)

	opts := app.DefaultOptions()
	opts.AdvancePause = 0
	service := app.NewQuizService(sessions, quizzes, store, nil, opts, app.WithTickerFactory(silentTicker))
	defer service.Close()

	quiz, _, err := service.CreateQuiz(ctx, app.QuizDraft{Title: "Arithmetic", OwnerID: 10, OwnerName: "Owner", KeepOptionOrder: true}, sampleIngestion())
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}

	first, err := service.StartIndividual(ctx, 20, "Alice", app.ByShareCode(strings.ToLower(quiz.ShareCode)), domain.FullRun(true))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if first.Total != 2 {
		t.Fatalf("expected 2 questions, got %d", first.Total)
	}
	if _, err := service.StartIndividual(ctx, 20, "Alice", app.ByID(quiz.ID), domain.FullRun(true)); err != domain.ErrSessionExists {
		t.Fatalf("expected ErrSessionExists for a second run, got %v", err)
	}
	if n, _ := redisClient.Exists(ctx, "quiz:session:individual:20").Result(); n != 1 {
		t.Fatalf("expected a liveness key for the running session")
	}

	if _, err := service.AnswerIndividual(ctx, 20, 0, 1); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	if _, err := service.AnswerIndividual(ctx, 20, 1, 1); err != nil {
		t.Fatalf("answer q2: %v", err)
	}

	results, err := store.UserResults(ctx, 20)
	if err != nil {
		t.Fatalf("user results: %v", err)
	}
	if len(results) != 1 || results[0].CorrectAnswers != 1 || !results[0].Completed {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Answers[1] != 1 || len(results[0].Missed) != 1 {
		t.Fatalf("result detail not persisted: %+v", results[0])
	}

	stats, err := service.UserStatistics(ctx, 20)
	if err != nil {
		t.Fatalf("user statistics: %v", err)
	}
	if stats.QuizzesTaken != 1 || stats.BestScore != 50 {
		t.Fatalf("unexpected statistics: %+v", stats)
	}
	owner, err := service.UserStatistics(ctx, 10)
	if err != nil || owner.QuizzesCreated != 1 {
		t.Fatalf("expected owner quizzes_created=1, got %+v (%v)", owner, err)
	}

	summary, err := service.QuizStatistics(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("quiz statistics: %v", err)
	}
	if summary.Attempts != 1 || summary.Questions[1].WrongCount != 1 {
		t.Fatalf("unexpected quiz statistics: %+v", summary)
	}

	if err := service.DeleteQuiz(ctx, 10, quiz.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := service.LoadQuiz(ctx, app.ByID(quiz.ID)); err != domain.ErrQuizNotFound {
		t.Fatalf("expected deleted quiz to be gone from cache and store, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleIngestion() domain.IngestionResult {
	return domain.IngestionResult{
		Success: true,
		Questions: []domain.Question{
			{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
			{Text: "What is 2 + 3?", Options: []string{"5", "6"}, CorrectIndex: 0},
		},
	}
}

func silentTicker(time.Duration) (<-chan time.Time, func()) {
	return make(chan time.Time), func() {}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
