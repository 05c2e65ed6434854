package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-session-service/internal/domain"
)

const (
	uniqueViolation      = "23505"
	shareCodeConstraint  = "quizzes_share_code_key"
	quizColumns          = `id, owner_id, title, share_code, time_per_question, shuffle_options, data, created_at`
	resultColumns        = `id, quiz_id, participant_id, display_name, total_questions, correct_answers, completed, data, started_at, finished_at`
	userStatisticsColumn = `participant_id, display_name, quizzes_taken, questions_answered, correct_answers, quizzes_created, best_score, average_score, last_activity`
)

// Store keeps quizzes, results and statistics in Postgres. Question lists and
// per-run detail live in JSONB columns.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type resultDetail struct {
	QuestionIDs []string    `json:"questionIds"`
	Missed      []int       `json:"missed"`
	Skipped     []int       `json:"skipped"`
	Answers     map[int]int `json:"answers"`
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	raw, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO quizzes (`+quizColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    share_code = EXCLUDED.share_code,
    time_per_question = EXCLUDED.time_per_question,
    shuffle_options = EXCLUDED.shuffle_options,
    data = EXCLUDED.data`,
		quiz.ID, quiz.OwnerID, quiz.Title, domain.NormalizeShareCode(quiz.ShareCode), quiz.TimePerQuestion, quiz.ShuffleOptions, raw, quiz.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == shareCodeConstraint {
			return domain.ErrShareCodeTaken
		}
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

func (s *Store) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, quizID)
	return scanQuiz(row)
}

func (s *Store) LoadQuizByShareCode(ctx context.Context, code string) (domain.Quiz, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE share_code = $1`, domain.NormalizeShareCode(code))
	return scanQuiz(row)
}

func (s *Store) ListQuizzes(ctx context.Context, ownerID int64) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Quiz, 0)
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, quiz)
	}
	return out, rows.Err()
}

func (s *Store) DeleteQuiz(ctx context.Context, quizID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, quizID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func scanQuiz(row rowScanner) (domain.Quiz, error) {
	var (
		quiz domain.Quiz
		raw  []byte
	)
	err := row.Scan(&quiz.ID, &quiz.OwnerID, &quiz.Title, &quiz.ShareCode, &quiz.TimePerQuestion, &quiz.ShuffleOptions, &raw, &quiz.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	if err := json.Unmarshal(raw, &quiz.Questions); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}

func (s *Store) SaveResult(ctx context.Context, result domain.Result) error {
	raw, err := json.Marshal(resultDetail{
		QuestionIDs: result.QuestionIDs,
		Missed:      result.Missed,
		Skipped:     result.Skipped,
		Answers:     result.Answers,
	})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO results (`+resultColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		result.ID, result.QuizID, result.ParticipantID, result.DisplayName, result.TotalQuestions,
		result.CorrectAnswers, result.Completed, raw, result.StartedAt, result.FinishedAt)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *Store) QuizResults(ctx context.Context, quizID string) ([]domain.Result, error) {
	return s.queryResults(ctx, `SELECT `+resultColumns+` FROM results
WHERE quiz_id = $1 AND completed
ORDER BY correct_answers DESC, finished_at ASC`, quizID)
}

func (s *Store) UserResults(ctx context.Context, participantID int64) ([]domain.Result, error) {
	return s.queryResults(ctx, `SELECT `+resultColumns+` FROM results
WHERE participant_id = $1
ORDER BY finished_at DESC`, participantID)
}

func (s *Store) queryResults(ctx context.Context, query string, arg interface{}) ([]domain.Result, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Result, 0)
	for rows.Next() {
		var (
			r   domain.Result
			raw []byte
		)
		if err := rows.Scan(&r.ID, &r.QuizID, &r.ParticipantID, &r.DisplayName, &r.TotalQuestions,
			&r.CorrectAnswers, &r.Completed, &raw, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var detail resultDetail
		if err := json.Unmarshal(raw, &detail); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		r.QuestionIDs, r.Missed, r.Skipped, r.Answers = detail.QuestionIDs, detail.Missed, detail.Skipped, detail.Answers
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateUserStatistics folds update into the stored aggregate. The row is
// locked for the read-modify-write so concurrent finishes do not lose counts.
func (s *Store) UpdateUserStatistics(ctx context.Context, update domain.StatisticsUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin statistics tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Seed the row first so FOR UPDATE has something to lock.
	if _, err := tx.Exec(ctx, `INSERT INTO user_statistics (participant_id) VALUES ($1) ON CONFLICT DO NOTHING`, update.ParticipantID); err != nil {
		return fmt.Errorf("seed statistics: %w", err)
	}
	current, err := scanStatistics(tx.QueryRow(ctx,
		`SELECT `+userStatisticsColumn+` FROM user_statistics WHERE participant_id = $1 FOR UPDATE`, update.ParticipantID))
	if err != nil {
		return err
	}
	next := current.Apply(update)
	_, err = tx.Exec(ctx, `
UPDATE user_statistics SET
    display_name = $2,
    quizzes_taken = $3,
    questions_answered = $4,
    correct_answers = $5,
    quizzes_created = $6,
    best_score = $7,
    average_score = $8,
    last_activity = $9
WHERE participant_id = $1`,
		next.ParticipantID, next.DisplayName, next.QuizzesTaken, next.QuestionsAnswered, next.CorrectAnswers,
		next.QuizzesCreated, next.BestScore, next.AverageScore, next.LastActivity)
	if err != nil {
		return fmt.Errorf("update statistics: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) UserStatistics(ctx context.Context, participantID int64) (domain.UserStatistics, error) {
	return scanStatistics(s.pool.QueryRow(ctx,
		`SELECT `+userStatisticsColumn+` FROM user_statistics WHERE participant_id = $1`, participantID))
}

func scanStatistics(row rowScanner) (domain.UserStatistics, error) {
	var (
		stats domain.UserStatistics
		last  *time.Time
	)
	err := row.Scan(&stats.ParticipantID, &stats.DisplayName, &stats.QuizzesTaken, &stats.QuestionsAnswered,
		&stats.CorrectAnswers, &stats.QuizzesCreated, &stats.BestScore, &stats.AverageScore, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserStatistics{}, domain.ErrStatisticsNotFound
	}
	if err != nil {
		return domain.UserStatistics{}, fmt.Errorf("load statistics: %w", err)
	}
	if last != nil {
		stats.LastActivity = *last
	}
	return stats, nil
}
