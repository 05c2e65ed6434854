package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"quiz-session-service/internal/domain"
)

const (
	quizColumns   = `id, owner_id, title, share_code, time_per_question, shuffle_options, questions_json, created_at_unix_ms`
	resultColumns = `id, quiz_id, participant_id, display_name, total_questions, correct_answers, completed, detail_json, started_at_unix_ms, finished_at_unix_ms`
	statsColumns  = `participant_id, display_name, quizzes_taken, questions_answered, correct_answers, quizzes_created, best_score, average_score, last_activity_unix_ms`
)

// Store is a single-file backend for local runs. It implements the same
// quiz and result contracts as the Postgres store.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = "quiz.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &Store{db: db}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type resultDetail struct {
	QuestionIDs []string    `json:"questionIds"`
	Missed      []int       `json:"missed"`
	Skipped     []int       `json:"skipped"`
	Answers     map[int]int `json:"answers"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (s *Store) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	raw, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quizzes (`+quizColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			share_code = excluded.share_code,
			time_per_question = excluded.time_per_question,
			shuffle_options = excluded.shuffle_options,
			questions_json = excluded.questions_json`,
		quiz.ID, quiz.OwnerID, quiz.Title, domain.NormalizeShareCode(quiz.ShareCode), quiz.TimePerQuestion, quiz.ShuffleOptions, string(raw), toMillis(quiz.CreatedAt))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return domain.ErrShareCodeTaken
		}
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

func (s *Store) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return scanQuiz(s.db.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = ?`, quizID))
}

func (s *Store) LoadQuizByShareCode(ctx context.Context, code string) (domain.Quiz, error) {
	return scanQuiz(s.db.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE share_code = ?`, domain.NormalizeShareCode(code)))
}

func (s *Store) ListQuizzes(ctx context.Context, ownerID int64) ([]domain.Quiz, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE owner_id = ? ORDER BY created_at_unix_ms DESC`, ownerID)
	if err != nil {
		return nil, err
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM quizzes WHERE id = ?`, quizID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuizNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE quiz_id = ?`, quizID); err != nil {
		return err
	}
	return tx.Commit()
}

func scanQuiz(row rowScanner) (domain.Quiz, error) {
	var (
		quiz      domain.Quiz
		raw       string
		createdMs int64
	)
	err := row.Scan(&quiz.ID, &quiz.OwnerID, &quiz.Title, &quiz.ShareCode, &quiz.TimePerQuestion, &quiz.ShuffleOptions, &raw, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &quiz.Questions); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.CreatedAt = fromMillis(createdMs)
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
	_, err = s.db.ExecContext(ctx, `INSERT INTO results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.QuizID, result.ParticipantID, result.DisplayName, result.TotalQuestions, result.CorrectAnswers,
		result.Completed, string(raw), toMillis(result.StartedAt), toMillis(result.FinishedAt))
	return err
}

func (s *Store) QuizResults(ctx context.Context, quizID string) ([]domain.Result, error) {
	return s.queryResults(ctx, `SELECT `+resultColumns+` FROM results
		WHERE quiz_id = ? AND completed = 1
		ORDER BY correct_answers DESC, finished_at_unix_ms ASC`, quizID)
}

func (s *Store) UserResults(ctx context.Context, participantID int64) ([]domain.Result, error) {
	return s.queryResults(ctx, `SELECT `+resultColumns+` FROM results
		WHERE participant_id = ?
		ORDER BY finished_at_unix_ms DESC`, participantID)
}

func (s *Store) queryResults(ctx context.Context, query string, arg any) ([]domain.Result, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Result, 0)
	for rows.Next() {
		var (
			r                   domain.Result
			raw                 string
			startedMs, finishMs int64
		)
		if err := rows.Scan(&r.ID, &r.QuizID, &r.ParticipantID, &r.DisplayName, &r.TotalQuestions,
			&r.CorrectAnswers, &r.Completed, &raw, &startedMs, &finishMs); err != nil {
			return nil, err
		}
		var detail resultDetail
		if err := json.Unmarshal([]byte(raw), &detail); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		r.QuestionIDs, r.Missed, r.Skipped, r.Answers = detail.QuestionIDs, detail.Missed, detail.Skipped, detail.Answers
		r.StartedAt, r.FinishedAt = fromMillis(startedMs), fromMillis(finishMs)
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateUserStatistics folds update into the stored aggregate inside one
// transaction; the single connection serializes concurrent writers.
func (s *Store) UpdateUserStatistics(ctx context.Context, update domain.StatisticsUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := scanStatistics(tx.QueryRowContext(ctx, `SELECT `+statsColumns+` FROM user_statistics WHERE participant_id = ?`, update.ParticipantID))
	if err != nil && !errors.Is(err, domain.ErrStatisticsNotFound) {
		return err
	}
	next := current.Apply(update)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_statistics (`+statsColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(participant_id) DO UPDATE SET
			display_name = excluded.display_name,
			quizzes_taken = excluded.quizzes_taken,
			questions_answered = excluded.questions_answered,
			correct_answers = excluded.correct_answers,
			quizzes_created = excluded.quizzes_created,
			best_score = excluded.best_score,
			average_score = excluded.average_score,
			last_activity_unix_ms = excluded.last_activity_unix_ms`,
		next.ParticipantID, next.DisplayName, next.QuizzesTaken, next.QuestionsAnswered, next.CorrectAnswers,
		next.QuizzesCreated, next.BestScore, next.AverageScore, toMillis(next.LastActivity))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UserStatistics(ctx context.Context, participantID int64) (domain.UserStatistics, error) {
	return scanStatistics(s.db.QueryRowContext(ctx, `SELECT `+statsColumns+` FROM user_statistics WHERE participant_id = ?`, participantID))
}

func scanStatistics(row rowScanner) (domain.UserStatistics, error) {
	var (
		stats  domain.UserStatistics
		lastMs int64
	)
	err := row.Scan(&stats.ParticipantID, &stats.DisplayName, &stats.QuizzesTaken, &stats.QuestionsAnswered,
		&stats.CorrectAnswers, &stats.QuizzesCreated, &stats.BestScore, &stats.AverageScore, &lastMs)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserStatistics{}, domain.ErrStatisticsNotFound
	}
	if err != nil {
		return domain.UserStatistics{}, err
	}
	stats.LastActivity = fromMillis(lastMs)
	return stats, nil
}
