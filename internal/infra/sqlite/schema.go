package sqlite

import (
	"context"
)

func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS quizzes (
			id TEXT PRIMARY KEY,
			owner_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			share_code TEXT NOT NULL UNIQUE,
			time_per_question INTEGER NOT NULL DEFAULT 30,
			shuffle_options INTEGER NOT NULL DEFAULT 1,
			questions_json TEXT NOT NULL,
			created_at_unix_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			quiz_id TEXT NOT NULL,
			participant_id INTEGER NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			total_questions INTEGER NOT NULL,
			correct_answers INTEGER NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			detail_json TEXT NOT NULL,
			started_at_unix_ms INTEGER NOT NULL,
			finished_at_unix_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS user_statistics (
			participant_id INTEGER PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			quizzes_taken INTEGER NOT NULL DEFAULT 0,
			questions_answered INTEGER NOT NULL DEFAULT 0,
			correct_answers INTEGER NOT NULL DEFAULT 0,
			quizzes_created INTEGER NOT NULL DEFAULT 0,
			best_score REAL NOT NULL DEFAULT 0,
			average_score REAL NOT NULL DEFAULT 0,
			last_activity_unix_ms INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quizzes_owner ON quizzes(owner_id, created_at_unix_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_results_quiz ON results(quiz_id, completed);`,
		`CREATE INDEX IF NOT EXISTS idx_results_participant ON results(participant_id, finished_at_unix_ms DESC);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
