package cli

import (
	"os"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/config"
)

// serviceOptions maps the quiz config section onto engine options.
func serviceOptions(q config.Quiz) app.Options {
	def := app.DefaultOptions()
	opts := app.Options{
		TickInterval:           config.Duration(q.TickInterval, def.TickInterval),
		StartDelay:             config.Duration(q.StartDelay, def.StartDelay),
		AdvancePause:           config.Duration(q.AdvancePause, def.AdvancePause),
		RevealPause:            config.Duration(q.RevealPause, def.RevealPause),
		FinishPause:            config.Duration(q.FinishPause, def.FinishPause),
		PersistTimeout:         config.Duration(q.PersistTimeout, def.PersistTimeout),
		GroupModeThreshold:     config.IntOr(q.GroupModeThreshold, def.GroupModeThreshold),
		MaxRandomCount:         config.IntOr(q.MaxRandomCount, def.MaxRandomCount),
		DefaultTimePerQuestion: def.DefaultTimePerQuestion,
	}
	if q.DefaultTimePerQuestion != nil && *q.DefaultTimePerQuestion >= 0 {
		opts.DefaultTimePerQuestion = *q.DefaultTimePerQuestion
	}
	return opts
}

// loadConfig reads path, tolerating a missing file so the CLI runs with
// defaults out of the box.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil && os.IsNotExist(err) {
		return config.Config{}, nil
	}
	return cfg, err
}

func quizTTL(cfg config.Config) time.Duration {
	return config.Duration(cfg.Quiz.TTL, 10*time.Minute)
}
