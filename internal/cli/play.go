package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
	"quiz-session-service/internal/platform/logger"
)

const playerID int64 = 1

type playOptions struct {
	file      string
	name      string
	mode      string
	input     string
	timeLimit int
	keepOrder bool
}

// NewPlayCmd runs an individual session in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	var opts playOptions
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz file in the terminal",
		Long: `Play a quiz file in the terminal.

The file holds a title and questions:
  {"title": "...", "questions": [{"text": "...", "options": ["a", "b"], "correctIndex": 0}]}

Answer with the option letter or number, "s" skips, "q" stops.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runPlay(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), serviceOptions(cfg.Quiz), opts)
		},
	}
	cmd.Flags().StringVar(&opts.file, "file", "", "quiz JSON file")
	cmd.Flags().StringVar(&opts.name, "name", "player", "display name")
	cmd.Flags().StringVar(&opts.mode, "mode", "full", "full, range or random")
	cmd.Flags().StringVar(&opts.input, "select", "", `range like "5-10" or random count like "20"`)
	cmd.Flags().IntVar(&opts.timeLimit, "time", -1, "seconds per question, 0 for unlimited, -1 for the configured default")
	cmd.Flags().BoolVar(&opts.keepOrder, "keep-order", false, "do not shuffle options")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// quizFile is either parser output or a bare title plus questions.
type quizFile struct {
	Title string `json:"title"`
	domain.IngestionResult
	Success *bool `json:"success"`
}

func readQuizFile(path string) (string, domain.IngestionResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", domain.IngestionResult{}, err
	}
	var f quizFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", domain.IngestionResult{}, fmt.Errorf("parse %s: %w", path, err)
	}
	f.IngestionResult.Success = f.Success == nil || *f.Success
	return f.Title, f.IngestionResult, nil
}

type playRenderer struct {
	out    io.Writer
	title  *color.Color
	good   *color.Color
	bad    *color.Color
	warn   *color.Color
	faint  *color.Color
	option *color.Color
}

func newPlayRenderer(out io.Writer) *playRenderer {
	return &playRenderer{
		out:    out,
		title:  color.New(color.FgCyan, color.Bold),
		good:   color.New(color.FgGreen, color.Bold),
		bad:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow),
		faint:  color.New(color.Faint),
		option: color.New(color.FgHiBlue),
	}
}

func (r *playRenderer) question(v app.QuestionView) {
	fmt.Fprintln(r.out)
	r.title.Fprintf(r.out, "Question %s\n", v.Progress())
	fmt.Fprintf(r.out, "%s\n\n", v.Text)
	for i, opt := range v.Options {
		r.option.Fprintf(r.out, "  %s) ", domain.OptionLetter(i))
		fmt.Fprintln(r.out, opt)
	}
	if v.TimeLimit > 0 {
		r.faint.Fprintf(r.out, "%ds to answer\n", v.TimeLimit)
	}
}

func (r *playRenderer) outcome(out app.AnswerOutcome, timedOut bool) {
	answer := fmt.Sprintf("%s) %s", domain.OptionLetter(out.CorrectOption), out.CorrectAnswer)
	switch {
	case out.Correct:
		r.good.Fprintln(r.out, "Correct!")
	case timedOut:
		r.warn.Fprintf(r.out, "Skipped. Correct answer: %s\n", answer)
	default:
		r.bad.Fprintf(r.out, "Wrong. Correct answer: %s\n", answer)
	}
}

func (r *playRenderer) result(res domain.Result, stopped bool) {
	fmt.Fprintln(r.out)
	if stopped {
		r.warn.Fprintln(r.out, "Quiz stopped early.")
	}
	score := res.ScorePercent()
	r.title.Fprintf(r.out, "Score: %d/%d (%.1f%%)\n", res.CorrectAnswers, res.TotalQuestions, score)
	fmt.Fprintf(r.out, "Correct: %d  Wrong: %d  Skipped: %d\n", res.CorrectAnswers, len(res.Wrong()), len(res.Skipped))

	grade := domain.GradeFor(score)
	switch grade {
	case domain.GradeExcellent, domain.GradeGood:
		r.good.Fprintf(r.out, "Grade: %s\n", grade)
	case domain.GradeRetry:
		r.bad.Fprintf(r.out, "Grade: %s\n", grade)
	default:
		r.warn.Fprintf(r.out, "Grade: %s\n", grade)
	}
}

func playSettings(opts playOptions, total, maxCount int) (domain.RunSettings, error) {
	mode, err := domain.ParseSelectionMode(opts.mode)
	if err != nil {
		return domain.RunSettings{}, err
	}
	if mode == domain.ModeFull {
		return domain.FullRun(true), nil
	}
	return app.ParseSettingsInput(mode, opts.input, total, maxCount, true)
}

// parseChoice reads a letter (A, b) or a 1-based number into a display index.
func parseChoice(raw string, optionCount int) (int, bool) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n - 1, n >= 1 && n <= optionCount
	}
	if len(raw) == 1 && raw[0] >= 'A' && int(raw[0]-'A') < optionCount {
		return int(raw[0] - 'A'), true
	}
	return 0, false
}

func runPlay(ctx context.Context, in io.Reader, out io.Writer, svcOpts app.Options, opts playOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	title, ingestion, err := readQuizFile(opts.file)
	if err != nil {
		return err
	}

	store := memory.NewStore()
	service := app.NewQuizService(memory.NewSessionStore(), store, store, logger.NewNop(), svcOpts)
	defer service.Close()

	draft := app.QuizDraft{Title: title, OwnerID: playerID, OwnerName: opts.name, KeepOptionOrder: opts.keepOrder}
	if opts.timeLimit >= 0 {
		draft.TimePerQuestion = &opts.timeLimit
	}
	quiz, warnings, err := service.CreateQuiz(ctx, draft, ingestion)
	render := newPlayRenderer(out)
	for _, w := range warnings {
		render.warn.Fprintf(out, "warning: %s\n", w)
	}
	if err != nil {
		return err
	}

	maxCount := svcOpts.MaxRandomCount
	settings, err := playSettings(opts, len(quiz.Questions), maxCount)
	if err != nil {
		return err
	}

	events, cancel := service.Subscribe(app.IndividualKey(playerID))
	defer cancel()

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	render.title.Fprintf(out, "%s (%d questions)\n", quiz.Title, settings.Size(len(quiz.Questions)))
	if _, err := service.StartIndividual(ctx, playerID, opts.name, app.ByID(quiz.ID), settings); err != nil {
		return err
	}

	var (
		current  app.QuestionView
		awaiting bool
	)
	for {
		// Input is only read while a question is open so a fast typist cannot
		// answer a question that has not been shown yet.
		var input <-chan string
		if awaiting {
			input = lines
		}
		select {
		case <-ctx.Done():
			_, _ = service.StopIndividual(context.Background(), playerID)
			return ctx.Err()
		case ev := <-events:
			switch ev.Kind {
			case app.EventQuestion:
				current, awaiting = *ev.Question, true
				render.question(current)
			case app.EventTick:
				if ev.Remaining <= 5 {
					render.warn.Fprintf(out, "%ds left\n", ev.Remaining)
				}
			case app.EventFeedback:
				awaiting = false
				render.outcome(*ev.Outcome, false)
			case app.EventTimeout:
				awaiting = false
				render.outcome(*ev.Outcome, true)
			case app.EventFinished:
				render.result(*ev.Result, ev.Stopped)
				return nil
			}
		case line, ok := <-input:
			if !ok {
				lines = nil
				_, _ = service.StopIndividual(ctx, playerID)
				continue
			}
			submitted, err := playCommand(ctx, service, render, current, line)
			if submitted {
				awaiting = false
			}
			if err != nil {
				if domain.IsRace(err) {
					awaiting = false
					render.faint.Fprintln(out, "too late for that question")
					continue
				}
				if !errors.Is(err, domain.ErrInvalidOption) {
					return err
				}
			}
		}
	}
}

// playCommand applies one line of input. submitted reports whether the open
// question was answered, skipped or the run stopped.
func playCommand(ctx context.Context, service *app.QuizService, render *playRenderer, current app.QuestionView, line string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "q", "quit", "stop":
		_, err := service.StopIndividual(ctx, playerID)
		return err == nil, err
	case "s", "skip":
		_, err := service.SkipIndividual(ctx, playerID, current.Index)
		return err == nil, err
	}
	choice, ok := parseChoice(line, len(current.Options))
	if !ok {
		render.warn.Fprintf(render.out, "answer with A-%s, s to skip, q to stop\n", domain.OptionLetter(len(current.Options)-1))
		return false, nil
	}
	_, err := service.AnswerIndividual(ctx, playerID, current.Index, choice)
	return err == nil, err
}
