package domain

import "fmt"

// SelectionMode picks which questions of a quiz a run asks.
type SelectionMode string

const (
	ModeFull   SelectionMode = "full"
	ModeRange  SelectionMode = "range"
	ModeRandom SelectionMode = "random"
)

// ParseSelectionMode maps a user-facing mode name to a SelectionMode.
func ParseSelectionMode(raw string) (SelectionMode, error) {
	switch SelectionMode(raw) {
	case ModeFull, ModeRange, ModeRandom:
		return SelectionMode(raw), nil
	case "":
		return ModeFull, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidSettings, raw)
}

// RunSettings narrows a quiz for a single run. Start and End are 1-based
// and inclusive.
type RunSettings struct {
	Mode    SelectionMode `json:"mode"`
	Start   int           `json:"start,omitempty"`
	End     int           `json:"end,omitempty"`
	Count   int           `json:"count,omitempty"`
	Shuffle bool          `json:"shuffle"`
}

// FullRun returns settings that ask every question.
func FullRun(shuffle bool) RunSettings {
	return RunSettings{Mode: ModeFull, Shuffle: shuffle}
}

// Validate checks the settings against a quiz with total questions.
func (s RunSettings) Validate(total int) error {
	if total < 1 {
		return fmt.Errorf("%w: quiz has no questions", ErrInvalidSettings)
	}
	switch s.Mode {
	case ModeFull, "":
		return nil
	case ModeRange:
		if s.Start < 1 || s.End <= s.Start || s.End > total {
			return fmt.Errorf("%w: range must satisfy 1 <= start < end <= %d, got %d-%d", ErrInvalidSettings, total, s.Start, s.End)
		}
		return nil
	case ModeRandom:
		if s.Count < 1 || s.Count > total {
			return fmt.Errorf("%w: count must be between 1 and %d, got %d", ErrInvalidSettings, total, s.Count)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown mode %q", ErrInvalidSettings, s.Mode)
}

// Size returns how many questions a validated run asks.
func (s RunSettings) Size(total int) int {
	switch s.Mode {
	case ModeRange:
		return s.End - s.Start + 1
	case ModeRandom:
		return s.Count
	}
	return total
}
