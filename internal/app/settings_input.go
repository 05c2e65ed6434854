package app

import (
	"fmt"
	"strconv"
	"strings"

	"quiz-session-service/internal/domain"
)

// ParseRangeInput reads owner text such as "50-100" into range settings
// for a quiz with total questions.
func ParseRangeInput(raw string, total int, shuffle bool) (domain.RunSettings, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 2 {
		return domain.RunSettings{}, fmt.Errorf("%w: expected a range like 1-%d", domain.ErrInvalidSettings, total)
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return domain.RunSettings{}, fmt.Errorf("%w: range start %q is not a number", domain.ErrInvalidSettings, parts[0])
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return domain.RunSettings{}, fmt.Errorf("%w: range end %q is not a number", domain.ErrInvalidSettings, parts[1])
	}
	settings := domain.RunSettings{Mode: domain.ModeRange, Start: start, End: end, Shuffle: shuffle}
	if err := settings.Validate(total); err != nil {
		return domain.RunSettings{}, err
	}
	return settings, nil
}

// ParseCountInput reads owner text such as "30" into random settings.
// maxCount caps the sample size on top of the quiz length.
func ParseCountInput(raw string, total, maxCount int, shuffle bool) (domain.RunSettings, error) {
	count, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return domain.RunSettings{}, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidSettings, raw)
	}
	if maxCount > 0 && count > maxCount {
		return domain.RunSettings{}, fmt.Errorf("%w: at most %d questions can be drawn", domain.ErrInvalidSettings, maxCount)
	}
	settings := domain.RunSettings{Mode: domain.ModeRandom, Count: count, Shuffle: shuffle}
	if err := settings.Validate(total); err != nil {
		return domain.RunSettings{}, err
	}
	return settings, nil
}

// ParseSettingsInput dispatches free text by the awaited mode.
func ParseSettingsInput(mode domain.SelectionMode, raw string, total, maxCount int, shuffle bool) (domain.RunSettings, error) {
	switch mode {
	case domain.ModeRange:
		return ParseRangeInput(raw, total, shuffle)
	case domain.ModeRandom:
		return ParseCountInput(raw, total, maxCount, shuffle)
	}
	return domain.RunSettings{}, fmt.Errorf("%w: mode %q takes no input", domain.ErrInvalidSettings, mode)
}
