package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

func TestParseSettingsInput(t *testing.T) {
	tests := []struct {
		name    string
		mode    domain.SelectionMode
		raw     string
		want    domain.RunSettings
		wantErr bool
	}{
		{name: "range", mode: domain.ModeRange, raw: "50-100", want: domain.RunSettings{Mode: domain.ModeRange, Start: 50, End: 100, Shuffle: true}},
		{name: "range with spaces", mode: domain.ModeRange, raw: " 2 - 4 ", want: domain.RunSettings{Mode: domain.ModeRange, Start: 2, End: 4, Shuffle: true}},
		{name: "reversed range", mode: domain.ModeRange, raw: "50-30", wantErr: true},
		{name: "range past end", mode: domain.ModeRange, raw: "1-121", wantErr: true},
		{name: "range not numeric", mode: domain.ModeRange, raw: "a-b", wantErr: true},
		{name: "single number for range", mode: domain.ModeRange, raw: "5", wantErr: true},
		{name: "count", mode: domain.ModeRandom, raw: "30", want: domain.RunSettings{Mode: domain.ModeRandom, Count: 30, Shuffle: true}},
		{name: "count zero", mode: domain.ModeRandom, raw: "0", wantErr: true},
		{name: "count over cap", mode: domain.ModeRandom, raw: "101", wantErr: true},
		{name: "count text", mode: domain.ModeRandom, raw: "thirty", wantErr: true},
		{name: "full takes no input", mode: domain.ModeFull, raw: "1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := app.ParseSettingsInput(tt.mode, tt.raw, 120, 100, true)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidSettings)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
