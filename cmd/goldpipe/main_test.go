package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/retailops/goldpipe/internal/engine"
	"github.com/retailops/goldpipe/internal/pipelinedb/models"
	"github.com/retailops/goldpipe/internal/unit"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOptions(t *testing.T) {
	tests := []struct {
		name        string
		unit        string
		filterYear  int
		filterMonth int
		reset       bool
		dryRun      bool
		wantErr     string
		check       func(t *testing.T, opts engine.Options)
	}{
		{
			name: "no flags",
			check: func(t *testing.T, opts engine.Options) {
				assert.Nil(t, opts.Unit)
				assert.False(t, opts.Reset)
				assert.False(t, opts.DryRun)
			},
		},
		{
			name: "single unit",
			unit: "2010-12",
			check: func(t *testing.T, opts engine.Options) {
				require.NotNil(t, opts.Unit)
				assert.Equal(t, unit.Key{Year: 2010, Month: 12}, *opts.Unit)
			},
		},
		{
			name:    "malformed unit",
			unit:    "december-2010",
			wantErr: "invalid month key",
		},
		{
			name:       "unit with filter",
			unit:       "2010-12",
			filterYear: 2010,
			wantErr:    "cannot be combined",
		},
		{
			name:        "month filter without year",
			filterMonth: 12,
			wantErr:     "requires --filter-year",
		},
		{
			name:        "month filter out of range",
			filterYear:  2010,
			filterMonth: 13,
			wantErr:     "invalid --filter-month",
		},
		{
			name:        "year and month filters",
			filterYear:  2010,
			filterMonth: 12,
			check: func(t *testing.T, opts engine.Options) {
				assert.Equal(t, 2010, opts.FilterYear)
				assert.Equal(t, 12, opts.FilterMonth)
			},
		},
		{
			name:   "reset dry run",
			reset:  true,
			dryRun: true,
			check: func(t *testing.T, opts engine.Options) {
				assert.True(t, opts.Reset)
				assert.True(t, opts.DryRun)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := buildOptions(tt.unit, tt.filterYear, tt.filterMonth, tt.reset, tt.dryRun)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, opts)
		})
	}
}

func TestConfirmReset(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "yes\n", true},
		{"y", "y\n", true},
		{"uppercase", "YES\n", true},
		{"no", "no\n", false},
		{"empty", "\n", false},
		{"eof", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.SetIn(strings.NewReader(tt.input))
			out := &bytes.Buffer{}
			cmd.SetOut(out)

			assert.Equal(t, tt.want, confirmReset(cmd, nil))
			assert.Contains(t, out.String(), "Continue? [y/N]")
		})
	}
}

func TestConfirmResetNamesUnit(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("n\n"))
	out := &bytes.Buffer{}
	cmd.SetOut(out)

	key := unit.Key{Year: 2010, Month: 12}
	confirmReset(cmd, &key)
	assert.Contains(t, out.String(), "2010-12")
}

func TestFailureReport(t *testing.T) {
	summary := &engine.RunSummary{
		RunID:        "run-1",
		Failed:       2,
		FailedUnits:  []unit.Key{{Year: 2010, Month: 11}, {Year: 2011, Month: 2}},
		FailedStages: []string{"country_sales"},
	}

	report := failureReport(summary)
	assert.Contains(t, report, "run-1")
	assert.Contains(t, report, "failed units: 2010-11, 2011-02")
	assert.Contains(t, report, "failed stages: country_sales")
}

func TestPrintCheckpoints(t *testing.T) {
	end := time.Date(2011, 1, 5, 3, 0, 2, 0, time.UTC)
	duration := int64(2000)
	records := []models.CheckpointRecord{
		{
			RunID:           "run-1",
			Stage:           "monthly_sales",
			CheckpointKey:   "2010-12",
			CheckpointValue: "1",
			Status:          models.StatusCompleted,
			StartTime:       time.Date(2011, 1, 5, 3, 0, 0, 0, time.UTC),
			EndTime:         &end,
			DurationMS:      &duration,
		},
		{
			RunID:         "run-1",
			Stage:         "country_sales",
			CheckpointKey: "all",
			Status:        models.StatusInProgress,
			StartTime:     time.Date(2011, 1, 5, 3, 0, 2, 0, time.UTC),
		},
	}

	out := &bytes.Buffer{}
	printCheckpoints(out, records)

	text := out.String()
	assert.Contains(t, text, "RUN ID")
	assert.Contains(t, text, "monthly_sales")
	assert.Contains(t, text, "2010-12")
	assert.Contains(t, text, "2s")
	assert.Contains(t, text, "in_progress")
	// Open checkpoints render placeholders, not zero values
	assert.Contains(t, text, "-")
}
