package workflow

import (
	"testing"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelta(t *testing.T) {
	assert.Equal(t, 0.0, Delta(10, 0))
	assert.InDelta(t, 50.0, Delta(15, 10), 1e-9)
	assert.InDelta(t, -100.0, Delta(0, 10), 1e-9)
}

func TestErrorRate(t *testing.T) {
	assert.Equal(t, 0.0, ErrorRate(0, 0))
	assert.InDelta(t, 25.0, ErrorRate(1, 3), 1e-9)
	assert.InDelta(t, 100.0, ErrorRate(4, 0), 1e-9)
}

func TestPeriodPresets(t *testing.T) {
	// 2026-05-14 is a Thursday
	today := time.Date(2026, 5, 14, 15, 30, 0, 0, time.UTC)
	tests := []struct {
		kind  PeriodKind
		start time.Time
	}{
		{PeriodDaily, time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC)},
		{PeriodWeekly, time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)},
		{PeriodMonthly, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		{PeriodQuarterly, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{PeriodYearly, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{PeriodCustom, time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			p, err := PeriodFor(tc.kind, today)
			require.NoError(t, err)
			assert.Equal(t, tc.start, p.Start)
			assert.Equal(t, time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), p.End)
		})
	}

	_, err := PeriodFor("fortnightly", today)
	requireCode(t, err, CodeConstraint)
}

func TestPreviousPeriodHasEqualLength(t *testing.T) {
	p, err := DayRange(time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC), time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	prev := p.Previous()
	assert.Equal(t, p.End.Sub(p.Start), prev.End.Sub(prev.Start))
	assert.True(t, prev.End.Before(p.Start))
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), prev.Start)

	_, err = DayRange(p.End, p.Start)
	requireCode(t, err, CodeConstraint)
}

func TestSummarize(t *testing.T) {
	end1 := t0.Add(30 * time.Minute)
	end2 := t0.Add(10 * time.Minute)
	records := []*models.Processing{
		{PiecesProcessed: 60, Timer: models.Timer{StartedAt: t0, EndedAt: &end1}},
		{PiecesProcessed: 10, Timer: models.Timer{StartedAt: t0, EndedAt: &end2, PauseMinutes: 10}},
	}
	stats := Summarize(records)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 70, stats.Units)
	assert.InDelta(t, 30.0, stats.TotalEffective, 1e-9)
	assert.InDelta(t, 15.0, stats.AverageEffective, 1e-9)
	// the zero-effective record is left out of the speed average
	assert.InDelta(t, 2.0, stats.AverageSpeed, 1e-9)

	assert.Equal(t, StageStats{}, Summarize([]*models.Scan{}))
}
