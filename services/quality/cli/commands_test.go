package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/internal/quality"
)

func TestParseMetrics(t *testing.T) {
	got, err := parseMetrics([]string{"coverage=92.5", " lint = 100"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"coverage": 92.5, "lint": 100}, got)

	got, err = parseMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, bad := range []string{"coverage", "coverage=high"} {
		_, err := parseMetrics([]string{bad})
		assert.True(t, domain.IsValidation(err), bad)
	}
}

func TestWriteTrends(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTrends(&buf, quality.Trends{Days: 7, Direction: quality.Stable}))
	assert.Equal(t, "no quality records in the last 7 days\n", buf.String())

	buf.Reset()
	require.NoError(t, writeTrends(&buf, quality.Trends{
		Days: 7, Count: 4, Average: 73,
		FirstHalfAverage: 61, SecondHalfAverage: 85,
		Direction: quality.Improving,
		Daily:     []quality.DailyAverage{{Date: "2026-04-28", Average: 60, Count: 1}},
		Metrics:   map[string]float64{"coverage": 80},
	}))
	out := buf.String()
	assert.Contains(t, out, "improving (61.00 -> 85.00)")
	assert.Contains(t, out, "2026-04-28")
	assert.Contains(t, out, "coverage")
}
