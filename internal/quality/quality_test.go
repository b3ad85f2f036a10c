package quality

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

var day0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestTracker(t *testing.T) (*Tracker, *clock) {
	t.Helper()
	c := &clock{t: day0}
	return New(t.TempDir(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(c.Now),
	), c
}

// recordAt appends a record as if it were made at the given time.
func recordAt(t *testing.T, tr *Tracker, c *clock, at time.Time, score float64) {
	t.Helper()
	c.Set(at)
	_, err := tr.Record(context.Background(), Record{Score: score})
	require.NoError(t, err)
}

func TestRecord_StampsAndPersists(t *testing.T) {
	tr, _ := newTestTracker(t)

	r, err := tr.Record(context.Background(), Record{
		Score:    88,
		TaskType: " testing ",
		Metrics:  map[string]float64{"coverage": 92.5, "lint": 100},
	})
	require.NoError(t, err)
	assert.Regexp(t, `^quality_20260501_120000_[0-9a-f]{8}$`, r.ID)
	assert.Equal(t, "testing", r.TaskType)
	assert.Equal(t, day0, r.Timestamp)

	data, err := os.ReadFile(tr.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"quality_records"`)
	assert.Contains(t, string(data), `"overall_score": 88`)
}

func TestRecord_Validation(t *testing.T) {
	tr, _ := newTestTracker(t)
	cases := map[string]Record{
		"score above range": {Score: 100.5},
		"score below range": {Score: -1},
		"score NaN":         {Score: math.NaN()},
		"metric too large":  {Score: 50, Metrics: map[string]float64{"coverage": 120}},
		"metric no name":    {Score: 50, Metrics: map[string]float64{" ": 10}},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tr.Record(context.Background(), r)
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
		})
	}
}

func TestTrends_Improving(t *testing.T) {
	tr, c := newTestTracker(t)
	recordAt(t, tr, c, day0.Add(-72*time.Hour), 60)
	recordAt(t, tr, c, day0.Add(-48*time.Hour), 62)
	recordAt(t, tr, c, day0.Add(-24*time.Hour), 80)
	recordAt(t, tr, c, day0.Add(-1*time.Hour), 90)
	c.Set(day0)

	got, err := tr.Trends(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 4, got.Count)
	assert.Equal(t, 73.0, got.Average)
	assert.Equal(t, 61.0, got.FirstHalfAverage)
	assert.Equal(t, 85.0, got.SecondHalfAverage)
	assert.Equal(t, Improving, got.Direction)
	require.Len(t, got.Daily, 4)
	assert.Equal(t, "2026-04-28", got.Daily[0].Date)
	assert.Equal(t, DailyAverage{Date: "2026-05-01", Average: 90, Count: 1}, got.Daily[3])
}

func TestTrends_DecliningAndStable(t *testing.T) {
	tr, c := newTestTracker(t)
	recordAt(t, tr, c, day0.Add(-3*time.Hour), 90)
	recordAt(t, tr, c, day0.Add(-2*time.Hour), 80)
	c.Set(day0)

	got, err := tr.Trends(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Declining, got.Direction)
	require.Len(t, got.Daily, 1)
	assert.Equal(t, 85.0, got.Daily[0].Average)
	assert.Equal(t, 2, got.Daily[0].Count)

	recordAt(t, tr, c, day0.Add(-time.Hour), 92)
	recordAt(t, tr, c, day0, 84)
	got, err = tr.Trends(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Stable, got.Direction, "a change within five points is stable")
}

func TestTrends_WindowExcludesOldRecords(t *testing.T) {
	tr, c := newTestTracker(t)
	recordAt(t, tr, c, day0.Add(-10*24*time.Hour), 10)
	recordAt(t, tr, c, day0.Add(-time.Hour), 70)
	c.Set(day0)

	got, err := tr.Trends(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, 70.0, got.Average)
	assert.Equal(t, Stable, got.Direction)
}

func TestTrends_MetricAverages(t *testing.T) {
	tr, c := newTestTracker(t)
	c.Set(day0.Add(-time.Hour))
	_, err := tr.Record(context.Background(), Record{Score: 80, Metrics: map[string]float64{"coverage": 70}})
	require.NoError(t, err)
	_, err = tr.Record(context.Background(), Record{Score: 80, Metrics: map[string]float64{"coverage": 90, "docs": 50}})
	require.NoError(t, err)
	c.Set(day0)

	got, err := tr.Trends(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"coverage": 80, "docs": 50}, got.Metrics)
}

func TestTrends_EmptyAndInvalidDays(t *testing.T) {
	tr, _ := newTestTracker(t)

	got, err := tr.Trends(context.Background(), 30)
	require.NoError(t, err)
	assert.Zero(t, got.Count)
	assert.Equal(t, Stable, got.Direction)
	assert.NotNil(t, got.Daily)

	_, err = tr.Trends(context.Background(), 0)
	assert.True(t, domain.IsValidation(err))

	_, err = tr.Trends(context.Background(), MaxTrendDays+1)
	assert.True(t, domain.IsValidation(err))
}

func TestTrends_CorruptHistoryRecovers(t *testing.T) {
	tr, _ := newTestTracker(t)
	require.NoError(t, os.WriteFile(tr.Path(), []byte("not json"), 0o644))

	got, err := tr.Trends(context.Background(), 30)
	require.NoError(t, err)
	assert.True(t, got.Recovered)
	assert.Zero(t, got.Count)
}

func TestTrends_LargestWindowKeepsOldRecords(t *testing.T) {
	tr, c := newTestTracker(t)
	recordAt(t, tr, c, day0.Add(-200*24*time.Hour), 40)
	recordAt(t, tr, c, day0.Add(-time.Hour), 60)
	c.Set(day0)

	got, err := tr.Trends(context.Background(), MaxTrendDays)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, 50.0, got.Average)
}
