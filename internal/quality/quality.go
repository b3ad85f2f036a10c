// Package quality keeps a history of quality scores and derives trends from
// it. Records live in quality_history.json.
package quality

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/internal/jsonstore"
	"github.com/ramiqadoumi/go-task-queue/pkg/telemetry"
)

const (
	FileName        = "quality_history.json"
	DocumentVersion = "1.0"

	// trendThreshold is how many points the second half must move before the
	// trend stops being stable.
	trendThreshold = 5.0

	// MaxTrendDays keeps the window cutoff inside time.Duration's range.
	MaxTrendDays = 36500
)

// Direction is the movement of quality over a window.
type Direction string

const (
	Improving Direction = "improving"
	Declining Direction = "declining"
	Stable    Direction = "stable"
)

// Record is one quality assessment.
type Record struct {
	ID        string             `json:"record_id"`
	Timestamp time.Time          `json:"timestamp"`
	TaskType  string             `json:"task_type,omitempty"`
	Score     float64            `json:"overall_score"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Notes     string             `json:"notes,omitempty"`
}

// Document is the on-disk shape of the quality history.
type Document struct {
	Version string   `json:"version"`
	Records []Record `json:"quality_records"`
}

// NewDocument returns an empty history.
func NewDocument() Document {
	return Document{Version: DocumentVersion, Records: []Record{}}
}

// Tracker manages the quality history of one data directory.
type Tracker struct {
	store     *jsonstore.Store[Document]
	logger    *slog.Logger
	now       func() time.Time
	storeOpts []jsonstore.Option
}

// Option configures a Tracker.
type Option func(*Tracker)

func WithLogger(l *slog.Logger) Option      { return func(t *Tracker) { t.logger = l } }
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

func WithStoreOptions(o ...jsonstore.Option) Option {
	return func(t *Tracker) { t.storeOpts = append(t.storeOpts, o...) }
}

// New returns a Tracker backed by dir/quality_history.json.
func New(dir string, opts ...Option) *Tracker {
	t := &Tracker{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	storeOpts := append([]jsonstore.Option{jsonstore.WithLogger(t.logger)}, t.storeOpts...)
	t.store = jsonstore.New(filepath.Join(dir, FileName), NewDocument, storeOpts...)
	return t
}

// Path returns the history document path.
func (t *Tracker) Path() string { return t.store.Path() }

func validScore(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return &domain.ValidationError{Field: field, Value: fmt.Sprint(v), Reason: "must be between 0 and 100"}
	}
	return nil
}

// Record validates r, stamps it and appends it to the history.
func (t *Tracker) Record(ctx context.Context, r Record) (*Record, error) {
	if err := validScore("score", r.Score); err != nil {
		return nil, err
	}
	for name, v := range r.Metrics {
		if strings.TrimSpace(name) == "" {
			return nil, &domain.ValidationError{Field: "metric", Reason: "name must not be empty"}
		}
		if err := validScore("metric "+name, v); err != nil {
			return nil, err
		}
	}
	now := t.now().UTC()
	r.ID = fmt.Sprintf("quality_%s_%s", now.Format("20060102_150405"), uuid.New().String()[:8])
	r.Timestamp = now
	r.TaskType = strings.TrimSpace(r.TaskType)

	if _, err := t.store.Update(ctx, func(doc *Document) error {
		doc.Records = append(doc.Records, r)
		return nil
	}); err != nil {
		return nil, err
	}
	telemetry.QualityRecorded.Inc()
	t.logger.Info("quality recorded",
		slog.String("record_id", r.ID),
		slog.Float64("score", r.Score),
		slog.String("task_type", r.TaskType),
	)
	return &r, nil
}

// DailyAverage is the mean score of one UTC day.
type DailyAverage struct {
	Date    string  `json:"date"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Trends describes quality over the last Days days.
type Trends struct {
	Days              int                `json:"days"`
	Count             int                `json:"count"`
	Average           float64            `json:"average"`
	FirstHalfAverage  float64            `json:"first_half_average"`
	SecondHalfAverage float64            `json:"second_half_average"`
	Direction         Direction          `json:"direction"`
	Daily             []DailyAverage     `json:"daily"`
	Metrics           map[string]float64 `json:"metric_averages,omitempty"`
	Recovered         bool               `json:"recovered"`
	Warnings          []string           `json:"warnings,omitempty"`
}

// Trends summarises records from the last days days. Fewer than two records
// always read as stable.
func (t *Tracker) Trends(ctx context.Context, days int) (Trends, error) {
	if days <= 0 || days > MaxTrendDays {
		return Trends{}, &domain.ValidationError{Field: "days", Value: fmt.Sprint(days), Reason: fmt.Sprintf("must be between 1 and %d", MaxTrendDays)}
	}
	doc, rep, err := t.store.Load(ctx)
	if err != nil {
		return Trends{}, err
	}
	tr := computeTrends(doc.Records, days, t.now().UTC())
	tr.Recovered = rep.Recovered()
	tr.Warnings = rep.Warnings()
	return tr, nil
}

func computeTrends(all []Record, days int, now time.Time) Trends {
	tr := Trends{Days: days, Direction: Stable, Daily: []DailyAverage{}}

	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	window := make([]Record, 0, len(all))
	for _, r := range all {
		if !r.Timestamp.Before(cutoff) {
			window = append(window, r)
		}
	}
	if len(window) == 0 {
		return tr
	}
	sort.SliceStable(window, func(i, j int) bool { return window[i].Timestamp.Before(window[j].Timestamp) })
	tr.Count = len(window)
	tr.Average = mean(window)

	byDay := make(map[string][]Record)
	metricSum := make(map[string]float64)
	metricCount := make(map[string]int)
	for _, r := range window {
		day := r.Timestamp.UTC().Format(time.DateOnly)
		byDay[day] = append(byDay[day], r)
		for name, v := range r.Metrics {
			metricSum[name] += v
			metricCount[name]++
		}
	}
	for day, rs := range byDay {
		tr.Daily = append(tr.Daily, DailyAverage{Date: day, Average: mean(rs), Count: len(rs)})
	}
	sort.Slice(tr.Daily, func(i, j int) bool { return tr.Daily[i].Date < tr.Daily[j].Date })
	if len(metricSum) > 0 {
		tr.Metrics = make(map[string]float64, len(metricSum))
		for name, sum := range metricSum {
			tr.Metrics[name] = round2(sum / float64(metricCount[name]))
		}
	}

	if len(window) < 2 {
		return tr
	}
	half := len(window) / 2
	tr.FirstHalfAverage = mean(window[:half])
	tr.SecondHalfAverage = mean(window[half:])
	switch delta := tr.SecondHalfAverage - tr.FirstHalfAverage; {
	case delta > trendThreshold:
		tr.Direction = Improving
	case delta < -trendThreshold:
		tr.Direction = Declining
	}
	return tr
}

func mean(rs []Record) float64 {
	var sum float64
	for _, r := range rs {
		sum += r.Score
	}
	return round2(sum / float64(len(rs)))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
