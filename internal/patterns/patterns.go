// Package patterns stores what worked for past tasks so later runs can reuse
// the approach. Records live in patterns.json next to the task queue.
package patterns

import (
	"context"
	"fmt"
	"log/slog"
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
	FileName        = "patterns.json"
	DocumentVersion = "1.0"

	topSkills = 5
)

// Pattern is one recorded task execution.
type Pattern struct {
	ID              string            `json:"pattern_id"`
	TaskType        string            `json:"task_type"`
	Description     string            `json:"description,omitempty"`
	Context         map[string]string `json:"context,omitempty"`
	SkillsUsed      []string          `json:"skills_used"`
	AgentsDelegated []string          `json:"agents_delegated,omitempty"`
	Approach        string            `json:"approach,omitempty"`
	DurationSeconds float64           `json:"duration_seconds,omitempty"`
	Success         bool              `json:"success"`
	QualityScore    float64           `json:"quality_score"`
	ReuseCount      int               `json:"reuse_count"`
	Timestamp       time.Time         `json:"timestamp"`
	LastUsedAt      *time.Time        `json:"last_used_at,omitempty"`
}

// Document is the on-disk shape of the pattern store.
type Document struct {
	Version  string    `json:"version"`
	Patterns []Pattern `json:"patterns"`
}

// NewDocument returns an empty pattern document.
func NewDocument() Document {
	return Document{Version: DocumentVersion, Patterns: []Pattern{}}
}

// Store manages the patterns of one data directory.
type Store struct {
	store     *jsonstore.Store[Document]
	logger    *slog.Logger
	now       func() time.Time
	storeOpts []jsonstore.Option
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *slog.Logger) Option      { return func(s *Store) { s.logger = l } }
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithStoreOptions(o ...jsonstore.Option) Option {
	return func(s *Store) { s.storeOpts = append(s.storeOpts, o...) }
}

// New returns a Store backed by dir/patterns.json.
func New(dir string, opts ...Option) *Store {
	s := &Store{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	storeOpts := append([]jsonstore.Option{jsonstore.WithLogger(s.logger)}, s.storeOpts...)
	s.store = jsonstore.New(filepath.Join(dir, FileName), NewDocument, storeOpts...)
	return s
}

// Path returns the pattern document path.
func (s *Store) Path() string { return s.store.Path() }

func (p *Pattern) normalize() error {
	p.TaskType = strings.TrimSpace(p.TaskType)
	if p.TaskType == "" {
		return &domain.ValidationError{Field: "task_type", Reason: "is required"}
	}
	if p.QualityScore < 0 || p.QualityScore > 100 {
		return &domain.ValidationError{Field: "quality_score", Value: fmt.Sprint(p.QualityScore), Reason: "must be between 0 and 100"}
	}
	if p.DurationSeconds < 0 {
		return &domain.ValidationError{Field: "duration_seconds", Value: fmt.Sprint(p.DurationSeconds), Reason: "must not be negative"}
	}
	p.SkillsUsed = cleanList(p.SkillsUsed)
	p.AgentsDelegated = cleanList(p.AgentsDelegated)
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Add validates p, assigns its id and timestamp, and appends it.
func (s *Store) Add(ctx context.Context, p Pattern) (*Pattern, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p.ID = fmt.Sprintf("pattern_%s_%s", now.Format("20060102_150405"), uuid.New().String()[:8])
	p.Timestamp = now
	p.ReuseCount = 0
	p.LastUsedAt = nil

	if _, err := s.store.Update(ctx, func(doc *Document) error {
		doc.Patterns = append(doc.Patterns, p)
		return nil
	}); err != nil {
		return nil, err
	}
	telemetry.PatternsStored.WithLabelValues(p.TaskType).Inc()
	s.logger.Info("pattern stored",
		slog.String("pattern_id", p.ID),
		slog.String("task_type", p.TaskType),
		slog.Bool("success", p.Success),
		slog.Float64("quality_score", p.QualityScore),
	)
	return &p, nil
}

// Filter selects patterns. Zero fields match everything.
type Filter struct {
	TaskType    string
	MinQuality  float64
	SuccessOnly bool
	Limit       int
	// RecordUse bumps reuse_count on every returned pattern.
	RecordUse bool
}

func (q Filter) match(p *Pattern) bool {
	return (q.TaskType == "" || strings.EqualFold(p.TaskType, q.TaskType)) &&
		p.QualityScore >= q.MinQuality &&
		(!q.SuccessOnly || p.Success)
}

// Query returns matching patterns, best quality first and newest first
// among equals.
func (s *Store) Query(ctx context.Context, q Filter) ([]Pattern, error) {
	if q.Limit < 0 {
		return nil, &domain.ValidationError{Field: "limit", Value: fmt.Sprint(q.Limit), Reason: "must not be negative"}
	}
	if !q.RecordUse {
		doc, _, err := s.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		return selectPatterns(doc.Patterns, q), nil
	}

	var out []Pattern
	_, err := s.store.Update(ctx, func(doc *Document) error {
		out = selectPatterns(doc.Patterns, q)
		now := s.now().UTC()
		for i := range out {
			for j := range doc.Patterns {
				if doc.Patterns[j].ID == out[i].ID {
					doc.Patterns[j].ReuseCount++
					doc.Patterns[j].LastUsedAt = &now
					out[i] = doc.Patterns[j]
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func selectPatterns(all []Pattern, q Filter) []Pattern {
	out := make([]Pattern, 0, len(all))
	for i := range all {
		if q.match(&all[i]) {
			out = append(out, all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QualityScore != out[j].QualityScore {
			return out[i].QualityScore > out[j].QualityScore
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
