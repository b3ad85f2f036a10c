// Package jsonstore persists one JSON document per file under advisory locks.
//
// Every read takes a shared lock and every write an exclusive one. Update
// runs a whole read-modify-write cycle under a single exclusive lock so
// concurrent processes cannot lose each other's changes.
package jsonstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/internal/filelock"
	"github.com/ramiqadoumi/go-task-queue/pkg/retry"
	"github.com/ramiqadoumi/go-task-queue/pkg/telemetry"
)

// Report describes how a document was obtained. The zero value means the
// file existed, parsed, and was locked.
type Report struct {
	// Missing is set when the file did not exist and the default was used.
	Missing bool
	// Corrupt is set when the file could not be parsed and the default was used.
	Corrupt *domain.StorageCorruptionError
	// Unlocked is set when the operation went ahead without a lock.
	Unlocked *domain.LockUnavailableError
	// Backup is the path the unparseable content was copied to before an
	// update overwrote it.
	Backup string
}

// Recovered reports whether the default document replaced corrupt content.
func (r Report) Recovered() bool { return r.Corrupt != nil }

// Degraded reports whether anything went wrong that the caller may want to surface.
func (r Report) Degraded() bool { return r.Corrupt != nil || r.Unlocked != nil }

// Warnings returns human-readable lines for every recovered problem.
func (r Report) Warnings() []string {
	var out []string
	if r.Corrupt != nil {
		out = append(out, r.Corrupt.Error()+"; using an empty document")
	}
	if r.Backup != "" {
		out = append(out, "corrupt content preserved at "+r.Backup)
	}
	if r.Unlocked != nil {
		out = append(out, r.Unlocked.Error()+"; continuing without a lock")
	}
	return out
}

// Option configures a Store.
type Option func(*options)

type options struct {
	locker       filelock.Locker
	lockTimeout  time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// WithLocker replaces the platform locker.
func WithLocker(l filelock.Locker) Option { return func(o *options) { o.locker = l } }

// WithLockTimeout bounds lock acquisition. Zero blocks until the lock is free.
func WithLockTimeout(d time.Duration) Option { return func(o *options) { o.lockTimeout = d } }

// WithPollInterval sets the base delay between lock attempts when a timeout is set.
func WithPollInterval(d time.Duration) Option { return func(o *options) { o.pollInterval = d } }

// WithLogger sets the logger used for recovery warnings.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithClock overrides time.Now for backup file names.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// Store reads and writes a single JSON document of type T.
type Store[T any] struct {
	path       string
	newDefault func() T
	opts       options
}

// New creates a Store for path. newDefault builds the document used when the
// file is missing or unparseable.
func New[T any](path string, newDefault func() T, opts ...Option) *Store[T] {
	o := options{
		locker:       filelock.Default(),
		pollInterval: 10 * time.Millisecond,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{path: path, newDefault: newDefault, opts: o}
}

// Path returns the document path.
func (s *Store[T]) Path() string { return s.path }

// Load reads the document under a shared lock. A missing or malformed file
// yields the default document; only real I/O failures are returned as errors.
func (s *Store[T]) Load(ctx context.Context) (T, Report, error) {
	var rep Report
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		rep.Missing = true
		return s.newDefault(), rep, nil
	}
	if err != nil {
		var zero T
		return zero, rep, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	unlock := s.lock(ctx, f, filelock.Shared, &rep)
	defer unlock()

	data, err := io.ReadAll(f)
	if err != nil {
		var zero T
		return zero, rep, fmt.Errorf("read %s: %w", s.path, err)
	}
	doc, corrupt := s.decode(data)
	rep.Corrupt = corrupt
	return doc, rep, nil
}

// Save overwrites the document under an exclusive lock.
func (s *Store[T]) Save(ctx context.Context, doc T) (Report, error) {
	var rep Report
	data, err := Encode(doc)
	if err != nil {
		return rep, err
	}
	f, err := s.openForWrite()
	if err != nil {
		return rep, err
	}
	defer f.Close()

	unlock := s.lock(ctx, f, filelock.Exclusive, &rep)
	defer unlock()

	return rep, s.overwrite(f, data)
}

// Update loads the document, applies fn and saves the result, all under one
// exclusive lock. If fn returns an error nothing is written.
func (s *Store[T]) Update(ctx context.Context, fn func(doc *T) error) (Report, error) {
	var rep Report
	f, err := s.openForWrite()
	if err != nil {
		return rep, err
	}
	defer f.Close()

	unlock := s.lock(ctx, f, filelock.Exclusive, &rep)
	defer unlock()

	data, err := io.ReadAll(f)
	if err != nil {
		return rep, fmt.Errorf("read %s: %w", s.path, err)
	}
	rep.Missing = len(bytes.TrimSpace(data)) == 0
	doc, corrupt := s.decode(data)
	rep.Corrupt = corrupt

	if err := fn(&doc); err != nil {
		return rep, err
	}

	out, err := Encode(doc)
	if err != nil {
		return rep, err
	}
	if corrupt != nil {
		backup, err := s.backup(data, "corrupt")
		if err != nil {
			return rep, err
		}
		rep.Backup = backup
		s.opts.logger.Warn("corrupt document preserved before overwrite",
			slog.String("path", s.path),
			slog.String("backup", backup),
		)
	}
	return rep, s.overwrite(f, out)
}

// Reset copies the current file aside and replaces it with the default
// document. It returns the backup path, or "" when there was nothing to keep.
func (s *Store[T]) Reset(ctx context.Context) (string, error) {
	var rep Report
	f, err := s.openForWrite()
	if err != nil {
		return "", err
	}
	defer f.Close()

	unlock := s.lock(ctx, f, filelock.Exclusive, &rep)
	defer unlock()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.path, err)
	}
	var backup string
	if len(data) > 0 {
		if backup, err = s.backup(data, "bak"); err != nil {
			return "", err
		}
	}
	out, err := Encode(s.newDefault())
	if err != nil {
		return "", err
	}
	return backup, s.overwrite(f, out)
}

// Encode renders doc the way every Store writes it: two-space indented with a
// trailing newline. encoding/json emits struct fields in declaration order and
// map keys sorted, so output is deterministic.
func Encode(doc any) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(data, '\n'), nil
}

func (s *Store[T]) decode(data []byte) (T, *domain.StorageCorruptionError) {
	doc := s.newDefault()
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		corrupt := &domain.StorageCorruptionError{Path: s.path, Err: err}
		telemetry.StoreDegradedTotal.WithLabelValues("corrupt").Inc()
		s.opts.logger.Warn("document unreadable, using empty default",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return s.newDefault(), corrupt
	}
	return doc, nil
}

func (s *Store[T]) openForWrite() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(s.path), err)
	}
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	return f, nil
}

func (s *Store[T]) overwrite(f *os.File, data []byte) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate %s: %w", s.path, err)
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	return nil
}

func (s *Store[T]) backup(data []byte, tag string) (string, error) {
	name := fmt.Sprintf("%s.%s-%s", s.path, tag, s.opts.now().UTC().Format("20060102T150405.000000000"))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup %s: %w", name, err)
	}
	return name, nil
}

// lock takes the lock or records why it could not, and always returns a
// release func.
func (s *Store[T]) lock(ctx context.Context, f *os.File, mode filelock.Mode, rep *Report) func() {
	err := s.acquire(ctx, f, mode)
	if err == nil {
		return func() {
			if err := s.opts.locker.Unlock(f); err != nil {
				s.opts.logger.Warn("unlock failed", slog.String("path", s.path), slog.String("error", err.Error()))
			}
		}
	}
	rep.Unlocked = &domain.LockUnavailableError{Path: s.path, Err: err}
	telemetry.StoreDegradedTotal.WithLabelValues("unlocked").Inc()
	s.opts.logger.Warn("lock unavailable, continuing unlocked",
		slog.String("path", s.path),
		slog.String("mode", mode.String()),
		slog.String("error", err.Error()),
	)
	return func() {}
}

var errLockBusy = errors.New("lock held by another process")

func (s *Store[T]) acquire(ctx context.Context, f *os.File, mode filelock.Mode) error {
	if s.opts.lockTimeout <= 0 {
		return s.opts.locker.Lock(f, mode)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.lockTimeout)
	defer cancel()

	var hard error
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: math.MaxInt32,
		BaseDelay:   s.opts.pollInterval,
		MaxDelay:    20 * s.opts.pollInterval,
	}, func() error {
		ok, err := s.opts.locker.TryLock(f, mode)
		if err != nil {
			hard = err
			return nil
		}
		if !ok {
			return errLockBusy
		}
		return nil
	})
	if hard != nil {
		return hard
	}
	if err != nil {
		return fmt.Errorf("after %s: %w", s.opts.lockTimeout, err)
	}
	return nil
}
