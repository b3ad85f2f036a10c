package jsonstore_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-task-queue/internal/filelock"
	"github.com/ramiqadoumi/go-task-queue/internal/jsonstore"
)

type doc struct {
	Version string            `json:"version"`
	Items   []string          `json:"items"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func newDoc() doc { return doc{Version: "1.0", Items: []string{}} }

func newStore(t *testing.T, opts ...jsonstore.Option) *jsonstore.Store[doc] {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	return jsonstore.New(path, newDoc, opts...)
}

// ── mocks ────────────────────────────────────────────────────────────────────

type unsupportedLocker struct{}

func (unsupportedLocker) Lock(*os.File, filelock.Mode) error { return filelock.ErrUnsupported }
func (unsupportedLocker) TryLock(*os.File, filelock.Mode) (bool, error) {
	return false, filelock.ErrUnsupported
}
func (unsupportedLocker) Unlock(*os.File) error { return nil }

type busyLocker struct{ tries int }

func (b *busyLocker) Lock(*os.File, filelock.Mode) error { return errors.New("should not block") }
func (b *busyLocker) TryLock(*os.File, filelock.Mode) (bool, error) {
	b.tries++
	return false, nil
}
func (b *busyLocker) Unlock(*os.File) error { return nil }

// ── tests ─────────────────────────────────────────────────────────────────────

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	s := newStore(t)
	d, rep, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Missing)
	assert.False(t, rep.Degraded())
	assert.Equal(t, newDoc(), d)
}

func TestLoad_CorruptFileReturnsDefaultEveryTime(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"items": [`), 0o644))

	for i := 0; i < 3; i++ {
		d, rep, err := s.Load(context.Background())
		require.NoError(t, err, "parse errors must never propagate")
		assert.True(t, rep.Recovered())
		assert.Equal(t, newDoc(), d)
		assert.NotEmpty(t, rep.Warnings())
	}

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, `{"items": [`, string(raw), "load must leave the corrupt file alone")
}

func TestSaveLoad_RoundTripIsByteIdentical(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Save(ctx, doc{Version: "1.0", Items: []string{"b", "a"}, Meta: map[string]string{"z": "1", "a": "2"}})
	require.NoError(t, err)

	d, _, err := s.Load(ctx)
	require.NoError(t, err)
	_, err = s.Save(ctx, d)
	require.NoError(t, err)
	first, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	d, _, err = s.Load(ctx)
	require.NoError(t, err)
	_, err = s.Save(ctx, d)
	require.NoError(t, err)
	second, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), "\"a\": \"2\",\n    \"z\": \"1\"", "map keys are written sorted")
}

func TestUpdate_CallbackErrorWritesNothing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Save(ctx, doc{Version: "1.0", Items: []string{"keep"}})
	require.NoError(t, err)

	sentinel := errors.New("validation failed")
	_, err = s.Update(ctx, func(d *doc) error {
		d.Items = append(d.Items, "dropped")
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	d, _, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, d.Items)
}

func TestUpdate_ConcurrentWritersLoseNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	const writers = 20

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Separate Store values open separate handles, like separate processes.
			s := jsonstore.New(path, newDoc)
			_, err := s.Update(context.Background(), func(d *doc) error {
				d.Items = append(d.Items, fmt.Sprintf("item-%d", i))
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	d, rep, err := jsonstore.New(path, newDoc).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Recovered(), "concurrent writes must never leave a corrupt mix")
	assert.Len(t, d.Items, writers)
}

func TestSave_ConcurrentSavesLeaveOneIntactState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	a := doc{Version: "1.0", Items: []string{"alpha"}}
	b := doc{Version: "1.0", Items: []string{"beta", "beta", "beta", "beta"}}

	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		for _, d := range []doc{a, b} {
			wg.Add(1)
			go func(d doc) {
				defer wg.Done()
				_, err := jsonstore.New(path, newDoc).Save(context.Background(), d)
				assert.NoError(t, err)
			}(d)
		}
		wg.Wait()

		got, rep, err := jsonstore.New(path, newDoc).Load(context.Background())
		require.NoError(t, err)
		require.False(t, rep.Recovered())
		assert.True(t, assert.ObjectsAreEqual(a, got) || assert.ObjectsAreEqual(b, got), "got %+v", got)
	}
}

func TestUpdate_CorruptContentIsPreserved(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s := newStore(t, jsonstore.WithClock(func() time.Time { return now }))
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("not json"), 0o644))

	rep, err := s.Update(context.Background(), func(d *doc) error {
		d.Items = append(d.Items, "fresh")
		return nil
	})
	require.NoError(t, err)
	require.True(t, rep.Recovered())
	require.NotEmpty(t, rep.Backup)

	kept, err := os.ReadFile(rep.Backup)
	require.NoError(t, err)
	assert.Equal(t, "not json", string(kept))

	d, _, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, d.Items)
}

func TestReset_BacksUpAndWritesDefault(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Save(ctx, doc{Version: "1.0", Items: []string{"x"}})
	require.NoError(t, err)

	backup, err := s.Reset(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, backup)
	assert.FileExists(t, backup)

	d, rep, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, rep.Missing)
	assert.Equal(t, newDoc(), d)
}

func TestUnsupportedLocker_DegradesToUnlocked(t *testing.T) {
	s := newStore(t, jsonstore.WithLocker(unsupportedLocker{}))
	rep, err := s.Update(context.Background(), func(d *doc) error {
		d.Items = append(d.Items, "written anyway")
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, rep.Unlocked)
	assert.ErrorIs(t, rep.Unlocked, filelock.ErrUnsupported)

	d, rep, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rep.Unlocked)
	assert.Equal(t, []string{"written anyway"}, d.Items)
}

func TestLockTimeout_PollsThenDegrades(t *testing.T) {
	bl := &busyLocker{}
	s := newStore(t,
		jsonstore.WithLocker(bl),
		jsonstore.WithLockTimeout(30*time.Millisecond),
		jsonstore.WithPollInterval(time.Millisecond),
	)
	rep, err := s.Save(context.Background(), newDoc())
	require.NoError(t, err)
	require.NotNil(t, rep.Unlocked)
	assert.ErrorIs(t, rep.Unlocked, context.DeadlineExceeded)
	assert.Greater(t, bl.tries, 1)
}
