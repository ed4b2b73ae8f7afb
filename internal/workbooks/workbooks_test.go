package workbooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/require"
)

// fakeGate implements WorkbookGate for tests with counters.
type fakeGate struct {
	acquireErr error
	acquires   atomic.Int64
	releases   atomic.Int64
}

func (g *fakeGate) AcquireWorkbook(ctx context.Context) error {
	g.acquires.Add(1)
	return g.acquireErr
}
func (g *fakeGate) ReleaseWorkbook() { g.releases.Add(1) }

func newBook(t *testing.T, m *Manager) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.xlsx")
	_, err := m.Create(context.Background(), path, "Data", false)
	require.NoError(t, err)
	return path
}

func TestCreate_SheetAndOverwrite(t *testing.T) {
	m := NewManager(Options{})
	path := filepath.Join(t.TempDir(), "nested", "book.xlsx")

	got, err := m.Create(context.Background(), path, "Data", false)
	require.NoError(t, err)
	require.Equal(t, path, got)

	require.NoError(t, m.View(context.Background(), path, func(wb *Workbook) error {
		require.Equal(t, []string{"Data"}, wb.File.GetSheetList())
		return nil
	}))

	_, err = m.Create(context.Background(), path, "", false)
	require.ErrorIs(t, err, ErrExists)

	_, err = m.Create(context.Background(), path, "", true)
	require.NoError(t, err)
	require.NoError(t, m.View(context.Background(), path, func(wb *Workbook) error {
		require.Equal(t, []string{"Sheet1"}, wb.File.GetSheetList())
		return nil
	}))
}

func TestUpdate_SavesOnSuccessOnly(t *testing.T) {
	m := NewManager(Options{})
	path := newBook(t, m)
	ctx := context.Background()

	require.NoError(t, m.Update(ctx, path, func(wb *Workbook) error {
		return wb.File.SetCellValue("Data", "A1", "kept")
	}))

	boom := errors.New("boom")
	err := m.Update(ctx, path, func(wb *Workbook) error {
		require.NoError(t, wb.File.SetCellValue("Data", "A1", "discarded"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, m.View(ctx, path, func(wb *Workbook) error {
		v, err := wb.File.GetCellValue("Data", "A1")
		require.NoError(t, err)
		require.Equal(t, "kept", v)
		return nil
	}))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestView_DoesNotPersist(t *testing.T) {
	m := NewManager(Options{})
	path := newBook(t, m)
	ctx := context.Background()

	require.NoError(t, m.View(ctx, path, func(wb *Workbook) error {
		return wb.File.SetCellValue("Data", "B2", 5)
	}))
	require.NoError(t, m.View(ctx, path, func(wb *Workbook) error {
		v, err := wb.File.GetCellValue("Data", "B2")
		require.NoError(t, err)
		require.Empty(t, v)
		return nil
	}))
}

func TestVersionChangesAfterUpdate(t *testing.T) {
	m := NewManager(Options{})
	path := newBook(t, m)
	ctx := context.Background()

	version := func() int64 {
		var v int64
		require.NoError(t, m.View(ctx, path, func(wb *Workbook) error {
			v = wb.Version
			return nil
		}))
		return v
	}
	before := version()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.Update(ctx, path, func(wb *Workbook) error {
		require.Equal(t, before, wb.Version)
		return wb.File.SetCellValue("Data", "A1", 1)
	}))

	require.NotEqual(t, before, version())
}

func TestOpenFailed(t *testing.T) {
	m := NewManager(Options{})
	path := filepath.Join(t.TempDir(), "junk.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
	err := m.View(context.Background(), path, func(*Workbook) error { return nil })
	require.Error(t, err)
}

func TestGateAcquiredAndReleased(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(Options{Gate: gate})
	path := newBook(t, m)

	require.NoError(t, m.View(context.Background(), path, func(*Workbook) error { return nil }))
	require.Equal(t, int64(2), gate.acquires.Load())
	require.Equal(t, int64(2), gate.releases.Load())

	gate.acquireErr = context.DeadlineExceeded
	err := m.View(context.Background(), path, func(*Workbook) error { return nil })
	require.ErrorIs(t, err, ErrBusy)
}

func TestWriterExcludesReaders(t *testing.T) {
	m := NewManager(Options{LockTimeout: 30 * time.Millisecond})
	path := newBook(t, m)

	inside := make(chan struct{})
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.Update(context.Background(), path, func(*Workbook) error {
			close(inside)
			<-done
			return nil
		})
	}()
	<-inside

	err := m.View(context.Background(), path, func(*Workbook) error { return nil })
	require.ErrorIs(t, err, ErrBusy)

	close(done)
	wg.Wait()
	require.NoError(t, m.View(context.Background(), path, func(*Workbook) error { return nil }))
}

func TestReadersShare(t *testing.T) {
	m := NewManager(Options{LockTimeout: time.Second})
	path := newBook(t, m)

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_ = m.View(context.Background(), path, func(*Workbook) error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	close(start)
	wg.Wait()
	require.Greater(t, peak.Load(), int32(1))
}

func TestFileLockAcrossManagers(t *testing.T) {
	lockDir := t.TempDir()
	m := NewManager(Options{LockDir: lockDir, LockTimeout: 50 * time.Millisecond})
	path := newBook(t, m)

	canonical, err := filepath.Abs(path)
	require.NoError(t, err)
	other := flock.New(LockFile(lockDir, canonical))
	ok, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, ok)

	err = m.Update(context.Background(), path, func(*Workbook) error { return nil })
	require.ErrorIs(t, err, ErrBusy)

	require.NoError(t, other.Unlock())
	require.NoError(t, m.Update(context.Background(), path, func(*Workbook) error { return nil }))
}

func TestLocksReleased(t *testing.T) {
	m := NewManager(Options{})
	path := newBook(t, m)
	require.NoError(t, m.View(context.Background(), path, func(*Workbook) error { return nil }))
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Empty(t, m.locks)
}
