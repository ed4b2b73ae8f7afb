package workbooks

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/shmaxi/excel-mcp-server/config"
	"github.com/shmaxi/excel-mcp-server/pkg/mcperr"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/semaphore"
)

// ErrBusy indicates a workbook lock or open slot could not be obtained in time.
var ErrBusy = errors.New("workbooks: workbook is busy")

// ErrExists indicates Create found a file at the target path.
var ErrExists = errors.New("workbooks: file already exists")

// WorkbookGate coordinates capacity for open workbooks (backed by runtime.Controller).
type WorkbookGate interface {
	AcquireWorkbook(ctx context.Context) error
	ReleaseWorkbook()
}

// PathValidator abstracts filesystem path validation. Implementations
// return a canonical absolute path if allowed, or an error when denied.
type PathValidator interface {
	ValidateOpenPath(path string) (string, error)
	ValidateCreatePath(path string) (string, error)
}

// Workbook is an open workbook scoped to a single View or Update call.
type Workbook struct {
	File *excelize.File
	// Path is the canonical absolute path.
	Path string
	// Version is the file modification time at open, in unix nanoseconds.
	Version int64
}

// Options configures a Manager. Zero values disable the corresponding guard.
type Options struct {
	Gate        WorkbookGate
	Validator   PathValidator
	LockDir     string
	LockTimeout time.Duration
}

// Manager opens workbooks per call, serializing access per canonical path.
// Readers share a path; a writer holds it exclusively from open to save.
// When LockDir is set, an advisory file lock extends the same discipline
// across processes.
type Manager struct {
	opts  Options
	mu    sync.Mutex
	locks map[string]*pathLock
}

// writerWeight is the semaphore weight taken by a writer; readers take 1.
const writerWeight = 1 << 20

type pathLock struct {
	sem  *semaphore.Weighted
	refs int
}

// NewManager constructs a Manager.
func NewManager(opts Options) *Manager {
	if opts.LockTimeout < 0 {
		opts.LockTimeout = config.DefaultLockTimeout
	}
	return &Manager{opts: opts, locks: make(map[string]*pathLock)}
}

// View opens the workbook at path read-only and calls fn. Changes made by fn
// are discarded.
func (m *Manager) View(ctx context.Context, path string, fn func(*Workbook) error) error {
	canonical, err := m.resolve(path, false)
	if err != nil {
		return err
	}
	unlock, err := m.lock(ctx, canonical, false)
	if err != nil {
		return err
	}
	defer unlock()
	return m.withFile(ctx, canonical, fn)
}

// Update opens the workbook at path exclusively, calls fn and saves the
// workbook when fn succeeds. A failing fn or a cancelled context leaves the
// file untouched.
func (m *Manager) Update(ctx context.Context, path string, fn func(*Workbook) error) error {
	canonical, err := m.resolve(path, false)
	if err != nil {
		return err
	}
	unlock, err := m.lock(ctx, canonical, true)
	if err != nil {
		return err
	}
	defer unlock()
	return m.withFile(ctx, canonical, func(wb *Workbook) error {
		if err := fn(wb); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return save(wb.File, canonical)
	})
}

// Create writes a new workbook with a single sheet named sheet. An existing
// file is replaced only when overwrite is set. Missing parent directories are
// created. It returns the canonical path.
func (m *Manager) Create(ctx context.Context, path, sheet string, overwrite bool) (string, error) {
	canonical, err := m.resolve(path, true)
	if err != nil {
		return "", err
	}
	unlock, err := m.lock(ctx, canonical, true)
	if err != nil {
		return "", err
	}
	defer unlock()

	if _, err := os.Stat(canonical); err == nil && !overwrite {
		return "", ErrExists
	}
	if err := os.MkdirAll(filepath.Dir(canonical), 0o755); err != nil {
		return "", mcperr.Wrap(mcperr.WriteFailed, err, "create parent directory")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if sheet == "" {
		sheet = config.DefaultSheetName
	}
	if sheet != config.DefaultSheetName {
		if err := f.SetSheetName(config.DefaultSheetName, sheet); err != nil {
			return "", mcperr.Wrap(mcperr.Validation, err, "invalid sheet name")
		}
	}
	if err := save(f, canonical); err != nil {
		return "", err
	}
	return canonical, nil
}

func (m *Manager) resolve(path string, create bool) (string, error) {
	if m.opts.Validator == nil {
		return filepath.Abs(path)
	}
	if create {
		return m.opts.Validator.ValidateCreatePath(path)
	}
	return m.opts.Validator.ValidateOpenPath(path)
}

func (m *Manager) withFile(ctx context.Context, path string, fn func(*Workbook) error) error {
	version, err := fileVersion(path)
	if err != nil {
		return err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return mcperr.Wrap(mcperr.OpenFailed, err, "open "+filepath.Base(path))
	}
	defer func() { _ = f.Close() }()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&Workbook{File: f, Path: path, Version: version})
}

// lock acquires the workbook slot, the in-process path lock and, when
// configured, the cross-process file lock, in that order. The returned func
// releases all three.
func (m *Manager) lock(ctx context.Context, path string, exclusive bool) (func(), error) {
	lockCtx := ctx
	if m.opts.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, m.opts.LockTimeout)
		defer cancel()
	}
	busy := func(err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", ErrBusy, filepath.Base(path), err)
	}

	if m.opts.Gate != nil {
		if err := m.opts.Gate.AcquireWorkbook(lockCtx); err != nil {
			return nil, busy(err)
		}
	}
	releaseGate := func() {
		if m.opts.Gate != nil {
			m.opts.Gate.ReleaseWorkbook()
		}
	}

	weight := int64(1)
	if exclusive {
		weight = writerWeight
	}
	pl := m.ref(path)
	if err := pl.sem.Acquire(lockCtx, weight); err != nil {
		m.unref(path)
		releaseGate()
		return nil, busy(err)
	}
	releasePath := func() {
		pl.sem.Release(weight)
		m.unref(path)
	}

	var fl *flock.Flock
	if m.opts.LockDir != "" {
		var err error
		fl, err = m.fileLock(lockCtx, path, exclusive)
		if err != nil {
			releasePath()
			releaseGate()
			return nil, busy(err)
		}
	}

	return func() {
		if fl != nil {
			_ = fl.Unlock()
		}
		releasePath()
		releaseGate()
	}, nil
}

func (m *Manager) fileLock(ctx context.Context, path string, exclusive bool) (*flock.Flock, error) {
	if err := os.MkdirAll(m.opts.LockDir, 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(LockFile(m.opts.LockDir, path))
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = fl.TryLockContext(ctx, 25*time.Millisecond)
	} else {
		ok, err = fl.TryRLockContext(ctx, 25*time.Millisecond)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("file lock held by another process")
	}
	return fl, nil
}

// LockFile returns the lock file used for the canonical path under dir.
func LockFile(dir, canonical string) string {
	sum := sha1.Sum([]byte(canonical))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+".lock")
}

func (m *Manager) ref(path string) *pathLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl, ok := m.locks[path]
	if !ok {
		pl = &pathLock{sem: semaphore.NewWeighted(writerWeight)}
		m.locks[path] = pl
	}
	pl.refs++
	return pl
}

func (m *Manager) unref(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl, ok := m.locks[path]
	if !ok {
		return
	}
	pl.refs--
	if pl.refs <= 0 {
		delete(m.locks, path)
	}
}

func fileVersion(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, mcperr.Wrap(mcperr.OpenFailed, err, "stat "+filepath.Base(path))
	}
	return info.ModTime().UnixNano(), nil
}

// save writes f to a sibling temp file and renames it over path. The temp
// file keeps path's extension so the workbook content type is preserved.
func save(f *excelize.File, path string) error {
	ext := filepath.Ext(path)
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()[:8]+ext)
	if err := f.SaveAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return mcperr.Wrap(mcperr.WriteFailed, err, "save "+filepath.Base(path))
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return mcperr.Wrap(mcperr.WriteFailed, err, "replace "+filepath.Base(path))
	}
	return nil
}
