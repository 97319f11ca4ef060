package settings

import (
	"context"
	"sync"

	"github.com/spf13/afero"
	"github.com/wizzomafizzo/yapper/internal/storage"
	"github.com/wizzomafizzo/yapper/logging"
)

// Store is the read/write contract the rest of yapper programs against.
// Manager persists every save synchronously; Debouncer coalesces bursts.
type Store interface {
	Load(ctx context.Context) Snapshot
	Save(ctx context.Context, s Snapshot) error
}

var (
	_ Store = (*Manager)(nil)
	_ Store = (*Debouncer)(nil)
)

// Manager owns one settings directory: the authoritative settings.json,
// its rolling backup and the staging temp file.
type Manager struct {
	fs         afero.Fs
	mu         *sync.Mutex
	dir        string
	mainPath   string
	backupPath string
	tempPath   string
}

// Options configures Manager construction. The zero value selects the
// operating system filesystem and the platform config directory.
type Options struct {
	// Fs is the filesystem snapshots are persisted to. Nil means the
	// operating system filesystem.
	Fs afero.Fs

	// Dir overrides the settings directory. Empty means the yapper
	// directory under the platform config root.
	Dir string
}

// New creates a settings manager, creating the settings directory when it
// does not exist yet.
func New(opts Options) (*Manager, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	var paths *storage.Manager
	if opts.Dir == "" {
		paths = storage.New(fs)
	} else {
		paths = storage.NewWithDir(fs, opts.Dir)
	}

	dir, err := paths.GetConfigDir()
	if err != nil {
		return nil, err
	}
	mainPath, err := paths.GetSettingsPath()
	if err != nil {
		return nil, err
	}
	backupPath, err := paths.GetBackupPath()
	if err != nil {
		return nil, err
	}
	tempPath, err := paths.GetTempPath()
	if err != nil {
		return nil, err
	}

	return &Manager{
		fs:         fs,
		mu:         lockFor(dir),
		dir:        dir,
		mainPath:   mainPath,
		backupPath: backupPath,
		tempPath:   tempPath,
	}, nil
}

// Dir returns the resolved settings directory.
func (m *Manager) Dir() string { return m.dir }

// Load returns the current settings. It cannot fail: a damaged main file
// is recovered from the backup or from built-in defaults, and snapshots
// from older releases are migrated. Whenever recovery or migration changed
// what the main file should hold, the result is persisted back; if even
// that fails the snapshot is still returned and the failure only logged.
func (m *Manager) Load(ctx context.Context) Snapshot {
	s, outcome, migrated := m.recoverLoad(ctx)
	if outcome == loadedMain && !migrated {
		return s
	}

	repaired, err := m.persist(ctx, s, outcome == loadedDefaults)
	if err != nil {
		logging.Get(ctx).Warn().Err(err).
			Msg("could not repair settings on disk, continuing with recovered snapshot")
		return s
	}
	return repaired
}

// Save validates and persists s. The write is atomic: a load racing the
// save observes either the old document or the new one, never a mix. Save
// stamps Version and UpdatedAt, and CreatedAt when unset.
func (m *Manager) Save(ctx context.Context, s Snapshot) error {
	_, err := m.persist(ctx, s, false)
	return err
}

// persist runs one serialized save: validate, probe the directory, then
// the rotate/stage/rename sequence. With mirror set the committed document
// is also copied over the backup, which otherwise keeps the prior state.
func (m *Manager) persist(ctx context.Context, s Snapshot, mirror bool) (Snapshot, error) {
	if err := s.Validate(); err != nil {
		return s, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ensureWritable(m.fs, m.dir); err != nil {
		return s, err
	}

	saved, err := m.writeSnapshot(ctx, s)
	if err != nil {
		return s, err
	}

	if mirror {
		if err := copyFile(m.fs, m.mainPath, m.backupPath); err != nil {
			logging.Get(ctx).Warn().Err(err).Msg("failed to mirror settings backup")
		}
	}
	return saved, nil
}

// Save locks are shared per directory so independent managers over the
// same settings never interleave their rotate/stage/rename sequences.
var (
	dirLocksMu sync.Mutex
	dirLocks   = map[string]*sync.Mutex{}
)

func lockFor(dir string) *sync.Mutex {
	dirLocksMu.Lock()
	defer dirLocksMu.Unlock()

	if lock, ok := dirLocks[dir]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	dirLocks[dir] = lock
	return lock
}
