package settings

import (
	"context"

	"github.com/spf13/afero"
	"github.com/wizzomafizzo/yapper/logging"
)

// loadOutcome identifies which recovery tier produced a snapshot.
type loadOutcome int

const (
	loadedMain loadOutcome = iota
	loadedBackup
	loadedDefaults
)

// recoverLoad walks the recovery tiers in order: the main file, then the
// backup, then built-in defaults. It only reads; repairing the files on
// disk is the caller's job. The returned flag reports whether the winning
// tier needed a schema migration.
func (m *Manager) recoverLoad(ctx context.Context) (Snapshot, loadOutcome, bool) {
	logger := logging.Get(ctx)

	s, migrated, err := loadTier(m.fs, m.mainPath)
	if err == nil {
		return s, loadedMain, migrated
	}
	if isNotExist(err) {
		logger.Debug().Str("path", m.mainPath).Msg("no settings file, trying backup")
	} else {
		logger.Warn().Str("path", m.mainPath).Err(err).Msg("settings file unusable, trying backup")
	}

	s, migrated, err = loadTier(m.fs, m.backupPath)
	if err == nil {
		return s, loadedBackup, migrated
	}
	if isNotExist(err) {
		logger.Debug().Str("path", m.backupPath).Msg("no settings backup, using defaults")
	} else {
		logger.Warn().Str("path", m.backupPath).Err(err).Msg("settings backup unusable, using defaults")
	}

	return Default(), loadedDefaults, false
}

// loadTier reads, migrates and validates one settings file. A snapshot is
// only usable when all three succeed.
func loadTier(fs afero.Fs, path string) (Snapshot, bool, error) {
	s, err := readSnapshot(fs, path)
	if err != nil {
		return Snapshot{}, false, err
	}

	s, migrated, err := migrate(s)
	if err != nil {
		return Snapshot{}, false, err
	}

	if err := s.Validate(); err != nil {
		return Snapshot{}, false, err
	}
	return s, migrated, nil
}
