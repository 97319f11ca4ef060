package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/wizzomafizzo/yapper/logging"
)

const (
	fileMode      = 0o600
	probeFilename = ".write-probe"
)

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// ensureWritable verifies the settings directory exists and accepts a
// written-then-deleted probe file.
func ensureWritable(fs afero.Fs, dir string) error {
	info, err := fs.Stat(dir)
	if err != nil {
		return &PermissionError{Path: dir, Err: err}
	}
	if !info.IsDir() {
		return &PermissionError{Path: dir, Err: fmt.Errorf("%s is not a directory", dir)}
	}

	probe := filepath.Join(dir, probeFilename)
	if err := afero.WriteFile(fs, probe, []byte("ok"), fileMode); err != nil {
		return &PermissionError{Path: dir, Err: err}
	}
	if err := fs.Remove(probe); err != nil {
		return &PermissionError{Path: dir, Err: err}
	}
	return nil
}

// readSnapshot loads a single settings file without migrating or validating
// it. Files over MaxSettingsFileSize are rejected before any parsing.
func readSnapshot(fs afero.Fs, path string) (Snapshot, error) {
	var s Snapshot

	info, err := fs.Stat(path)
	if err != nil {
		return s, &IOError{Op: "stat", Path: path, Err: err}
	}
	if info.Size() > MaxSettingsFileSize {
		return s, &FileTooLargeError{Path: path, Size: info.Size(), Max: MaxSettingsFileSize}
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return s, &IOError{Op: "read", Path: path, Err: err}
	}

	if err := decodeStrict(data, &s); err != nil {
		return s, err
	}
	return s, nil
}

// decodeStrict unmarshals exactly one JSON document, rejecting unknown
// fields and trailing content.
func decodeStrict(data []byte, s *Snapshot) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(s); err != nil {
		return asParseError(err)
	}
	if dec.More() {
		return &ParseError{Message: "trailing data after settings document"}
	}
	return nil
}

// asParseError converts an encoding/json error into a field-qualified
// ParseError where the field can be identified.
func asParseError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ParseError{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
		}
	}

	var synErr *json.SyntaxError
	if errors.As(err, &synErr) {
		return &ParseError{
			Message: fmt.Sprintf("malformed JSON at offset %d: %v", synErr.Offset, synErr),
		}
	}

	// encoding/json reports unknown fields as a plain error with the field
	// name quoted in the message.
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return &ParseError{Field: strings.Trim(name, `"`), Message: "unknown field"}
	}

	return &ParseError{Message: err.Error()}
}

// writeSnapshot persists s crash-safely: rotate the current main file into
// the backup, stage the new document in the temp file, then rename it over
// the main path. The caller holds the directory lock.
func (m *Manager) writeSnapshot(ctx context.Context, s Snapshot) (Snapshot, error) {
	now := time.Now().UTC()
	s.Version = CurrentSchemaVersion
	s.UpdatedAt = now
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return s, &IOError{Op: "encode", Path: m.mainPath, Err: err}
	}

	hadMain, err := m.rotateBackup(ctx)
	if err != nil {
		return s, err
	}

	if err := writeFileSync(m.fs, m.tempPath, data); err != nil {
		_ = m.fs.Remove(m.tempPath)
		return s, err
	}

	if err := m.fs.Rename(m.tempPath, m.mainPath); err != nil {
		// The temp file is left behind; the next save overwrites it.
		return s, &IOError{Op: "rename", Path: m.tempPath, Err: err}
	}

	if !hadMain {
		// First save into an empty directory seeds the backup so recovery
		// has a second copy from the start.
		if err := copyFile(m.fs, m.mainPath, m.backupPath); err != nil {
			logging.Get(ctx).Warn().Err(err).Msg("failed to seed settings backup")
		}
	}

	return s, nil
}

// rotateBackup copies the current main file over the backup path so the
// backup holds the last committed state before new data lands. It reports
// whether a main file existed. A main file that would not load is never
// rotated; the backup keeps the last good copy instead.
func (m *Manager) rotateBackup(ctx context.Context) (bool, error) {
	if _, err := m.fs.Stat(m.mainPath); err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, &BackupError{Path: m.backupPath, Err: err}
	}

	if _, _, err := loadTier(m.fs, m.mainPath); err != nil {
		logging.Get(ctx).Warn().
			Str("path", m.mainPath).
			Err(err).
			Msg("not rotating unloadable settings file into backup")
		return true, nil
	}

	return true, copyFile(m.fs, m.mainPath, m.backupPath)
}

// writeFileSync writes data to path and flushes it to stable storage.
func writeFileSync(fs afero.Fs, path string, data []byte) error {
	file, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return &IOError{Op: "sync", Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}
	return nil
}

func copyFile(fs afero.Fs, src, dst string) error {
	data, err := afero.ReadFile(fs, src)
	if err != nil {
		return &BackupError{Path: dst, Err: err}
	}
	if err := afero.WriteFile(fs, dst, data, fileMode); err != nil {
		return &BackupError{Path: dst, Err: err}
	}
	return nil
}
