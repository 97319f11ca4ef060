package settings

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when a snapshot is saved through a store that has
// been closed.
var ErrClosed = errors.New("settings: store closed")

// PermissionError reports a settings directory that failed the writability
// probe before a save.
type PermissionError struct {
	Err  error
	Path string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("settings directory is not writable: %s", e.Path)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// FileTooLargeError reports a settings file rejected before parsing because
// it exceeds MaxSettingsFileSize.
type FileTooLargeError struct {
	Path string
	Size int64
	Max  int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("settings file too large: %s is %d bytes (limit %d)", e.Path, e.Size, e.Max)
}

// ParseError reports a document that does not satisfy the settings schema:
// malformed JSON, an unknown field, a mistyped field, or a value outside
// its allowed range. Field holds the JSON name of the offending field when
// one can be identified.
type ParseError struct {
	Field   string
	Message string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid settings document: %s", e.Message)
	}
	return fmt.Sprintf("invalid settings field %s: %s", e.Field, e.Message)
}

// MigrationError reports a snapshot that cannot be brought to
// CurrentSchemaVersion.
type MigrationError struct {
	Reason string
	From   uint32
	To     uint32
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("cannot migrate settings from version %d to %d: %s", e.From, e.To, e.Reason)
}

// BackupError reports a failed copy onto the backup file during a save.
type BackupError struct {
	Err  error
	Path string
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("failed to update settings backup %s: %v", e.Path, e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }

// IOError reports a filesystem failure outside the other categories, tagged
// with the operation that failed.
type IOError struct {
	Err  error
	Op   string
	Path string
}

func (e *IOError) Error() string {
	return fmt.Sprintf("settings %s failed: %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
