// Package storage provides XDG-compliant storage path management for yapper.
package storage

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
	"github.com/wizzomafizzo/yapper/internal/constants"
)

const (
	// AppName is the application name used for XDG directory paths
	AppName = "yapper"
)

// Manager handles storage operations with filesystem abstraction
type Manager struct {
	fs  afero.Fs
	dir string
}

// New creates a new storage manager with the given filesystem
func New(fs afero.Fs) *Manager {
	return &Manager{fs: fs}
}

// NewWithDir creates a storage manager that keeps settings in an explicit
// directory instead of the platform config directory
func NewWithDir(fs afero.Fs, dir string) *Manager {
	return &Manager{fs: fs, dir: filepath.Clean(dir)}
}

// GetConfigDir returns the settings directory for yapper, creating it if necessary
func (m *Manager) GetConfigDir() (string, error) {
	configDir := m.dir
	if configDir == "" {
		configDir = filepath.Join(xdg.ConfigHome, AppName)
	}
	err := m.fs.MkdirAll(configDir, 0o750)
	if err != nil {
		return "", fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return configDir, nil
}

// GetSettingsPath returns the full path to the authoritative settings file
func (m *Manager) GetSettingsPath() (string, error) {
	configDir, err := m.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, constants.SettingsFilename), nil
}

// GetBackupPath returns the full path to the settings backup file
func (m *Manager) GetBackupPath() (string, error) {
	configDir, err := m.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, constants.BackupFilename), nil
}

// GetTempPath returns the full path to the settings staging file
func (m *Manager) GetTempPath() (string, error) {
	configDir, err := m.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, constants.TempFilename), nil
}

// GetDataDir returns the XDG data directory for yapper, creating it if necessary
func (m *Manager) GetDataDir() (string, error) {
	dataDir := filepath.Join(xdg.DataHome, AppName)
	err := m.fs.MkdirAll(dataDir, 0o750)
	if err != nil {
		return "", fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return dataDir, nil
}

// GetLogPath returns the full path to the yapper log file
func (m *Manager) GetLogPath() (string, error) {
	dataDir, err := m.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, constants.LogFilename), nil
}
