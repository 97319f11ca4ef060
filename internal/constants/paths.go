// Package constants contains names for the files yapper keeps on disk.
package constants

const (
	// SettingsFilename is the authoritative settings document.
	SettingsFilename = "settings.json"

	// BackupFilename is the rolling copy of the last committed settings.
	BackupFilename = "settings.json.backup"

	// TempFilename is the staging file settings are written through before
	// being renamed over SettingsFilename.
	TempFilename = "settings.json.tmp"

	// LogFilename is the default log file name for yapper.
	LogFilename = "yapper.log"
)
