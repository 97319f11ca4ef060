package settings

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wizzomafizzo/yapper/internal/testutil"
)

func writeSnapshotFile(t *testing.T, fs afero.Fs, path string, s Snapshot) {
	t.Helper()

	data, err := json.MarshalIndent(s, "", "  ")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, path, data, fileMode))
}

func assertDefaultValues(t *testing.T, s Snapshot) {
	t.Helper()

	d := Default()
	assert.Equal(t, d.HotKey, s.HotKey)
	assert.Equal(t, d.ModelSize, s.ModelSize)
	assert.Equal(t, d.AudioDurationSecs, s.AudioDurationSecs)
	assert.Equal(t, d.AutoLaunch, s.AutoLaunch)
	assert.Equal(t, d.TranscriptionLanguage, s.TranscriptionLanguage)
	assert.Equal(t, CurrentSchemaVersion, s.Version)
}

func TestLoadFirstRunPersistsDefaults(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.NewTestContext(t)
	manager := newTestManager(t)

	got := manager.Load(ctx)

	assertDefaultValues(t, got)

	main := readFileSnapshot(t, manager.fs, manager.mainPath)
	backup := readFileSnapshot(t, manager.fs, manager.backupPath)
	assertDefaultValues(t, main)
	assertDefaultValues(t, backup)
}

func TestLoadReturnsSavedSnapshotUnchanged(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.NewTestContext(t)
	manager := newTestManager(t)

	s := Default()
	s.HotKey = "F8"
	s.ModelSize = ModelSmall
	s.AudioDurationSecs = 25
	s.AutoLaunch = true
	s.TranscriptionLanguage = "pt-BR"
	require.NoError(t, manager.Save(ctx, s))

	before, err := afero.ReadFile(manager.fs, manager.mainPath)
	require.NoError(t, err)

	got := manager.Load(ctx)

	assert.Equal(t, readFileSnapshot(t, manager.fs, manager.mainPath), got)
	assert.Equal(t, "F8", got.HotKey)
	assert.Equal(t, ModelSmall, got.ModelSize)
	assert.Equal(t, uint32(25), got.AudioDurationSecs)
	assert.True(t, got.AutoLaunch)
	assert.Equal(t, "pt-BR", got.TranscriptionLanguage)

	after, err := afero.ReadFile(manager.fs, manager.mainPath)
	require.NoError(t, err)
	assert.Equal(t, before, after, "loading a healthy file must not rewrite it")
}

func TestLoadRecoversFromBackupAfterCorruption(t *testing.T) {
	t.Parallel()

	ctx, getLogOutput := testutil.NewTestContext(t)
	manager := newTestManager(t)

	require.NoError(t, manager.Save(ctx, snapshotWithDuration(25)))
	assert.Equal(t, uint32(25), manager.Load(ctx).AudioDurationSecs)

	require.NoError(t, afero.WriteFile(manager.fs, manager.mainPath, []byte("{not json"), fileMode))

	got := manager.Load(ctx)

	assert.Equal(t, uint32(25), got.AudioDurationSecs, "values should survive via the backup")
	assert.Contains(t, getLogOutput(), "settings file unusable")

	repaired := readFileSnapshot(t, manager.fs, manager.mainPath)
	assert.Equal(t, uint32(25), repaired.AudioDurationSecs, "main file should be repaired in place")
	assert.Equal(t, CurrentSchemaVersion, repaired.Version)
}

func TestLoadFallsBackToDefaultsWhenBothFilesDamaged(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.NewTestContext(t)
	manager := newTestManager(t)

	require.NoError(t, afero.WriteFile(manager.fs, manager.mainPath, []byte("{not json"), fileMode))
	require.NoError(t, afero.WriteFile(manager.fs, manager.backupPath, []byte("also}b{roken"), fileMode))

	got := manager.Load(ctx)

	assertDefaultValues(t, got)

	main := readFileSnapshot(t, manager.fs, manager.mainPath)
	backup := readFileSnapshot(t, manager.fs, manager.backupPath)
	assertDefaultValues(t, main)
	assertDefaultValues(t, backup)
}

func TestLoadIgnoresStrayTempFile(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.NewTestContext(t)
	manager := newTestManager(t)

	require.NoError(t, manager.Save(ctx, snapshotWithDuration(25)))
	require.NoError(t, afero.WriteFile(manager.fs, manager.tempPath, []byte(`{"version": 3, "truncated`), fileMode))

	got := manager.Load(ctx)

	assert.Equal(t, uint32(25), got.AudioDurationSecs)

	exists, err := afero.Exists(manager.fs, manager.tempPath)
	require.NoError(t, err)
	assert.True(t, exists, "a crash leftover is cleaned up by the next save, not by load")
}

func TestLoadMigratesOldMainFile(t *testing.T) {
	t.Parallel()

	const v1Document = `{
  "created_at": "2024-03-01T12:00:00Z",
  "updated_at": "2024-03-01T12:00:00Z",
  "hot_key": "Ctrl+Shift+R",
  "model_size": "standard",
  "version": 1,
  "audio_duration_secs": 45
}`

	ctx, _ := testutil.NewTestContext(t)
	manager := newTestManager(t)
	require.NoError(t, afero.WriteFile(manager.fs, manager.mainPath, []byte(v1Document), fileMode))

	got := manager.Load(ctx)

	assert.Equal(t, CurrentSchemaVersion, got.Version)
	assert.Equal(t, ModelBase, got.ModelSize)
	assert.Equal(t, "en", got.TranscriptionLanguage)
	assert.Equal(t, uint32(45), got.AudioDurationSecs)
	assert.False(t, got.AutoLaunch)

	repaired := readFileSnapshot(t, manager.fs, manager.mainPath)
	assert.Equal(t, CurrentSchemaVersion, repaired.Version, "migrated snapshot should be persisted")

	backupData, err := afero.ReadFile(manager.fs, manager.backupPath)
	require.NoError(t, err)
	assert.Contains(t, string(backupData), `"version": 1`,
		"the pre-migration document should be kept as the backup")
}

func TestLoadPrefersMainOverBackup(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.NewTestContext(t)
	manager := newTestManager(t)

	require.NoError(t, manager.Save(ctx, snapshotWithDuration(25)))
	require.NoError(t, manager.Save(ctx, snapshotWithDuration(30)))

	got := manager.Load(ctx)

	assert.Equal(t, uint32(30), got.AudioDurationSecs)
}

func TestLoadCascadesToBackup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mainFile string
	}{
		{
			name: "unknown field in main file",
			mainFile: `{"version": 3, "hot_key": "F8", "model_size": "base",
				"audio_duration_secs": 10, "transcription_language": "en", "evil_field": true}`,
		},
		{
			name: "future version in main file",
			mainFile: `{"version": 99, "hot_key": "F8", "model_size": "base",
				"audio_duration_secs": 10, "transcription_language": "en"}`,
		},
		{
			name: "constraint violation in main file",
			mainFile: `{"version": 3, "hot_key": "F8", "model_size": "base",
				"audio_duration_secs": 900, "transcription_language": "en"}`,
		},
		{
			name:     "oversize main file",
			mainFile: strings.Repeat("x", int(MaxSettingsFileSize)+1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, _ := testutil.NewTestContext(t)
			manager := newTestManager(t)

			writeSnapshotFile(t, manager.fs, manager.backupPath, snapshotWithDuration(25))
			require.NoError(t, afero.WriteFile(manager.fs, manager.mainPath, []byte(tt.mainFile), fileMode))

			got := manager.Load(ctx)

			assert.Equal(t, uint32(25), got.AudioDurationSecs)

			repaired := readFileSnapshot(t, manager.fs, manager.mainPath)
			assert.Equal(t, uint32(25), repaired.AudioDurationSecs)
		})
	}
}

func TestLoadOnReadOnlyFilesystemStillReturnsDefaults(t *testing.T) {
	t.Parallel()

	ctx, getLogOutput := testutil.NewTestContext(t)
	manager := newTestManager(t)
	base := manager.fs
	manager.fs = afero.NewReadOnlyFs(base)

	got := manager.Load(ctx)

	assertDefaultValues(t, got)
	assert.Contains(t, getLogOutput(), "could not repair settings")

	entries, err := afero.ReadDir(base, manager.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "load must not create files it could not commit")
}
