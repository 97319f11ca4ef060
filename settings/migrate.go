package settings

// A migrationStep rewrites a snapshot from one schema version to the next.
// Steps receive a snapshot at their from version and return the shape of
// from+1; the runner owns the version increment.
type migrationStep struct {
	apply func(Snapshot) Snapshot
	from  uint32
}

var migrations = []migrationStep{
	{
		// v1 -> v2: quality presets became whisper model names and the
		// auto-launch toggle arrived, off for existing users.
		from: 1,
		apply: func(s Snapshot) Snapshot {
			switch s.ModelSize {
			case "fast":
				s.ModelSize = ModelTiny
			case "standard":
				s.ModelSize = ModelBase
			case "accurate":
				s.ModelSize = ModelMedium
			}
			s.AutoLaunch = false
			return s
		},
	},
	{
		// v2 -> v3: transcription language became explicit and recording
		// length gained bounds.
		from: 2,
		apply: func(s Snapshot) Snapshot {
			if s.TranscriptionLanguage == "" {
				s.TranscriptionLanguage = "en"
			}
			switch {
			case s.AudioDurationSecs == 0:
				s.AudioDurationSecs = DefaultAudioDurationSecs
			case s.AudioDurationSecs < MinAudioDurationSecs:
				s.AudioDurationSecs = MinAudioDurationSecs
			case s.AudioDurationSecs > MaxAudioDurationSecs:
				s.AudioDurationSecs = MaxAudioDurationSecs
			}
			return s
		},
	},
}

// migrate brings s up to CurrentSchemaVersion, applying each registered
// step in order, and reports whether any step ran. A version newer than
// this release has no downgrade path and fails.
func migrate(s Snapshot) (Snapshot, bool, error) {
	if s.Version > CurrentSchemaVersion {
		return s, false, &MigrationError{
			From:   s.Version,
			To:     CurrentSchemaVersion,
			Reason: "snapshot was written by a newer release",
		}
	}

	migrated := false
	for s.Version < CurrentSchemaVersion {
		step, ok := stepFrom(s.Version)
		if !ok {
			return s, false, &MigrationError{
				From:   s.Version,
				To:     s.Version + 1,
				Reason: "no migration step registered for this version",
			}
		}
		s = step.apply(s)
		s.Version++
		migrated = true
	}
	return s, migrated, nil
}

func stepFrom(version uint32) (migrationStep, bool) {
	for _, step := range migrations {
		if step.from == version {
			return step, true
		}
	}
	return migrationStep{}, false
}
