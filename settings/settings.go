// Package settings stores yapper's user configuration on local disk.
//
// A single Snapshot is persisted as pretty-printed JSON in the platform
// config directory. Writes are crash-safe: the previous state is rotated
// into a backup file and the new document is staged in a temp file before
// an atomic rename. Loads never fail: a damaged main file is recovered
// from the backup or, failing that, from built-in defaults, while
// snapshots written by older releases are migrated to the current schema
// and re-persisted.
package settings

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// CurrentSchemaVersion is the snapshot shape this release reads and writes.
// Older versions are migrated up on load; newer ones are treated as
// unreadable.
const CurrentSchemaVersion uint32 = 3

// MaxSettingsFileSize is the largest settings file, in bytes, accepted for
// parsing. A legitimate snapshot is well under this; anything bigger is
// treated as damage.
const MaxSettingsFileSize int64 = 64 * 1024

// Recording length bounds enforced since schema version 3.
const (
	MinAudioDurationSecs     uint32 = 5
	MaxAudioDurationSecs     uint32 = 300
	DefaultAudioDurationSecs uint32 = 10
)

// ModelSize selects the transcription model yapper runs locally.
type ModelSize string

// Model sizes, smallest to largest.
const (
	ModelTiny   ModelSize = "tiny"
	ModelBase   ModelSize = "base"
	ModelSmall  ModelSize = "small"
	ModelMedium ModelSize = "medium"
	ModelLarge  ModelSize = "large"
)

func (m ModelSize) valid() bool {
	switch m {
	case ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLarge:
		return true
	default:
		return false
	}
}

// Snapshot is the persisted user configuration. The JSON field set is
// closed: documents with fields this release does not know are rejected
// on load.
type Snapshot struct {
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
	HotKey                string    `json:"hot_key"`
	ModelSize             ModelSize `json:"model_size"`
	TranscriptionLanguage string    `json:"transcription_language"`
	Version               uint32    `json:"version"`
	AudioDurationSecs     uint32    `json:"audio_duration_secs"`
	AutoLaunch            bool      `json:"auto_launch"`
}

// Default returns the snapshot used when nothing usable exists on disk.
func Default() Snapshot {
	now := time.Now().UTC()
	return Snapshot{
		Version:               CurrentSchemaVersion,
		HotKey:                "CmdOrCtrl+Shift+Space",
		ModelSize:             ModelBase,
		AudioDurationSecs:     DefaultAudioDurationSecs,
		AutoLaunch:            false,
		TranscriptionLanguage: "en",
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// languagePattern matches ISO 639-1 style codes with an optional region
// subtag, like "en" or "pt-BR".
var languagePattern = regexp.MustCompile(`^[a-z]{2,3}(-[A-Z]{2})?$`)

// Validate checks the constraints every persisted snapshot must satisfy.
// The first violation is reported as a *ParseError naming the offending
// field.
func (s Snapshot) Validate() error {
	if err := validateHotKey(s.HotKey); err != nil {
		return err
	}
	if !s.ModelSize.valid() {
		return &ParseError{
			Field: "model_size",
			Message: fmt.Sprintf("unknown model size %q (expected tiny, base, small, medium or large)",
				string(s.ModelSize)),
		}
	}
	if s.AudioDurationSecs < MinAudioDurationSecs || s.AudioDurationSecs > MaxAudioDurationSecs {
		return &ParseError{
			Field: "audio_duration_secs",
			Message: fmt.Sprintf("must be between %d and %d seconds (got %d)",
				MinAudioDurationSecs, MaxAudioDurationSecs, s.AudioDurationSecs),
		}
	}
	if s.TranscriptionLanguage != "auto" && !languagePattern.MatchString(s.TranscriptionLanguage) {
		return &ParseError{
			Field:   "transcription_language",
			Message: fmt.Sprintf("%q is not an ISO 639-1 style code or \"auto\"", s.TranscriptionLanguage),
		}
	}
	return nil
}

// hotKeyModifiers are the accelerator tokens allowed before the final key.
var hotKeyModifiers = map[string]bool{
	"ctrl":      true,
	"control":   true,
	"cmd":       true,
	"command":   true,
	"cmdorctrl": true,
	"alt":       true,
	"option":    true,
	"shift":     true,
	"super":     true,
	"meta":      true,
	"win":       true,
}

// validateHotKey parses an accelerator of the form "Modifier+...+Key":
// zero or more known modifiers followed by exactly one non-modifier key.
func validateHotKey(hotKey string) error {
	if hotKey == "" {
		return &ParseError{Field: "hot_key", Message: "must not be empty"}
	}
	tokens := strings.Split(hotKey, "+")
	for i, token := range tokens {
		if token == "" {
			return &ParseError{
				Field:   "hot_key",
				Message: fmt.Sprintf("%q contains an empty token", hotKey),
			}
		}
		last := i == len(tokens)-1
		if last && hotKeyModifiers[strings.ToLower(token)] {
			return &ParseError{
				Field:   "hot_key",
				Message: fmt.Sprintf("%q ends with a modifier, expected a key", hotKey),
			}
		}
		if !last && !hotKeyModifiers[strings.ToLower(token)] {
			return &ParseError{
				Field:   "hot_key",
				Message: fmt.Sprintf("unknown modifier %q", token),
			}
		}
	}
	return nil
}
