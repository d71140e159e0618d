package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"

	"scribe/internal/fileutil"
)

// Persisted flag keys written back at runtime.
const (
	KeyForcePyannoteCPU = "acceleration.force_pyannote_cpu"
	KeyForceWhisperCPU  = "acceleration.force_whisper_cpu"
	KeyVADThreshold     = "transcription.voice_activity_detection_threshold"
	KeyAutoSave         = "transcription.auto_save"
)

// Persist writes dotted-key updates (for example "acceleration.force_whisper_cpu")
// into the TOML file at path. The file is re-read under an exclusive lock so
// concurrent writers do not drop each other's keys, and replaced atomically.
// Keys not mentioned in updates are preserved; comments are not.
func Persist(path string, updates map[string]any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("persist config: path required")
	}
	if len(updates) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("persist config: create directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("persist config: acquire lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("persist config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("persist config: read %s: %w", path, err)
	}

	for key, value := range updates {
		if err := setDotted(doc, key, value); err != nil {
			return fmt.Errorf("persist config: %w", err)
		}
	}

	out, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("persist config: encode: %w", err)
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := fileutil.WriteFileAtomic(path, out, mode); err != nil {
		return fmt.Errorf("persist config: replace %s: %w", path, err)
	}
	return nil
}

func setDotted(doc map[string]any, key string, value any) error {
	parts := strings.Split(strings.TrimSpace(key), ".")
	if len(parts) < 2 {
		return fmt.Errorf("key %q must be section.name", key)
	}
	current := doc
	for _, section := range parts[:len(parts)-1] {
		next, ok := current[section]
		if !ok {
			table := map[string]any{}
			current[section] = table
			current = table
			continue
		}
		table, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("key %q: %s is not a table", key, section)
		}
		current = table
	}
	current[parts[len(parts)-1]] = value
	return nil
}
