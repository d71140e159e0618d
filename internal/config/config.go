package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LogDir    string `toml:"log_dir"`
	WorkDir   string `toml:"work_dir"`
	ModelsDir string `toml:"models_dir"`
	SpeakerDB string `toml:"speaker_db"`
	APIBind   string `toml:"api_bind"`
}

// Transcription contains defaults for the transcription worker and the
// transcript assembler.
type Transcription struct {
	Model                    string  `toml:"model"`
	ComputeType              string  `toml:"compute_type"`
	CPUThreads               int     `toml:"cpu_threads"`
	BeamSize                 int     `toml:"beam_size"`
	WordTimestamps           bool    `toml:"word_timestamps"`
	VADFilter                bool    `toml:"vad_filter"`
	VADThreshold             float64 `toml:"voice_activity_detection_threshold"`
	AutoSave                 bool    `toml:"auto_save"`
	AutosaveIntervalSeconds  int     `toml:"autosave_interval_seconds"`
	Language                 string  `toml:"language"`
	TimestampIntervalSeconds int     `toml:"timestamp_interval_seconds"`
	PromptsFile              string  `toml:"prompts_file"`
}

// Diarization contains speaker identification settings.
type Diarization struct {
	Speakers              string  `toml:"speakers"`
	Pipeline              string  `toml:"pipeline"`
	HFToken               string  `toml:"hf_token"`
	SpeakerMatchThreshold float64 `toml:"speaker_match_threshold"`
}

// Acceleration contains the persisted CPU fallback flags.
type Acceleration struct {
	ForcePyannoteCPU      bool `toml:"force_pyannote_cpu"`
	ForceWhisperCPU       bool `toml:"force_whisper_cpu"`
	AutoAcceptCPUFallback bool `toml:"auto_accept_cpu_fallback"`
}

// Workers contains launch settings for the isolated worker processes.
type Workers struct {
	PythonLauncher        string   `toml:"python_launcher"`
	ExtraArgs             []string `toml:"extra_args"`
	TranscriptionDeps     []string `toml:"transcription_deps"`
	DiarizationDeps       []string `toml:"diarization_deps"`
	TerminateGraceSeconds int      `toml:"terminate_grace_seconds"`
	PollIntervalMS        int      `toml:"poll_interval_ms"`
}

// Audio contains settings for the audio conversion tool.
type Audio struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for scribe.
//
// Configuration sections by subsystem:
//   - Paths: log, work, model, and speaker database locations plus the API bind address
//   - Transcription: model and decoding defaults, VAD threshold, autosave
//   - Diarization: pyannote pipeline, Hugging Face token, speaker matching
//   - Acceleration: persisted CPU fallback flags
//   - Workers: python launcher and process supervision timing
//   - Audio: ffmpeg binary
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Diarization   Diarization   `toml:"diarization"`
	Acceleration  Acceleration  `toml:"acceleration"`
	Workers       Workers       `toml:"workers"`
	Audio         Audio         `toml:"audio"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and work directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.WorkDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JobLogDir returns the directory holding per-job log artifacts.
func (c Config) JobLogDir() string {
	return filepath.Join(c.Paths.LogDir, "jobs")
}

// PollInterval is the worker and conversion poll timeout.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Workers.PollIntervalMS) * time.Millisecond
}

// TerminateGrace bounds the join after a worker is asked to terminate.
func (c Config) TerminateGrace() time.Duration {
	return time.Duration(c.Workers.TerminateGraceSeconds) * time.Second
}

// AutosaveInterval is the minimum wall-clock time between autosaves.
func (c Config) AutosaveInterval() time.Duration {
	return time.Duration(c.Transcription.AutosaveIntervalSeconds) * time.Second
}

// TimestampInterval is how often a same-speaker paragraph gets a new timestamp.
func (c Config) TimestampInterval() time.Duration {
	return time.Duration(c.Transcription.TimestampIntervalSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
