package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateDiarization(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTranscription() error {
	if c.Transcription.VADThreshold < 0 || c.Transcription.VADThreshold > 1 {
		return errors.New("transcription.voice_activity_detection_threshold must be between 0 and 1")
	}
	switch c.Transcription.ComputeType {
	case "auto", "default", "float16", "float32", "int8", "int8_float16", "int8_float32", "int16", "bfloat16", "int8_bfloat16":
	default:
		return fmt.Errorf("transcription.compute_type: unsupported value %q", c.Transcription.ComputeType)
	}
	if c.Transcription.AutosaveIntervalSeconds < minAutosaveSeconds {
		return fmt.Errorf("transcription.autosave_interval_seconds must be at least %d", minAutosaveSeconds)
	}
	return nil
}

func (c *Config) validateDiarization() error {
	switch c.Diarization.Speakers {
	case "none", "auto":
	default:
		if n, err := strconv.Atoi(c.Diarization.Speakers); err != nil || n <= 0 {
			return fmt.Errorf("diarization.speakers: want none, auto, or a positive count, got %q", c.Diarization.Speakers)
		}
	}
	if c.Diarization.SpeakerMatchThreshold <= 0 || c.Diarization.SpeakerMatchThreshold > 1 {
		return errors.New("diarization.speaker_match_threshold must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if strings.TrimSpace(c.Workers.PythonLauncher) == "" {
		return errors.New("workers.python_launcher must be set")
	}
	if c.Workers.PollIntervalMS > 1000 {
		return errors.New("workers.poll_interval_ms must not exceed 1000")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
