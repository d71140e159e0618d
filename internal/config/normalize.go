package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeDiarization()
	c.normalizeWorkers()
	c.normalizeAudio()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.ModelsDir, err = expandPath(strings.TrimSpace(c.Paths.ModelsDir)); err != nil {
		return fmt.Errorf("paths.models_dir: %w", err)
	}
	if c.Paths.SpeakerDB, err = expandPath(strings.TrimSpace(c.Paths.SpeakerDB)); err != nil {
		return fmt.Errorf("paths.speaker_db: %w", err)
	}
	if c.Transcription.PromptsFile, err = expandPath(strings.TrimSpace(c.Transcription.PromptsFile)); err != nil {
		return fmt.Errorf("transcription.prompts_file: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultModel
	}
	c.Transcription.ComputeType = strings.ToLower(strings.TrimSpace(c.Transcription.ComputeType))
	if c.Transcription.ComputeType == "" {
		c.Transcription.ComputeType = defaultComputeType
	}
	if c.Transcription.BeamSize <= 0 {
		c.Transcription.BeamSize = defaultBeamSize
	}
	if c.Transcription.CPUThreads < 0 {
		c.Transcription.CPUThreads = 0
	}
	if c.Transcription.AutosaveIntervalSeconds < minAutosaveSeconds {
		c.Transcription.AutosaveIntervalSeconds = minAutosaveSeconds
	}
	if c.Transcription.TimestampIntervalSeconds <= 0 {
		c.Transcription.TimestampIntervalSeconds = defaultTimestampSeconds
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	if c.Transcription.Language == "" {
		c.Transcription.Language = "auto"
	}
}

func (c *Config) normalizeDiarization() {
	if c.Diarization.HFToken == "" {
		if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Diarization.HFToken = strings.TrimSpace(value)
		}
	}
	c.Diarization.Speakers = strings.ToLower(strings.TrimSpace(c.Diarization.Speakers))
	if c.Diarization.Speakers == "" {
		c.Diarization.Speakers = "none"
	}
	c.Diarization.Pipeline = strings.TrimSpace(c.Diarization.Pipeline)
	if c.Diarization.Pipeline == "" {
		c.Diarization.Pipeline = defaultDiarizationPipeline
	}
	if c.Diarization.SpeakerMatchThreshold == 0 {
		c.Diarization.SpeakerMatchThreshold = defaultSpeakerMatchThreshold
	}
}

func (c *Config) normalizeWorkers() {
	c.Workers.PythonLauncher = strings.TrimSpace(c.Workers.PythonLauncher)
	if c.Workers.PythonLauncher == "" {
		c.Workers.PythonLauncher = defaultPythonLauncher
	}
	if c.Workers.TerminateGraceSeconds <= 0 {
		c.Workers.TerminateGraceSeconds = defaultTerminateGraceSeconds
	}
	if c.Workers.PollIntervalMS <= 0 {
		c.Workers.PollIntervalMS = defaultPollIntervalMS
	}
	c.Workers.ExtraArgs = trimAll(c.Workers.ExtraArgs)
	c.Workers.TranscriptionDeps = trimAll(c.Workers.TranscriptionDeps)
	c.Workers.DiarizationDeps = trimAll(c.Workers.DiarizationDeps)
}

func (c *Config) normalizeAudio() {
	c.Audio.FFmpegBinary = strings.TrimSpace(c.Audio.FFmpegBinary)
	if value, ok := os.LookupEnv("SCRIBE_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Audio.FFmpegBinary = strings.TrimSpace(value)
	}
	if c.Audio.FFmpegBinary == "" {
		c.Audio.FFmpegBinary = defaultFFmpegBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
