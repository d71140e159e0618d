// Package testsupport holds fixtures shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"scribe/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig returns defaults with every path moved under a per-test temp
// directory, so tests never touch the user's data.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.ModelsDir = filepath.Join(base, "models")
	cfgVal.Paths.SpeakerDB = filepath.Join(base, "speakers.db")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Workers.TerminateGraceSeconds = 1
	cfgVal.Workers.PollIntervalMS = 10
	cfgVal.Logging.Level = "debug"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithFFmpeg overrides the conversion binary.
func WithFFmpeg(binary string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Audio.FFmpegBinary = binary
	}
}

// WithLauncher overrides the worker launcher and its extra arguments.
func WithLauncher(binary string, extraArgs ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.PythonLauncher = binary
		b.cfg.Workers.ExtraArgs = extraArgs
	}
}

// WithAutoAcceptFallback makes CPU fallback prompts accept automatically.
func WithAutoAcceptFallback() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Acceleration.AutoAcceptCPUFallback = true
	}
}

// BaseDir returns the temp directory backing cfg's paths.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
