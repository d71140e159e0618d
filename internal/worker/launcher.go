package worker

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/services"
)

//go:embed scripts/*.py
var scripts embed.FS

var commandContext = exec.CommandContext

// Entrypoint names an embedded worker script.
type Entrypoint string

const (
	Diarize    Entrypoint = "diarize"
	Transcribe Entrypoint = "transcribe"
)

// DiarizeArgs is the argument document for the diarization worker.
type DiarizeArgs struct {
	AudioPath   string `json:"audio_path"`
	Pipeline    string `json:"pipeline"`
	Device      string `json:"device"`
	NumSpeakers int    `json:"num_speakers,omitempty"`
}

// TranscribeArgs is the argument document for the transcription worker.
type TranscribeArgs struct {
	AudioPath      string  `json:"audio_path"`
	Model          string  `json:"model"`
	ModelsDir      string  `json:"models_dir,omitempty"`
	Device         string  `json:"device"`
	ComputeType    string  `json:"compute_type"`
	CPUThreads     int     `json:"cpu_threads,omitempty"`
	BeamSize       int     `json:"beam_size"`
	WordTimestamps bool    `json:"word_timestamps"`
	VADFilter      bool    `json:"vad_filter"`
	VADThreshold   float64 `json:"vad_threshold"`
	LanguageMode   string  `json:"language_mode"`
	Language       string  `json:"language,omitempty"`
	Hotwords       string  `json:"hotwords,omitempty"`
	// HotwordsByLanguage is consulted after language detection when
	// Hotwords is empty.
	HotwordsByLanguage map[string]string `json:"hotwords_by_language,omitempty"`
}

// Launcher starts worker processes from an immutable configuration.
type Launcher struct {
	cfg    config.Config
	logger *slog.Logger
}

// NewLauncher constructs a launcher. cfg is copied.
func NewLauncher(cfg config.Config, logger *slog.Logger) *Launcher {
	return &Launcher{cfg: cfg, logger: logging.NewComponentLogger(logger, "worker")}
}

// Start materializes the entrypoint script, launches it in its own process
// group, and writes args to its stdin.
//
// The channel owns the read ends of the child's output pipes, so the child's
// exit is observed even while a descendant keeps them open.
func (l *Launcher) Start(ctx context.Context, entry Entrypoint, args any) (*Channel, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, string(entry), "encode args", "", err)
	}
	script, err := l.materialize(entry)
	if err != nil {
		return nil, err
	}

	launcher := strings.TrimSpace(l.cfg.Workers.PythonLauncher)
	cmdArgs := l.commandArgs(entry, script)
	cmd := commandContext(ctx, launcher, cmdArgs...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = l.environment(cmd.Env)
	cmd.Stdin = bytes.NewReader(append(payload, '\n'))
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, services.Wrap(services.ErrWorkerCrash, string(entry), "stdout pipe", "", err)
	}
	errOut, errOutW, err := os.Pipe()
	if err != nil {
		_ = stdout.Close()
		_ = stdoutW.Close()
		return nil, services.Wrap(services.ErrWorkerCrash, string(entry), "stderr pipe", "", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = errOutW
	cmd.Cancel = func() error {
		return signalGroup(cmd, unix.SIGTERM)
	}
	cmd.WaitDelay = l.cfg.TerminateGrace()

	err = cmd.Start()
	_ = stdoutW.Close()
	_ = errOutW.Close()
	if err != nil {
		_ = stdout.Close()
		_ = errOut.Close()
		return nil, services.Wrap(services.ErrWorkerCrash, string(entry), "start", fmt.Sprintf("launch %s", launcher), err)
	}
	l.logger.Debug("worker started",
		logging.String("entrypoint", string(entry)),
		logging.Int("pid", cmd.Process.Pid),
		logging.String(logging.FieldEventType, "worker_started"),
	)
	return newChannel(ctx, entry, cmd, stdout, errOut, newTailBuffer(stderrTailLines), l.cfg.PollInterval(), l.cfg.TerminateGrace()), nil
}

func (l *Launcher) commandArgs(entry Entrypoint, script string) []string {
	var deps []string
	switch entry {
	case Diarize:
		deps = l.cfg.Workers.DiarizationDeps
	case Transcribe:
		deps = l.cfg.Workers.TranscriptionDeps
	}
	if filepath.Base(l.cfg.Workers.PythonLauncher) != "uvx" {
		return append(append([]string{}, l.cfg.Workers.ExtraArgs...), script)
	}
	args := []string{"--quiet"}
	for _, dep := range deps {
		if dep = strings.TrimSpace(dep); dep != "" {
			args = append(args, "--with", dep)
		}
	}
	args = append(args, l.cfg.Workers.ExtraArgs...)
	return append(args, "python", script)
}

// environment extends base, or the current environment when base is nil.
func (l *Launcher) environment(base []string) []string {
	if base == nil {
		base = os.Environ()
	}
	env := append(base, "PYTHONUNBUFFERED=1")
	if token := strings.TrimSpace(l.cfg.Diarization.HFToken); token != "" {
		env = append(env, "HF_TOKEN="+token)
	}
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		env = append(env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	return env
}

// materialize writes the embedded script into <work_dir>/workers, rewriting it
// only when the content changed.
func (l *Launcher) materialize(entry Entrypoint) (string, error) {
	name := string(entry) + ".py"
	content, err := scripts.ReadFile("scripts/" + name)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, string(entry), "load script", "unknown entrypoint", err)
	}
	dir := filepath.Join(l.cfg.Paths.WorkDir, "workers")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, string(entry), "prepare script", dir, err)
	}
	path := filepath.Join(dir, name)
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, content) {
		return path, nil
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", services.Wrap(services.ErrConfiguration, string(entry), "write script", path, err)
	}
	return path, nil
}

func signalGroup(cmd *exec.Cmd, sig unix.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
