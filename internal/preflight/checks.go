package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"scribe/internal/config"
	"scribe/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckOutputWritable verifies that the transcript can be created next to
// path. The file itself need not exist yet.
func CheckOutputWritable(path string) Result {
	const name = "Output directory"
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", dir, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", dir)}
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not writable: %v)", dir, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (writable)", dir)}
}

// CheckAudioReadable verifies that the source audio is a readable file.
func CheckAudioReadable(path string) Result {
	const name = "Audio file"
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDiarizationAccess verifies that the diarization pipeline can be
// loaded: either a local pipeline directory or a hub id plus a token.
func CheckDiarizationAccess(d config.Diarization) Result {
	const name = "Diarization pipeline"
	pipeline := strings.TrimSpace(d.Pipeline)
	if pipeline == "" {
		return Result{Name: name, Detail: "pipeline not configured"}
	}
	if info, err := os.Stat(pipeline); err == nil {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (local, dir=%t)", pipeline, info.IsDir())}
	}
	if strings.TrimSpace(d.HFToken) == "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: hf_token missing)", pipeline)}
	}
	return Result{Name: name, Passed: true, Detail: pipeline}
}

// CheckSystemDeps evaluates the external programs for the given config. The
// CLI deps command and the orchestrator's startup check share this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil {
		return nil
	}
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     deps.ResolveFFmpegPath(cfg.Audio.FFmpegBinary),
			Description: "Required for audio conversion",
		},
		{
			Name:        "Python launcher",
			Command:     cfg.Workers.PythonLauncher,
			Description: "Required to run the transcription and diarization workers",
		},
	}
	return deps.CheckBinaries(requirements)
}
