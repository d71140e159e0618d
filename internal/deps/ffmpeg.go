package deps

import (
	"os"
	"runtime"
	"strings"
)

// ResolveFFmpegPath returns the configured ffmpeg binary, or "ffmpeg" from
// PATH when none is configured.
func ResolveFFmpegPath(configured string) string {
	if v := strings.TrimSpace(configured); v != "" {
		return v
	}
	return executableName("ffmpeg")
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
