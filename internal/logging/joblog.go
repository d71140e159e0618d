package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const jobLogExt = ".log"

// JobLog is the per-job JSON log artifact. Records sent to Logger reach both
// the base logger and the artifact; the artifact always records at debug level.
type JobLog struct {
	Path   string
	Logger *slog.Logger
	file   *lumberjack.Logger
}

// JobLogPath returns the artifact path for jobID inside dir.
func JobLogPath(dir, jobID string) string {
	return filepath.Join(dir, strings.TrimSpace(jobID)+jobLogExt)
}

// OpenJobLog creates (or appends to) <dir>/<jobID>.log and tees base into it.
func OpenJobLog(base *slog.Logger, dir, jobID string, rotation Rotation) (*JobLog, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("open job log: job id required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("open job log: %w", err)
	}
	path := JobLogPath(dir, jobID)
	file := newRotatingFile(path, rotation)
	handler := newJSONHandler(file, slog.LevelDebug, false)
	return &JobLog{
		Path:   path,
		Logger: TeeLogger(base, handler).With(String(FieldJobID, jobID)),
		file:   file,
	}, nil
}

// Close flushes and closes the artifact.
func (l *JobLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
