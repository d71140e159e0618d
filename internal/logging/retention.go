package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneJobLogs removes per-job log artifacts in dir older than maxAgeDays.
// Files named in keep are never removed. A maxAgeDays of 0 disables pruning.
func PruneJobLogs(logger *slog.Logger, dir string, maxAgeDays int, keep ...string) int {
	if maxAgeDays <= 0 || dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	skip := make(map[string]struct{}, len(keep))
	for _, path := range keep {
		if abs, err := filepath.Abs(path); err == nil {
			skip[abs] = struct{}{}
		}
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != jobLogExt {
			continue
		}
		fullPath := filepath.Join(dir, entry.Name())
		if abs, err := filepath.Abs(fullPath); err == nil {
			fullPath = abs
		}
		if _, ok := skip[fullPath]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "job log prune failed; file remains", "job_log_prune_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check permissions on log_dir"),
				String(FieldImpact, "old job log remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("job log pruned", String("path", fullPath), String(FieldEventType, "job_log_pruned"))
		}
	}
	return removed
}
