package transcript

import (
	"errors"
	"log/slog"
	"time"

	"scribe/internal/fileutil"
	"scribe/internal/job"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// MinAutosaveInterval is the shortest allowed time between autosaves.
const MinAutosaveInterval = 5 * time.Second

// SaveFunc is called after each successful save with the path written and
// whether the document is still partial.
type SaveFunc func(path string, partial bool)

// Autosaver writes a document to its output path, periodically while the
// job runs and once more when it completes.
type Autosaver struct {
	doc      *Document
	format   job.Format
	path     string
	interval time.Duration
	enabled  bool
	last     time.Time
	now      func() time.Time
	onSave   SaveFunc
	logger   *slog.Logger
}

// AutosaveOption customizes an Autosaver.
type AutosaveOption func(*Autosaver)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) AutosaveOption {
	return func(a *Autosaver) {
		if now != nil {
			a.now = now
		}
	}
}

// WithSaveHook registers a callback run after every save.
func WithSaveHook(fn SaveFunc) AutosaveOption {
	return func(a *Autosaver) { a.onSave = fn }
}

// WithAutosaveLogger sets the logger for save and rename events.
func WithAutosaveLogger(logger *slog.Logger) AutosaveOption {
	return func(a *Autosaver) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAutosaver prepares saving doc to path. Periodic saves only happen when
// enabled is true; Final always writes.
func NewAutosaver(doc *Document, format job.Format, path string, interval time.Duration, enabled bool, opts ...AutosaveOption) *Autosaver {
	a := &Autosaver{
		doc:      doc,
		format:   format,
		path:     path,
		interval: max(interval, MinAutosaveInterval),
		enabled:  enabled,
		now:      time.Now,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.last = a.now()
	return a
}

// Path returns where the document is saved. It differs from the requested
// path once a save conflict forced a rename.
func (a *Autosaver) Path() string {
	return a.path
}

// Tick saves a partial document if autosave is on and the interval has
// elapsed since the previous save. It reports whether a save happened.
func (a *Autosaver) Tick() (bool, error) {
	if !a.enabled || a.doc.Segments() == 0 {
		return false, nil
	}
	if a.now().Sub(a.last) < a.interval {
		return false, nil
	}
	return true, a.save(true)
}

// SavePartial writes whatever has been committed so far, used when a job
// stops early. Nothing is written when autosave is off or no segment exists.
func (a *Autosaver) SavePartial() (bool, error) {
	if !a.enabled || a.doc.Segments() == 0 {
		return false, nil
	}
	return true, a.save(true)
}

// Final writes the completed document and clears the partial flag.
func (a *Autosaver) Final() error {
	return a.save(false)
}

func (a *Autosaver) save(partial bool) error {
	data, err := Render(a.doc, a.format)
	if err != nil {
		return services.Wrap(services.ErrSaveFailed, "transcription", "render transcript", err.Error(), err)
	}
	if err := a.write(data); err != nil {
		return err
	}
	a.last = a.now()
	a.logger.Debug("transcript saved",
		logging.String("path", a.path),
		logging.Bool("partial", partial),
		logging.Int("segments", a.doc.Segments()),
		logging.String(logging.FieldEventType, "transcript_saved"),
	)
	if a.onSave != nil {
		a.onSave(a.path, partial)
	}
	return nil
}

// write saves to the current path, falling back to <stem>_N alternatives
// that do not exist yet when the target cannot be written.
func (a *Autosaver) write(data []byte) error {
	firstErr := fileutil.WriteFileAtomic(a.path, data, 0o644)
	if firstErr == nil {
		return nil
	}
	tried := map[string]struct{}{a.path: {}}
	taken := func(p string) bool {
		if _, ok := tried[p]; ok {
			return true
		}
		return fileutil.Exists(p)
	}
	for range fileutil.MaxRenameAttempts {
		candidate, err := fileutil.UniquePath(a.path, fileutil.MaxRenameAttempts, taken)
		if err != nil {
			break
		}
		tried[candidate] = struct{}{}
		if err := fileutil.WriteFileAtomic(candidate, data, 0o644); err != nil {
			continue
		}
		logging.WarnWithContext(a.logger, "transcript saved under a different name", "transcript_save_renamed",
			logging.String("requested", a.path),
			logging.String("path", candidate),
			logging.Error(errors.Join(services.ErrSaveConflict, firstErr)),
			logging.String(logging.FieldErrorHint, "close programs holding the original file"),
			logging.String(logging.FieldImpact, "transcript written to an alternative file name"),
		)
		a.path = candidate
		return nil
	}
	return services.Wrap(services.ErrSaveFailed, "transcription", "save transcript",
		"could not write transcript to "+a.path, firstErr)
}
