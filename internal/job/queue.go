package job

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
)

// ErrNotFound reports an unknown job id.
var ErrNotFound = errors.New("job not found")

// Summary holds per-status counts for the whole queue.
type Summary struct {
	Total    int
	Waiting  int
	Running  int
	Finished int
	Errors   int
	Canceled int
	ByStatus map[Status]int
}

// Queue is an insertion-ordered collection of jobs. It is safe for one
// mutating orchestrator plus any number of concurrent readers.
type Queue struct {
	mu   sync.RWMutex
	jobs []*Job
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Add appends jobs in order. Duplicate ids are rejected.
func (q *Queue) Add(jobs ...*Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range jobs {
		if j == nil {
			return errors.New("add: nil job")
		}
		if q.indexLocked(j.ID) >= 0 {
			return fmt.Errorf("add: duplicate job id %s", j.ID)
		}
		q.jobs = append(q.jobs, j)
	}
	return nil
}

// Remove deletes a job that is not currently running.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if q.jobs[idx].Status.IsActive() {
		return fmt.Errorf("remove: job %s is %s", id, q.jobs[idx].Status)
	}
	q.jobs = append(q.jobs[:idx], q.jobs[idx+1:]...)
	return nil
}

// Get returns a copy of the job with the given id.
func (q *Queue) Get(id string) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	idx := q.indexLocked(id)
	if idx < 0 {
		return Job{}, false
	}
	return *q.jobs[idx], true
}

// Update applies fn to the live job under the queue lock. It is the only
// mutation path for job state once a job is queued.
func (q *Queue) Update(id string, fn func(*Job) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fn(q.jobs[idx])
}

// Repeat resets an errored or canceled job to waiting.
func (q *Queue) Repeat(id string) error {
	return q.Update(id, func(j *Job) error { return j.Repeat() })
}

// Snapshot returns copies of all jobs in insertion order.
func (q *Queue) Snapshot() []Job {
	return q.filter(func(*Job) bool { return true })
}

// Waiting returns jobs that have not started yet.
func (q *Queue) Waiting() []Job {
	return q.filter(func(j *Job) bool { return j.Status == StatusWaiting })
}

// Running returns jobs currently occupying a pipeline phase.
func (q *Queue) Running() []Job {
	return q.filter(func(j *Job) bool { return j.Status.IsActive() })
}

// Finished returns successfully completed jobs.
func (q *Queue) Finished() []Job {
	return q.filter(func(j *Job) bool { return j.Status == StatusFinished })
}

// Failed returns errored and canceled jobs.
func (q *Queue) Failed() []Job {
	return q.filter(func(j *Job) bool { return j.Status == StatusError || j.Status == StatusCanceled })
}

// NextWaiting returns the oldest waiting job.
func (q *Queue) NextWaiting() (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, j := range q.jobs {
		if j.Status == StatusWaiting {
			return *j, true
		}
	}
	return Job{}, false
}

// IsRunning reports whether any job occupies a pipeline phase.
func (q *Queue) IsRunning() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, j := range q.jobs {
		if j.Status.IsActive() {
			return true
		}
	}
	return false
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.jobs)
}

// Summary counts jobs per status.
func (q *Queue) Summary() Summary {
	q.mu.RLock()
	defer q.mu.RUnlock()
	summary := Summary{Total: len(q.jobs), ByStatus: make(map[Status]int, len(allStatuses))}
	for _, j := range q.jobs {
		summary.ByStatus[j.Status]++
		switch {
		case j.Status == StatusWaiting:
			summary.Waiting++
		case j.Status.IsActive():
			summary.Running++
		case j.Status == StatusFinished:
			summary.Finished++
		case j.Status == StatusError:
			summary.Errors++
		case j.Status == StatusCanceled:
			summary.Canceled++
		}
	}
	return summary
}

// HasOutputConflict reports whether a job other than ignoring, and not in a
// failed terminal state, already targets the same resolved output path.
func (q *Queue) HasOutputConflict(path, ignoring string) bool {
	target := resolvePath(path)
	if target == "" {
		return false
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, j := range q.jobs {
		if j.ID == ignoring {
			continue
		}
		if j.Status == StatusError || j.Status == StatusCanceled {
			continue
		}
		if resolvePath(j.OutputPath) == target {
			return true
		}
	}
	return false
}

func (q *Queue) filter(keep func(*Job) bool) []Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		if keep(j) {
			out = append(out, *j)
		}
	}
	return out
}

func (q *Queue) indexLocked(id string) int {
	for i, j := range q.jobs {
		if j.ID == id {
			return i
		}
	}
	return -1
}

func resolvePath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
