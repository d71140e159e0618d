package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queue entry in a transport-friendly format.
type Job struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	AudioPath         string  `json:"audioPath"`
	OutputPath        string  `json:"outputPath"`
	Format            string  `json:"format"`
	Status            string  `json:"status"`
	StatusLabel       string  `json:"statusLabel"`
	Percent           float64 `json:"percent"`
	Language          string  `json:"language"`
	Model             string  `json:"model,omitempty"`
	Speakers          string  `json:"speakers"`
	StartMS           int64   `json:"startMs,omitempty"`
	StopMS            int64   `json:"stopMs,omitempty"`
	CreatedAt         string  `json:"createdAt,omitempty"`
	StartedAt         string  `json:"startedAt,omitempty"`
	FinishedAt        string  `json:"finishedAt,omitempty"`
	ElapsedSeconds    float64 `json:"elapsedSeconds"`
	ErrorMessage      string  `json:"errorMessage,omitempty"`
	ErrorTrace        string  `json:"errorTrace,omitempty"`
	PartialTranscript bool    `json:"partialTranscript"`
	LogPath           string  `json:"logPath,omitempty"`
}

// Summary provides normalized queue counts.
type Summary struct {
	Total    int            `json:"total"`
	Waiting  int            `json:"waiting"`
	Running  int            `json:"running"`
	Finished int            `json:"finished"`
	Errors   int            `json:"errors"`
	Canceled int            `json:"canceled"`
	ByStatus map[string]int `json:"byStatus"`
}

// JobsResponse is the payload of the job list route.
type JobsResponse struct {
	Jobs    []Job   `json:"jobs"`
	Summary Summary `json:"summary"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status  string  `json:"status"`
	Running bool    `json:"running"`
	Summary Summary `json:"summary"`
}

// CancelScope selects which jobs a cancel request affects.
type CancelScope string

const (
	CancelCurrent CancelScope = "current"
	CancelAll     CancelScope = "all"
)

// CancelRequest is the body of the cancel route.
type CancelRequest struct {
	Scope CancelScope `json:"scope"`
}

// CancelResponse reports whether anything was running when cancel arrived.
type CancelResponse struct {
	Scope    CancelScope `json:"scope"`
	Canceled bool        `json:"canceled"`
}

// ErrorResponse is returned for any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
