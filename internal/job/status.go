package job

import (
	"errors"
	"fmt"
	"strings"
)

// Status represents the lifecycle of a transcription job.
type Status string

const (
	StatusWaiting               Status = "waiting"
	StatusAudioConversion       Status = "audio_conversion"
	StatusSpeakerIdentification Status = "speaker_identification"
	StatusTranscription         Status = "transcription"
	StatusCanceling             Status = "canceling"
	StatusFinished              Status = "finished"
	StatusError                 Status = "error"
	StatusCanceled              Status = "canceled"
)

// ErrInvalidTransition reports a status change outside the transition table.
var ErrInvalidTransition = errors.New("invalid status transition")

var allStatuses = []Status{
	StatusWaiting,
	StatusAudioConversion,
	StatusSpeakerIdentification,
	StatusTranscription,
	StatusCanceling,
	StatusFinished,
	StatusError,
	StatusCanceled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var activeStatuses = map[Status]struct{}{
	StatusAudioConversion:       {},
	StatusSpeakerIdentification: {},
	StatusTranscription:         {},
	StatusCanceling:             {},
}

var terminalStatuses = map[Status]struct{}{
	StatusFinished: {},
	StatusError:    {},
	StatusCanceled: {},
}

// transitions is the complete edge list of the job state machine.
var transitions = map[Status][]Status{
	StatusWaiting:               {StatusAudioConversion, StatusCanceled},
	StatusAudioConversion:       {StatusSpeakerIdentification, StatusTranscription, StatusError, StatusCanceling},
	StatusSpeakerIdentification: {StatusTranscription, StatusError, StatusCanceling},
	StatusTranscription:         {StatusFinished, StatusError, StatusCanceling},
	StatusCanceling:             {StatusCanceled},
	StatusError:                 {StatusWaiting},
	StatusCanceled:              {StatusWaiting},
	StatusFinished:              nil,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Successors returns the statuses reachable from s in one step.
func Successors(s Status) []Status {
	next := transitions[s]
	cp := make([]Status, len(next))
	copy(cp, next)
	return cp
}

// IsActive reports whether the status occupies a pipeline phase.
func (s Status) IsActive() bool {
	_, ok := activeStatuses[s]
	return ok
}

// IsTerminal reports whether the status ends the job's run.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Label returns the human readable name used by the CLI and status API.
func (s Status) Label() string {
	switch s {
	case StatusWaiting:
		return "Waiting"
	case StatusAudioConversion:
		return "Audio conversion"
	case StatusSpeakerIdentification:
		return "Speaker identification"
	case StatusTranscription:
		return "Transcription"
	case StatusCanceling:
		return "Canceling"
	case StatusFinished:
		return "Finished"
	case StatusError:
		return "Error"
	case StatusCanceled:
		return "Canceled"
	default:
		return string(s)
	}
}

func transitionError(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
