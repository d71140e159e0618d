package worker

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies a protocol message.
type Kind string

const (
	KindLog      Kind = "log"
	KindProgress Kind = "progress"
	KindVAD      Kind = "vad"
	KindSegment  Kind = "segment"
	KindResult   Kind = "result"
)

// Word is a single recognised word with its timing in seconds.
type Word struct {
	Text        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"prob"`
}

// Segment is one transcribed utterance, timed in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// StartMS returns the segment start in whole milliseconds.
func (s Segment) StartMS() int64 { return secondsToMS(s.Start) }

// EndMS returns the segment end in whole milliseconds.
func (s Segment) EndMS() int64 { return secondsToMS(s.End) }

// SpeakerTurn is one diarization interval, timed in milliseconds.
type SpeakerTurn struct {
	StartMS int64  `json:"start"`
	EndMS   int64  `json:"end"`
	Label   string `json:"label"`
}

// Chunk is a speech region in samples.
type Chunk struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// VAD carries the speech regions found before transcription starts.
type VAD struct {
	SampleRate int     `json:"sample_rate"`
	Duration   float64 `json:"duration"`
	Chunks     []Chunk `json:"chunks"`
}

// Result is the terminal message of a worker run.
type Result struct {
	OK         bool                 `json:"ok"`
	Segments   []SpeakerTurn        `json:"segments,omitempty"`
	Embeddings map[string][]float64 `json:"embeddings,omitempty"`
	Info       map[string]any       `json:"info,omitempty"`
	Error      string               `json:"error,omitempty"`
	Trace      string               `json:"trace,omitempty"`
}

// Message is the decoded form of one stdout line. Only the fields belonging
// to Type are populated.
type Message struct {
	Type Kind

	Level string
	Text  string

	Step   string
	Pct    float64
	Detail string

	VAD     VAD
	Segment Segment
	Result  Result
}

type wireMessage struct {
	Type    Kind     `json:"type"`
	Level   string   `json:"level"`
	Msg     string   `json:"msg"`
	Step    string   `json:"step"`
	Pct     *float64 `json:"pct"`
	Detail  string   `json:"detail"`
	Segment *Segment `json:"segment"`
	VAD
	Result
}

// DecodeMessage parses one protocol line. Lines that are not JSON objects are
// returned as debug log messages so stray library output is kept, not lost.
func DecodeMessage(line []byte) (Message, error) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return Message{}, fmt.Errorf("decode message: empty line")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return Message{Type: KindLog, Level: "debug", Text: trimmed}, nil
	}
	var wire wireMessage
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return Message{Type: KindLog, Level: "debug", Text: trimmed}, nil
	}

	msg := Message{Type: wire.Type}
	switch wire.Type {
	case KindLog:
		msg.Level = strings.ToLower(strings.TrimSpace(wire.Level))
		msg.Text = wire.Msg
	case KindProgress:
		msg.Step = strings.TrimSpace(wire.Step)
		msg.Detail = wire.Detail
		if wire.Pct != nil {
			msg.Pct = clampPct(*wire.Pct)
		} else {
			msg.Pct = -1
		}
	case KindVAD:
		if wire.SampleRate <= 0 {
			return Message{}, fmt.Errorf("decode vad: sample rate %d", wire.SampleRate)
		}
		msg.VAD = wire.VAD
	case KindSegment:
		if wire.Segment == nil {
			return Message{}, fmt.Errorf("decode segment: missing payload")
		}
		msg.Segment = *wire.Segment
	case KindResult:
		msg.Result = wire.Result
	default:
		return Message{}, fmt.Errorf("decode message: unknown type %q", wire.Type)
	}
	return msg, nil
}

func clampPct(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func secondsToMS(seconds float64) int64 {
	return int64(seconds*1000 + 0.5)
}
