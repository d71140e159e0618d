package transcript

import (
	"strings"
	"time"

	"scribe/internal/align"
	"scribe/internal/timecode"
)

// State is the speaker and timing context carried from one segment to the
// next.
type State struct {
	CurrentSpeaker  string
	PreviousSpeaker string
	LastSegmentEnd  int64
	LastTimestamp   int64
	Segments        int
}

// Item is one aligned transcript segment. Speaker is the display label
// ("S00", a known name, or an overlap label such as "//S01"); it is empty
// when diarization is off or found no speaker.
type Item struct {
	StartMS int64
	EndMS   int64
	Text    string
	Speaker string
}

// Options control decorations.
type Options struct {
	Diarization       bool
	Timestamps        bool
	TimestampInterval time.Duration
	// PauseThreshold annotates gaps at least this long; zero disables it.
	PauseThreshold time.Duration
}

// Assembler appends items to a document.
type Assembler struct {
	doc  *Document
	opts Options
}

// NewAssembler returns an assembler writing into doc.
func NewAssembler(doc *Document, opts Options) *Assembler {
	if opts.TimestampInterval <= 0 {
		opts.TimestampInterval = time.Minute
	}
	return &Assembler{doc: doc, opts: opts}
}

// Document returns the document being assembled.
func (a *Assembler) Document() *Document {
	return a.doc
}

// Add folds item into the document and returns the next state.
//
// A speaker change opens a new paragraph. A change into an overlap label
// stays inline; returning from it to the speaker that was talking before
// continues the same paragraph after a closing marker, while moving on to a
// third speaker closes the overlap and opens a new paragraph.
func (a *Assembler) Add(state State, item Item) State {
	text := strings.TrimSpace(item.Text)
	first := state.Segments == 0
	pause, hasPause := a.pauseRun(state, item)
	stamp := Run{Kind: RunTimestamp, Text: "[" + timecode.Clock(a.doc.Meta.OffsetMS+item.StartMS) + "]",
		StartMS: item.StartMS, EndMS: item.EndMS, Speaker: item.Speaker}
	intervalMS := a.opts.TimestampInterval.Milliseconds()

	var runs []Run
	p := a.doc.current()
	newSpeaker := item.Speaker
	switch {
	case a.opts.Diarization && newSpeaker != "" && newSpeaker != state.CurrentSpeaker:
		switch {
		case isOverlap(newSpeaker):
			state.PreviousSpeaker = state.CurrentSpeaker
			runs = append(runs, a.run(RunSpeaker, newSpeaker+":", item))
		case isOverlap(state.CurrentSpeaker) && newSpeaker == state.PreviousSpeaker:
			runs = append(runs, a.run(RunOverlapEnd, align.OverlapMarker, item))
		default:
			if isOverlap(state.CurrentSpeaker) {
				prev := lastRun(p)
				appendRun(p, Run{Kind: RunOverlapEnd, Text: align.OverlapMarker,
					StartMS: prev.StartMS, EndMS: prev.EndMS, Speaker: prev.Speaker})
			}
			p = a.doc.newParagraph()
			runs = append(runs, a.run(RunSpeaker, newSpeaker+":", item))
			if a.opts.Timestamps {
				runs = append(runs, stamp)
				state.LastTimestamp = item.StartMS
			}
		}
		state.CurrentSpeaker = newSpeaker
	case a.opts.Timestamps && (first && !a.opts.Diarization || item.StartMS-state.LastTimestamp > intervalMS):
		runs = append(runs, stamp)
		state.LastTimestamp = item.StartMS
	}

	if hasPause {
		appendRun(p, pause)
	}
	for _, run := range runs {
		appendRun(p, run)
	}
	if text != "" {
		appendRun(p, a.run(RunText, text, item))
	}

	a.doc.segments++
	state.Segments++
	state.LastSegmentEnd = item.EndMS
	return state
}

func (a *Assembler) pauseRun(state State, item Item) (Run, bool) {
	threshold := a.opts.PauseThreshold.Milliseconds()
	if threshold <= 0 {
		return Run{}, false
	}
	gap := item.StartMS - state.LastSegmentEnd
	if gap < threshold {
		return Run{}, false
	}
	return Run{Kind: RunPause, Text: PauseText(gap), StartMS: state.LastSegmentEnd, EndMS: item.StartMS}, true
}

func (a *Assembler) run(kind RunKind, text string, item Item) Run {
	return Run{Kind: kind, Text: text, StartMS: item.StartMS, EndMS: item.EndMS, Speaker: item.Speaker}
}

func isOverlap(label string) bool {
	return strings.HasPrefix(label, align.OverlapMarker)
}

func lastRun(p *Paragraph) Run {
	if len(p.Runs) == 0 {
		return Run{}
	}
	return p.Runs[len(p.Runs)-1]
}
