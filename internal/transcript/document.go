// Package transcript folds aligned transcript segments into a paragraph
// document and renders it as HTML, plain text, or WebVTT.
package transcript

import "strings"

// RunKind tags the content of a run.
type RunKind string

const (
	RunSpeaker    RunKind = "speaker"
	RunTimestamp  RunKind = "timestamp"
	RunText       RunKind = "text"
	RunPause      RunKind = "pause"
	RunOverlapEnd RunKind = "overlap-end"
)

// Run is a contiguous piece of a paragraph. Text carries its own leading
// separator so a paragraph renders by concatenation. Times are relative to
// the prepared audio; Meta.OffsetMS maps them back to the source file.
type Run struct {
	Kind    RunKind
	Text    string
	StartMS int64
	EndMS   int64
	Speaker string
}

// Paragraph is an ordered list of runs.
type Paragraph struct {
	Runs []Run
}

// Text returns the paragraph's plain text.
func (p Paragraph) Text() string {
	var b strings.Builder
	for _, run := range p.Runs {
		b.WriteString(run.Text)
	}
	return b.String()
}

// Empty reports whether the paragraph has no visible text.
func (p Paragraph) Empty() bool {
	return strings.TrimSpace(p.Text()) == ""
}

// Meta is the document header.
type Meta struct {
	Title     string
	Header    []string
	AudioPath string
	OffsetMS  int64
}

// Document is the in-progress or finished transcript.
type Document struct {
	Meta       Meta
	Paragraphs []Paragraph
	segments   int
}

// NewDocument returns an empty document with the given header.
func NewDocument(meta Meta) *Document {
	return &Document{Meta: meta}
}

// Segments returns how many transcript segments have been committed.
func (d *Document) Segments() int {
	return d.segments
}

// Text returns non-empty paragraphs separated by blank lines.
func (d *Document) Text() string {
	parts := make([]string, 0, len(d.Paragraphs))
	for _, p := range d.Paragraphs {
		if !p.Empty() {
			parts = append(parts, p.Text())
		}
	}
	return strings.Join(parts, "\n\n")
}

func (d *Document) current() *Paragraph {
	if len(d.Paragraphs) == 0 {
		d.Paragraphs = append(d.Paragraphs, Paragraph{})
	}
	return &d.Paragraphs[len(d.Paragraphs)-1]
}

func (d *Document) newParagraph() *Paragraph {
	if len(d.Paragraphs) > 0 && len(d.current().Runs) == 0 {
		return d.current()
	}
	d.Paragraphs = append(d.Paragraphs, Paragraph{})
	return d.current()
}

// appendRun adds run to p, separating it from earlier content by a space.
func appendRun(p *Paragraph, run Run) {
	if len(p.Runs) > 0 && run.Kind != RunOverlapEnd {
		run.Text = " " + run.Text
	}
	p.Runs = append(p.Runs, run)
}
