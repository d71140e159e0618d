package transcript

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"scribe/internal/align"
	"scribe/internal/job"
	"scribe/internal/timecode"
)

// Render serializes doc in the given output format.
func Render(doc *Document, format job.Format) ([]byte, error) {
	switch format {
	case job.FormatHTML:
		return []byte(RenderHTML(doc)), nil
	case job.FormatText:
		return []byte(RenderText(doc)), nil
	case job.FormatVTT:
		return []byte(RenderVTT(doc)), nil
	default:
		return nil, fmt.Errorf("render: unsupported format %q", format)
	}
}

// anchor is a group of adjacent runs that belong to the same segment.
type anchor struct {
	startMS int64
	endMS   int64
	speaker string
	runs    []Run
}

func (a anchor) name(offset int64) string {
	return fmt.Sprintf("ts_%d_%d_%s", offset+a.startMS, offset+a.endMS, strings.TrimPrefix(a.speaker, align.OverlapMarker))
}

func anchors(p Paragraph) []anchor {
	var out []anchor
	for _, run := range p.Runs {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.startMS == run.StartMS && last.endMS == run.EndMS && last.speaker == run.Speaker {
				last.runs = append(last.runs, run)
				continue
			}
		}
		out = append(out, anchor{startMS: run.StartMS, endMS: run.EndMS, speaker: run.Speaker, runs: []Run{run}})
	}
	return out
}

const htmlHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="audio_source" content="%s">
<title>%s</title>
<style>
body { font-family: sans-serif; line-height: 1.5; }
.header { font-weight: 600; font-size: 1.2em; }
.subheader { color: #909090; font-size: 0.8em; }
.timestamp { color: #78909c; }
a { color: inherit; text-decoration: none; }
</style>
</head>
<body>
`

// RenderHTML renders doc as a standalone HTML page. Each segment is wrapped
// in an anchor named ts_<start>_<end>_<speaker> with times in milliseconds
// of the source audio.
func RenderHTML(doc *Document) string {
	var b strings.Builder
	title := html.EscapeString(doc.Meta.Title)
	fmt.Fprintf(&b, htmlHead, html.EscapeString(doc.Meta.AudioPath), title)
	fmt.Fprintf(&b, "<p class=\"header\">%s</p>\n", title)
	for _, line := range doc.Meta.Header {
		fmt.Fprintf(&b, "<p class=\"subheader\">%s</p>\n", html.EscapeString(line))
	}
	for _, p := range doc.Paragraphs {
		if p.Empty() {
			continue
		}
		b.WriteString("<p>")
		for _, a := range anchors(p) {
			fmt.Fprintf(&b, "<a name=\"%s\">", a.name(doc.Meta.OffsetMS))
			for _, run := range a.runs {
				if run.Kind == RunTimestamp {
					lead := run.Text[:len(run.Text)-len(strings.TrimLeft(run.Text, " "))]
					fmt.Fprintf(&b, "%s<span class=\"timestamp\">%s</span>", lead, html.EscapeString(strings.TrimLeft(run.Text, " ")))
					continue
				}
				b.WriteString(html.EscapeString(run.Text))
			}
			b.WriteString("</a>")
		}
		b.WriteString("</p>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// RenderText renders the title, header lines and paragraphs separated by
// blank lines.
func RenderText(doc *Document) string {
	var b strings.Builder
	b.WriteString(doc.Meta.Title)
	b.WriteString("\n")
	for _, line := range doc.Meta.Header {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if body := doc.Text(); body != "" {
		b.WriteString("\n")
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderVTT renders one numbered cue per segment with a voice tag naming the
// speaker. Speaker labels and timestamps are carried by cue metadata instead
// of the cue text.
func RenderVTT(doc *Document) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace("WEBVTT " + vttEscape(doc.Meta.Title)))
	b.WriteString("\n\n")
	if len(doc.Meta.Header) > 0 {
		b.WriteString("NOTE\n")
		b.WriteString(vttEscape(strings.Join(doc.Meta.Header, "\n")))
		b.WriteString("\n\n")
	}
	cue := 0
	for _, p := range doc.Paragraphs {
		for _, a := range anchors(p) {
			text := cueText(a.runs)
			if text == "" {
				continue
			}
			cue++
			b.WriteString(strconv.Itoa(cue))
			b.WriteString("\n")
			b.WriteString(timecode.VTT(doc.Meta.OffsetMS + a.startMS))
			b.WriteString(" --> ")
			b.WriteString(timecode.VTT(doc.Meta.OffsetMS + a.endMS))
			b.WriteString("\n")
			if speaker := strings.TrimPrefix(a.speaker, align.OverlapMarker); speaker != "" {
				b.WriteString("<v " + vttEscape(speaker) + ">")
			}
			b.WriteString(vttEscape(text))
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func cueText(runs []Run) string {
	parts := make([]string, 0, len(runs))
	for _, run := range runs {
		switch run.Kind {
		case RunText, RunPause:
			parts = append(parts, strings.TrimSpace(run.Text))
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

var blankLines = regexp.MustCompile(`\n{2,}`)

// vttEscape escapes markup characters and collapses blank lines, which would
// otherwise end a cue early.
func vttEscape(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return blankLines.ReplaceAllString(text, "\n")
}
