// Package align attributes transcript segments to diarization speakers by
// overlap.
package align

import "strings"

// StrongOverlap is the overlap fraction at which a candidate counts as a
// confident match.
const StrongOverlap = 0.8

// OverlapMarker prefixes labels of segments recognised as overlapping speech.
const OverlapMarker = "//"

// Turn is one diarization interval in milliseconds.
type Turn struct {
	StartMS int64
	EndMS   int64
	Label   string
}

// Span is a transcript segment in milliseconds.
type Span struct {
	StartMS int64
	EndMS   int64
}

// Match is the speaker chosen for a span.
type Match struct {
	Label       string
	Overlapping bool
}

// Display renders the label with the overlap marker when marking is on.
func (m Match) Display(markOverlap bool) string {
	if m.Label == "" {
		return ""
	}
	if markOverlap && m.Overlapping {
		return OverlapMarker + m.Label
	}
	return m.Label
}

// OverlapFraction returns the part of span covered by turn, as a fraction of
// the span's length. Spans without length never overlap.
func OverlapFraction(turn Turn, span Span) float64 {
	length := span.EndMS - span.StartMS
	if length <= 0 {
		return 0
	}
	start := max(turn.StartMS, span.StartMS)
	end := min(turn.EndMS, span.EndMS)
	if end <= start {
		return 0
	}
	return float64(end-start) / float64(length)
}

// FindSpeaker picks the diarization turn that best covers span. Turns must be
// ordered by start; the scan stops at the first turn starting after the span.
//
// Until some turn covers at least StrongOverlap of the span, the turn with
// the largest fraction wins. Once a strong turn exists, only another strong
// turn of strictly shorter duration replaces it, and such a replacement marks
// the match as overlapping speech. Exact ties keep the first turn seen.
func FindSpeaker(turns []Turn, span Span) Match {
	var (
		best         Turn
		bestFraction float64
		found        bool
		overlapping  bool
	)
	for _, turn := range turns {
		if turn.StartMS > span.EndMS {
			break
		}
		fraction := OverlapFraction(turn, span)
		if fraction <= 0 {
			continue
		}
		switch {
		case !found:
			best, bestFraction, found = turn, fraction, true
		case bestFraction < StrongOverlap:
			if fraction > bestFraction {
				best, bestFraction = turn, fraction
			}
		case fraction >= StrongOverlap && duration(turn) < duration(best):
			best, bestFraction = turn, fraction
			overlapping = true
		}
	}
	if !found {
		return Match{}
	}
	return Match{Label: ShortLabel(best.Label), Overlapping: overlapping}
}

// ShortLabel turns "SPEAKER_01" into "S01". Other labels are returned as is.
func ShortLabel(label string) string {
	const prefix = "SPEAKER_"
	if strings.HasPrefix(label, prefix) && len(label) > len(prefix) {
		return "S" + label[len(prefix):]
	}
	return label
}

// Rename maps short labels to display names, leaving unknown labels alone.
// An overlap marker on the label is kept.
func Rename(label string, names map[string]string) string {
	if label == "" || len(names) == 0 {
		return label
	}
	marker := ""
	if strings.HasPrefix(label, OverlapMarker) {
		marker, label = OverlapMarker, strings.TrimPrefix(label, OverlapMarker)
	}
	if name, ok := names[label]; ok && strings.TrimSpace(name) != "" {
		label = name
	}
	return marker + label
}

func duration(t Turn) int64 {
	return t.EndMS - t.StartMS
}
