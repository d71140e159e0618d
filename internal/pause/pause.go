// Package pause moves transcript segment boundaries out of the silences
// found by voice activity detection.
package pause

// DefaultPad is how far, in seconds, each pause window reaches into the
// neighbouring speech chunks.
const DefaultPad = 0.2

// Chunk is a speech region in samples.
type Chunk struct {
	Start int64
	End   int64
}

// Window is a pause in seconds.
type Window struct {
	Start float64
	End   float64
}

// Adjuster snaps segment boundaries that fall inside pauses.
type Adjuster struct {
	windows []Window
}

// New builds the pause windows between consecutive chunks, plus a final
// window from the last chunk to the end of the audio.
func New(chunks []Chunk, sampleRate int, duration float64) *Adjuster {
	return NewWithPad(chunks, sampleRate, duration, DefaultPad)
}

// NewWithPad is New with an explicit pad in seconds.
func NewWithPad(chunks []Chunk, sampleRate int, duration, pad float64) *Adjuster {
	a := &Adjuster{}
	if sampleRate <= 0 || len(chunks) == 0 {
		return a
	}
	rate := float64(sampleRate)
	for i := 0; i < len(chunks)-1; i++ {
		a.windows = append(a.windows, Window{
			Start: float64(chunks[i].End)/rate - pad,
			End:   float64(chunks[i+1].Start)/rate + pad,
		})
	}
	last := chunks[len(chunks)-1]
	a.windows = append(a.windows, Window{
		Start: float64(last.End)/rate - pad,
		End:   duration + pad,
	})
	return a
}

// Windows returns a copy of the pause windows.
func (a *Adjuster) Windows() []Window {
	if a == nil {
		return nil
	}
	return append([]Window(nil), a.windows...)
}

// Adjust moves a start inside a pause to the pause end and an end inside a
// pause to the pause start, repeating until nothing moves. If that leaves the
// segment empty or inverted the original boundaries are returned. Applying
// Adjust to its own output returns the same boundaries.
func (a *Adjuster) Adjust(start, end float64) (float64, float64) {
	if a == nil || len(a.windows) == 0 {
		return start, end
	}
	s, e := start, end
	for range 2*len(a.windows) + 1 {
		moved := false
		for _, w := range a.windows {
			if s >= w.Start && s < w.End {
				s = w.End
				moved = true
			}
			if e > w.Start && e <= w.End {
				e = w.Start
				moved = true
			}
		}
		if !moved {
			break
		}
	}
	if s >= e {
		return start, end
	}
	return s, e
}
