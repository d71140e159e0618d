package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/youpy/go-wav"

	"scribe/internal/services"
)

// Info summarises a WAV header.
type Info struct {
	AudioFormat   uint16
	SampleRate    int
	Channels      int
	BitsPerSample int
	Duration      time.Duration
}

// Seconds returns the duration in seconds.
func (i Info) Seconds() float64 {
	return i.Duration.Seconds()
}

// Validate reports whether the artifact is the mono 16kHz 16-bit PCM the
// workers expect.
func (i Info) Validate() error {
	switch {
	case i.AudioFormat != wav.AudioFormatPCM:
		return fmt.Errorf("audio format %d is not PCM", i.AudioFormat)
	case i.Channels != 1:
		return fmt.Errorf("expected mono audio, got %d channels", i.Channels)
	case i.SampleRate != TargetSampleRate:
		return fmt.Errorf("expected %d Hz, got %d Hz", TargetSampleRate, i.SampleRate)
	case i.BitsPerSample != 16:
		return fmt.Errorf("expected 16-bit samples, got %d-bit", i.BitsPerSample)
	case i.Duration <= 0:
		return fmt.Errorf("audio contains no samples")
	}
	return nil
}

// Inspect reads the header of the WAV file at path.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, services.Wrap(services.ErrExternalTool, phase, "inspect", "prepared audio missing", err)
	}
	defer f.Close()

	reader := wav.NewReader(f)
	format, err := reader.Format()
	if err != nil {
		return Info{}, services.Wrap(services.ErrExternalTool, phase, "inspect", "prepared audio is not a WAV file", err)
	}
	duration, err := reader.Duration()
	if err != nil {
		return Info{}, services.Wrap(services.ErrExternalTool, phase, "inspect", "prepared audio has no data chunk", err)
	}
	return Info{
		AudioFormat:   format.AudioFormat,
		SampleRate:    int(format.SampleRate),
		Channels:      int(format.NumChannels),
		BitsPerSample: int(format.BitsPerSample),
		Duration:      duration,
	}, nil
}
