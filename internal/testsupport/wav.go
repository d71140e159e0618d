package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/youpy/go-wav"
)

// SampleRate is the rate of WAV fixtures, matching prepared audio.
const SampleRate = 16000

// WriteWAV writes a mono 16kHz 16-bit PCM file holding a quiet tone of the
// given length.
func WriteWAV(t testing.TB, path string, seconds float64) {
	t.Helper()
	WriteWAVFormat(t, path, seconds, 1, SampleRate)
}

// WriteWAVFormat writes a 16-bit PCM file with an arbitrary layout, for
// exercising validation of non-conforming artifacts.
func WriteWAVFormat(t testing.TB, path string, seconds float64, channels uint16, sampleRate uint32) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	frames := uint32(seconds * float64(sampleRate))
	samples := make([]wav.Sample, frames)
	for i := range samples {
		v := int(1000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		samples[i].Values = [2]int{v, v}
	}
	writer := wav.NewWriter(f, frames, channels, sampleRate, 16)
	if err := writer.WriteSamples(samples); err != nil {
		t.Fatalf("write samples %s: %v", path, err)
	}
}
