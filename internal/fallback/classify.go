package fallback

import "strings"

// Class is the outcome of classifying an error text.
type Class int

const (
	ClassOther Class = iota
	ClassAcceleration
)

func (c Class) String() string {
	if c == ClassAcceleration {
		return "acceleration"
	}
	return "other"
}

// CPUMarker is appended to error texts from runs that were already on the CPU
// so they are never classified as accelerator failures again.
const CPUMarker = "(device_cpu)"

var accelerationKeywords = []string{
	"cuda",
	"cublas",
	"cudnn",
	"cufft",
	"curand",
	"nccl",
	"nvrtc",
	"device-side assert",
	"no kernel image",
	"hip error",
	"hiperror",
	"rocm",
	"mps backend",
	"metal performance shaders",
	"gpu out of memory",
}

// Classify reports whether text describes an accelerator failure.
func Classify(text string) Class {
	lower := strings.ToLower(text)
	if lower == "" || strings.Contains(lower, CPUMarker) {
		return ClassOther
	}
	for _, keyword := range accelerationKeywords {
		if strings.Contains(lower, keyword) {
			return ClassAcceleration
		}
	}
	return ClassOther
}

// MarkCPU appends CPUMarker to text unless it is already present.
func MarkCPU(text string) string {
	if strings.Contains(text, CPUMarker) {
		return text
	}
	if strings.TrimSpace(text) == "" {
		return CPUMarker
	}
	return text + " " + CPUMarker
}
