package fallback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/config"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Class
	}{
		{"CUDA out of memory", ClassAcceleration},
		{"RuntimeError: cuDNN error: CUDNN_STATUS_NOT_INITIALIZED", ClassAcceleration},
		{"CUBLAS_STATUS_ALLOC_FAILED", ClassAcceleration},
		{"device-side assert triggered", ClassAcceleration},
		{"no kernel image is available for execution on the device", ClassAcceleration},
		{"CUDA out of memory (device_cpu)", ClassOther},
		{"FileNotFoundError: audio.wav", ClassOther},
		{"out of memory", ClassOther},
		{"", ClassOther},
	}
	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.want {
			t.Fatalf("Classify(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestMarkCPU(t *testing.T) {
	if got := MarkCPU("boom"); got != "boom (device_cpu)" {
		t.Fatalf("MarkCPU = %q", got)
	}
	if got := MarkCPU(MarkCPU("boom")); strings.Count(got, CPUMarker) != 1 {
		t.Fatalf("marker duplicated: %q", got)
	}
	if Classify(MarkCPU("CUDA error")) != ClassOther {
		t.Fatal("marked text must not classify as acceleration")
	}
}

type countingPrompter struct {
	calls  map[Component]int
	answer bool
	err    error
}

func (p *countingPrompter) ConfirmCPUFallback(_ context.Context, c Component, _ string) (bool, error) {
	if p.calls == nil {
		p.calls = map[Component]int{}
	}
	p.calls[c]++
	return p.answer, p.err
}

func TestPolicyPromptsOncePerComponent(t *testing.T) {
	prompter := &countingPrompter{answer: false}
	policy := NewPolicy(config.Default(), prompter)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if policy.Decide(ctx, Transcription, "CUDA error: out of memory") {
			t.Fatal("declined fallback must not retry")
		}
	}
	if policy.Decide(ctx, Diarization, "cudnn failure") {
		t.Fatal("declined fallback must not retry")
	}
	if prompter.calls[Transcription] != 1 || prompter.calls[Diarization] != 1 {
		t.Fatalf("prompt counts = %v, want one per component", prompter.calls)
	}
	if policy.Device(Transcription) != DeviceAuto {
		t.Fatal("declined component should stay on auto")
	}
}

func TestPolicyAcceptForcesAndPersists(t *testing.T) {
	var persisted []map[string]any
	prompter := &countingPrompter{answer: true}
	policy := NewPolicy(config.Default(), prompter, WithPersist(func(u map[string]any) error {
		persisted = append(persisted, u)
		return nil
	}))

	if !policy.Decide(context.Background(), Diarization, "CUDA out of memory") {
		t.Fatal("accepted fallback should retry")
	}
	if policy.Device(Diarization) != DeviceCPU || !policy.Forced(Diarization) {
		t.Fatal("accepted component should be forced to cpu")
	}
	if policy.Device(Transcription) != DeviceAuto {
		t.Fatal("other component must be unaffected")
	}
	if len(persisted) != 1 || persisted[0][config.KeyForcePyannoteCPU] != true {
		t.Fatalf("persisted = %v", persisted)
	}
	if policy.Decide(context.Background(), Diarization, "CUDA out of memory (device_cpu)") {
		t.Fatal("cpu failures never retry")
	}
	if policy.Decide(context.Background(), Diarization, "CUDA out of memory") {
		t.Fatal("forced component never retries again")
	}
	if prompter.calls[Diarization] != 1 {
		t.Fatalf("prompted %d times", prompter.calls[Diarization])
	}
}

func TestPolicyIgnoresNonAccelerationErrors(t *testing.T) {
	prompter := &countingPrompter{answer: true}
	policy := NewPolicy(config.Default(), prompter)
	if policy.Decide(context.Background(), Transcription, "ValueError: bad language") {
		t.Fatal("non-acceleration error must not retry")
	}
	if len(prompter.calls) != 0 {
		t.Fatal("prompter must not be consulted")
	}
}

func TestPolicySeededFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Acceleration.ForceWhisperCPU = true
	prompter := &countingPrompter{answer: true}
	policy := NewPolicy(cfg, prompter)
	if policy.Device(Transcription) != DeviceCPU {
		t.Fatal("persisted flag should force cpu")
	}
	if policy.Decide(context.Background(), Transcription, "CUDA error") {
		t.Fatal("forced component must not retry")
	}
	if len(prompter.calls) != 0 {
		t.Fatal("forced component must not prompt")
	}
}

func TestPolicyAutoAccept(t *testing.T) {
	cfg := config.Default()
	cfg.Acceleration.AutoAcceptCPUFallback = true
	policy := NewPolicy(cfg, DeclinePrompter{})
	if !policy.Decide(context.Background(), Transcription, "CUDA error") {
		t.Fatal("auto accept should retry")
	}
}

func TestPolicyPromptErrorDeclines(t *testing.T) {
	prompter := &countingPrompter{answer: true, err: errors.New("stdin closed")}
	policy := NewPolicy(config.Default(), prompter)
	if policy.Decide(context.Background(), Transcription, "CUDA error") {
		t.Fatal("prompt error must decline")
	}
	if policy.Decide(context.Background(), Transcription, "CUDA error") {
		t.Fatal("latch must hold after a failed prompt")
	}
}

func TestPolicyPersistsToConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[transcription]\nmodel = \"small\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	policy := NewPolicy(config.Default(), AutoPrompter{}, WithPersist(func(u map[string]any) error {
		return config.Persist(path, u)
	}))
	if !policy.Decide(context.Background(), Transcription, "cublas failure") {
		t.Fatal("expected retry")
	}
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Acceleration.ForceWhisperCPU || cfg.Transcription.Model != "small" {
		t.Fatalf("persisted config = %+v", cfg)
	}
}
