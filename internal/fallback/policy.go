package fallback

import (
	"context"
	"log/slog"
	"sync"

	"scribe/internal/config"
	"scribe/internal/logging"
)

// Component identifies an accelerated phase.
type Component string

const (
	Diarization   Component = "diarization"
	Transcription Component = "transcription"
)

// Device names passed to workers.
const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
)

// PersistKey returns the config key that stores the component's CPU flag.
func (c Component) PersistKey() string {
	if c == Diarization {
		return config.KeyForcePyannoteCPU
	}
	return config.KeyForceWhisperCPU
}

// Prompter asks whether a component should switch to the CPU for good.
type Prompter interface {
	ConfirmCPUFallback(ctx context.Context, component Component, errText string) (bool, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, component Component, errText string) (bool, error)

func (f PrompterFunc) ConfirmCPUFallback(ctx context.Context, component Component, errText string) (bool, error) {
	return f(ctx, component, errText)
}

// AutoPrompter accepts every fallback without asking.
type AutoPrompter struct{}

func (AutoPrompter) ConfirmCPUFallback(context.Context, Component, string) (bool, error) {
	return true, nil
}

// DeclinePrompter rejects every fallback.
type DeclinePrompter struct{}

func (DeclinePrompter) ConfirmCPUFallback(context.Context, Component, string) (bool, error) {
	return false, nil
}

// Option configures a Policy.
type Option func(*Policy)

// WithPersist sets the writer used to store accepted fallbacks.
func WithPersist(persist func(updates map[string]any) error) Option {
	return func(p *Policy) { p.persist = persist }
}

// WithLogger sets the policy logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) { p.logger = logging.NewComponentLogger(logger, "fallback") }
}

// Policy is the per-component CPU fallback latch.
type Policy struct {
	mu       sync.Mutex
	forced   map[Component]bool
	prompted map[Component]bool
	prompter Prompter
	persist  func(map[string]any) error
	logger   *slog.Logger
}

// NewPolicy seeds the latch from the persisted flags in cfg. A nil prompter
// declines, unless cfg enables automatic acceptance.
func NewPolicy(cfg config.Config, prompter Prompter, opts ...Option) *Policy {
	if cfg.Acceleration.AutoAcceptCPUFallback {
		prompter = AutoPrompter{}
	}
	if prompter == nil {
		prompter = DeclinePrompter{}
	}
	p := &Policy{
		forced: map[Component]bool{
			Diarization:   cfg.Acceleration.ForcePyannoteCPU,
			Transcription: cfg.Acceleration.ForceWhisperCPU,
		},
		prompted: map[Component]bool{},
		prompter: prompter,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Forced reports whether the component is pinned to the CPU.
func (p *Policy) Forced(c Component) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.forced[c]
}

// Device returns the device string to hand to the component's worker.
func (p *Policy) Device(c Component) string {
	if p.Forced(c) {
		return DeviceCPU
	}
	return DeviceAuto
}

// Decide reports whether the failed phase should be retried on the CPU. Only
// an accelerator failure on a component that is neither forced nor already
// prompted reaches the prompter; at most one prompt per component is ever made.
func (p *Policy) Decide(ctx context.Context, c Component, errText string) bool {
	if Classify(errText) != ClassAcceleration {
		return false
	}
	p.mu.Lock()
	if p.forced[c] || p.prompted[c] {
		p.mu.Unlock()
		return false
	}
	p.prompted[c] = true
	p.mu.Unlock()

	accepted, err := p.prompter.ConfirmCPUFallback(ctx, c, errText)
	if err != nil {
		logging.WarnWithContext(p.logger, "cpu fallback prompt failed; treating as declined", "cpu_fallback_prompt_failed",
			logging.String("component", string(c)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the job fails with the accelerator error"),
		)
		return false
	}
	if !accepted {
		p.logger.Info("cpu fallback declined",
			logging.String("component", string(c)),
			logging.String(logging.FieldEventType, "cpu_fallback_declined"),
		)
		return false
	}

	p.mu.Lock()
	p.forced[c] = true
	p.mu.Unlock()

	if p.persist != nil {
		if err := p.persist(map[string]any{c.PersistKey(): true}); err != nil {
			logging.WarnWithContext(p.logger, "cpu fallback not persisted", "cpu_fallback_persist_failed",
				logging.String("component", string(c)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "set "+c.PersistKey()+" = true in the config file"),
				logging.String(logging.FieldImpact, "the fallback applies to this session only"),
			)
		}
	}
	p.logger.Info("cpu fallback accepted",
		logging.String("component", string(c)),
		logging.String(logging.FieldEventType, "cpu_fallback_accepted"),
	)
	return true
}
