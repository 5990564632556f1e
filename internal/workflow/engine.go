package workflow

import (
	"context"
	"fmt"

	"github.com/unisonhq/unison/internal/launch"
	"github.com/unisonhq/unison/internal/log"
	"github.com/unisonhq/unison/internal/manifest"
	"github.com/unisonhq/unison/internal/provider"
	"github.com/unisonhq/unison/internal/session"
)

// Session payload keys.
const (
	keyPhase    = "phase"
	keyManifest = "manifest"
	keyMetadata = "metadata"
	keyKind     = "kind"
	keyModified = "modified"
)

// StepResult is what one engine step hands back to the caller for
// rendering.
type StepResult struct {
	Phase   Phase
	Done    bool
	Message string
	// Launch is set when the step ran the launch orchestrator.
	Launch *launch.Result
}

// Engine is the phase state machine. It owns the sessions of the workflows
// it drives; flows supply the family-specific steps.
type Engine struct {
	sessions *session.Store
	editor   Editor
	flows    map[provider.DataKind]Flow
}

// NewEngine builds an engine over an explicit session store.
func NewEngine(sessions *session.Store, editor Editor, flows ...Flow) *Engine {
	byKind := make(map[provider.DataKind]Flow, len(flows))
	for _, f := range flows {
		byKind[f.Kind()] = f
	}
	return &Engine{sessions: sessions, editor: editor, flows: byKind}
}

// Start begins the workflow: runs PREPARE for the flow matching kind and
// leaves the session in REVIEW. Any preparation failure ends the session
// with ERROR.
func (e *Engine) Start(ctx context.Context, name string, kind provider.DataKind, opts PrepareOptions) (*StepResult, error) {
	flow, ok := e.flows[kind]
	if !ok {
		return nil, fmt.Errorf("no workflow variant for data provider %q", kind)
	}

	e.sessions.Begin(name)
	logger := log.WithWorkflow(name)

	m, meta, err := flow.Prepare(ctx, opts)
	if err != nil {
		e.sessions.End(name)
		logger.Error("preparation failed", "error", err)
		return &StepResult{
			Phase:   PhaseError,
			Done:    true,
			Message: fmt.Sprintf("setup failed: %v", err),
		}, nil
	}

	e.sessions.Put(name, keyPhase, string(PhaseReview))
	e.sessions.Put(name, keyManifest, m)
	e.sessions.Put(name, keyMetadata, meta)
	e.sessions.Put(name, keyKind, string(kind))
	logger.Info("entering review", "tables", len(m.Tables))

	return &StepResult{
		Phase:   PhaseReview,
		Message: reviewPrompt(m, meta, false),
	}, nil
}

// Handle consumes one free-text input for an active workflow and drives
// exactly one transition.
func (e *Engine) Handle(ctx context.Context, name, input string) (*StepResult, error) {
	data, ok := e.sessions.Get(name)
	if !ok {
		return nil, fmt.Errorf("no active workflow named %q", name)
	}

	phase := Phase(stringFrom(data, keyPhase))
	switch phase {
	case PhaseReview:
		return e.handleReview(ctx, name, data, input)
	case PhaseReadyToLaunch:
		return e.handleReadyToLaunch(ctx, name, data, input)
	default:
		e.sessions.End(name)
		return nil, fmt.Errorf("workflow %q is in unexpected phase %q", name, phase)
	}
}

func (e *Engine) handleReview(ctx context.Context, name string, data map[string]any, input string) (*StepResult, error) {
	switch Classify(PhaseReview, input) {
	case IntentConfirm:
		e.sessions.Put(name, keyPhase, string(PhaseReadyToLaunch))
		return &StepResult{
			Phase:   PhaseReadyToLaunch,
			Message: "Ready to launch. Type 'confirm' to submit the job, or 'cancel' to stop.",
		}, nil

	case IntentCancel:
		e.sessions.End(name)
		return &StepResult{Phase: PhaseCancelled, Done: true, Message: "Setup cancelled."}, nil

	default:
		// Forward as a modification request. Editor failure leaves the
		// manifest and phase untouched.
		current, _ := data[keyManifest].(*manifest.Manifest)
		edited, err := e.editor.Edit(ctx, current, input)
		if err != nil {
			return &StepResult{
				Phase:   PhaseReview,
				Message: fmt.Sprintf("Could not apply that change: %v. The manifest is unchanged; try again, or type 'launch' or 'cancel'.", err),
			}, nil
		}
		if ok, firstErr := manifest.ValidateManifest(edited); !ok {
			return &StepResult{
				Phase:   PhaseReview,
				Message: fmt.Sprintf("The edited manifest is invalid (%s) and was discarded; try again.", firstErr),
			}, nil
		}

		e.sessions.Put(name, keyManifest, edited)
		e.sessions.Put(name, keyModified, true)
		meta, _ := data[keyMetadata].(map[string]any)
		return &StepResult{
			Phase:   PhaseReview,
			Message: reviewPrompt(edited, meta, true),
		}, nil
	}
}

func (e *Engine) handleReadyToLaunch(ctx context.Context, name string, data map[string]any, input string) (*StepResult, error) {
	switch Classify(PhaseReadyToLaunch, input) {
	case IntentConfirm:
		kind := provider.DataKind(stringFrom(data, keyKind))
		flow, ok := e.flows[kind]
		if !ok {
			e.sessions.End(name)
			return nil, fmt.Errorf("no workflow variant for data provider %q", kind)
		}
		m, _ := data[keyManifest].(*manifest.Manifest)
		meta, _ := data[keyMetadata].(map[string]any)

		result := flow.Launch(ctx, m, meta)
		// The session ends here either way: launched and error are both
		// terminal.
		e.sessions.End(name)
		if !result.Success {
			return &StepResult{Phase: PhaseError, Done: true, Message: result.Message, Launch: result}, nil
		}
		return &StepResult{Phase: PhaseLaunched, Done: true, Message: result.Message, Launch: result}, nil

	case IntentCancel:
		e.sessions.End(name)
		return &StepResult{Phase: PhaseCancelled, Done: true, Message: "Setup cancelled."}, nil

	default:
		// Unmatched input re-prompts without bound.
		return &StepResult{
			Phase:   PhaseReadyToLaunch,
			Message: "Please type 'confirm' to submit the job, or 'cancel' to stop.",
		}, nil
	}
}

func reviewPrompt(m *manifest.Manifest, meta map[string]any, modified bool) string {
	fields := 0
	for _, t := range m.Tables {
		fields += len(t.Fields)
	}

	header := "Manifest ready for review"
	if modified {
		header = "Manifest updated"
	}
	msg := fmt.Sprintf("%s: %d tables, %d fields.\n", header, len(m.Tables), fields)
	if summary := stringFrom(meta, "scan_summary"); summary != "" {
		msg += summary + "\n"
	}
	msg += "Type 'launch' to proceed, 'cancel' to stop, or describe a change to make."
	return msg
}
