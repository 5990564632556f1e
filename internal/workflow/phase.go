// Package workflow drives the multi-turn setup dialogue as a phase state
// machine over an explicit session store.
package workflow

import "strings"

// Phase is a state of the setup dialogue.
type Phase string

const (
	PhasePrepare       Phase = "prepare"
	PhaseReview        Phase = "review"
	PhaseReadyToLaunch Phase = "ready_to_launch"
	PhaseLaunched      Phase = "launched"
	PhaseCancelled     Phase = "cancelled"
	PhaseError         Phase = "error"
)

// Terminal reports whether a phase ends the workflow.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseLaunched, PhaseCancelled, PhaseError:
		return true
	}
	return false
}

// Intent is the classification of one free-text input.
type Intent int

const (
	// IntentOther is any input matching neither token set; its meaning
	// depends on the phase (modification request in review, re-prompt in
	// ready_to_launch).
	IntentOther Intent = iota
	IntentConfirm
	IntentCancel
)

// Per-phase token sets. Matching is case-insensitive exact match after
// trimming whitespace.
var (
	reviewLaunchTokens = []string{"launch", "yes", "y", "launch it", "go", "proceed"}
	reviewCancelTokens = []string{"cancel", "abort", "stop", "exit", "quit", "no"}

	readyConfirmTokens = []string{"confirm", "yes", "y", "launch", "proceed", "go", "make it so"}
	readyCancelTokens  = []string{"cancel", "abort", "stop", "no"}
)

// Classify maps one input to an intent for the given phase. Pure function;
// unknown phases classify everything as IntentOther.
func Classify(phase Phase, input string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(input))

	var confirm, cancel []string
	switch phase {
	case PhaseReview:
		confirm, cancel = reviewLaunchTokens, reviewCancelTokens
	case PhaseReadyToLaunch:
		confirm, cancel = readyConfirmTokens, readyCancelTokens
	default:
		return IntentOther
	}

	for _, tok := range confirm {
		if normalized == tok {
			return IntentConfirm
		}
	}
	for _, tok := range cancel {
		if normalized == tok {
			return IntentCancel
		}
	}
	return IntentOther
}
