package biz

import (
	"strings"

	"github.com/kart-io/bookqa/internal/model"
)

// GateState is the state of a grounding decision.
type GateState string

const (
	// GatePending: not yet evaluated.
	GatePending GateState = "PENDING"

	// GateProceed: the pipeline may continue.
	GateProceed GateState = "PROCEED"

	// GateRefused: the query must terminate with a refusal.
	GateRefused GateState = "REFUSED"
)

// GateDecision is the outcome of one checkpoint evaluation.
type GateDecision struct {
	State       GateState
	Reason      model.ReasonCode
	Explanation string
}

// Refused reports whether the decision terminates the query.
func (d GateDecision) Refused() bool {
	return d.State == GateRefused
}

func proceed() GateDecision {
	return GateDecision{State: GateProceed}
}

func refuse(reason model.ReasonCode, explanation string) GateDecision {
	return GateDecision{State: GateRefused, Reason: reason, Explanation: explanation}
}

// GroundingGate decides whether the system is allowed to answer.
// All checks are pure functions of their inputs: no I/O, no clock,
// no randomness, so the same inputs always yield the same decision.
type GroundingGate struct{}

// CheckQuery is the pre-retrieval checkpoint.
func (GroundingGate) CheckQuery(question string) GateDecision {
	if strings.TrimSpace(question) == "" {
		return refuse(model.ReasonNoRelevantContext, "The question is empty.")
	}
	return proceed()
}

// CheckRetrieval is the post-retrieval checkpoint. An empty passage set
// means there is nothing to ground an answer on; a passage without a
// source identifier could never be cited, so it forces a refusal before
// any generation cost is spent.
func (GroundingGate) CheckRetrieval(passages []model.ContextPassage) GateDecision {
	if len(passages) == 0 {
		return refuse(model.ReasonNoRelevantContext, "No relevant content was found in the book for this question.")
	}
	for _, p := range passages {
		if strings.TrimSpace(p.DocumentID) == "" {
			return refuse(model.ReasonCitationFailure, "A retrieved passage has no source identifier, so the answer could not be cited.")
		}
	}
	return proceed()
}

// CheckGeneration is the post-generation checkpoint. The generator already
// interprets model refusal phrasing; this checkpoint turns that result into
// a terminal decision.
func (GroundingGate) CheckGeneration(result *model.GenerationResult) GateDecision {
	if result == nil {
		return refuse(model.ReasonNoRelevantContext, "No response was generated from the model.")
	}
	if result.Status == model.StatusInsufficientContext {
		reason := result.Reason
		if reason == "" {
			reason = model.ReasonNoRelevantContext
		}
		return refuse(reason, result.Explanation)
	}
	return proceed()
}

// CheckCitations is the post-citation checkpoint. A generated answer whose
// citations cannot be validated is downgraded to a refusal: an uncited
// answer must never reach the caller.
func (GroundingGate) CheckCitations(err error) GateDecision {
	if err != nil {
		return refuse(model.ReasonCitationFailure, "Citations could not be derived for the generated answer.")
	}
	return proceed()
}
