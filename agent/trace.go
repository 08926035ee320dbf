// Package agent provides the reasoning calls of the agentic search path:
// filter extraction from free text and grounded result explanations.
package agent

import "github.com/google/uuid"

// StepKind labels one reasoning or retrieval step in a trace.
type StepKind string

const (
	// StepFilterExtraction records a filter-extraction reasoning call.
	StepFilterExtraction StepKind = "filter_extraction"
	// StepRetrieval records one issued retrieval call.
	StepRetrieval StepKind = "retrieval"
	// StepExplanation records the explanation reasoning call.
	StepExplanation StepKind = "explanation"
)

// Step is one entry of an AgentTrace.
type Step struct {
	Kind StepKind
	// Detail is a short human-readable account of what happened.
	Detail string
	// RawOutput is the unparsed model output, when the step made a
	// reasoning call.
	RawOutput string
}

// AgentTrace is the ordered record of reasoning steps taken for one request.
// It exists only to build the explanation and debug logs; it is request
// scoped and never persisted.
type AgentTrace struct {
	id    string
	steps []Step
}

// NewTrace creates a trace with a fresh correlation id.
func NewTrace() *AgentTrace {
	return &AgentTrace{id: uuid.NewString()}
}

// ID returns the trace's correlation id, empty for a nil trace.
func (t *AgentTrace) ID() string {
	if t == nil {
		return ""
	}
	return t.id
}

// Record appends a step.
func (t *AgentTrace) Record(step Step) {
	if t == nil {
		return
	}
	t.steps = append(t.steps, step)
}

// Steps returns the recorded steps in order.
func (t *AgentTrace) Steps() []Step {
	if t == nil {
		return nil
	}
	return t.steps
}
