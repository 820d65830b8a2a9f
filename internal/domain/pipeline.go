// Package domain contains core business types and interfaces.
//
// This file defines the lifecycle of a single resume analysis attempt.
package domain

import (
	"time"
)

// =============================================================================
// Pipeline State
// =============================================================================

// PipelineState is the state of one analysis attempt.
type PipelineState string

const (
	PipelineIdle                PipelineState = "idle"
	PipelineUploading           PipelineState = "uploading"
	PipelineUploaded            PipelineState = "uploaded"
	PipelineExtracting          PipelineState = "extracting"
	PipelineStructuring         PipelineState = "structuring"
	PipelineValidating          PipelineState = "validating"
	PipelineCompleted           PipelineState = "completed"
	PipelineRejectedAsNonResume PipelineState = "rejected_as_non_resume"
	PipelineFailed              PipelineState = "failed"
)

// String returns the string representation of the state.
func (s PipelineState) String() string {
	return string(s)
}

// IsTerminal returns true for states that end an attempt.
func (s PipelineState) IsTerminal() bool {
	switch s {
	case PipelineCompleted, PipelineRejectedAsNonResume, PipelineFailed:
		return true
	}
	return false
}

// CanTransitionTo checks if an attempt can move to the target state.
//
// Valid transitions:
// - idle -> uploading (document bytes supplied)
// - idle -> uploaded (document already stored, processing by URL)
// - uploading -> uploaded
// - uploaded -> extracting -> structuring -> validating
// - validating -> completed | rejected_as_non_resume
// - any non-terminal state -> failed
func (s PipelineState) CanTransitionTo(target PipelineState) bool {
	if s.IsTerminal() {
		return false
	}
	if target == PipelineFailed {
		return true
	}

	switch s {
	case PipelineIdle:
		return target == PipelineUploading || target == PipelineUploaded
	case PipelineUploading:
		return target == PipelineUploaded
	case PipelineUploaded:
		return target == PipelineExtracting
	case PipelineExtracting:
		return target == PipelineStructuring
	case PipelineStructuring:
		return target == PipelineValidating
	case PipelineValidating:
		return target == PipelineCompleted || target == PipelineRejectedAsNonResume
	}

	return false
}

// =============================================================================
// Pipeline
// =============================================================================

// StateChange is one recorded transition.
type StateChange struct {
	From PipelineState `json:"from"`
	To   PipelineState `json:"to"`
	At   time.Time     `json:"at"`
}

// Pipeline tracks the state of one attempt. It is owned by a single request
// and is not safe for concurrent use.
type Pipeline struct {
	State PipelineState
	Trace []StateChange
	now   func() time.Time
}

// NewPipeline returns a pipeline in the idle state.
func NewPipeline() *Pipeline {
	return &Pipeline{State: PipelineIdle, now: time.Now}
}

// TransitionTo moves the pipeline to target, or returns an error and leaves
// the state unchanged.
func (p *Pipeline) TransitionTo(target PipelineState) error {
	if !p.State.CanTransitionTo(target) {
		return Errorf(EINTERNAL, "pipeline.transition", "cannot transition from %s to %s", p.State, target)
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	p.Trace = append(p.Trace, StateChange{From: p.State, To: target, At: now()})
	p.State = target
	return nil
}
