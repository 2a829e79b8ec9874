package ai

import "context"

// GenerateOptions tunes one provider call.
type GenerateOptions struct {
	// SystemPrompt is prepended as a system instruction when non-empty.
	SystemPrompt string

	// Tools is the resolved tool set. Nil means the call carries no tool
	// wiring at all.
	Tools *ToolSet

	// Attachments are attached to the final user message (media variant).
	Attachments []Attachment

	// ThinkingBudget requests extended reasoning with the given token
	// budget. Zero disables it.
	ThinkingBudget int

	// IncludeThoughts asks the provider to echo its reasoning trace.
	IncludeThoughts bool
}

// Provider is the generative-AI backend. Implementations map their wire
// formats into RawResult; normalization happens in the orchestrator.
type Provider interface {
	Name() string
	Generate(ctx context.Context, messages []Turn, opts *GenerateOptions) (*RawResult, error)
}
