// Package ai orchestrates generative-AI turns: tool selection, context
// assembly, provider invocation and response normalization.
package ai

import (
	"encoding/json"

	"github.com/warelay/warelay/ai/memory"
)

// Turn is re-exported so providers and callers share one history type with
// the conversation store.
type Turn = memory.Turn

// Turn roles, re-exported from the store.
const (
	RoleUser      = memory.RoleUser
	RoleAssistant = memory.RoleAssistant
	RoleSystem    = memory.RoleSystem
)

// ToolRequest captures which optional capabilities a turn asked for.
// Pure data, immutable per turn.
type ToolRequest struct {
	Search        bool
	URLContext    bool
	CodeExecution bool
	Thinking      bool
}

// Tool names understood by the providers.
const (
	ToolSearch        = "google_search"
	ToolURLContext    = "url_context"
	ToolCodeExecution = "code_execution"
)

// Tool is a single provider-tool descriptor.
type Tool struct {
	Name string
}

// ToolSet is the resolved set of tool descriptors for one provider call.
// A nil *ToolSet means "no tools": the provider call omits tool wiring
// entirely, which is distinct from an empty-but-present set.
type ToolSet struct {
	Tools []Tool
}

// Source describes one grounding source attached to a response.
type Source struct {
	SourceType string `json:"sourceType"`
	ID         string `json:"id"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	Filename   string `json:"filename,omitempty"`
	MediaType  string `json:"mediaType,omitempty"`
}

// ToolCallOrigin distinguishes tool calls the provider reported from calls
// the normalizer synthesized out of grounding evidence.
type ToolCallOrigin string

const (
	ToolCallObserved ToolCallOrigin = "observed"
	ToolCallInferred ToolCallOrigin = "inferred"
)

// ToolCall is one canonical tool invocation record.
type ToolCall struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Origin     ToolCallOrigin  `json:"origin"`
}

// Response is the canonical result of one generation turn.
type Response struct {
	Content   string     `json:"content"`
	Sources   []Source   `json:"sources,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// Attachment is a binary payload attached to a user turn (media variant).
type Attachment struct {
	MimeType string
	Data     []byte
	Filename string
}
