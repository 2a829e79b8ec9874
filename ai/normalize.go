package ai

import (
	"encoding/json"
	"strings"
)

// RawSource is a grounding source as a provider reported it. Field names
// differ across response variants (url vs uri); the normalizer collapses
// them.
type RawSource struct {
	SourceType string
	ID         string
	URL        string
	URI        string
	Title      string
	Filename   string
	MediaType  string
}

// RawReasoning carries reasoning either as one scalar string or as an
// ordered sequence of fragments, depending on the provider variant.
type RawReasoning struct {
	Text      string
	Fragments []string
}

// RawToolCall is a tool-call record as a provider reported it. Different
// variants use different field names for id, type and arguments.
type RawToolCall struct {
	ID        string
	CallID    string
	Type      string
	Kind      string
	Name      string
	Arguments json.RawMessage
	Args      json.RawMessage
}

// RawResult is the declared sum over the known provider response shapes.
// Providers must map their wire formats into this type at the boundary;
// nothing downstream ever sees untyped provider output.
type RawResult struct {
	Content        string
	Sources        []RawSource
	Reasoning      *RawReasoning
	ToolCalls      []RawToolCall
	SearchGrounded bool
}

// Normalize converts a raw provider result into the canonical Response.
// Deterministic, order-preserving, and idempotent on already-canonical
// input.
func Normalize(raw *RawResult) *Response {
	if raw == nil {
		return &Response{}
	}

	resp := &Response{Content: raw.Content}

	for _, rs := range raw.Sources {
		src := Source{
			SourceType: rs.SourceType,
			ID:         rs.ID,
			URL:        firstNonEmpty(rs.URL, rs.URI),
			Title:      rs.Title,
			Filename:   rs.Filename,
			MediaType:  rs.MediaType,
		}
		if src.SourceType == "" {
			src.SourceType = "url"
		}
		if src.ID == "" {
			src.ID = src.URL
		}
		resp.Sources = append(resp.Sources, src)
	}

	if raw.Reasoning != nil {
		if len(raw.Reasoning.Fragments) > 0 {
			resp.Reasoning = strings.Join(raw.Reasoning.Fragments, "\n")
		} else {
			resp.Reasoning = raw.Reasoning.Text
		}
	}

	for _, rc := range raw.ToolCalls {
		call := ToolCall{
			ID:         firstNonEmpty(rc.ID, rc.CallID),
			Type:       firstNonEmpty(rc.Type, rc.Kind, rc.Name),
			Parameters: firstRaw(rc.Arguments, rc.Args),
			Origin:     ToolCallObserved,
		}
		if call.Type == "" {
			call.Type = "function"
		}
		resp.ToolCalls = append(resp.ToolCalls, call)
	}

	// A grounded response with no explicit call records still used search.
	// Synthesize one call so downstream can report tool usage, tagged so
	// callers needing accuracy can tell it apart from an observed call.
	if len(resp.ToolCalls) == 0 && (len(resp.Sources) > 0 || raw.SearchGrounded) {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:     "inferred-search",
			Type:   "search",
			Origin: ToolCallInferred,
		})
	}

	return resp
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstRaw(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
