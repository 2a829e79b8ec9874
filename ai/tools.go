package ai

// SelectTools maps capability flags to provider-tool descriptors. Each true
// flag contributes exactly one named descriptor. Returns nil when no flag is
// set so the provider call can omit tool wiring entirely.
//
// Thinking is not a tool descriptor: providers treat extended reasoning as a
// generation option, so the orchestrator handles that flag separately.
func SelectTools(req ToolRequest) *ToolSet {
	var tools []Tool
	if req.Search {
		tools = append(tools, Tool{Name: ToolSearch})
	}
	if req.URLContext {
		tools = append(tools, Tool{Name: ToolURLContext})
	}
	if req.CodeExecution {
		tools = append(tools, Tool{Name: ToolCodeExecution})
	}
	if len(tools) == 0 {
		return nil
	}
	return &ToolSet{Tools: tools}
}
