// Package bot routes inbound chat messages to the AI orchestrator and
// assembles the outbound replies.
package bot

import (
	"strings"

	"github.com/warelay/warelay/ai"
)

// CommandKind is the action a parsed command maps to.
type CommandKind int

const (
	// CommandGenerate triggers an AI turn.
	CommandGenerate CommandKind = iota
	// CommandClear wipes the conversation history.
	CommandClear
	// CommandHelp prints the command vocabulary.
	CommandHelp
)

// Command is one parsed chat command.
type Command struct {
	Kind   CommandKind
	Tools  ai.ToolRequest
	Prompt string
}

// helpText is the reply to !help.
const helpText = `*warelay commands*
!ai <prompt> — ask the assistant
!search <prompt> — ask with web search
!url <prompt> — ask with URL context
!code <prompt> — ask with code execution
!think <prompt> — ask with deep reasoning
!clear — forget this conversation
!help — show this message`

// ParseCommand matches text against the command vocabulary. It returns
// (nil, false) for anything that is not a command, so ordinary chatter never
// triggers AI handling.
func ParseCommand(text string) (*Command, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "!") {
		return nil, false
	}

	word, rest, _ := strings.Cut(trimmed, " ")
	prompt := strings.TrimSpace(rest)

	switch strings.ToLower(word) {
	case "!ai":
		return &Command{Kind: CommandGenerate, Prompt: prompt}, true
	case "!search":
		return &Command{Kind: CommandGenerate, Tools: ai.ToolRequest{Search: true}, Prompt: prompt}, true
	case "!url":
		return &Command{Kind: CommandGenerate, Tools: ai.ToolRequest{URLContext: true}, Prompt: prompt}, true
	case "!code":
		return &Command{Kind: CommandGenerate, Tools: ai.ToolRequest{CodeExecution: true}, Prompt: prompt}, true
	case "!think":
		return &Command{Kind: CommandGenerate, Tools: ai.ToolRequest{Thinking: true}, Prompt: prompt}, true
	case "!clear":
		return &Command{Kind: CommandClear}, true
	case "!help":
		return &Command{Kind: CommandHelp}, true
	default:
		return nil, false
	}
}
