// Package openaicompat implements the provider interface for any
// OpenAI-compatible chat-completion API (openai, deepseek, openrouter,
// ollama). These backends carry no search grounding or URL context; tool
// flags beyond function calls are ignored with a log line.
package openaicompat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/warelay/warelay/ai"
)

var errNoChoices = errors.New("provider returned no choices")

// Config configures the client.
type Config struct {
	Provider string // identifier used in logs and error wrapping
	APIKey   string
	BaseURL  string
	Model    string
}

// Client adapts go-openai to the provider interface.
type Client struct {
	client   *openai.Client
	provider string
	model    string
}

// New creates a client for an OpenAI-compatible endpoint.
func New(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &Client{
		client:   openai.NewClientWithConfig(clientConfig),
		provider: cfg.Provider,
		model:    cfg.Model,
	}
}

func (c *Client) Name() string { return c.provider }

// Generate performs one chat completion and maps the result into the
// declared raw-result shape.
func (c *Client) Generate(ctx context.Context, messages []ai.Turn, opts *ai.GenerateOptions) (*ai.RawResult, error) {
	if opts == nil {
		opts = &ai.GenerateOptions{}
	}

	var chatMessages []openai.ChatCompletionMessage
	if opts.SystemPrompt != "" {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	for i, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == ai.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msg := openai.ChatCompletionMessage{Role: role, Content: m.Content}

		// Media variant: attachments ride on the final user message.
		if i == len(messages)-1 && len(opts.Attachments) > 0 {
			parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: m.Content}}
			for _, att := range opts.Attachments {
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: dataURL(att)},
				})
			}
			msg.Content = ""
			msg.MultiContent = parts
		}
		chatMessages = append(chatMessages, msg)
	}

	if opts.Tools != nil {
		// Grounded tools are a native-provider capability; the
		// OpenAI-compatible path answers from the model alone.
		slog.Warn("tool flags ignored by openai-compatible provider",
			"provider", c.provider,
			"tools", len(opts.Tools.Tools),
		)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: chatMessages,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errNoChoices
	}

	choice := resp.Choices[0]
	raw := &ai.RawResult{Content: choice.Message.Content}

	if choice.Message.ReasoningContent != "" {
		raw.Reasoning = &ai.RawReasoning{Text: choice.Message.ReasoningContent}
	}

	for _, tc := range choice.Message.ToolCalls {
		raw.ToolCalls = append(raw.ToolCalls, ai.RawToolCall{
			ID:        tc.ID,
			Type:      string(tc.Type),
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	return raw, nil
}

func dataURL(att ai.Attachment) string {
	return "data:" + att.MimeType + ";base64," + base64.StdEncoding.EncodeToString(att.Data)
}
