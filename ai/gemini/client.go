// Package gemini implements the native Gemini REST provider, including
// search grounding, URL context, code execution and thinking budgets.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/warelay/warelay/ai"
)

// Config configures the Gemini client.
type Config struct {
	APIKey  string
	BaseURL string // default https://generativelanguage.googleapis.com
	Model   string // default gemini-2.5-flash
}

// Client calls the Gemini generateContent API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a Gemini client.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   cfg.Model,
		// Per-call deadlines come from the orchestrator's context.
		httpClient: &http.Client{},
	}
}

func (c *Client) Name() string { return "gemini" }

// Wire types for the generateContent request.

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text                string               `json:"text,omitempty"`
	Thought             bool                 `json:"thought,omitempty"`
	InlineData          *inlineData          `json:"inlineData,omitempty"`
	FunctionCall        *functionCall        `json:"functionCall,omitempty"`
	ExecutableCode      *executableCode      `json:"executableCode,omitempty"`
	CodeExecutionResult *codeExecutionResult `json:"codeExecutionResult,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type executableCode struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type codeExecutionResult struct {
	Outcome string `json:"outcome"`
	Output  string `json:"output"`
}

type toolSpec struct {
	GoogleSearch  *struct{} `json:"googleSearch,omitempty"`
	URLContext    *struct{} `json:"urlContext,omitempty"`
	CodeExecution *struct{} `json:"codeExecution,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget"`
	IncludeThoughts bool `json:"includeThoughts"`
}

type generationConfig struct {
	ThinkingConfig *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Tools             []toolSpec        `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

// Wire types for the generateContent response.

type groundingChunk struct {
	Web *struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	} `json:"web,omitempty"`
}

type groundingMetadata struct {
	GroundingChunks  []groundingChunk `json:"groundingChunks,omitempty"`
	WebSearchQueries []string         `json:"webSearchQueries,omitempty"`
}

type urlMetadata struct {
	RetrievedURL       string `json:"retrievedUrl"`
	URLRetrievalStatus string `json:"urlRetrievalStatus"`
}

type urlContextMetadata struct {
	URLMetadata []urlMetadata `json:"urlMetadata,omitempty"`
}

type candidate struct {
	Content            *content            `json:"content,omitempty"`
	FinishReason       string              `json:"finishReason,omitempty"`
	GroundingMetadata  *groundingMetadata  `json:"groundingMetadata,omitempty"`
	URLContextMetadata *urlContextMetadata `json:"urlContextMetadata,omitempty"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Generate performs one generateContent call and maps the wire response
// into the declared raw-result shape.
func (c *Client) Generate(ctx context.Context, messages []ai.Turn, opts *ai.GenerateOptions) (*ai.RawResult, error) {
	if opts == nil {
		opts = &ai.GenerateOptions{}
	}

	req := generateRequest{}
	for _, m := range messages {
		role := "user"
		if m.Role == ai.RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}

	// Media variant: attachments ride on the final user message.
	if len(opts.Attachments) > 0 && len(req.Contents) > 0 {
		last := &req.Contents[len(req.Contents)-1]
		for _, att := range opts.Attachments {
			last.Parts = append(last.Parts, part{InlineData: &inlineData{
				MimeType: att.MimeType,
				Data:     base64.StdEncoding.EncodeToString(att.Data),
			}})
		}
	}

	if opts.SystemPrompt != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: opts.SystemPrompt}}}
	}

	if opts.Tools != nil {
		for _, tool := range opts.Tools.Tools {
			switch tool.Name {
			case ai.ToolSearch:
				req.Tools = append(req.Tools, toolSpec{GoogleSearch: &struct{}{}})
			case ai.ToolURLContext:
				req.Tools = append(req.Tools, toolSpec{URLContext: &struct{}{}})
			case ai.ToolCodeExecution:
				req.Tools = append(req.Tools, toolSpec{CodeExecution: &struct{}{}})
			}
		}
	}

	if opts.ThinkingBudget > 0 {
		req.GenerationConfig = &generationConfig{ThinkingConfig: &thinkingConfig{
			ThinkingBudget:  opts.ThinkingBudget,
			IncludeThoughts: opts.IncludeThoughts,
		}}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal generate request")
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build generate request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "call gemini")
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read gemini response")
	}

	var resp generateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Wrapf(err, "decode gemini response (status %d)", httpResp.StatusCode)
	}
	if resp.Error != nil {
		return nil, errors.Errorf("gemini error %d (%s): %s", resp.Error.Code, resp.Error.Status, resp.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("gemini returned status %d", httpResp.StatusCode)
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.New("gemini returned no candidates")
	}

	return mapCandidate(&resp.Candidates[0]), nil
}

// mapCandidate flattens one candidate into the raw-result sum type.
func mapCandidate(cand *candidate) *ai.RawResult {
	raw := &ai.RawResult{}

	var texts []string
	var thoughts []string
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			switch {
			case p.Thought && p.Text != "":
				thoughts = append(thoughts, p.Text)
			case p.Text != "":
				texts = append(texts, p.Text)
			case p.FunctionCall != nil:
				raw.ToolCalls = append(raw.ToolCalls, ai.RawToolCall{
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				})
			case p.ExecutableCode != nil:
				args, _ := json.Marshal(p.ExecutableCode)
				raw.ToolCalls = append(raw.ToolCalls, ai.RawToolCall{
					Name: ai.ToolCodeExecution,
					Args: args,
				})
			case p.CodeExecutionResult != nil:
				if p.CodeExecutionResult.Output != "" {
					texts = append(texts, p.CodeExecutionResult.Output)
				}
			}
		}
	}
	raw.Content = strings.Join(texts, "")
	if len(thoughts) > 0 {
		raw.Reasoning = &ai.RawReasoning{Fragments: thoughts}
	}

	if gm := cand.GroundingMetadata; gm != nil {
		raw.SearchGrounded = len(gm.WebSearchQueries) > 0 || len(gm.GroundingChunks) > 0
		for _, chunk := range gm.GroundingChunks {
			if chunk.Web == nil {
				continue
			}
			raw.Sources = append(raw.Sources, ai.RawSource{
				URI:   chunk.Web.URI,
				Title: chunk.Web.Title,
			})
		}
	}
	if um := cand.URLContextMetadata; um != nil {
		for _, m := range um.URLMetadata {
			if m.URLRetrievalStatus != "" && m.URLRetrievalStatus != "URL_RETRIEVAL_STATUS_SUCCESS" {
				continue
			}
			raw.Sources = append(raw.Sources, ai.RawSource{URL: m.RetrievedURL})
		}
	}

	return raw
}
