package ai

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/warelay/warelay/ai/memory"
	"github.com/warelay/warelay/internal/metrics"
)

// defaultMaxInflight bounds concurrent provider calls across all
// conversations.
const defaultMaxInflight = 8

// OrchestratorConfig configures the orchestrator.
type OrchestratorConfig struct {
	SystemPrompt   string
	Window         int           // retained exchanges per conversation
	Timeout        time.Duration // per provider call
	ThinkingBudget int           // tokens, for the deep-reasoning variant
	MaxInflight    int64
}

// GenerateRequest describes one conversational turn.
type GenerateRequest struct {
	Prompt         string
	Tools          ToolRequest
	ConversationID string       // empty: stateless one-shot
	SenderLabel    string       // non-empty in multi-party chats
	Attachments    []Attachment // media variant
}

// Orchestrator composes the conversation store, tool dispatch, the provider
// and the normalizer to produce one reply per turn.
type Orchestrator struct {
	provider Provider
	store    *memory.Store
	cfg      OrchestratorConfig
	sem      *semaphore.Weighted
	exporter *metrics.Exporter

	// Serializes read-generate-append per conversation id so two rapid
	// messages in one chat cannot interleave their history writes.
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewOrchestrator creates an orchestrator. exporter may be nil.
func NewOrchestrator(provider Provider, store *memory.Store, cfg OrchestratorConfig, exporter *metrics.Exporter) *Orchestrator {
	if cfg.Window <= 0 {
		cfg.Window = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = defaultMaxInflight
	}
	return &Orchestrator{
		provider: provider,
		store:    store,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(cfg.MaxInflight),
		exporter: exporter,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) lockFor(id string) *sync.Mutex {
	o.lockMu.Lock()
	defer o.lockMu.Unlock()
	mu, ok := o.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		o.locks[id] = mu
	}
	return mu
}

// Generate runs one turn: fetch bounded context, resolve tools, call the
// provider, normalize, and persist the exchange. Persistence happens only
// after a successful call, so a failed call never corrupts stored history.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (*Response, error) {
	if req.ConversationID != "" {
		mu := o.lockFor(req.ConversationID)
		mu.Lock()
		defer mu.Unlock()
	}

	// GetContext caps stored history at twice its argument, so passing the
	// window keeps retention at Window exchanges.
	var msgs []Turn
	if req.ConversationID != "" {
		msgs = o.store.GetContext(req.ConversationID, o.cfg.Window)
	}

	content := req.Prompt
	if req.SenderLabel != "" {
		content = req.SenderLabel + ": " + req.Prompt
	}
	userTurn := Turn{Role: RoleUser, Content: content, Timestamp: time.Now()}
	msgs = append(msgs, userTurn)

	opts := &GenerateOptions{
		SystemPrompt: o.cfg.SystemPrompt,
		Tools:        SelectTools(req.Tools),
		Attachments:  req.Attachments,
	}
	if req.Tools.Thinking {
		opts.ThinkingBudget = o.cfg.ThinkingBudget
		opts.IncludeThoughts = true
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, &ProviderError{Provider: o.provider.Name(), Retryable: true, Err: err}
	}
	defer o.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := o.provider.Generate(callCtx, msgs, opts)
	elapsed := time.Since(start)

	if o.exporter != nil {
		o.exporter.AILatency.Observe(elapsed.Seconds())
	}
	if err != nil {
		if o.exporter != nil {
			o.exporter.AIRequests.WithLabelValues("error").Inc()
		}
		retryable := errors.Is(err, context.DeadlineExceeded)
		return nil, &ProviderError{Provider: o.provider.Name(), Retryable: retryable, Err: err}
	}
	if o.exporter != nil {
		o.exporter.AIRequests.WithLabelValues("ok").Inc()
	}

	resp := Normalize(raw)

	if req.ConversationID != "" {
		o.store.AppendExchange(req.ConversationID,
			userTurn,
			Turn{Role: RoleAssistant, Content: resp.Content, Timestamp: time.Now()},
		)
	}

	slog.Debug("ai generation complete",
		"provider", o.provider.Name(),
		"conversation", req.ConversationID,
		"duration_ms", elapsed.Milliseconds(),
		"sources", len(resp.Sources),
		"tool_calls", len(resp.ToolCalls),
	)
	return resp, nil
}
