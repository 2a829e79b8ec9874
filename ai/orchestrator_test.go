package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warelay/warelay/ai/memory"
)

// fakeProvider records the messages of each call and replies from a queue.
type fakeProvider struct {
	mu      sync.Mutex
	calls   [][]Turn
	opts    []*GenerateOptions
	replies []string
	err     error
	delay   time.Duration
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, messages []Turn, opts *GenerateOptions) (*RawResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	snapshot := make([]Turn, len(messages))
	copy(snapshot, messages)
	f.calls = append(f.calls, snapshot)
	f.opts = append(f.opts, opts)
	reply := "ok"
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	}
	return &RawResult{Content: reply}, nil
}

func newTestOrchestrator(p Provider, store *memory.Store) *Orchestrator {
	return NewOrchestrator(p, store, OrchestratorConfig{
		Window:  20,
		Timeout: 5 * time.Second,
	}, nil)
}

func TestGenerateRecallsContext(t *testing.T) {
	provider := &fakeProvider{replies: []string{"Nice to meet you, John!", "You love pizza."}}
	store := memory.NewStore(24 * time.Hour)
	orch := newTestOrchestrator(provider, store)

	_, err := orch.Generate(context.Background(), GenerateRequest{
		Prompt:         "My name is John and I love pizza",
		ConversationID: "c1",
	})
	require.NoError(t, err)

	_, err = orch.Generate(context.Background(), GenerateRequest{
		Prompt:         "What do I love to eat?",
		ConversationID: "c1",
	})
	require.NoError(t, err)

	require.Len(t, provider.calls, 2)
	second := provider.calls[1]
	require.Len(t, second, 3)
	assert.Equal(t, "My name is John and I love pizza", second[0].Content)
	assert.Equal(t, RoleAssistant, second[1].Role)
	assert.Equal(t, "What do I love to eat?", second[2].Content)
}

// Retention must track the configured window: with Window exchanges retained,
// the stored history holds at most 2×Window turns after an access, and the
// provider never sees more than Window context turns plus the new user turn.
func TestGenerateRetentionMatchesWindow(t *testing.T) {
	provider := &fakeProvider{}
	store := memory.NewStore(24 * time.Hour)
	orch := NewOrchestrator(provider, store, OrchestratorConfig{
		Window:  2,
		Timeout: 5 * time.Second,
	}, nil)

	for i := 0; i < 6; i++ {
		_, err := orch.Generate(context.Background(), GenerateRequest{
			Prompt:         "another message",
			ConversationID: "c1",
		})
		require.NoError(t, err)
	}

	for _, call := range provider.calls {
		assert.LessOrEqual(t, len(call), 2+1)
	}

	// The next access applies the retention cap to the stored history.
	assert.LessOrEqual(t, len(store.GetContext("c1", 2)), 2)
	count, _ := store.Summary("c1")
	assert.LessOrEqual(t, count, 2*2)
}

func TestGenerateStatelessWithoutConversationID(t *testing.T) {
	provider := &fakeProvider{}
	store := memory.NewStore(24 * time.Hour)
	orch := newTestOrchestrator(provider, store)

	_, err := orch.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)

	require.Len(t, provider.calls, 1)
	assert.Len(t, provider.calls[0], 1)
	assert.Equal(t, 0, store.Len())
}

func TestGenerateSenderLabelPrefix(t *testing.T) {
	provider := &fakeProvider{}
	store := memory.NewStore(24 * time.Hour)
	orch := newTestOrchestrator(provider, store)

	_, err := orch.Generate(context.Background(), GenerateRequest{
		Prompt:         "hello everyone",
		ConversationID: "group1",
		SenderLabel:    "Alice",
	})
	require.NoError(t, err)

	require.Len(t, provider.calls, 1)
	assert.Equal(t, "Alice: hello everyone", provider.calls[0][0].Content)
}

func TestGenerateFailureLeavesStoreUntouched(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream exploded")}
	store := memory.NewStore(24 * time.Hour)
	orch := newTestOrchestrator(provider, store)

	_, err := orch.Generate(context.Background(), GenerateRequest{
		Prompt:         "hi",
		ConversationID: "c1",
	})
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "fake", perr.Provider)
	assert.False(t, perr.Retryable)

	count, _ := store.Summary("c1")
	assert.Zero(t, count, "no partial append on failure")
}

func TestGenerateTimeoutIsRetryable(t *testing.T) {
	provider := &fakeProvider{delay: 200 * time.Millisecond}
	store := memory.NewStore(24 * time.Hour)
	orch := NewOrchestrator(provider, store, OrchestratorConfig{
		Window:  20,
		Timeout: 20 * time.Millisecond,
	}, nil)

	_, err := orch.Generate(context.Background(), GenerateRequest{Prompt: "hi", ConversationID: "c1"})
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Retryable)
}

func TestGenerateThinkingVariant(t *testing.T) {
	provider := &fakeProvider{}
	store := memory.NewStore(24 * time.Hour)
	orch := NewOrchestrator(provider, store, OrchestratorConfig{
		Window:         20,
		Timeout:        time.Second,
		ThinkingBudget: 4096,
	}, nil)

	_, err := orch.Generate(context.Background(), GenerateRequest{
		Prompt: "hard question",
		Tools:  ToolRequest{Thinking: true},
	})
	require.NoError(t, err)

	require.Len(t, provider.opts, 1)
	assert.Equal(t, 4096, provider.opts[0].ThinkingBudget)
	assert.True(t, provider.opts[0].IncludeThoughts)
	assert.Nil(t, provider.opts[0].Tools)
}

// Two concurrent generates for the same conversation must serialize: both
// exchanges land, in order, with the second call seeing the first exchange.
func TestGenerateSerializesPerConversation(t *testing.T) {
	provider := &fakeProvider{delay: 20 * time.Millisecond}
	store := memory.NewStore(24 * time.Hour)
	orch := newTestOrchestrator(provider, store)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orch.Generate(context.Background(), GenerateRequest{
				Prompt:         "msg",
				ConversationID: "c1",
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	count, _ := store.Summary("c1")
	assert.Equal(t, 4, count, "both exchanges persisted")

	require.Len(t, provider.calls, 2)
	assert.Len(t, provider.calls[0], 1, "first call sees empty context")
	assert.Len(t, provider.calls[1], 3, "second call sees the first exchange")
}
