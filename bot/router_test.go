package bot

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warelay/warelay/ai"
	"github.com/warelay/warelay/ai/memory"
	"github.com/warelay/warelay/plugin/sheetlog"
	"github.com/warelay/warelay/wa"
)

type fakeGenerator struct {
	mu       sync.Mutex
	requests []ai.GenerateRequest
	resp     *ai.Response
	err      error
}

func (g *fakeGenerator) Generate(_ context.Context, req ai.GenerateRequest) (*ai.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.resp, nil
}

type fakeSender struct {
	mu        sync.Mutex
	replies   []string
	chats     []string
	presences []wa.Presence
	sendErr   error
}

func (s *fakeSender) SendReply(_ context.Context, jid, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.chats = append(s.chats, jid)
	s.replies = append(s.replies, text)
	return nil
}

func (s *fakeSender) SetPresence(_ context.Context, _ string, presence wa.Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presences = append(s.presences, presence)
	return nil
}

type recordingLog struct {
	mu      sync.Mutex
	records []*sheetlog.Record
}

func (l *recordingLog) Append(_ context.Context, rec *sheetlog.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *recordingLog) AppendAsync(rec *sheetlog.Record) {
	_ = l.Append(context.Background(), rec)
}

func textMessage(chat, text string) wa.RawMessage {
	return wa.RawMessage{
		ID:        "msg-1",
		RemoteJID: chat,
		SenderJID: "15550001111@s.whatsapp.net",
		Timestamp: time.Now(),
		Kind:      "text",
		Text:      text,
	}
}

func newTestRouter(gen *fakeGenerator, sender *fakeSender, rec sheetlog.Recorder) (*Router, *memory.Store) {
	store := memory.NewStore(time.Hour)
	return NewRouter(gen, sender, store, rec, nil, RouterConfig{RateBurst: 100}), store
}

func TestRouterRepliesToCommand(t *testing.T) {
	gen := &fakeGenerator{resp: &ai.Response{Content: "Paris."}}
	sender := &fakeSender{}
	log := &recordingLog{}
	router, _ := newTestRouter(gen, sender, log)

	router.HandleMessages(context.Background(), wa.MessagesEvent{Messages: []wa.RawMessage{
		textMessage("123@s.whatsapp.net", "!ai capital of France?"),
	}})

	require.Len(t, gen.requests, 1)
	require.Equal(t, "capital of France?", gen.requests[0].Prompt)
	require.Equal(t, "123@s.whatsapp.net", gen.requests[0].ConversationID)
	require.Empty(t, gen.requests[0].SenderLabel)

	require.Equal(t, []string{"Paris."}, sender.replies)
	require.Equal(t, []wa.Presence{wa.PresenceComposing, wa.PresenceAvailable}, sender.presences)

	// One inbound record and one outbound record.
	require.Len(t, log.records, 2)
	require.Equal(t, sheetlog.DirectionInbound, log.records[0].Direction)
	require.Equal(t, sheetlog.DirectionOutbound, log.records[1].Direction)
}

func TestRouterIgnoresChatterAndSelf(t *testing.T) {
	gen := &fakeGenerator{resp: &ai.Response{Content: "unused"}}
	sender := &fakeSender{}
	router, _ := newTestRouter(gen, sender, nil)

	self := textMessage("123@s.whatsapp.net", "!ai hello")
	self.FromMe = true

	router.HandleMessages(context.Background(), wa.MessagesEvent{Messages: []wa.RawMessage{
		textMessage("123@s.whatsapp.net", "just chatting"),
		self,
	}})

	require.Empty(t, gen.requests)
	require.Empty(t, sender.replies)
}

func TestRouterGroupSenderLabel(t *testing.T) {
	gen := &fakeGenerator{resp: &ai.Response{Content: "ok"}}
	sender := &fakeSender{}
	router, _ := newTestRouter(gen, sender, nil)

	msg := textMessage("7777@g.us", "!ai who said what?")
	msg.PushName = "Alice"
	router.HandleMessages(context.Background(), wa.MessagesEvent{Messages: []wa.RawMessage{msg}})

	require.Len(t, gen.requests, 1)
	require.Equal(t, "Alice", gen.requests[0].SenderLabel)
}

func TestRouterCaptionAndUnsupported(t *testing.T) {
	gen := &fakeGenerator{resp: &ai.Response{Content: "ok"}}
	sender := &fakeSender{}
	log := &recordingLog{}
	router, _ := newTestRouter(gen, sender, log)

	img := textMessage("123@s.whatsapp.net", "")
	img.Kind = "image"
	img.Caption = "!ai what is in this picture?"

	sticker := textMessage("123@s.whatsapp.net", "")
	sticker.Kind = "sticker"

	router.HandleMessages(context.Background(), wa.MessagesEvent{Messages: []wa.RawMessage{img, sticker}})

	require.Len(t, gen.requests, 1)
	require.Equal(t, "what is in this picture?", gen.requests[0].Prompt)
	require.Equal(t, unsupportedPlaceholder, log.records[1].Content)
}

func TestRouterProviderFailureApologizes(t *testing.T) {
	gen := &fakeGenerator{err: &ai.ProviderError{Provider: "gemini", Err: context.DeadlineExceeded}}
	sender := &fakeSender{}
	router, store := newTestRouter(gen, sender, nil)

	router.HandleMessages(context.Background(), wa.MessagesEvent{Messages: []wa.RawMessage{
		textMessage("123@s.whatsapp.net", "!ai hello"),
	}})

	require.Equal(t, []string{apologyReply}, sender.replies)
	count, _ := store.Summary("123@s.whatsapp.net")
	require.Zero(t, count)
}

func TestRouterClearCommand(t *testing.T) {
	gen := &fakeGenerator{resp: &ai.Response{Content: "ok"}}
	sender := &fakeSender{}
	router, store := newTestRouter(gen, sender, nil)

	store.AppendExchange("123@s.whatsapp.net", memory.UserTurn("hi"), memory.AssistantTurn("hello"))

	router.HandleMessages(context.Background(), wa.MessagesEvent{Messages: []wa.RawMessage{
		textMessage("123@s.whatsapp.net", "!clear"),
	}})

	count, last := store.Summary("123@s.whatsapp.net")
	require.Zero(t, count)
	require.Nil(t, last)
	require.Equal(t, []string{"Conversation cleared."}, sender.replies)
}

func TestRouterHelpCommand(t *testing.T) {
	gen := &fakeGenerator{}
	sender := &fakeSender{}
	router, _ := newTestRouter(gen, sender, nil)

	router.HandleMessages(context.Background(), wa.MessagesEvent{Messages: []wa.RawMessage{
		textMessage("123@s.whatsapp.net", "!help"),
	}})

	require.Empty(t, gen.requests)
	require.Len(t, sender.replies, 1)
	require.Contains(t, sender.replies[0], "!search")
}

func TestRouterEmptyPromptSkipped(t *testing.T) {
	gen := &fakeGenerator{}
	sender := &fakeSender{}
	router, _ := newTestRouter(gen, sender, nil)

	router.HandleMessages(context.Background(), wa.MessagesEvent{Messages: []wa.RawMessage{
		textMessage("123@s.whatsapp.net", "!search"),
	}})

	require.Empty(t, gen.requests)
	require.Empty(t, sender.replies)
}

func TestRouterRateLimit(t *testing.T) {
	gen := &fakeGenerator{resp: &ai.Response{Content: "ok"}}
	sender := &fakeSender{}
	store := memory.NewStore(time.Hour)
	router := NewRouter(gen, sender, store, nil, nil, RouterConfig{
		RateInterval: time.Hour,
		RateBurst:    1,
	})

	for i := 0; i < 3; i++ {
		router.HandleMessages(context.Background(), wa.MessagesEvent{Messages: []wa.RawMessage{
			textMessage("123@s.whatsapp.net", "!ai hello"),
		}})
	}

	require.Len(t, gen.requests, 1)
}

func TestFormatReply(t *testing.T) {
	resp := &ai.Response{
		Content: "**Bold** answer",
		Sources: []ai.Source{
			{SourceType: "url", ID: "https://example.com", URL: "https://example.com", Title: "Example"},
			{SourceType: "url", ID: "https://other.dev", URL: "https://other.dev"},
		},
		ToolCalls: []ai.ToolCall{
			{ID: "inferred-search", Type: "search", Origin: ai.ToolCallInferred},
			{ID: "call-1", Type: "code_execution", Parameters: json.RawMessage(`{}`), Origin: ai.ToolCallObserved},
		},
	}

	got := FormatReply(resp)
	require.Contains(t, got, "*Bold* answer")
	require.Contains(t, got, "1. Example (https://example.com)")
	require.Contains(t, got, "2. https://other.dev")
	require.Contains(t, got, "_Tools used: search (inferred), code_execution_")
}
