package bot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/time/rate"

	"github.com/warelay/warelay/ai"
	"github.com/warelay/warelay/ai/memory"
	"github.com/warelay/warelay/internal/metrics"
	"github.com/warelay/warelay/plugin/markdown"
	"github.com/warelay/warelay/plugin/sheetlog"
	"github.com/warelay/warelay/wa"
)

const (
	groupJIDSuffix = "@g.us"

	unsupportedPlaceholder = "[unsupported message]"

	apologyReply = "Sorry, something went wrong while generating a reply. Please try again in a moment."
)

// Generator produces one AI reply per request.
type Generator interface {
	Generate(ctx context.Context, req ai.GenerateRequest) (*ai.Response, error)
}

// Sender delivers outbound replies and presence hints over the active
// session.
type Sender interface {
	SendReply(ctx context.Context, jid, text string) error
	SetPresence(ctx context.Context, jid string, presence wa.Presence) error
}

// RouterConfig tunes message routing.
type RouterConfig struct {
	// RateInterval and RateBurst bound AI-triggering commands per chat.
	RateInterval time.Duration
	RateBurst    int
}

func (c *RouterConfig) applyDefaults() {
	if c.RateInterval <= 0 {
		c.RateInterval = 3 * time.Second
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 2
	}
}

// Router consumes inbound message batches, parses commands, invokes the
// generator and sends replies back through the session.
type Router struct {
	gen      Generator
	sender   Sender
	store    *memory.Store
	recorder sheetlog.Recorder
	exporter *metrics.Exporter
	cfg      RouterConfig

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewRouter creates a router. exporter may be nil.
func NewRouter(gen Generator, sender Sender, store *memory.Store, recorder sheetlog.Recorder, exporter *metrics.Exporter, cfg RouterConfig) *Router {
	cfg.applyDefaults()
	if recorder == nil {
		recorder = sheetlog.NewNoop()
	}
	return &Router{
		gen:      gen,
		sender:   sender,
		store:    store,
		recorder: recorder,
		exporter: exporter,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// HandleMessages processes one inbound batch. Messages are handled in order;
// a failure on one message never aborts the rest of the batch.
func (r *Router) HandleMessages(ctx context.Context, ev wa.MessagesEvent) {
	for _, msg := range ev.Messages {
		r.handleMessage(ctx, msg)
	}
}

func (r *Router) handleMessage(ctx context.Context, msg wa.RawMessage) {
	if msg.FromMe {
		return
	}

	text := extractText(msg)
	if r.exporter != nil {
		r.exporter.MessagesReceived.WithLabelValues(msg.Kind).Inc()
	}
	r.recorder.AppendAsync(&sheetlog.Record{
		ID:          msg.ID,
		Timestamp:   msg.Timestamp,
		Direction:   sheetlog.DirectionInbound,
		Sender:      msg.SenderJID,
		Chat:        msg.RemoteJID,
		MessageType: msg.Kind,
		Content:     text,
	})

	cmd, ok := ParseCommand(text)
	if !ok {
		return
	}

	switch cmd.Kind {
	case CommandHelp:
		r.reply(ctx, msg.RemoteJID, helpText)
	case CommandClear:
		r.store.Clear(msg.RemoteJID)
		r.reply(ctx, msg.RemoteJID, "Conversation cleared.")
	case CommandGenerate:
		if cmd.Prompt == "" {
			return
		}
		if !r.limiter(msg.RemoteJID).Allow() {
			slog.Warn("rate limit hit, dropping command", "chat", msg.RemoteJID)
			return
		}
		r.generate(ctx, msg, cmd)
	}
}

func (r *Router) generate(ctx context.Context, msg wa.RawMessage, cmd *Command) {
	if err := r.sender.SetPresence(ctx, msg.RemoteJID, wa.PresenceComposing); err != nil {
		slog.Debug("failed to set composing presence", "chat", msg.RemoteJID, "err", err)
	}
	defer func() {
		if err := r.sender.SetPresence(ctx, msg.RemoteJID, wa.PresenceAvailable); err != nil {
			slog.Debug("failed to reset presence", "chat", msg.RemoteJID, "err", err)
		}
	}()

	req := ai.GenerateRequest{
		Prompt:         cmd.Prompt,
		Tools:          cmd.Tools,
		ConversationID: msg.RemoteJID,
	}
	if strings.HasSuffix(msg.RemoteJID, groupJIDSuffix) {
		label := msg.PushName
		if label == "" {
			label = msg.SenderJID
		}
		req.SenderLabel = label
	}

	resp, err := r.gen.Generate(ctx, req)
	if err != nil {
		slog.Error("ai generation failed", "chat", msg.RemoteJID, "err", err)
		r.reply(ctx, msg.RemoteJID, apologyReply)
		return
	}

	r.reply(ctx, msg.RemoteJID, FormatReply(resp))
}

// reply sends text and mirrors it to the record log.
func (r *Router) reply(ctx context.Context, jid, text string) {
	if err := r.sender.SendReply(ctx, jid, text); err != nil {
		slog.Error("failed to send reply", "chat", jid, "err", err)
		return
	}
	if r.exporter != nil {
		r.exporter.RepliesSent.Inc()
	}
	r.recorder.AppendAsync(&sheetlog.Record{
		ID:          shortuuid.New(),
		Timestamp:   time.Now(),
		Direction:   sheetlog.DirectionOutbound,
		Sender:      "warelay",
		Chat:        jid,
		MessageType: "text",
		Content:     text,
	})
}

func (r *Router) limiter(jid string) *rate.Limiter {
	r.limiterMu.Lock()
	defer r.limiterMu.Unlock()
	lim, ok := r.limiters[jid]
	if !ok {
		lim = rate.NewLimiter(rate.Every(r.cfg.RateInterval), r.cfg.RateBurst)
		r.limiters[jid] = lim
	}
	return lim
}

// extractText pulls the textual content out of a raw message by kind.
func extractText(msg wa.RawMessage) string {
	switch msg.Kind {
	case "text":
		return msg.Text
	case "image", "audio", "video", "document":
		return msg.Caption
	default:
		return unsupportedPlaceholder
	}
}

// FormatReply renders a response for WhatsApp: converted markdown, a numbered
// source list, and a tool-usage annotation when tools were involved.
func FormatReply(resp *ai.Response) string {
	var b strings.Builder
	b.WriteString(markdown.ToWhatsApp(resp.Content))

	if len(resp.Sources) > 0 {
		b.WriteString("\n\n*Sources*")
		for i, src := range resp.Sources {
			b.WriteString("\n")
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString(". ")
			b.WriteString(sourceLabel(src))
		}
	}

	if len(resp.ToolCalls) > 0 {
		names := make([]string, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			name := call.Type
			if call.Origin == ai.ToolCallInferred {
				name += " (inferred)"
			}
			names = append(names, name)
		}
		b.WriteString("\n\n_Tools used: ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("_")
	}

	return b.String()
}

func sourceLabel(src ai.Source) string {
	switch {
	case src.Title != "" && src.URL != "":
		return src.Title + " (" + src.URL + ")"
	case src.Title != "":
		return src.Title
	case src.URL != "":
		return src.URL
	case src.Filename != "":
		return src.Filename
	default:
		return src.ID
	}
}
