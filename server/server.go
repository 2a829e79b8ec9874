// Package server exposes the HTTP surface: health, the message/AI API, the
// conversation endpoints, metrics and the inbound bridge webhook.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/warelay/warelay/ai"
	"github.com/warelay/warelay/ai/memory"
	"github.com/warelay/warelay/bot"
	"github.com/warelay/warelay/internal/metrics"
	"github.com/warelay/warelay/internal/profile"
	"github.com/warelay/warelay/internal/version"
	"github.com/warelay/warelay/wa"
)

// Session is the slice of the connection supervisor the HTTP surface needs.
type Session interface {
	State() wa.SessionState
	IsOnline() bool
	SendReply(ctx context.Context, jid, text string) error
	HandleChallenge(ev wa.ChallengeEvent)
	HandleConnection(ctx context.Context, ev wa.ConnectionEvent)
	HandleCredentials(ctx context.Context, ev wa.CredentialsEvent)
}

// Generator produces one AI reply per request.
type Generator interface {
	Generate(ctx context.Context, req ai.GenerateRequest) (*ai.Response, error)
}

// MessageHandler consumes inbound message batches from the webhook.
type MessageHandler interface {
	HandleMessages(ctx context.Context, ev wa.MessagesEvent)
}

// Server wires the echo instance to the session, generator and router.
type Server struct {
	e        *echo.Echo
	profile  *profile.Profile
	session  Session
	gen      Generator
	handler  MessageHandler
	store    *memory.Store
	exporter *metrics.Exporter
}

// New creates the HTTP server and registers all routes. exporter may be nil,
// in which case /metrics is not registered.
func New(p *profile.Profile, session Session, gen Generator, handler MessageHandler, store *memory.Store, exporter *metrics.Exporter) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		e:        e,
		profile:  p,
		session:  session,
		gen:      gen,
		handler:  handler,
		store:    store,
		exporter: exporter,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.e.GET("/health", s.health)

	apiGroup := s.e.Group("/api")
	apiGroup.POST("/message", s.sendMessage)
	apiGroup.POST("/ai", s.generateAndRelay)
	apiGroup.GET("/conversation/:id", s.getConversation)
	apiGroup.DELETE("/conversation/:id", s.deleteConversation)

	s.e.POST("/webhook/wa", s.bridgeWebhook, s.bridgeAuth)

	if s.exporter != nil {
		s.e.GET("/metrics", echo.WrapHandler(s.exporter.Handler()))
	}
}

// Start begins serving on the profile's address. It blocks until the server
// stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to start http server")
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.e.Shutdown(ctx)
}

type healthResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	State     string `json:"state"`
	Version   string `json:"version"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Connected: s.session.IsOnline(),
		State:     s.session.State().String(),
		Version:   version.Version,
	})
}

type sendMessageRequest struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

func (s *Server) sendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request").SetInternal(err)
	}
	if req.Recipient == "" || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient and message are required")
	}

	if err := s.session.SendReply(c.Request().Context(), req.Recipient, req.Message); err != nil {
		if errors.Is(err, wa.ErrSessionUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "session is not online")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to send message").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"sent": true})
}

type generateRequest struct {
	Recipient        string `json:"recipient"`
	Prompt           string `json:"prompt"`
	UseSearch        bool   `json:"useSearch"`
	UseURLContext    bool   `json:"useUrlContext"`
	UseCodeExecution bool   `json:"useCodeExecution"`
	UseThinking      bool   `json:"useThinking"`
}

func (s *Server) generateAndRelay(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request").SetInternal(err)
	}
	if req.Recipient == "" || req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient and prompt are required")
	}

	resp, err := s.gen.Generate(c.Request().Context(), ai.GenerateRequest{
		Prompt: req.Prompt,
		Tools: ai.ToolRequest{
			Search:        req.UseSearch,
			URLContext:    req.UseURLContext,
			CodeExecution: req.UseCodeExecution,
			Thinking:      req.UseThinking,
		},
		ConversationID: req.Recipient,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "ai generation failed").SetInternal(err)
	}

	if err := s.session.SendReply(c.Request().Context(), req.Recipient, bot.FormatReply(resp)); err != nil {
		if errors.Is(err, wa.ErrSessionUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "session is not online")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to relay reply").SetInternal(err)
	}
	return c.JSON(http.StatusOK, resp)
}

type conversationResponse struct {
	TurnCount    int        `json:"turnCount"`
	LastActivity *time.Time `json:"lastActivity"`
}

func (s *Server) getConversation(c echo.Context) error {
	count, last := s.store.Summary(c.Param("id"))
	return c.JSON(http.StatusOK, conversationResponse{TurnCount: count, LastActivity: last})
}

func (s *Server) deleteConversation(c echo.Context) error {
	s.store.Clear(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
