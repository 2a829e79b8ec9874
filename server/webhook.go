package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/warelay/warelay/wa"
)

// bridgeEnvelope is the wrapper the bridge posts events inside.
type bridgeEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// bridgeAuth rejects webhook posts that do not carry the shared bridge key.
// When no key is configured (dev mode) the check is skipped.
func (s *Server) bridgeAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.profile.BridgeAPIKey != "" && c.Request().Header.Get("x-bridge-api-key") != s.profile.BridgeAPIKey {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid bridge api key")
		}
		return next(c)
	}
}

// bridgeWebhook dispatches one bridge event to the supervisor or the message
// router. Unknown event types are logged and acknowledged so the bridge never
// retries them.
func (s *Server) bridgeWebhook(c echo.Context) error {
	var env bridgeEnvelope
	if err := c.Bind(&env); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed envelope").SetInternal(err)
	}

	ctx := c.Request().Context()
	switch env.Type {
	case "challenge":
		var ev wa.ChallengeEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed challenge payload").SetInternal(err)
		}
		s.session.HandleChallenge(ev)
	case "connection":
		var ev wa.ConnectionEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed connection payload").SetInternal(err)
		}
		s.session.HandleConnection(ctx, ev)
	case "credentials":
		var ev wa.CredentialsEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed credentials payload").SetInternal(err)
		}
		s.session.HandleCredentials(ctx, ev)
	case "messages":
		var ev wa.MessagesEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed messages payload").SetInternal(err)
		}
		s.handler.HandleMessages(ctx, ev)
	default:
		slog.Warn("ignoring unknown bridge event", "type", env.Type)
	}
	return c.NoContent(http.StatusNoContent)
}
