package wa

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/warelay/warelay/internal/metrics"
)

// ErrSessionUnavailable is returned when a send is attempted while the
// session is not online.
var ErrSessionUnavailable = errors.New("messaging session is not online")

// Transport is the outbound surface the supervisor drives. BridgeClient
// implements it.
type Transport interface {
	Connect(ctx context.Context, credentials []byte) error
	SendText(ctx context.Context, jid, text string) error
	SendPresence(ctx context.Context, jid string, presence Presence) error
}

// CredentialStore holds the opaque session blob. Wipe is called on fatal
// disconnects so the next connect forces a fresh pairing.
type CredentialStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
	Wipe(ctx context.Context) error
}

// SupervisorConfig tunes reconnect behavior.
type SupervisorConfig struct {
	BaseDelay      time.Duration // first reconnect delay (default 2s)
	MaxDelay       time.Duration // backoff ceiling (default 60s)
	MaxAttempts    int           // reconnect cap before parking in idle (default 10)
	FreshPairDelay time.Duration // delay before reconnecting after a logout (default 3s)
}

func (c *SupervisorConfig) applyDefaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 2 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.FreshPairDelay <= 0 {
		c.FreshPairDelay = 3 * time.Second
	}
}

// Supervisor owns the messaging-session lifecycle: pairing, reconnects and
// logout handling. At most one reconnect attempt is in flight at a time;
// the reconnecting flag is cleared only when a session reaches online or a
// fresh connecting attempt is dispatched.
type Supervisor struct {
	transport Transport
	creds     CredentialStore
	exporter  *metrics.Exporter
	cfg       SupervisorConfig

	mu           sync.Mutex
	state        SessionState
	reconnecting bool
	attempts     int

	// schedule wraps time.AfterFunc; tests replace it to run callbacks
	// synchronously.
	schedule func(d time.Duration, f func())
}

// NewSupervisor creates a supervisor in the idle state. creds and exporter
// may be nil.
func NewSupervisor(transport Transport, creds CredentialStore, cfg SupervisorConfig, exporter *metrics.Exporter) *Supervisor {
	cfg.applyDefaults()
	return &Supervisor{
		transport: transport,
		creds:     creds,
		exporter:  exporter,
		cfg:       cfg,
		state:     StateIdle,
		schedule:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// Start dispatches the first connection attempt.
func (s *Supervisor) Start(ctx context.Context) {
	s.dial(ctx)
}

// State returns the current session state.
func (s *Supervisor) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsOnline reports whether sends are currently possible.
func (s *Supervisor) IsOnline() bool {
	return s.State() == StateOnline
}

// HandleChallenge renders a pairing challenge for the operator. The session
// stays in awaiting_challenge until the bridge confirms the pairing.
func (s *Supervisor) HandleChallenge(ev ChallengeEvent) {
	s.mu.Lock()
	s.state = StateAwaitingChallenge
	s.mu.Unlock()

	slog.Info("pairing required, enter this code on your phone",
		"pairing_code", ev.PairingCode,
	)
}

// HandleCredentials persists the opaque session blob the bridge handed over.
func (s *Supervisor) HandleCredentials(ctx context.Context, ev CredentialsEvent) {
	if s.creds == nil {
		return
	}
	if err := s.creds.Save(ctx, ev.Blob); err != nil {
		slog.Error("failed to persist session credentials", "error", err)
		return
	}
	slog.Debug("session credentials persisted", "bytes", len(ev.Blob))
}

// HandleConnection processes a session open or close event.
func (s *Supervisor) HandleConnection(ctx context.Context, ev ConnectionEvent) {
	switch ev.State {
	case "open":
		s.mu.Lock()
		s.state = StateOnline
		s.reconnecting = false
		s.attempts = 0
		s.mu.Unlock()
		slog.Info("session online")

	case "close":
		s.handleClose(ctx, ev.Reason)

	default:
		slog.Warn("unknown connection event state", "state", ev.State)
	}
}

func (s *Supervisor) handleClose(ctx context.Context, reason string) {
	switch ClassifyClose(reason) {
	case CloseFatal:
		slog.Warn("session logged out, wiping credentials", "reason", reason)
		s.mu.Lock()
		s.state = StateLoggedOut
		s.reconnecting = true
		s.mu.Unlock()

		if s.creds != nil {
			if err := s.creds.Wipe(ctx); err != nil {
				slog.Error("failed to wipe credentials", "error", err)
			}
		}

		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()

		// The blob is gone, so this connect forces a fresh challenge.
		s.schedule(s.cfg.FreshPairDelay, func() { s.dial(context.Background()) })

	case CloseTransient:
		s.mu.Lock()
		if s.reconnecting {
			s.mu.Unlock()
			slog.Debug("reconnect already in flight, ignoring close event", "reason", reason)
			return
		}
		s.reconnecting = true
		s.attempts++
		attempt := s.attempts
		if attempt > s.cfg.MaxAttempts {
			s.state = StateIdle
			s.reconnecting = false
			s.mu.Unlock()
			slog.Error("reconnect cap reached, giving up", "attempts", attempt-1, "reason", reason)
			return
		}
		s.state = StateReconnecting
		s.mu.Unlock()

		delay := s.backoff(attempt)
		slog.Info("session closed, reconnecting",
			"reason", reason,
			"attempt", attempt,
			"delay", delay.String(),
		)
		s.schedule(delay, func() { s.dial(context.Background()) })

	default:
		s.mu.Lock()
		s.state = StateTerminated
		s.mu.Unlock()
		slog.Error("session closed for unrecognized reason, not retrying", "reason", reason)
	}
}

// backoff returns the delay before attempt n: exponential from BaseDelay,
// capped at MaxDelay, with jitter in [d/2, d].
func (s *Supervisor) backoff(attempt int) time.Duration {
	d := s.cfg.BaseDelay
	for i := 1; i < attempt && d < s.cfg.MaxDelay; i++ {
		d *= 2
	}
	if d > s.cfg.MaxDelay {
		d = s.cfg.MaxDelay
	}
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(half)+1))
}

// dial dispatches a fresh connecting attempt. Dispatching clears the
// reconnecting flag so a later close can trigger the next cycle.
func (s *Supervisor) dial(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	s.reconnecting = false
	s.mu.Unlock()

	if s.exporter != nil {
		s.exporter.ReconnectAttempts.Inc()
	}

	var blob []byte
	if s.creds != nil {
		var err error
		if blob, err = s.creds.Load(ctx); err != nil {
			slog.Error("failed to load credentials, connecting without them", "error", err)
			blob = nil
		}
	}

	if err := s.transport.Connect(ctx, blob); err != nil {
		slog.Error("bridge connect failed", "error", err)
		s.handleClose(ctx, "connection_lost")
	}
}

// SendReply sends a text reply; only valid while online.
func (s *Supervisor) SendReply(ctx context.Context, jid, text string) error {
	if !s.IsOnline() {
		return ErrSessionUnavailable
	}
	return s.transport.SendText(ctx, jid, text)
}

// SetPresence publishes a presence update; only valid while online.
func (s *Supervisor) SetPresence(ctx context.Context, jid string, presence Presence) error {
	if !s.IsOnline() {
		return ErrSessionUnavailable
	}
	return s.transport.SendPresence(ctx, jid, presence)
}

// Shutdown moves the supervisor to its terminal state. Scheduled reconnects
// become no-ops.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	s.state = StateTerminated
	s.mu.Unlock()
	slog.Info("connection supervisor terminated")
}
