// Package wa owns the WhatsApp messaging session: the bridge client and the
// connection-lifecycle supervisor.
package wa

import "time"

// SessionState is the connection-lifecycle state of the messaging session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateAwaitingChallenge
	StateOnline
	StateReconnecting
	StateLoggedOut
	StateTerminated
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingChallenge:
		return "awaiting_challenge"
	case StateOnline:
		return "online"
	case StateReconnecting:
		return "reconnecting"
	case StateLoggedOut:
		return "logged_out"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Presence values the transport understands.
type Presence string

const (
	PresenceComposing Presence = "composing"
	PresenceAvailable Presence = "available"
)

// CloseClass classifies a session-closed reason.
type CloseClass int

const (
	// CloseTransient is recoverable by reconnecting with existing
	// credentials.
	CloseTransient CloseClass = iota
	// CloseFatal means the credentials were invalidated; a fresh pairing
	// is required.
	CloseFatal
	// CloseUnknown is an unrecognized reason; no automatic retry.
	CloseUnknown
)

// ClassifyClose maps a bridge close reason onto its recovery class.
func ClassifyClose(reason string) CloseClass {
	switch reason {
	case "logged_out":
		return CloseFatal
	case "timeout", "connection_lost", "connection_closed", "restart_required":
		return CloseTransient
	default:
		return CloseUnknown
	}
}

// ChallengeEvent delivers a pairing challenge to render for the operator.
type ChallengeEvent struct {
	PairingCode string `json:"pairingCode"`
}

// ConnectionEvent reports a session open or close.
type ConnectionEvent struct {
	State  string `json:"state"` // "open" or "close"
	Reason string `json:"reason,omitempty"`
}

// CredentialsEvent carries the opaque session blob the bridge wants
// persisted.
type CredentialsEvent struct {
	Blob []byte `json:"blob"`
}

// RawMessage is one inbound message as the bridge delivers it.
type RawMessage struct {
	ID        string    `json:"id"`
	RemoteJID string    `json:"remoteJid"`
	SenderJID string    `json:"senderJid"`
	PushName  string    `json:"pushName,omitempty"`
	FromMe    bool      `json:"fromMe"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"` // text, image, audio, video, document, unsupported
	Text      string    `json:"text,omitempty"`
	Caption   string    `json:"caption,omitempty"`
}

// MessagesEvent delivers one or more raw messages per batch.
type MessagesEvent struct {
	Messages []RawMessage `json:"messages"`
}
