package wa

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const bridgeTimeout = 30 * time.Second

// BridgeClient talks to the Baileys bridge service that owns the actual
// WhatsApp connection.
type BridgeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewBridgeClient creates a client for the bridge.
func NewBridgeClient(baseURL, apiKey string) *BridgeClient {
	return &BridgeClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: bridgeTimeout},
	}
}

func (b *BridgeClient) post(ctx context.Context, path string, payload any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrapf(err, "marshal bridge request to %s", path)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, body)
	if err != nil {
		return errors.Wrapf(err, "build bridge request to %s", path)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("x-bridge-api-key", b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post bridge request to %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return errors.Errorf("bridge %s returned status %d: %s", path, resp.StatusCode, respBody)
	}
	return nil
}

// Connect asks the bridge to open a session, handing over the stored
// credential blob when one exists. An empty blob forces a fresh pairing.
func (b *BridgeClient) Connect(ctx context.Context, credentials []byte) error {
	payload := struct {
		Credentials []byte `json:"credentials,omitempty"`
	}{Credentials: credentials}
	return b.post(ctx, "/connect", payload)
}

// Logout asks the bridge to terminate the session and invalidate its
// credentials.
func (b *BridgeClient) Logout(ctx context.Context) error {
	return b.post(ctx, "/logout", nil)
}

// SendText sends a text message to a jid.
func (b *BridgeClient) SendText(ctx context.Context, jid, text string) error {
	payload := struct {
		JID  string `json:"jid"`
		Text string `json:"text"`
	}{JID: jid, Text: text}
	return b.post(ctx, "/send", payload)
}

// SendPresence publishes a presence update for a jid.
func (b *BridgeClient) SendPresence(ctx context.Context, jid string, presence Presence) error {
	payload := struct {
		JID      string `json:"jid"`
		Presence string `json:"presence"`
	}{JID: jid, Presence: string(presence)}
	return b.post(ctx, "/presence", payload)
}

// Health verifies the bridge is reachable.
func (b *BridgeClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "build bridge health request")
	}
	if b.apiKey != "" {
		req.Header.Set("x-bridge-api-key", b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "bridge health check")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("bridge health check failed: status %d", resp.StatusCode)
	}
	return nil
}
