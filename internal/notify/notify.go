// Package notify pushes a short ntfy message when a received code did not end
// up in an input field, so the operator knows to type it by hand.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgnsrekt/mfa_relay/internal/messenger"
	"github.com/dgnsrekt/mfa_relay/internal/relay"
)

const sendTimeout = 5 * time.Second

type Notifier struct {
	client   *http.Client
	endpoint string
	title    string
}

// New returns a notifier posting to an ntfy topic URL. A nil client uses
// http.DefaultClient.
func New(endpoint string, client *http.Client) *Notifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Notifier{client: client, endpoint: strings.TrimSpace(endpoint), title: "mfa_relay"}
}

// Send posts message as a plain text ntfy notification.
func (n *Notifier) Send(ctx context.Context, message string) error {
	if n.endpoint == "" {
		return fmt.Errorf("ntfy endpoint is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", n.title)
	req.Header.Set("Tags", "key")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}

// Watch forwards delivery problems published on broker until ctx is done.
func (n *Notifier) Watch(ctx context.Context, broker *relay.Broker) {
	id, events := broker.Subscribe()
	defer broker.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			msg, ok := Message(evt)
			if !ok {
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			if err := n.Send(sendCtx, msg); err != nil {
				slog.Warn("ntfy notification failed", "kind", evt.Kind, "error", err)
			}
			cancel()
		}
	}
}

// Message renders the operator text for evt. ok is false for events that
// need no attention, including successful injections.
func Message(evt relay.Event) (string, bool) {
	switch evt.Kind {
	case relay.EventDeliveryFailed:
		var p struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal([]byte(evt.Payload), &p)
		if p.Error == "" {
			return "MFA code could not be delivered.", true
		}
		return "MFA code could not be delivered: " + p.Error, true
	case relay.EventDelivered:
		var d messenger.Delivery
		if err := json.Unmarshal([]byte(evt.Payload), &d); err != nil {
			return "", false
		}
		switch d.Outcome {
		case messenger.OutcomeNoActiveTab:
			return "MFA code received but no browser tab is active.", true
		case messenger.OutcomeNoField:
			if host := hostOf(d.TabURL); host != "" {
				return "MFA code received but no input field matched on " + host, true
			}
			return "MFA code received but no input field matched.", true
		}
	}
	return "", false
}

// hostOf keeps only the host of a tab URL. Paths and queries can carry
// session tokens and never leave the machine.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
