package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/mfa_relay/internal/messenger"
	"github.com/dgnsrekt/mfa_relay/internal/relay"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func okResponse() *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("ok")),
		Header:     make(http.Header),
	}
}

func TestSendPostsMessage(t *testing.T) {
	var receivedMethod, receivedPath, receivedBody, receivedContentType, receivedTitle string

	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			receivedMethod = r.Method
			receivedPath = r.URL.Path
			receivedContentType = r.Header.Get("Content-Type")
			receivedTitle = r.Header.Get("Title")
			rawBody, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			receivedBody = string(rawBody)
			return okResponse(), nil
		}),
	}

	n := New("http://example.com/mfa", client)
	if err := n.Send(context.Background(), "no input field matched"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got, want := receivedMethod, http.MethodPost; got != want {
		t.Fatalf("method = %q; want %q", got, want)
	}
	if got, want := receivedPath, "/mfa"; got != want {
		t.Fatalf("path = %q; want %q", got, want)
	}
	if got, want := receivedContentType, "text/plain"; got != want {
		t.Fatalf("content-type = %q; want %q", got, want)
	}
	if got, want := receivedTitle, "mfa_relay"; got != want {
		t.Fatalf("title = %q; want %q", got, want)
	}
	if got, want := receivedBody, "no input field matched"; got != want {
		t.Fatalf("body = %q; want %q", got, want)
	}
}

func TestSendReturnsErrorForServerError(t *testing.T) {
	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(strings.NewReader("server failure")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	err := New("http://example.com/mfa", client).Send(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "ntfy notification failed") {
		t.Fatalf("error = %q; want to contain %q", err, "ntfy notification failed")
	}
}

func TestSendDisallowsMissingEndpoint(t *testing.T) {
	if err := New("  ", nil).Send(context.Background(), "x"); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func deliveredEvent(t *testing.T, d messenger.Delivery) relay.Event {
	t.Helper()
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return relay.Event{Kind: relay.EventDelivered, Payload: string(data)}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name   string
		evt    relay.Event
		want   string
		wantOK bool
	}{
		{
			name:   "injected is silent",
			evt:    deliveredEvent(t, messenger.Delivery{Outcome: messenger.OutcomeInjected, TabID: "a"}),
			wantOK: false,
		},
		{
			name:   "no field",
			evt:    deliveredEvent(t, messenger.Delivery{Outcome: messenger.OutcomeNoField, TabURL: "https://example.com/login"}),
			want:   "MFA code received but no input field matched on example.com",
			wantOK: true,
		},
		{
			name:   "no field drops path and query",
			evt:    deliveredEvent(t, messenger.Delivery{Outcome: messenger.OutcomeNoField, TabURL: "https://user:pw@bank.example:8443/otp?session=s3cr3t#step2"}),
			want:   "MFA code received but no input field matched on bank.example",
			wantOK: true,
		},
		{
			name:   "no field without url",
			evt:    deliveredEvent(t, messenger.Delivery{Outcome: messenger.OutcomeNoField}),
			want:   "MFA code received but no input field matched.",
			wantOK: true,
		},
		{
			name:   "no active tab",
			evt:    deliveredEvent(t, messenger.Delivery{Outcome: messenger.OutcomeNoActiveTab}),
			want:   "MFA code received but no browser tab is active.",
			wantOK: true,
		},
		{
			name:   "rejected",
			evt:    relay.Event{Kind: relay.EventDeliveryFailed, Payload: `{"tab_id":"a","error":"target closed"}`},
			want:   "MFA code could not be delivered: target closed",
			wantOK: true,
		},
		{
			name:   "connection events are silent",
			evt:    relay.Event{Kind: relay.EventConnected, Payload: `{"source_url":"ws://localhost:3500/ws"}`},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Message(tt.evt)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("Message() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestWatchSendsDeliveryProblems(t *testing.T) {
	bodies := make(chan string, 4)
	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			raw, _ := io.ReadAll(r.Body)
			bodies <- string(raw)
			return okResponse(), nil
		}),
	}
	broker := relay.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		New("http://example.com/mfa", client).Watch(ctx, broker)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for broker.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	broker.Publish(deliveredEvent(t, messenger.Delivery{Outcome: messenger.OutcomeInjected}))
	broker.Publish(deliveredEvent(t, messenger.Delivery{Outcome: messenger.OutcomeNoActiveTab}))

	select {
	case body := <-bodies:
		if body != "MFA code received but no browser tab is active." {
			t.Fatalf("body = %q", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification sent")
	}

	cancel()
	<-done
	if broker.ClientCount() != 0 {
		t.Fatalf("ClientCount() = %d after Watch returned; want 0", broker.ClientCount())
	}
	select {
	case body := <-bodies:
		t.Fatalf("unexpected extra notification %q", body)
	default:
	}
}
