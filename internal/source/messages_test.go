package source

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/mfa_relay/internal/envelope"
)

func TestPumpMessagesBroadcastsExtractedCodes(t *testing.T) {
	b := NewBroadcaster(time.Second)
	srv := httptest.NewServer(b)
	defer srv.Close()
	defer b.Close()

	c := dial(t, srv)
	waitFor(t, func() bool { return b.ConnectionCount() == 1 })

	input := strings.Join([]string{
		"Your verification code is 482193",
		"",
		"Lunch at noon?",
		"G-654321 is your Google verification code.",
	}, "\n")
	if err := b.PumpMessages(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("PumpMessages() error = %v", err)
	}

	for _, want := range []string{"482193", "654321"} {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		env, err := envelope.Decode(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if code, _ := env.MFACodeValue(); code != want {
			t.Fatalf("code = %q; want %q", code, want)
		}
	}
}

func TestPumpMessagesStopsOnCancel(t *testing.T) {
	b := NewBroadcaster(time.Second)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() { done <- b.PumpMessages(ctx, blockingReader{}) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("PumpMessages() error = %v; want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PumpMessages did not return after cancel")
	}
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}
