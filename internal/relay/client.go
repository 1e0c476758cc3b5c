// Package relay keeps the connection to the local code source and forwards
// every recognized envelope to the active tab.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/dgnsrekt/mfa_relay/internal/envelope"
	"github.com/dgnsrekt/mfa_relay/internal/messenger"
)

// Forwarder carries an envelope to the page side.
type Forwarder interface {
	Forward(ctx context.Context, env envelope.Envelope) (messenger.Delivery, error)
}

type Config struct {
	SourceURL       string
	RetryDelay      time.Duration
	DeliveryTimeout time.Duration
}

// State is a snapshot of the connection loop. RetryIn is only set while the
// loop waits between attempts.
type State struct {
	Listening     bool          `json:"listening"`
	LastConnected time.Time     `json:"last_connected"`
	RetryIn       time.Duration `json:"retry_in"`
	Attempts      int           `json:"attempts"`
}

type Client struct {
	cfg    Config
	fwd    Forwarder
	broker *Broker

	state      atomic.Pointer[State]
	deliveries sync.WaitGroup
}

// NewClient builds a relay client. broker may be nil.
func NewClient(cfg Config, fwd Forwarder, broker *Broker) *Client {
	c := &Client{cfg: cfg, fwd: fwd, broker: broker}
	c.state.Store(&State{})
	return c
}

func (c *Client) SourceURL() string { return c.cfg.SourceURL }

// State returns a copy of the current connection state.
func (c *Client) State() State {
	return *c.state.Load()
}

func (c *Client) update(fn func(*State)) {
	next := *c.state.Load()
	fn(&next)
	c.state.Store(&next)
}

// Run connects, waits RetryDelay after every disconnect, and connects again
// until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	slog.Info("relay started", "source_url", c.cfg.SourceURL, "retry_delay", c.cfg.RetryDelay)
	for {
		err := c.Connect(ctx)
		if ctx.Err() != nil {
			c.update(func(s *State) { s.Listening = false; s.RetryIn = 0 })
			slog.Info("relay stopped", "source_url", c.cfg.SourceURL)
			return
		}
		if err != nil {
			slog.Warn("source connection failed", "source_url", c.cfg.SourceURL, "error", err, "retry_in", c.cfg.RetryDelay)
		} else {
			slog.Info("source connection closed", "source_url", c.cfg.SourceURL, "retry_in", c.cfg.RetryDelay)
		}
		c.update(func(s *State) { s.Listening = false; s.RetryIn = c.cfg.RetryDelay })

		timer := time.NewTimer(c.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.update(func(s *State) { s.RetryIn = 0 })
			slog.Info("relay stopped", "source_url", c.cfg.SourceURL)
			return
		case <-timer.C:
		}
	}
}

// Connect holds one connection to the source. It returns nil when the source
// closes the connection and an error when dialing or reading fails.
func (c *Client) Connect(ctx context.Context) error {
	c.update(func(s *State) { s.Attempts++; s.RetryIn = 0 })

	conn, br, _, err := ws.Dial(ctx, c.cfg.SourceURL)
	if err != nil {
		connectionAttempts.WithLabelValues("failed").Inc()
		return fmt.Errorf("dial %s: %w", c.cfg.SourceURL, err)
	}
	defer func() { _ = conn.Close() }()

	// Frames sent right after the handshake may already sit in br.
	var rw io.ReadWriter = conn
	if br != nil {
		rw = struct {
			io.Reader
			io.Writer
		}{br, conn}
		defer ws.PutReader(br)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	connectionAttempts.WithLabelValues("connected").Inc()
	connected.Set(1)
	defer connected.Set(0)
	c.update(func(s *State) { s.Listening = true; s.LastConnected = time.Now() })
	c.publish(EventConnected, map[string]any{"source_url": c.cfg.SourceURL})
	defer c.publish(EventDisconnected, map[string]any{"source_url": c.cfg.SourceURL})
	slog.Info("source connected", "source_url", c.cfg.SourceURL)

	for {
		data, op, err := wsutil.ReadServerData(rw)
		if err != nil {
			var closed wsutil.ClosedError
			if ctx.Err() != nil || errors.As(err, &closed) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read from source: %w", err)
		}
		if op != ws.OpText {
			slog.Debug("ignoring non-text frame", "opcode", op, "bytes", len(data))
			continue
		}
		c.HandleMessage(ctx, data)
	}
}

// HandleMessage decodes one frame and dispatches it by tag. Code deliveries
// run asynchronously; everything else is logged and dropped.
func (c *Client) HandleMessage(ctx context.Context, data []byte) {
	env, err := envelope.Decode(data)
	switch {
	case errors.Is(err, envelope.ErrUnknownCode):
		messages.WithLabelValues("unknown").Inc()
		slog.Warn("unknown message code", "tag", env.Code)
		c.publish(EventUnknownCode, map[string]any{"tag": env.Code})
		return
	case err != nil:
		messages.WithLabelValues("malformed").Inc()
		slog.Warn("malformed message", "error", err, "bytes", len(data))
		c.publish(EventMalformed, map[string]any{"bytes": len(data)})
		return
	}

	code, _ := env.MFACodeValue()
	messages.WithLabelValues(envelope.TagMFACode).Inc()
	slog.Info("mfa code received", "code_length", len(code))
	c.publish(EventCodeReceived, map[string]any{"code_length": len(code)})

	c.deliveries.Add(1)
	go func() {
		defer c.deliveries.Done()
		_, _ = c.forward(ctx, env)
	}()
}

// Inject delivers a code synchronously through the same forwarder the
// source connection uses.
func (c *Client) Inject(ctx context.Context, code string) (messenger.Delivery, error) {
	return c.forward(ctx, envelope.NewMFACode(code))
}

// Wait blocks until in-flight deliveries finish.
func (c *Client) Wait() {
	c.deliveries.Wait()
}

func (c *Client) forward(ctx context.Context, env envelope.Envelope) (messenger.Delivery, error) {
	timeout := c.cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	d, err := c.fwd.Forward(dctx, env)
	deliveryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		deliveries.WithLabelValues("rejected").Inc()
		slog.Error("mfa code delivery rejected", "tab_id", d.TabID, "error", err)
		c.publish(EventDeliveryFailed, map[string]any{"tab_id": d.TabID, "error": err.Error()})
		return d, err
	}

	deliveries.WithLabelValues(string(d.Outcome)).Inc()
	switch d.Outcome {
	case messenger.OutcomeNoActiveTab:
		slog.Debug("no active tab for mfa code")
	case messenger.OutcomeNoField:
		slog.Debug("no input field matched", "tab_id", d.TabID)
	default:
		slog.Info("mfa code injected", "tab_id", d.TabID, "candidate", d.Candidate)
	}
	c.publish(EventDelivered, d)
	return d, nil
}
