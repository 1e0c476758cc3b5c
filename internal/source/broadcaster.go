// Package source is a development code source: a websocket endpoint that
// pushes mfa_code envelopes to every connected relay.
package source

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/mfa_relay/internal/envelope"
)

const writeWait = 5 * time.Second

type peer struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *peer) write(messageType int, data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(messageType, data)
}

// Broadcaster tracks open relay connections and fans envelopes out to them.
type Broadcaster struct {
	keepalive time.Duration
	upgrader  websocket.Upgrader

	mu    sync.Mutex
	peers map[string]*peer
}

func NewBroadcaster(keepalive time.Duration) *Broadcaster {
	if keepalive <= 0 {
		keepalive = 2 * time.Second
	}
	return &Broadcaster{
		keepalive: keepalive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		peers: make(map[string]*peer),
	}
}

// ServeHTTP upgrades the request and keeps the connection alive with pings
// until the peer goes away or a ping fails.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("source upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	p := &peer{id: uuid.NewString(), conn: conn}
	b.mu.Lock()
	b.peers[p.id] = p
	b.mu.Unlock()
	slog.Info("source connection opened", "connection_id", p.id, "remote", r.RemoteAddr)

	defer func() {
		b.mu.Lock()
		delete(b.peers, p.id)
		b.mu.Unlock()
		_ = conn.Close()
		slog.Info("source connection closed", "connection_id", p.id)
	}()

	// Relays never send data frames; reading drives pong and close handling.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(b.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := p.write(websocket.PingMessage, []byte("keepalive")); err != nil {
				slog.Info("source keepalive failed", "connection_id", p.id, "error", err)
				return
			}
		}
	}
}

// Broadcast writes env to every open connection and returns how many
// accepted it.
func (b *Broadcaster) Broadcast(env envelope.Envelope) int {
	data, err := envelope.Encode(env)
	if err != nil {
		slog.Error("source encode failed", "error", err)
		return 0
	}

	b.mu.Lock()
	peers := make([]*peer, 0, len(b.peers))
	for _, p := range b.peers {
		peers = append(peers, p)
	}
	b.mu.Unlock()

	sent := 0
	for _, p := range peers {
		if err := p.write(websocket.TextMessage, data); err != nil {
			slog.Warn("source write failed", "connection_id", p.id, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// BroadcastMFACode sends code to every connected relay.
func (b *Broadcaster) BroadcastMFACode(code string) int {
	sent := b.Broadcast(envelope.NewMFACode(code))
	slog.Info("source broadcast mfa code", "code_length", len(code), "connections", sent)
	return sent
}

func (b *Broadcaster) ConnectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.peers)
}

// Close sends a close frame to every peer and drops the connections.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	peers := make([]*peer, 0, len(b.peers))
	for _, p := range b.peers {
		peers = append(peers, p)
	}
	b.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "source shutting down")
	for _, p := range peers {
		_ = p.write(websocket.CloseMessage, msg)
		_ = p.conn.Close()
	}
}
