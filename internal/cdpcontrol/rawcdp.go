package cdpcontrol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

var errNotConnected = errors.New("rawcdp: not connected")

// rawCDP speaks just enough browser-level CDP for focus probes: target
// discovery over HTTP, flat session attach/detach and Runtime.evaluate. It
// never enables auto-attach or target discovery on the user's browser.
type rawCDP struct {
	httpBase string

	mu   sync.Mutex // guards conn and serializes writes
	conn net.Conn
	seq  atomic.Int64

	waitMu  sync.Mutex
	waiters map[int64]chan []byte
}

func newRawCDP(httpBase string) *rawCDP {
	return &rawCDP{
		httpBase: strings.TrimRight(httpBase, "/"),
		waiters:  make(map[int64]chan []byte),
	}
}

func (r *rawCDP) connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		return nil
	}

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := r.getJSON(ctx, "/json/version", &version); err != nil {
		return err
	}
	if version.WebSocketDebuggerURL == "" {
		return errors.New("rawcdp: /json/version: empty webSocketDebuggerUrl")
	}

	slog.Debug("rawcdp connecting", "ws_url", version.WebSocketDebuggerURL)
	conn, _, _, err := ws.Dial(ctx, version.WebSocketDebuggerURL)
	if err != nil {
		return fmt.Errorf("rawcdp: dial: %w", err)
	}
	r.conn = conn
	go r.readLoop(conn)
	return nil
}

func (r *rawCDP) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return
	}
	if err := r.conn.Close(); err != nil {
		slog.Debug("rawcdp close failed", "error", err)
	}
	r.conn = nil
}

func (r *rawCDP) connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil
}

// readLoop hands each command response to its waiter. Events carry no id and
// are dropped.
func (r *rawCDP) readLoop(conn net.Conn) {
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			slog.Debug("rawcdp read loop exit", "error", err)
			r.mu.Lock()
			if r.conn == conn {
				r.conn = nil
			}
			r.mu.Unlock()
			r.failWaiters()
			return
		}

		var head struct {
			ID int64 `json:"id"`
		}
		if json.Unmarshal(data, &head) != nil || head.ID == 0 {
			continue
		}
		if ch := r.takeWaiter(head.ID); ch != nil {
			ch <- data
		}
	}
}

func (r *rawCDP) addWaiter(id int64) chan []byte {
	ch := make(chan []byte, 1)
	r.waitMu.Lock()
	r.waiters[id] = ch
	r.waitMu.Unlock()
	return ch
}

func (r *rawCDP) takeWaiter(id int64) chan []byte {
	r.waitMu.Lock()
	defer r.waitMu.Unlock()
	ch := r.waiters[id]
	delete(r.waiters, id)
	return ch
}

func (r *rawCDP) failWaiters() {
	r.waitMu.Lock()
	defer r.waitMu.Unlock()
	for id, ch := range r.waiters {
		close(ch)
		delete(r.waiters, id)
	}
}

// call sends method on sessionID (empty for the browser target) and decodes
// the result into out when out is non-nil.
func (r *rawCDP) call(ctx context.Context, sessionID, method string, params, out any) error {
	id := r.seq.Add(1)
	frame, err := json.Marshal(struct {
		ID        int64  `json:"id"`
		SessionID string `json:"sessionId,omitempty"`
		Method    string `json:"method"`
		Params    any    `json:"params,omitempty"`
	}{ID: id, SessionID: sessionID, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("rawcdp: marshal %s: %w", method, err)
	}

	r.mu.Lock()
	if r.conn == nil {
		r.mu.Unlock()
		return errNotConnected
	}
	ch := r.addWaiter(id)
	err = wsutil.WriteClientText(r.conn, frame)
	r.mu.Unlock()
	if err != nil {
		r.takeWaiter(id)
		return fmt.Errorf("rawcdp: send %s: %w", method, err)
	}

	var data []byte
	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("rawcdp: %s: connection closed", method)
		}
		data = resp
	case <-ctx.Done():
		r.takeWaiter(id)
		return ctx.Err()
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int64  `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("rawcdp: decode %s: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("rawcdp: %s: %s (%d)", method, resp.Error.Message, resp.Error.Code)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("rawcdp: decode %s result: %w", method, err)
	}
	return nil
}

func (r *rawCDP) attachToTarget(ctx context.Context, targetID string) (string, error) {
	var res target.AttachToTargetReturns
	params := target.AttachToTarget(target.ID(targetID)).WithFlatten(true)
	if err := r.call(ctx, "", target.CommandAttachToTarget, params, &res); err != nil {
		return "", err
	}
	if res.SessionID == "" {
		return "", errors.New("rawcdp: attach: empty session id")
	}
	return string(res.SessionID), nil
}

// detachFromTarget ends the session. The tab stays open.
func (r *rawCDP) detachFromTarget(ctx context.Context, sessionID string) error {
	params := target.DetachFromTarget().WithSessionID(target.SessionID(sessionID))
	return r.call(ctx, "", target.CommandDetachFromTarget, params, nil)
}

// evaluate runs js in the session's page and returns the value by JSON.
func (r *rawCDP) evaluate(ctx context.Context, sessionID, js string) (json.RawMessage, error) {
	params := runtime.Evaluate(js).WithReturnByValue(true).WithAwaitPromise(true)
	var res struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text      string `json:"text"`
			Exception *struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}
	if err := r.call(ctx, sessionID, runtime.CommandEvaluate, params, &res); err != nil {
		return nil, err
	}
	if ex := res.ExceptionDetails; ex != nil {
		msg := ex.Text
		if ex.Exception != nil && ex.Exception.Description != "" {
			msg = ex.Exception.Description
		}
		return nil, fmt.Errorf("rawcdp: eval exception: %s", msg)
	}
	return res.Result.Value, nil
}

// listTargets reads /json/list. Chromium orders pages most recently
// activated first.
func (r *rawCDP) listTargets(ctx context.Context) ([]*target.Info, error) {
	var entries []struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := r.getJSON(ctx, "/json/list", &entries); err != nil {
		return nil, err
	}

	out := make([]*target.Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, &target.Info{
			TargetID: target.ID(e.ID),
			Type:     e.Type,
			Title:    e.Title,
			URL:      e.URL,
		})
	}
	return out, nil
}

func (r *rawCDP) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.httpBase+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("rawcdp: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rawcdp: %s: HTTP %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rawcdp: %s: %w", path, err)
	}
	return nil
}
