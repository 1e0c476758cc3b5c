package cdpcontrol

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
)

// focusProbeJS reports whether the page is visible and owns input focus.
const focusProbeJS = `({visible: document.visibilityState === "visible", focused: document.hasFocus()})`

// brokenSocketHints mark evaluation failures caused by the socket or session
// going away rather than by the page itself.
var brokenSocketHints = []string{
	"context canceled",
	"target closed",
	"session closed",
	"websocket",
	"connection reset",
	"broken pipe",
	"eof",
	"connection refused",
	"connection closed",
	"not connected",
}

type tabSession struct {
	info      TabInfo
	mu        sync.Mutex
	sessionID string
}

// Client resolves the active browser tab over a browser-level CDP socket.
// Sessions are attached lazily per tab and reused until they fail.
type Client struct {
	cdpURL      string
	tabFilter   string
	evalTimeout time.Duration

	mu    sync.Mutex
	cdp   *rawCDP
	tabs  map[target.ID]*tabSession
	order []target.ID

	probeMu sync.Mutex // one focus sweep at a time
}

func NewClient(cdpURL, tabFilter string, evalTimeout time.Duration) *Client {
	return &Client{
		cdpURL:      cdpURL,
		tabFilter:   strings.ToLower(strings.TrimSpace(tabFilter)),
		evalTimeout: evalTimeout,
		tabs:        make(map[target.ID]*tabSession),
	}
}

// Connect dials the browser and loads its page list. Any previous socket is
// dropped first.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialLocked(ctx)
}

func (c *Client) dialLocked(ctx context.Context) error {
	if c.cdpURL == "" {
		return newError(CodeCDPUnavailable, "missing CDP URL", nil)
	}
	c.resetLocked()

	conn := newRawCDP(c.cdpURL)
	if err := conn.connect(ctx); err != nil {
		return newError(CodeCDPUnavailable, "browser unreachable", err)
	}
	c.cdp = conn
	if err := c.syncLocked(ctx); err != nil {
		c.resetLocked()
		return newError(CodeCDPUnavailable, "browser unreachable", err)
	}

	slog.Info("cdpcontrol connected", "cdp_url", c.cdpURL, "pages", len(c.order))
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	return nil
}

// resetLocked detaches every session, leaving the tabs themselves open, and
// drops the socket.
func (c *Client) resetLocked() {
	if c.cdp != nil {
		for _, s := range c.tabs {
			dropSession(c.cdp, s)
		}
		c.cdp.close()
		c.cdp = nil
	}
	c.tabs = make(map[target.ID]*tabSession)
	c.order = nil
}

// dropSession detaches s from its tab, if attached, and forgets the session
// id. The tab stays open.
func dropSession(conn *rawCDP, s *tabSession) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := conn.detachFromTarget(ctx, s.sessionID); err != nil {
		slog.Debug("cdpcontrol detach failed", "tab_id", s.info.TargetID, "error", err)
	}
	s.sessionID = ""
}

// ListTabs probes every eligible page target and returns them in the order
// the browser reports, most recently activated first.
func (c *Client) ListTabs(ctx context.Context) ([]TabInfo, error) {
	return c.sweepWithRedial(ctx, false)
}

// ActiveTab returns the tab a user would consider active: the first focused
// page, else the first visible page. ok is false when no page qualifies. It
// returns as soon as a focused page has no unresolved page ahead of it, so a
// hung background tab does not hold up a delivery.
func (c *Client) ActiveTab(ctx context.Context) (TabInfo, bool, error) {
	tabs, err := c.sweepWithRedial(ctx, true)
	if err != nil {
		return TabInfo{}, false, err
	}
	tab, ok := pickActiveTab(tabs)
	if ok {
		slog.Debug("cdpcontrol active tab", "tab_id", tab.TargetID, "focused", tab.Focused)
	}
	return tab, ok, nil
}

// sweepWithRedial runs one sweep and, when it fails on a dead socket, one
// more on a fresh connection.
func (c *Client) sweepWithRedial(ctx context.Context, untilFocused bool) ([]TabInfo, error) {
	c.probeMu.Lock()
	defer c.probeMu.Unlock()

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			slog.Warn("cdpcontrol redialing after failed sweep", "error", err)
			c.mu.Lock()
			dialErr := c.dialLocked(ctx)
			c.mu.Unlock()
			if dialErr != nil {
				return nil, dialErr
			}
		}

		var tabs []TabInfo
		tabs, err = c.sweep(ctx, untilFocused)
		if err == nil || !isTransient(err) {
			return tabs, err
		}
	}
	return nil, err
}

func pickActiveTab(tabs []TabInfo) (TabInfo, bool) {
	for _, t := range tabs {
		if t.Focused {
			return t, true
		}
	}
	for _, t := range tabs {
		if t.Visible {
			return t, true
		}
	}
	return TabInfo{}, false
}

type probeResult struct {
	idx   int
	focus tabFocus
	err   error
}

// sweep refreshes the page list and probes all pages at once. A page whose
// probe fails for page-local reasons is reported unfocused and invisible.
// With untilFocused set, the sweep stops at the first focused page once every
// page ahead of it has answered, returning the tabs up to and including it.
func (c *Client) sweep(ctx context.Context, untilFocused bool) ([]TabInfo, error) {
	c.mu.Lock()
	if c.cdp == nil || !c.cdp.connected() {
		if err := c.dialLocked(ctx); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	} else if err := c.syncLocked(ctx); err != nil {
		c.mu.Unlock()
		return nil, newError(CodeCDPUnavailable, "list targets", err)
	}
	conn := c.cdp
	sessions := make([]*tabSession, 0, len(c.order))
	out := make([]TabInfo, 0, len(c.order))
	for _, id := range c.order {
		s := c.tabs[id]
		sessions = append(sessions, s)
		out = append(out, s.info)
	}
	c.mu.Unlock()

	probeCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	results := make(chan probeResult, len(sessions))
	for i, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			focus, err := c.probe(probeCtx, conn, s)
			results <- probeResult{idx: i, focus: focus, err: err}
		}()
	}

	answered := make([]bool, len(sessions))
	next := 0
	for range sessions {
		r := <-results
		if r.err != nil {
			if isTransient(r.err) {
				return nil, r.err
			}
			slog.Warn("cdpcontrol focus probe failed", "tab_id", out[r.idx].TargetID, "error", r.err)
		}
		out[r.idx].Focused, out[r.idx].Visible = r.focus.Focused, r.focus.Visible
		answered[r.idx] = true

		for next < len(out) && answered[next] {
			if untilFocused && out[next].Focused {
				return out[:next+1], nil
			}
			next++
		}
	}
	return out, nil
}

// probe evaluates focusProbeJS in the tab, attaching a session first when the
// tab has none. A failed evaluation detaches and drops the session.
func (c *Client) probe(ctx context.Context, conn *rawCDP, s *tabSession) (tabFocus, error) {
	var focus tabFocus
	id := s.info.TargetID

	s.mu.Lock()
	if s.sessionID == "" {
		// An attach cut short would leave an unowned session on the tab, so it
		// runs to completion even when the sweep ends early.
		attachCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.evalTimeout)
		sid, err := conn.attachToTarget(attachCtx, id)
		cancel()
		if err != nil {
			s.mu.Unlock()
			return focus, newError(CodeCDPUnavailable, "attach "+id, err)
		}
		s.sessionID = sid
		slog.Debug("cdpcontrol session attached", "tab_id", id, "session_id", sid)
	}
	sid := s.sessionID
	s.mu.Unlock()

	evalCtx, cancel := context.WithTimeout(ctx, c.evalTimeout)
	defer cancel()
	raw, err := conn.evaluate(evalCtx, sid, focusProbeJS)
	if err != nil {
		if ctx.Err() != nil {
			// The caller gave up; the session itself is still good.
			return focus, newError(CodeEvalFailure, "focus probe interrupted", err)
		}
		dropSession(conn, s)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
			return focus, newError(CodeEvalTimeout, "focus probe timed out", err)
		}
		return focus, newError(CodeEvalFailure, "focus probe failed", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &focus); err != nil {
			return focus, newError(CodeEvalFailure, "focus probe result", err)
		}
	}
	return focus, nil
}

// syncLocked reloads /json/list, keeping existing sessions for pages that are
// still present.
func (c *Client) syncLocked(ctx context.Context) error {
	targets, err := c.cdp.listTargets(ctx)
	if err != nil {
		return err
	}

	next := make(map[target.ID]*tabSession, len(targets))
	order := make([]target.ID, 0, len(targets))
	for _, t := range targets {
		if !c.eligible(t) {
			continue
		}
		if _, seen := next[t.TargetID]; seen {
			continue
		}
		info := TabInfo{TargetID: string(t.TargetID), URL: t.URL, Title: t.Title}
		s := c.tabs[t.TargetID]
		if s == nil {
			s = &tabSession{}
		}
		s.info = info
		next[t.TargetID] = s
		order = append(order, t.TargetID)
	}
	c.tabs, c.order = next, order

	slog.Debug("cdpcontrol tab sync", "targets", len(targets), "pages", len(order))
	return nil
}

func (c *Client) eligible(t *target.Info) bool {
	if t == nil || t.Type != "page" {
		return false
	}
	url := strings.ToLower(t.URL)
	if strings.HasPrefix(url, "devtools://") {
		return false
	}
	return c.tabFilter == "" || strings.Contains(url, c.tabFilter)
}

// isTransient reports whether err came from a lost connection, in which case
// a redial can help.
func isTransient(err error) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}
	switch coded.Code {
	case CodeCDPUnavailable:
		return true
	case CodeEvalFailure:
		if coded.Cause == nil {
			return false
		}
		cause := strings.ToLower(coded.Cause.Error())
		for _, hint := range brokenSocketHints {
			if strings.Contains(cause, hint) {
				return true
			}
		}
	}
	return false
}
