package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/mfa_relay/internal/inject"
)

// Client opens DOM sessions on existing browser tabs.
type Client struct {
	cdpURL      string
	allocCtx    context.Context
	allocCancel context.CancelFunc
	mu          sync.Mutex
	open        atomic.Int32
}

func NewClient(cdpURL string) *Client {
	return &Client{cdpURL: strings.TrimRight(cdpURL, "/")}
}

// Connect prepares the remote allocator. No tab is created or attached until
// OpenPage is called.
func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	if c.cdpURL == "" {
		return fmt.Errorf("missing CDP URL")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.allocCtx != nil {
		return nil
	}
	slog.Info("Connecting to Chromium", "url", c.cdpURL)
	c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.cdpURL)
	return nil
}

// OpenPage attaches to the tab and returns its live DOM. The release func
// detaches the session; it never closes the tab.
func (c *Client) OpenPage(ctx context.Context, tabID string) (inject.Document, func(), error) {
	tabID = strings.TrimSpace(tabID)
	if tabID == "" {
		return nil, nil, fmt.Errorf("tab id is required")
	}

	c.mu.Lock()
	allocCtx := c.allocCtx
	c.mu.Unlock()
	if allocCtx == nil {
		return nil, nil, fmt.Errorf("cdp client not connected")
	}

	// Each page gets its own browser connection. Cancelling a context that
	// owns its connection only drops the websocket, whereas cancelling a
	// child context would close the target.
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithTargetID(target.ID(tabID)))
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx)
	stop()
	if err != nil {
		tabCancel()
		return nil, nil, fmt.Errorf("attach to tab %s: %w", tabID, err)
	}

	c.open.Add(1)
	slog.Debug("Attached to tab", "tab_id", tabID)

	var once sync.Once
	release := func() {
		once.Do(func() {
			tabCancel()
			c.open.Add(-1)
			slog.Debug("Detached from tab", "tab_id", tabID)
		})
	}
	return inject.NewCDPDocument(tabCtx), release, nil
}

// OpenSessions reports how many pages are currently attached.
func (c *Client) OpenSessions() int {
	return int(c.open.Load())
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCtx = nil
		c.allocCancel = nil
	}

	slog.Info("CDP client closed")
	return nil
}
