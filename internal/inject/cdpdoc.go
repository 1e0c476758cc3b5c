package inject

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// CDPDocument is the live DOM of a browser tab reached through a chromedp
// target context.
type CDPDocument struct {
	tabCtx context.Context
}

// NewCDPDocument wraps a chromedp context that is already attached to a tab.
func NewCDPDocument(tabCtx context.Context) *CDPDocument {
	return &CDPDocument{tabCtx: tabCtx}
}

// run executes actions on the tab context while honouring the caller's ctx.
// The tab context itself must not be cancelled here because chromedp ties the
// target session to it.
func (d *CDPDocument) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (d *CDPDocument) QueryFirst(ctx context.Context, selector string) (Element, bool, error) {
	var nodes []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return nil, false, fmt.Errorf("cdp query %q: %w", selector, err)
	}
	if len(nodes) == 0 {
		return nil, false, nil
	}
	return &cdpElement{doc: d, node: nodes[0]}, true, nil
}

type cdpElement struct {
	doc  *CDPDocument
	node *cdp.Node
}

func (e *cdpElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *cdpElement) Focus(ctx context.Context) error {
	return e.doc.run(ctx, chromedp.Focus(e.ids(), chromedp.ByNodeID))
}

func (e *cdpElement) SetValue(ctx context.Context, value string) error {
	return e.doc.run(ctx, chromedp.SetValue(e.ids(), value, chromedp.ByNodeID))
}

func (e *cdpElement) Describe() string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(strings.ToLower(e.node.NodeName))
	for i := 0; i+1 < len(e.node.Attributes); i += 2 {
		name := e.node.Attributes[i]
		if name == "value" {
			continue
		}
		fmt.Fprintf(&b, " %s=%q", name, e.node.Attributes[i+1])
	}
	b.WriteString(">")
	return b.String()
}
