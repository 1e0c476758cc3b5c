// Package messenger delivers relay envelopes to the page in the active tab.
package messenger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/mfa_relay/internal/cdpcontrol"
	"github.com/dgnsrekt/mfa_relay/internal/envelope"
	"github.com/dgnsrekt/mfa_relay/internal/inject"
)

// Outcome is the result of a delivery that was not rejected.
type Outcome string

const (
	OutcomeInjected    Outcome = "injected"
	OutcomeNoField     Outcome = "no_field"
	OutcomeNoActiveTab Outcome = "no_active_tab"
)

// Delivery describes where an envelope went.
type Delivery struct {
	Outcome   Outcome `json:"outcome"`
	TabID     string  `json:"tab_id,omitempty"`
	TabURL    string  `json:"tab_url,omitempty"`
	Candidate string  `json:"candidate,omitempty"`
}

// TabFinder resolves the active browser tab.
type TabFinder interface {
	ActiveTab(ctx context.Context) (cdpcontrol.TabInfo, bool, error)
}

// PageOpener opens a DOM session on a tab.
type PageOpener interface {
	OpenPage(ctx context.Context, tabID string) (inject.Document, func(), error)
}

type TabMessenger struct {
	tabs     TabFinder
	pages    PageOpener
	injector *inject.Injector
}

func NewTabMessenger(tabs TabFinder, pages PageOpener, injector *inject.Injector) *TabMessenger {
	if injector == nil {
		injector = inject.NewInjector(nil)
	}
	return &TabMessenger{tabs: tabs, pages: pages, injector: injector}
}

// Forward hands env to the injector running on the active tab. A missing tab
// is an outcome, not an error; any error means the delivery was rejected.
func (m *TabMessenger) Forward(ctx context.Context, env envelope.Envelope) (Delivery, error) {
	tab, ok, err := m.tabs.ActiveTab(ctx)
	if err != nil {
		return Delivery{}, fmt.Errorf("resolve active tab: %w", err)
	}
	if !ok {
		return Delivery{Outcome: OutcomeNoActiveTab}, nil
	}

	d := Delivery{TabID: tab.TargetID, TabURL: tab.URL}
	doc, release, err := m.pages.OpenPage(ctx, tab.TargetID)
	if err != nil {
		return d, fmt.Errorf("open tab %s: %w", tab.TargetID, err)
	}
	defer release()

	res, err := m.injector.HandleMessage(ctx, doc, env)
	if err != nil {
		return d, fmt.Errorf("inject into tab %s: %w", tab.TargetID, err)
	}
	if !res.Matched {
		d.Outcome = OutcomeNoField
		return d, nil
	}

	d.Outcome = OutcomeInjected
	d.Candidate = res.Candidate
	slog.Debug("messenger delivered", "tab_id", tab.TargetID, "candidate", res.Candidate)
	return d, nil
}
