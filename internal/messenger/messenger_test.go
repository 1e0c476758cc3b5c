package messenger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dgnsrekt/mfa_relay/internal/cdpcontrol"
	"github.com/dgnsrekt/mfa_relay/internal/envelope"
	"github.com/dgnsrekt/mfa_relay/internal/inject"
)

type fakeTabs struct {
	tab   cdpcontrol.TabInfo
	ok    bool
	err   error
	calls int
}

func (f *fakeTabs) ActiveTab(context.Context) (cdpcontrol.TabInfo, bool, error) {
	f.calls++
	return f.tab, f.ok, f.err
}

type fakePages struct {
	markup   string
	err      error
	doc      *inject.HTMLDocument
	opened   []string
	released int
}

func (f *fakePages) OpenPage(_ context.Context, tabID string) (inject.Document, func(), error) {
	f.opened = append(f.opened, tabID)
	if f.err != nil {
		return nil, nil, f.err
	}
	doc, err := inject.ParseHTML(strings.NewReader(f.markup))
	if err != nil {
		return nil, nil, err
	}
	f.doc = doc
	return doc, func() { f.released++ }, nil
}

func TestForwardInjectsIntoActiveTab(t *testing.T) {
	tabs := &fakeTabs{tab: cdpcontrol.TabInfo{TargetID: "tab-1", URL: "https://login.example/"}, ok: true}
	pages := &fakePages{markup: `<input type="text" id="user"><input inputmode="numeric" id="otp">`}
	m := NewTabMessenger(tabs, pages, nil)

	d, err := m.Forward(context.Background(), envelope.NewMFACode("482193"))
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if d.Outcome != OutcomeInjected || d.TabID != "tab-1" || d.Candidate != "numeric" {
		t.Fatalf("Forward() = %+v", d)
	}
	if len(pages.opened) != 1 || pages.opened[0] != "tab-1" {
		t.Fatalf("opened = %v; want [tab-1]", pages.opened)
	}
	if pages.released != 1 {
		t.Fatalf("released = %d; want 1", pages.released)
	}
	focused, ok := pages.doc.Focused()
	if !ok {
		t.Fatal("nothing focused")
	}
	if v, _ := focused.Attr("value"); v != "482193" {
		t.Fatalf("value = %q; want 482193", v)
	}
}

func TestForwardNoActiveTab(t *testing.T) {
	pages := &fakePages{}
	m := NewTabMessenger(&fakeTabs{}, pages, nil)

	d, err := m.Forward(context.Background(), envelope.NewMFACode("1234"))
	if err != nil {
		t.Fatalf("Forward() error = %v; want nil", err)
	}
	if d.Outcome != OutcomeNoActiveTab {
		t.Fatalf("outcome = %q; want %q", d.Outcome, OutcomeNoActiveTab)
	}
	if len(pages.opened) != 0 {
		t.Fatalf("opened a page without an active tab: %v", pages.opened)
	}
}

func TestForwardNoField(t *testing.T) {
	pages := &fakePages{markup: `<input type="password">`}
	m := NewTabMessenger(&fakeTabs{tab: cdpcontrol.TabInfo{TargetID: "tab-2"}, ok: true}, pages, nil)

	d, err := m.Forward(context.Background(), envelope.NewMFACode("1234"))
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if d.Outcome != OutcomeNoField || d.TabID != "tab-2" {
		t.Fatalf("Forward() = %+v; want no_field on tab-2", d)
	}
	if pages.released != 1 {
		t.Fatalf("released = %d; want 1", pages.released)
	}
}

func TestForwardRejections(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		tabs  *fakeTabs
		pages *fakePages
	}{
		{name: "tab lookup fails", tabs: &fakeTabs{err: boom}, pages: &fakePages{}},
		{name: "attach fails", tabs: &fakeTabs{tab: cdpcontrol.TabInfo{TargetID: "t"}, ok: true}, pages: &fakePages{err: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTabMessenger(tt.tabs, tt.pages, nil).Forward(context.Background(), envelope.NewMFACode("1234"))
			if !errors.Is(err, boom) {
				t.Fatalf("Forward() error = %v; want %v", err, boom)
			}
		})
	}
}
