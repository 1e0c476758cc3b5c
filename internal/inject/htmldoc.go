package inject

import (
	"context"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
)

// HTMLDocument is a static, parsed page. Focus is recorded rather than
// performed, and SetValue rewrites the value attribute.
type HTMLDocument struct {
	doc     *goquery.Document
	focused *goquery.Selection
}

// ParseHTML parses a saved page.
func ParseHTML(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &HTMLDocument{doc: doc}, nil
}

func (d *HTMLDocument) QueryFirst(_ context.Context, selector string) (Element, bool, error) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, false, nil
	}
	return &htmlElement{doc: d, sel: sel}, true, nil
}

// Focused returns the element that last received focus.
func (d *HTMLDocument) Focused() (*goquery.Selection, bool) {
	if d.focused == nil {
		return nil, false
	}
	return d.focused, true
}

// Render returns the document markup including any written values.
func (d *HTMLDocument) Render() (string, error) {
	return d.doc.Html()
}

type htmlElement struct {
	doc *HTMLDocument
	sel *goquery.Selection
}

func (e *htmlElement) Focus(context.Context) error {
	e.doc.focused = e.sel
	return nil
}

func (e *htmlElement) SetValue(_ context.Context, value string) error {
	e.sel.SetAttr("value", value)
	return nil
}

func (e *htmlElement) Describe() string {
	out, err := goquery.OuterHtml(e.sel)
	if err != nil {
		return goquery.NodeName(e.sel)
	}
	return out
}
