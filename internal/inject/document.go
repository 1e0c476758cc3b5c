package inject

import "context"

// Document is the slice of a page's DOM the injector needs.
type Document interface {
	// QueryFirst returns the first element matching a CSS selector. A miss is
	// reported as ok=false, not as an error.
	QueryFirst(ctx context.Context, selector string) (el Element, ok bool, err error)
}

// Element is a single input element on a page.
type Element interface {
	Focus(ctx context.Context) error
	SetValue(ctx context.Context, value string) error
	Describe() string
}
