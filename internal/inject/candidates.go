package inject

import (
	"context"
	"fmt"
)

// Candidate is one structural pattern family in the fallback chain.
type Candidate struct {
	Name     string `yaml:"name" json:"name"`
	Selector string `yaml:"selector" json:"selector"`
}

// DefaultCandidates lists OTP-style numeric fields first and generic text
// inputs as the catch-all.
var DefaultCandidates = []Candidate{
	{Name: "numeric", Selector: `input[inputmode="numeric"]`},
	{Name: "text", Selector: `input[type="text"]`},
}

// Match is the element chosen by FindInput and the candidate that produced it.
type Match struct {
	Candidate Candidate
	Element   Element
}

// FindInput walks candidates in priority order and returns the first element of
// the first candidate with any match. It is a fallback chain, not a ranking.
func FindInput(ctx context.Context, doc Document, candidates []Candidate) (Match, bool, error) {
	for _, c := range candidates {
		el, ok, err := doc.QueryFirst(ctx, c.Selector)
		if err != nil {
			return Match{}, false, fmt.Errorf("query %s candidate: %w", c.Name, err)
		}
		if ok {
			return Match{Candidate: c, Element: el}, true, nil
		}
	}
	return Match{}, false, nil
}
