package inject

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/mfa_relay/internal/envelope"
)

// Result describes what HandleMessage did with an envelope.
type Result struct {
	Handled   bool   // tag was mfa_code
	Matched   bool   // an input was found and written
	Candidate string // name of the candidate that matched
	Target    string // description of the written element
}

// Injector writes received codes into the best input field on a page.
type Injector struct {
	candidates []Candidate
}

func NewInjector(candidates []Candidate) *Injector {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	cp := make([]Candidate, len(candidates))
	copy(cp, candidates)
	return &Injector{candidates: cp}
}

func (i *Injector) Candidates() []Candidate {
	out := make([]Candidate, len(i.candidates))
	copy(out, i.candidates)
	return out
}

// HandleMessage applies an mfa_code envelope to doc. Other tags are ignored.
// A page without a matching input yields Matched=false and no error.
//
// Only focus and value assignment are performed; no input or change events
// are dispatched afterwards.
func (i *Injector) HandleMessage(ctx context.Context, doc Document, env envelope.Envelope) (Result, error) {
	code, ok := env.MFACodeValue()
	if !ok {
		return Result{}, nil
	}

	match, found, err := FindInput(ctx, doc, i.candidates)
	if err != nil {
		return Result{Handled: true}, err
	}
	if !found {
		slog.Debug("inject no matching input")
		return Result{Handled: true}, nil
	}

	if err := match.Element.Focus(ctx); err != nil {
		return Result{Handled: true}, fmt.Errorf("focus %s input: %w", match.Candidate.Name, err)
	}
	if err := match.Element.SetValue(ctx, code); err != nil {
		return Result{Handled: true}, fmt.Errorf("set %s input value: %w", match.Candidate.Name, err)
	}

	slog.Debug("inject wrote code", "candidate", match.Candidate.Name, "code_length", len(code))
	return Result{
		Handled:   true,
		Matched:   true,
		Candidate: match.Candidate.Name,
		Target:    match.Element.Describe(),
	}, nil
}
