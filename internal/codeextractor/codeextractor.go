// Package codeextractor pulls a one-time code out of free-form message text
// such as an SMS body.
package codeextractor

import (
	"errors"
	"regexp"
	"strings"
)

var ErrNoCodeFound = errors.New("no code found")

// digits builds a pattern for a run that is not part of a longer number.
func digits(body string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^0-9])(` + body + `)(?:[^0-9]|$)`)
}

var (
	// International phone numbers would otherwise look like codes.
	phoneRegex = regexp.MustCompile(`\+[0-9]{1,3}(?:[ -]?[0-9]){6,14}`)

	googleRegex = regexp.MustCompile(`(?:^|[^0-9A-Za-z])G-([0-9]{6})(?:[^0-9]|$)`)

	// Order matters: longer codes first, the plain run before its split
	// form, spaced forms last.
	cascade = []*regexp.Regexp{
		digits(`[0-9]{8}`),
		digits(`[0-9]{4}-[0-9]{4}`),
		digits(`[0-9]{7}`),
		digits(`[0-9]{6}`),
		digits(`[0-9]{3}-[0-9]{3}`),
		digits(`[0-9]{5}`),
		digits(`[0-9]{4}`),
		digits(`[0-9]{2}-[0-9]{2}`),
		digits(`[0-9]{4} [0-9]{4}`),
		digits(`[0-9]{3} [0-9]{3}`),
		digits(`[0-9]{2} [0-9]{2}`),
	}
)

// ExtractCode returns the first code found in text with separators removed.
// Bare two and three digit runs are never codes; they are mostly amounts.
func ExtractCode(text string) (string, error) {
	if m := googleRegex.FindStringSubmatch(text); m != nil {
		return m[1], nil
	}

	text = phoneRegex.ReplaceAllString(text, " ")
	for _, re := range cascade {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return strings.NewReplacer("-", "", " ", "").Replace(m[1]), nil
	}
	return "", ErrNoCodeFound
}
