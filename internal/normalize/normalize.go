// Package normalize canonicalizes user-entered values: tag ids, search terms,
// phone numbers and social handles.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	slashRun      = regexp.MustCompile(`/+`)

	localPhone = regexp.MustCompile(`^0\d{9}$`)
	intlPhone  = regexp.MustCompile(`^\+\d{8,15}$`)
)

// DefaultCountryPrefix replaces the leading zero of local ten digit numbers.
const DefaultCountryPrefix = "+972"

// TagID derives the canonical tag id from a display name.
// "  Tel Aviv " and "tel  aviv" both become "tel_aviv"; "a/b" becomes "a_b".
func TagID(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = whitespaceRun.ReplaceAllString(s, "_")
	return slashRun.ReplaceAllString(s, "_")
}

// Fold returns the Unicode case-folded form of s for case-insensitive comparison.
// A new caser is built per call; cases.Caser is not safe for concurrent use.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// ContainsFold reports whether needle occurs in haystack ignoring case.
// The needle is expected to be folded already.
func ContainsFold(haystack, foldedNeedle string) bool {
	if foldedNeedle == "" {
		return true
	}
	if haystack == "" {
		return false
	}
	return strings.Contains(Fold(haystack), foldedNeedle)
}

// EqualFold reports whether two names are equal after trimming and case folding.
func EqualFold(a, b string) bool {
	return Fold(strings.TrimSpace(a)) == Fold(strings.TrimSpace(b))
}

// SearchTerm trims and folds a raw search term. Empty means no search.
func SearchTerm(raw string) string {
	return Fold(strings.TrimSpace(raw))
}

// PhoneE164 normalizes a phone number to E.164.
// Spaces, dashes, dots and parentheses are stripped first. A local number of
// the form 0XXXXXXXXX gets DefaultCountryPrefix; "+" followed by 8 to 15
// digits is kept. Anything else returns ok=false and should be dropped.
func PhoneE164(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsDigit(r), r == '+':
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '.', r == '(', r == ')':
		default:
			return "", false
		}
	}
	s := b.String()

	switch {
	case localPhone.MatchString(s):
		return DefaultCountryPrefix + s[1:], true
	case intlPhone.MatchString(s):
		return s, true
	default:
		return "", false
	}
}

// InstagramURL turns a handle ("@dana", "dana") or an existing URL into a
// profile URL. Returns "" for blank input.
func InstagramURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s
	}
	if strings.Contains(lower, "instagram.com/") {
		return "https://" + strings.TrimPrefix(s, "//")
	}
	return "https://instagram.com/" + strings.TrimPrefix(s, "@")
}

// InstagramHandle extracts the handle from an Instagram profile URL.
func InstagramHandle(url string) string {
	s := strings.TrimSpace(url)
	if i := strings.Index(strings.ToLower(s), "instagram.com/"); i >= 0 {
		s = s[i+len("instagram.com/"):]
	}
	s = strings.TrimPrefix(s, "@")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}

// SplitList splits a comma separated cell, trimming items and dropping blanks.
func SplitList(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
