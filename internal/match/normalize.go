package match

import (
	"regexp"
	"strings"
)

var linkedinInPattern = regexp.MustCompile(`(?i)linkedin\.com/in/([A-Za-z0-9\-_%.]+)`)

// NormalizeLinkedIn reduces a LinkedIn URL to the canonical
// "linkedin.com/in/<slug>" form: lowercase, no scheme, no www, no trailing
// slash. Company pages and anything else return "". Idempotent.
func NormalizeLinkedIn(raw string) string {
	m := linkedinInPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ""
	}
	slug := strings.ToLower(strings.TrimRight(m[1], "/."))
	if slug == "" {
		return ""
	}
	return "linkedin.com/in/" + slug
}

var companySuffixPattern = regexp.MustCompile(`\b(inc|llc|ltd)\b`)
var nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]`)

// NormalizeCompany reduces a company name to a compact comparison key:
// lowercase, leading @ and corporate suffixes (Inc, LLC, Ltd) dropped, all
// non-alphanumerics removed. Suffix-only names ("Inc.") normalize to "".
// Idempotent.
func NormalizeCompany(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "@")
	s = companySuffixPattern.ReplaceAllString(s, "")
	return nonAlnumPattern.ReplaceAllString(s, "")
}

// SplitName breaks a display name into (first, last): first token and the
// rest. Single-token names have an empty last name.
func SplitName(full string) (first, last string) {
	fields := strings.Fields(strings.TrimSpace(full))
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields) == 1 {
		return fields[0], ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
