package util

import "strings"

const (
	CategoryFull      = "Full"
	CategoryOverseas  = "Overseas"
	CategoryAssociate = "Associate"
	CategoryStudent   = "Student"
	CategoryRenewal   = "Renewal"
)

// categoryKeywords is checked in order; "full" beats "renewal" in "Full membership renewal".
var categoryKeywords = []spellingVariant{
	{pattern: "full", canonical: CategoryFull},
	{pattern: "overseas", canonical: CategoryOverseas},
	{pattern: "associate", canonical: CategoryAssociate},
	{pattern: "student", canonical: CategoryStudent},
	{pattern: "renewal", canonical: CategoryRenewal},
}

// MembershipCategory extracts the membership category keyword.
// Empty and unmatched text both default to Student; recognized is false only for
// non-empty text that matched nothing, so callers can flag it.
func MembershipCategory(raw string) (category string, recognized bool) {
	s := strings.ToLower(CleanCell(raw))
	if s == "" {
		return CategoryStudent, true
	}
	for _, kw := range categoryKeywords {
		if strings.Contains(s, kw.pattern) {
			return kw.canonical, true
		}
	}
	return CategoryStudent, false
}
