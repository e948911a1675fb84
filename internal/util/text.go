package util

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces    = regexp.MustCompile(`\s+`)
	reNonDigits = regexp.MustCompile(`\D`)
)

// CleanCell folds compatibility characters (full-width digits, NBSP), collapses whitespace and trims.
func CleanCell(input string) string {
	s := norm.NFKC.String(input)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// OptionalText returns nil for blank cells.
func OptionalText(input string) *string {
	s := CleanCell(input)
	if s == "" {
		return nil
	}
	return &s
}

func StringPtr(v string) *string { return &v }

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func DigitsOnly(input string) string {
	return reNonDigits.ReplaceAllString(input, "")
}

// RepairScientific undoes spreadsheet auto-formatting of long numbers, e.g. "3.52014E+12".
func RepairScientific(input string) string {
	s := strings.TrimSpace(input)
	if !strings.ContainsAny(s, "eE") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(f, 'f', 0, 64)
}
