package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// Spreadsheet day zero. Using Dec 30 rather than Dec 31 absorbs the 1900 leap-year bug.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var (
	reSerial      = regexp.MustCompile(`^\d{5}(?:\.\d+)?$`)
	reSlashMDY    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	reDayMonYY    = regexp.MustCompile(`^(\d{1,2})-([A-Za-z]{3})-(\d{2})$`)
	reMonthDayY   = regexp.MustCompile(`^([A-Za-z]+)\s+(\d{1,2}),?\s+(\d{4})$`)
	reSpaceDMY    = regexp.MustCompile(`^(\d{1,2})\s+(\d{1,2})\s+(\d{4})$`)
	reDotDMY      = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
	reSubmittedOn = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})`)
	reBareYear    = regexp.MustCompile(`^\d{4}$`)
)

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// fallbackLayouts is the generic parse tried after the known legacy layouts.
var fallbackLayouts = []string{
	isoDate,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"01-02-06",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2006",
}

// A bare four-digit cell is read as a birth year from minBirthYear up to the current year.
const minBirthYear = 1900

// ParseDate recognises the date encodings found in the legacy export and returns YYYY-MM-DD.
// The second result is false when nothing matched.
func ParseDate(raw string) (string, bool) {
	s := CleanCell(raw)
	if s == "" {
		return "", false
	}

	parsers := []func(string) (time.Time, bool){
		parseSerial,
		parseSlashMDY,
		parseDayMonYY,
		parseMonthDayYear,
		parseSpaceDMY,
		parseDotDMY,
		parseBareYear,
	}
	for _, parse := range parsers {
		if t, ok := parse(s); ok {
			return t.Format(isoDate), true
		}
	}

	if t, ok := parseFallback(s, time.UTC); ok {
		return t.Format(isoDate), true
	}
	return "", false
}

// ParseSubmissionTimestamp reads the form submission column ("2025/08/22 11:06:30 PM GMT+5").
// Only the calendar date is kept, as local midnight in loc. Unparseable values fall back to now.
func ParseSubmissionTimestamp(raw string, loc *time.Location, now func() time.Time) (*time.Time, bool) {
	s := CleanCell(raw)
	if s == "" {
		return nil, true
	}
	if loc == nil {
		loc = time.Local
	}

	if m := reSubmittedOn.FindStringSubmatch(s); m != nil {
		if t, ok := calendarDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), loc); ok {
			return &t, true
		}
	}
	if t, ok := parseFallback(s, loc); ok {
		return &t, true
	}
	t := now()
	return &t, false
}

func parseSerial(s string) (time.Time, bool) {
	if !reSerial.MatchString(s) {
		return time.Time{}, false
	}
	days, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, false
	}
	ms := int64(math.Round(days * 86400000))
	return serialEpoch.Add(time.Duration(ms) * time.Millisecond), true
}

func parseSlashMDY(s string) (time.Time, bool) {
	m := reSlashMDY.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	return calendarDate(atoi(m[3]), atoi(m[1]), atoi(m[2]), time.UTC)
}

func parseDayMonYY(s string) (time.Time, bool) {
	m := reDayMonYY.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	month := monthIndex(m[2], true)
	if month == 0 {
		return time.Time{}, false
	}
	yy := atoi(m[3])
	year := 2000 + yy
	if yy > 50 {
		year = 1900 + yy
	}
	return calendarDate(year, month, atoi(m[1]), time.UTC)
}

func parseMonthDayYear(s string) (time.Time, bool) {
	m := reMonthDayY.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	month := monthIndex(m[1], false)
	if month == 0 {
		return time.Time{}, false
	}
	return calendarDate(atoi(m[3]), month, atoi(m[2]), time.UTC)
}

func parseSpaceDMY(s string) (time.Time, bool) {
	m := reSpaceDMY.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	return calendarDate(atoi(m[3]), atoi(m[2]), atoi(m[1]), time.UTC)
}

func parseDotDMY(s string) (time.Time, bool) {
	m := reDotDMY.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	return calendarDate(atoi(m[3]), atoi(m[2]), atoi(m[1]), time.UTC)
}

func parseBareYear(s string) (time.Time, bool) {
	if !reBareYear.MatchString(s) {
		return time.Time{}, false
	}
	year := atoi(s)
	if year < minBirthYear || year > time.Now().Year() {
		return time.Time{}, false
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
}

func parseFallback(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// calendarDate rejects values time.Date would silently roll over (31 Feb, month 13).
func calendarDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func monthIndex(name string, abbreviated bool) int {
	name = strings.ToLower(name)
	for i, full := range monthNames {
		if abbreviated && full[:3] == name {
			return i + 1
		}
		if !abbreviated && full == name {
			return i + 1
		}
	}
	return 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
