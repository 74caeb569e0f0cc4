package policy

import (
	"regexp"
	"time"
)

// isoDatePattern recognizes ISO calendar dates only. Declared dates in
// other formats (e.g. "Jan 1, 2024") will not match even when they name
// the same day; broadening this is a product decision, not a bug fix.
var isoDatePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

// ExtractDates scans text for ISO calendar dates and returns the set of
// days that parse. Substrings that look like dates but don't parse
// (OCR noise such as 2024-13-40) are skipped, which can only make
// validation stricter.
func ExtractDates(text string) map[time.Time]bool {
	dates := make(map[time.Time]bool)
	for _, match := range isoDatePattern.FindAllString(text, -1) {
		d, err := time.Parse("2006-01-02", match)
		if err != nil {
			continue
		}
		dates[d] = true
	}
	return dates
}

// ValidateDates reports whether both declared dates appear in the text
// extracted from the document. Empty text fails validation: a document
// we cannot read cannot corroborate the supplier's declaration.
func ValidateDates(text string, issueDate, expiryDate time.Time) bool {
	if text == "" {
		return false
	}

	dates := ExtractDates(text)
	if len(dates) == 0 {
		return false
	}

	return dates[day(issueDate)] && dates[day(expiryDate)]
}

// day truncates a timestamp to its calendar date
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
