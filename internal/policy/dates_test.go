package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestExtractDates(t *testing.T) {
	text := "Issued on 2024-01-01, valid until 2025-01-01. Ref 2024-01-01/7."

	dates := ExtractDates(text)

	assert.Len(t, dates, 2)
	assert.True(t, dates[date("2024-01-01")])
	assert.True(t, dates[date("2025-01-01")])
}

func TestExtractDatesSkipsUnparseable(t *testing.T) {
	// Looks like a date but is not a real calendar day
	dates := ExtractDates("scanned 2024-13-40 and 2024-02-30, issued 2024-06-15")

	assert.Len(t, dates, 1)
	assert.True(t, dates[date("2024-06-15")])
}

func TestExtractDatesIgnoresEmbeddedDigits(t *testing.T) {
	dates := ExtractDates("batch 12024-01-013 serial 2024-01-0")

	assert.Empty(t, dates)
}

func TestValidateDates(t *testing.T) {
	text := "Certificate of Conformity\nIssue date: 2024-01-01\nExpiry date: 2025-01-01"

	assert.True(t, ValidateDates(text, date("2024-01-01"), date("2025-01-01")))
}

func TestValidateDatesMissingDeclared(t *testing.T) {
	text := "Issue date: 2024-01-01\nExpiry date: 2025-01-01"

	// Declared expiry differs from what the document says
	assert.False(t, ValidateDates(text, date("2024-01-01"), date("2025-06-30")))
	assert.False(t, ValidateDates(text, date("2023-12-31"), date("2025-01-01")))
}

func TestValidateDatesEmptyText(t *testing.T) {
	assert.False(t, ValidateDates("", date("2024-01-01"), date("2025-01-01")))
}

func TestValidateDatesNoDatesInText(t *testing.T) {
	assert.False(t, ValidateDates("no machine readable dates here", date("2024-01-01"), date("2025-01-01")))
}

func TestValidateDatesIgnoresTimeOfDay(t *testing.T) {
	text := "Issue date: 2024-01-01 Expiry date: 2025-01-01"
	issue := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)
	expiry := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	assert.True(t, ValidateDates(text, issue, expiry))
}
