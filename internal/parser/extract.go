package parser

import (
	"regexp"
	"time"

	"finbot/internal/core"
)

// Field extractors. Each one is an independent match over a chunk (or the
// whole text in fallback mode); only the amount is mandatory for a chunk
// to become a deposit record.
var (
	reAmount   = regexp.MustCompile(`Valor:\s*R\$\s*([0-9][0-9.,]*)`)
	reUserCode = regexp.MustCompile(`User:\s*(\d+)`)
	reDateTime = regexp.MustCompile(`Data:\s*(\d{2}/\d{2}/\d{4})(?:\s+(\d{2}:\d{2}:\d{2}))?`)
	reReferrer = regexp.MustCompile(`(?i)Indicado\s+por:\s*(\d+)`)
)

// extractAmount pulls the principal "Valor" field as cents. Bonus or
// incentive amounts elsewhere in the text are never extracted — only the
// principal counts as revenue.
func extractAmount(text string) (int64, bool) {
	m := reAmount.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	cents, err := core.ParseLocaleAmount(m[1])
	if err != nil {
		return 0, false
	}
	return cents, true
}

func extractUserCode(text string) string {
	if m := reUserCode.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// extractDateTime returns the economic date and an optional display
// time-of-day. A missing field, or a matched-but-impossible date such as
// 32/13/2024, falls back to the processing date: an unparseable date never
// rejects a deposit.
func extractDateTime(text string, now time.Time) (core.Date, string) {
	m := reDateTime.FindStringSubmatch(text)
	if m == nil {
		return core.DateOf(now), ""
	}
	t, err := time.Parse("02/01/2006", m[1])
	if err != nil {
		return core.DateOf(now), ""
	}
	return core.DateOf(t), m[2]
}

func extractReferrer(text string) string {
	if m := reReferrer.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
