// Package parser turns forwarded deposit-notification text into structured
// deposit records. Notifications are semi-free-form: a digest may carry
// several deposits, numbers use the Brazilian locale, and every field
// except the amount is optional.
package parser

import (
	"strings"
	"time"

	"finbot/internal/core"
)

// Deposit is one parsed notification. Amount is the only field guaranteed
// present; UserCode and ReferrerCode are empty when the text omits them
// and Date falls back to the processing date.
type Deposit struct {
	Amount       core.Money
	Date         core.Date
	Time         string // display only, "" when the text carried no time
	UserCode     string
	ReferrerCode string
	Raw          string
}

// Parse extracts zero or more deposits from text, in document order.
//
// Chunks produced by the block splitter that lack a parseable amount are
// dropped silently; when the whole block pass yields nothing the field
// extractors run once against the entire text, emitting at most one
// record. An empty result is a valid outcome, not an error — callers must
// treat "no deposits found" differently from a malformed-input failure.
func Parse(text string, now time.Time) []Deposit {
	text = normalize(text)
	if text == "" {
		return nil
	}

	var deposits []Deposit
	for _, chunk := range splitBlocks(text) {
		if d, ok := extract(chunk, now); ok {
			deposits = append(deposits, d)
		}
	}
	if len(deposits) > 0 {
		return deposits
	}

	// No markers, or every chunk lacked an amount: one whole-text pass.
	if d, ok := extract(text, now); ok {
		return []Deposit{d}
	}
	return nil
}

func extract(text string, now time.Time) (Deposit, bool) {
	cents, ok := extractAmount(text)
	if !ok {
		return Deposit{}, false
	}
	date, timeOfDay := extractDateTime(text, now)
	return Deposit{
		Amount:       core.Money{Cents: cents},
		Date:         date,
		Time:         timeOfDay,
		UserCode:     extractUserCode(text),
		ReferrerCode: extractReferrer(text),
		Raw:          core.CapRaw(text),
	}, true
}

// normalize strips the invisible artifacts messaging clients smuggle into
// forwarded text before any pattern runs.
func normalize(text string) string {
	r := strings.NewReplacer(
		" ", " ", // non-breaking space
		"​", "", // zero-width space
		"\uFEFF", "", // BOM
	)
	return strings.TrimSpace(r.Replace(text))
}
