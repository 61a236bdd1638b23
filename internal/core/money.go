// Package core holds the domain types and money/date arithmetic shared by
// the parser, the ledger and the transports.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseLocaleAmount converts a Brazilian-format amount string to cents.
//
// The rule mirrors how deposit notifications write numbers: when both "."
// and "," are present, "." is a thousands separator and "," the decimal
// point ("1.234,56" -> 123456); when only "," is present it is the decimal
// point ("8,00" -> 800). A remainder that is not numeric yields
// ErrInvalidAmount — the caller decides whether to drop the chunk, the
// parser never zeroes silently.
func ParseLocaleAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.Contains(s, ".") && strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")
	return parseCents(s)
}

// ParseDecimalAmount converts a command-line amount ("12.50" or "12,50")
// to cents. Unlike ParseLocaleAmount it never treats "." as a thousands
// separator.
func ParseDecimalAmount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	return parseCents(s)
}

// parseCents converts a dot-decimal string to cents with half-up rounding
// on the third fractional digit. Negative values are rejected.
func parseCents(s string) (int64, error) {
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}

// CentsFromFloat converts a processor amount (JSON number) to cents with
// half-up rounding.
func CentsFromFloat(v float64) int64 {
	if v < 0 {
		return 0
	}
	return int64(v*100 + 0.5)
}

// Reais returns the amount as a float64 for display only. Calculations
// stay in cents.
func (m Money) Reais() float64 {
	return float64(m.Cents) / 100.0
}

// FormatReais renders cents as "R$ 1234,56" for bot replies.
func FormatReais(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "," + twoDigits(cents%100)
	if neg {
		return "-R$ " + s
	}
	return "R$ " + s
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
