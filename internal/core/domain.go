package core

import (
	"errors"
	"strings"
	"time"
)

// Source tags where a payment record came from. Processor-verified rows
// carry a status; text-parsed rows are operator-trust only.
const (
	SourceProcessorWebhook Source = "mp_webhook"
	SourceManualText       Source = "manual_text"
	SourceChannelText      Source = "channel_text"
)

// StatusApproved is the only processor status counted as revenue.
const StatusApproved = "approved"

// MaxRawPayloadBytes caps the audit copy of the source text / processor
// response stored alongside a payment.
const MaxRawPayloadBytes = 4096

type (
	Source string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Payment is one ledger row on the revenue side. ExternalID is the
	// processor-assigned natural key and is empty for text-sourced rows.
	Payment struct {
		ID           int64
		ExternalID   string
		Date         Date
		Amount       Money
		Status       string
		PayerEmail   string
		UserCode     string
		ReferrerCode string
		Raw          string
		Source       Source
		CreatedAt    time.Time
	}

	Expense struct {
		ID          int64
		Date        Date
		Amount      Money
		Description string
		CreatedAt   time.Time
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrLookupFailed    = errors.New("payment lookup failed")
	ErrNothingToUndo   = errors.New("nothing to undo")
)

// NewDate builds a UTC calendar date with no time-of-day component.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// ISO returns the date as YYYY-MM-DD, the format the ledger stores.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// CapRaw truncates a raw payload to MaxRawPayloadBytes. The stored copy is
// audit material only and is never parsed again.
func CapRaw(raw string) string {
	if len(raw) <= MaxRawPayloadBytes {
		return raw
	}
	return raw[:MaxRawPayloadBytes]
}

func (p Payment) Validate() error {
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	switch p.Source {
	case SourceProcessorWebhook, SourceManualText, SourceChannelText:
	default:
		return errors.New("unknown payment source")
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return errors.New("empty description")
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

// CountsAsRevenue reports whether the payment participates in monthly
// sums. Processor rows count only when approved; text-parsed rows have no
// status and always count.
func (p Payment) CountsAsRevenue() bool {
	if p.Source == SourceProcessorWebhook {
		return p.Status == StatusApproved
	}
	return true
}
