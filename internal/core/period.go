package core

import "time"

// MonthInterval returns the half-open range [first of month, first of next
// month). The half-open end avoids last-day-of-month boundary bugs;
// December rolls over to January of the following year.
func MonthInterval(year, month int) (start, end Date) {
	start = NewDate(year, month, 1)
	if month == 12 {
		end = NewDate(year+1, 1, 1)
	} else {
		end = NewDate(year, month+1, 1)
	}
	return start, end
}

// PrevMonth steps one month backwards with January roll-under.
func PrevMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}

// RetentionCutoff computes the first-of-month boundary below which ledger
// rows are pruned, keeping the keepMonths most recent calendar months
// (current month included). Integer month arithmetic, not calendar-day
// subtraction, so the cutoff never drifts with month lengths: a record
// exactly keepMonths first-of-months old falls below the cutoff, one
// month younger survives.
func RetentionCutoff(now time.Time, keepMonths int) Date {
	ym := now.UTC().Year()*12 + int(now.UTC().Month()) - keepMonths + 1
	return NewDate((ym-1)/12, (ym-1)%12+1, 1)
}

// ValidateMonthYear checks a user-supplied month/year pair. Both must be
// present together and the month must be a calendar month.
func ValidateMonthYear(month, year int) error {
	if month < 1 || month > 12 {
		return ErrInvalidArgument
	}
	if year < 1 {
		return ErrInvalidArgument
	}
	return nil
}
