package core

import (
	"testing"
	"time"
)

func TestMonthInterval(t *testing.T) {
	start, end := MonthInterval(2024, 3)
	if start.ISO() != "2024-03-01" || end.ISO() != "2024-04-01" {
		t.Fatalf("march interval: %s .. %s", start.ISO(), end.ISO())
	}

	// December rolls over to January of the next year.
	start, end = MonthInterval(2024, 12)
	if start.ISO() != "2024-12-01" || end.ISO() != "2025-01-01" {
		t.Fatalf("december interval: %s .. %s", start.ISO(), end.ISO())
	}
}

func TestPrevMonth(t *testing.T) {
	y, m := PrevMonth(2024, 1)
	if y != 2023 || m != 12 {
		t.Fatalf("january roll-under: %d/%d", m, y)
	}
	y, m = PrevMonth(2024, 7)
	if y != 2024 || m != 6 {
		t.Fatalf("mid-year: %d/%d", m, y)
	}
}

func TestRetentionCutoff(t *testing.T) {
	now := time.Date(2024, 9, 17, 10, 30, 0, 0, time.UTC)
	cases := []struct {
		keep int
		want string
	}{
		// keep=6 in September keeps Apr..Sep; March (exactly six
		// first-of-months old) falls below the cutoff.
		{6, "2024-04-01"},
		{1, "2024-09-01"},
		{12, "2023-10-01"}, // crosses the year boundary
	}
	for _, tc := range cases {
		if got := RetentionCutoff(now, tc.keep); got.ISO() != tc.want {
			t.Fatalf("keep=%d: got %s, want %s", tc.keep, got.ISO(), tc.want)
		}
	}
}

func TestValidateMonthYear(t *testing.T) {
	if err := ValidateMonthYear(3, 2024); err != nil {
		t.Fatalf("valid pair rejected: %v", err)
	}
	for _, bad := range [][2]int{{0, 2024}, {13, 2024}, {5, 0}, {-1, 2024}} {
		if err := ValidateMonthYear(bad[0], bad[1]); err == nil {
			t.Fatalf("expected error for month=%d year=%d", bad[0], bad[1])
		}
	}
}

func TestCountsAsRevenue(t *testing.T) {
	approved := Payment{Source: SourceProcessorWebhook, Status: StatusApproved}
	pending := Payment{Source: SourceProcessorWebhook, Status: "pending"}
	manual := Payment{Source: SourceManualText}
	if !approved.CountsAsRevenue() {
		t.Fatal("approved processor payment must count")
	}
	if pending.CountsAsRevenue() {
		t.Fatal("pending processor payment must not count")
	}
	if !manual.CountsAsRevenue() {
		t.Fatal("manual deposit has no status and always counts")
	}
}
