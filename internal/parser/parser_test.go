package parser

import (
	"testing"
	"time"
)

var fixedNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func TestParseSingleDepositWithMarker(t *testing.T) {
	text := "💰 Novo DEPÓSITO\nUser: 555\nValor: R$ 50,00\nData: 10/01/2024 14:00:00"

	got := Parse(text, fixedNow)
	if len(got) != 1 {
		t.Fatalf("expected 1 deposit, got %d", len(got))
	}
	d := got[0]
	if d.Amount.Cents != 5000 {
		t.Errorf("amount = %d, want 5000", d.Amount.Cents)
	}
	if d.Date.ISO() != "2024-01-10" {
		t.Errorf("date = %s, want 2024-01-10", d.Date.ISO())
	}
	if d.Time != "14:00:00" {
		t.Errorf("time = %q, want 14:00:00", d.Time)
	}
	if d.UserCode != "555" {
		t.Errorf("user code = %q, want 555", d.UserCode)
	}
	if d.ReferrerCode != "" {
		t.Errorf("referrer = %q, want empty", d.ReferrerCode)
	}
}

func TestParseMultipleBlocksDocumentOrder(t *testing.T) {
	text := "💰 Novo depósito\nUser: 1\nValor: R$ 10,00\n\n" +
		"💰 NOVO DEPÓSITO\nUser: 2\nValor: R$ 1.234,56\nIndicado por: 77"

	got := Parse(text, fixedNow)
	if len(got) != 2 {
		t.Fatalf("expected 2 deposits, got %d", len(got))
	}
	if got[0].UserCode != "1" || got[0].Amount.Cents != 1000 {
		t.Errorf("first deposit wrong: %+v", got[0])
	}
	if got[1].UserCode != "2" || got[1].Amount.Cents != 123456 {
		t.Errorf("second deposit wrong: %+v", got[1])
	}
	if got[1].ReferrerCode != "77" {
		t.Errorf("referrer = %q, want 77", got[1].ReferrerCode)
	}
}

func TestParseFallbackWithoutMarker(t *testing.T) {
	// One deposit, no header marker: the whole-text pass must emit
	// exactly one record.
	text := "User: 900\nValor: R$ 8,00"

	got := Parse(text, fixedNow)
	if len(got) != 1 {
		t.Fatalf("expected 1 deposit via fallback, got %d", len(got))
	}
	if got[0].Amount.Cents != 800 || got[0].UserCode != "900" {
		t.Errorf("fallback deposit wrong: %+v", got[0])
	}
	// Missing date falls back to the processing date with no time-of-day.
	if got[0].Date.ISO() != "2024-05-20" || got[0].Time != "" {
		t.Errorf("date fallback wrong: %s %q", got[0].Date.ISO(), got[0].Time)
	}
}

func TestParseNoAmountIsEmptyNotError(t *testing.T) {
	for _, text := range []string{
		"",
		"hello there",
		"💰 Novo depósito\nUser: 5\nData: 10/01/2024",
		"Bônus: R$ 5,00", // bonus amounts are not revenue
	} {
		if got := Parse(text, fixedNow); len(got) != 0 {
			t.Errorf("%q: expected no deposits, got %d", text, len(got))
		}
	}
}

func TestParseChunkWithoutAmountDroppedSilently(t *testing.T) {
	text := "💰 Novo depósito\nUser: 1\n\n" + // no amount, dropped
		"💰 Novo depósito\nUser: 2\nValor: R$ 25,50"

	got := Parse(text, fixedNow)
	if len(got) != 1 {
		t.Fatalf("expected 1 deposit, got %d", len(got))
	}
	if got[0].UserCode != "2" || got[0].Amount.Cents != 2550 {
		t.Errorf("surviving deposit wrong: %+v", got[0])
	}
}

func TestParseInvalidDateFallsBackToNow(t *testing.T) {
	text := "Valor: R$ 30,00\nData: 32/13/2024 09:00:00"

	got := Parse(text, fixedNow)
	if len(got) != 1 {
		t.Fatalf("expected 1 deposit, got %d", len(got))
	}
	if got[0].Date.ISO() != "2024-05-20" {
		t.Errorf("impossible date must fall back to processing date, got %s", got[0].Date.ISO())
	}
}

func TestParseToleratesNonBreakingSpaces(t *testing.T) {
	text := "💰 Novo depósito\nValor: R$ 42,00"

	got := Parse(text, fixedNow)
	if len(got) != 1 || got[0].Amount.Cents != 4200 {
		t.Fatalf("NBSP text not parsed: %+v", got)
	}
}

func TestParseCaseInsensitiveReferrer(t *testing.T) {
	text := "Valor: R$ 15,00\nINDICADO POR: 4321"

	got := Parse(text, fixedNow)
	if len(got) != 1 || got[0].ReferrerCode != "4321" {
		t.Fatalf("referrer not matched case-insensitively: %+v", got)
	}
}
