package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finbot/internal/core"
	"finbot/internal/mercadopago"
	"finbot/internal/telegram"
)

// maxWebhookBody bounds webhook request bodies; processor notifications
// are small JSON envelopes.
const maxWebhookBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// handleProcessorWebhook ingests one payment notification. The processor
// retries on non-2xx, so a duplicate delivery still answers ok.
func (s *Server) handleProcessorWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "reason": "unreadable body"})
		return
	}

	id, err := mercadopago.ResolvePaymentID(body, r.URL.Query())
	if err != nil {
		slog.WarnContext(r.Context(), "Webhook without payment id", "body_bytes", len(body))
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "reason": "no id"})
		return
	}

	res, err := s.svc.IngestProcessorPayment(r.Context(), id)
	if errors.Is(err, core.ErrLookupFailed) {
		slog.ErrorContext(r.Context(), "Payment lookup failed", "external_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "reason": "fetch_failed"})
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Payment ingestion failed", "external_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "inserted": res.Inserted})
}

// handleTelegramWebhook feeds one Bot API update through the command
// router. Telegram retries failed deliveries, so routing errors inside
// the bot never surface here.
func (s *Server) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&update); err != nil {
		slog.WarnContext(r.Context(), "Undecodable Telegram update", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.bot.HandleUpdate(r.Context(), update)
	_, _ = w.Write([]byte("OK"))
}

// monthYearQuery reads optional month/year query parameters, defaulting
// to the current month.
func monthYearQuery(r *http.Request) (month, year int, err error) {
	now := time.Now().UTC()
	month, year = int(now.Month()), now.Year()

	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("bad month %q", v)
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("bad year %q", v)
		}
	}
	if err := core.ValidateMonthYear(month, year); err != nil {
		return 0, 0, err
	}
	return month, year, nil
}

type dashboardEntry struct {
	Date   string
	Kind   string
	Amount string
	Label  string
}

type dashboardData struct {
	Month    int
	Year     int
	Sales    string
	Expenses string
	Profit   string
	Entries  []dashboardEntry
}

// handleDashboard renders the month summary plus its most recent entries.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	month, year, err := monthYearQuery(r)
	if err != nil {
		http.Error(w, "invalid month/year", http.StatusBadRequest)
		return
	}

	sum, err := s.svc.Profit(r.Context(), month, year)
	if err != nil {
		slog.ErrorContext(r.Context(), "Dashboard summary failed", "error", err, "month", month, "year", year)
		http.Error(w, "summary failed", http.StatusInternalServerError)
		return
	}

	start, end := core.MonthInterval(year, month)
	page, err := s.svc.List(r.Context(), start, end, 1, 20)
	if err != nil {
		slog.ErrorContext(r.Context(), "Dashboard listing failed", "error", err, "month", month, "year", year)
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}

	data := dashboardData{
		Month:    month,
		Year:     year,
		Sales:    core.FormatReais(sum.Sales.Cents),
		Expenses: core.FormatReais(sum.Expenses.Cents),
		Profit:   core.FormatReais(sum.Profit().Cents),
	}
	for _, e := range page.Entries {
		kind := "Pagamento"
		if e.Table == "expenses" {
			kind = "Gasto"
		}
		data.Entries = append(data.Entries, dashboardEntry{
			Date:   e.Date.ISO(),
			Kind:   kind,
			Amount: core.FormatReais(e.Amount.Cents),
			Label:  e.Label,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Dashboard template failed", "error", err)
	}
}

// handleExportCSV streams one month of the ledger as CSV.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	month, year, err := monthYearQuery(r)
	if err != nil {
		http.Error(w, "invalid month/year", http.StatusBadRequest)
		return
	}

	start, end := core.MonthInterval(year, month)
	rows, err := s.svc.ExportRows(r.Context(), start, end)
	if err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", "error", err, "month", month, "year", year)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="ledger-%04d-%02d.csv"`, year, month))

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		slog.ErrorContext(r.Context(), "CSV write failed", "error", err)
	}
}
