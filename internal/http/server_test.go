package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finbot/internal/bot"
	"finbot/internal/core"
	"finbot/internal/ledger"
	"finbot/internal/mercadopago"
	"finbot/internal/storage"
)

type stubFetcher struct {
	payment mercadopago.Payment
	err     error
}

func (f *stubFetcher) FetchPayment(ctx context.Context, id string) (mercadopago.Payment, error) {
	return f.payment, f.err
}

type stubSender struct {
	texts []string
}

func (s *stubSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	s.texts = append(s.texts, text)
	return nil
}

func newTestServer(t *testing.T, fetcher ledger.PaymentFetcher) (*Server, *stubSender, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := ledger.NewService(repo, fetcher, nil, 6, false)
	sender := &stubSender{}
	srv := NewServer(":0", svc, bot.New(svc, sender, 5))
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, sender, repo
}

func do(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	rec := do(srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestIndex(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	rec := do(srv, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "OK") {
		t.Fatalf("index = %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(srv, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path = %d", rec.Code)
	}
}

func TestProcessorWebhookRejectsGet(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	if rec := do(srv, http.MethodGet, "/mp_webhook", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET webhook = %d", rec.Code)
	}
}

func TestProcessorWebhookNoID(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	rec := do(srv, http.MethodPost, "/mp_webhook", `{"action":"payment.created"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["ok"] != false || resp["reason"] != "no id" {
		t.Fatalf("body = %v", resp)
	}
}

func TestProcessorWebhookIngests(t *testing.T) {
	// Date the payment in the current month so the ingestion-triggered
	// retention pass leaves it alone.
	now := time.Now().UTC()
	fetcher := &stubFetcher{payment: mercadopago.Payment{
		ID:                "321",
		TransactionAmount: 99.90,
		Status:            "approved",
		DateCreated:       now.Format("2006-01-02") + "T09:30:00.000Z",
	}}
	srv, _, repo := newTestServer(t, fetcher)

	rec := do(srv, http.MethodPost, "/mp_webhook", `{"data":{"id":321}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["ok"] != true || resp["inserted"] != true {
		t.Fatalf("body = %v", resp)
	}

	// Redelivery answers ok without inserting again.
	rec = do(srv, http.MethodPost, "/mp_webhook", `{"data":{"id":321}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d", rec.Code)
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["inserted"] != false {
		t.Fatalf("redelivery body = %v", resp)
	}

	start, end := core.MonthInterval(now.Year(), int(now.Month()))
	if sum, _ := repo.SumPayments(context.Background(), start, end); sum != 9990 {
		t.Fatalf("sum = %d, want 9990", sum)
	}
}

func TestProcessorWebhookLookupFailure(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubFetcher{err: errors.New("mp down")})
	rec := do(srv, http.MethodPost, "/mp_webhook", `{"id":"55"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["reason"] != "fetch_failed" {
		t.Fatalf("body = %v", resp)
	}
}

func TestTelegramWebhook(t *testing.T) {
	srv, sender, _ := newTestServer(t, nil)

	rec := do(srv, http.MethodPost, "/telegram_webhook", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", rec.Code)
	}

	update := `{"update_id":1,"message":{"message_id":2,"chat":{"id":10,"type":"private"},"text":"/undo"}}`
	rec = do(srv, http.MethodPost, "/telegram_webhook", update)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("update = %d %q", rec.Code, rec.Body.String())
	}
	if len(sender.texts) != 1 || sender.texts[0] != "Nada para desfazer." {
		t.Fatalf("replies = %q", sender.texts)
	}
}

func TestExportCSV(t *testing.T) {
	srv, _, repo := newTestServer(t, nil)
	e := core.Expense{Date: core.NewDate(2024, 5, 2), Amount: core.Money{Cents: 1234}, Description: "teclado"}
	if _, err := repo.InsertExpense(context.Background(), e); err != nil {
		t.Fatalf("seed expense: %v", err)
	}

	rec := do(srv, http.MethodGet, "/export.csv?month=5&year=2024", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "kind,date,amount") {
		t.Fatalf("csv = %q", rec.Body.String())
	}
	if !strings.Contains(lines[1], "expense,2024-05-02,12.34,teclado") {
		t.Fatalf("row = %q", lines[1])
	}
}

func TestExportCSVInvalidMonth(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	if rec := do(srv, http.MethodGet, "/export.csv?month=13&year=2024", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	srv, _, repo := newTestServer(t, nil)
	e := core.Expense{Date: core.NewDate(2024, 5, 2), Amount: core.Money{Cents: 1234}, Description: "teclado"}
	if _, err := repo.InsertExpense(context.Background(), e); err != nil {
		t.Fatalf("seed expense: %v", err)
	}

	rec := do(srv, http.MethodGet, "/dashboard?month=5&year=2024", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"Resumo 05/2024", "Gastos", "R$ 12,34", "teclado"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}
