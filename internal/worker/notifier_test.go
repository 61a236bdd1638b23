package worker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"finbot/internal/amqp"
	"finbot/internal/core"
	"finbot/internal/storage"
)

type fakeSender struct {
	texts   []string
	chatIDs []int64
	err     error
}

func (s *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	if s.err != nil {
		return s.err
	}
	s.chatIDs = append(s.chatIDs, chatID)
	s.texts = append(s.texts, text)
	return nil
}

func newTestNotifier(t *testing.T, sender MessageSender) (*Notifier, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewNotifier(repo, sender, 555, 20), repo
}

func insertProcessorPayment(t *testing.T, repo *storage.SQLiteRepository, externalID string) int64 {
	t.Helper()
	p := core.Payment{
		ExternalID: externalID,
		Date:       core.NewDate(2024, 5, 18),
		Amount:     core.Money{Cents: 9990},
		Status:     "approved",
		Source:     core.SourceProcessorWebhook,
	}
	id, inserted, err := repo.InsertPayment(context.Background(), p, false)
	if err != nil || !inserted {
		t.Fatalf("seed payment: inserted=%v err=%v", inserted, err)
	}
	return id
}

func TestHandleNotice(t *testing.T) {
	sender := &fakeSender{}
	n, repo := newTestNotifier(t, sender)
	ctx := context.Background()

	id := insertProcessorPayment(t, repo, "P1")
	if err := n.HandleNotice(ctx, &amqp.PaymentNoticeMessage{ID: id}); err != nil {
		t.Fatalf("handle notice: %v", err)
	}

	if len(sender.texts) != 1 || sender.chatIDs[0] != 555 {
		t.Fatalf("sends = %v to %v", sender.texts, sender.chatIDs)
	}
	want := "Novo pagamento: R$ 99,90 — status: approved — 2024-05-18"
	if sender.texts[0] != want {
		t.Errorf("text = %q, want %q", sender.texts[0], want)
	}

	ids, err := repo.GetUnnotifiedPayments(ctx, 10)
	if err != nil {
		t.Fatalf("get unnotified: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("payment still unnotified after handling: %v", ids)
	}
}

func TestHandleNoticeSendFailureKeepsUnnotified(t *testing.T) {
	sender := &fakeSender{err: errors.New("telegram down")}
	n, repo := newTestNotifier(t, sender)
	ctx := context.Background()

	id := insertProcessorPayment(t, repo, "P1")
	if err := n.HandleNotice(ctx, &amqp.PaymentNoticeMessage{ID: id}); err == nil {
		t.Fatal("expected error when send fails")
	}

	ids, _ := repo.GetUnnotifiedPayments(ctx, 10)
	if len(ids) != 1 {
		t.Fatalf("unnotified = %v, want the failed payment", ids)
	}
}

func TestHandleNoticeUnknownPayment(t *testing.T) {
	n, _ := newTestNotifier(t, &fakeSender{})
	if err := n.HandleNotice(context.Background(), &amqp.PaymentNoticeMessage{ID: 404}); err == nil {
		t.Fatal("expected error for missing payment")
	}
}

func TestSweepUnnotifiedSkipsTextDeposits(t *testing.T) {
	sender := &fakeSender{}
	n, repo := newTestNotifier(t, sender)
	ctx := context.Background()

	insertProcessorPayment(t, repo, "P1")
	manual := core.Payment{
		Date:     core.NewDate(2024, 5, 19),
		Amount:   core.Money{Cents: 5000},
		UserCode: "7",
		Source:   core.SourceManualText,
	}
	if _, _, err := repo.InsertPayment(ctx, manual, false); err != nil {
		t.Fatalf("seed manual deposit: %v", err)
	}

	if err := n.SweepUnnotified(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(sender.texts) != 1 {
		t.Fatalf("sends = %v, want only the processor payment", sender.texts)
	}
	if !strings.Contains(sender.texts[0], "R$ 99,90") {
		t.Errorf("text = %q", sender.texts[0])
	}

	// A second sweep has nothing left to announce.
	if err := n.SweepUnnotified(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(sender.texts) != 1 {
		t.Errorf("second sweep re-sent: %v", sender.texts)
	}
}
