// Package worker delivers admin notifications for freshly ingested
// processor payments.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finbot/internal/amqp"
	"finbot/internal/core"
	"finbot/internal/storage"
)

// MessageSender is the outbound Telegram surface the notifier needs.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Notifier consumes payment notices and sends the admin alert.
type Notifier struct {
	storage     *storage.SQLiteRepository
	sender      MessageSender
	adminChatID int64
	batchSize   int
}

func NewNotifier(storage *storage.SQLiteRepository, sender MessageSender, adminChatID int64, batchSize int) *Notifier {
	return &Notifier{
		storage:     storage,
		sender:      sender,
		adminChatID: adminChatID,
		batchSize:   batchSize,
	}
}

// HandleNotice processes a single payment notice from AMQP. A failed
// send returns the error so the broker redelivers.
func (n *Notifier) HandleNotice(ctx context.Context, msg *amqp.PaymentNoticeMessage) error {
	slog.InfoContext(ctx, "Processing payment notice", "id", msg.ID)

	p, err := n.storage.GetPayment(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get payment from storage: %w", err)
	}

	if err := n.notify(ctx, p); err != nil {
		return err
	}

	if err := n.storage.MarkNotified(ctx, p.ID); err != nil {
		return fmt.Errorf("mark payment notified: %w", err)
	}
	return nil
}

// SweepUnnotified announces payments whose broker notice was lost.
// Backup mechanism; the common path is HandleNotice.
func (n *Notifier) SweepUnnotified(ctx context.Context) error {
	ids, err := n.storage.GetUnnotifiedPayments(ctx, n.batchSize)
	if err != nil {
		return fmt.Errorf("get unnotified payments: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Sweeping unnotified payments", "count", len(ids))
	for _, id := range ids {
		if err := n.HandleNotice(ctx, &amqp.PaymentNoticeMessage{ID: id}); err != nil {
			slog.ErrorContext(ctx, "Failed to notify payment", "id", id, "error", err)
			// Keep going; the next sweep retries this one.
		}
	}
	return nil
}

func (n *Notifier) notify(ctx context.Context, p core.Payment) error {
	text := fmt.Sprintf("Novo pagamento: %s — status: %s — %s",
		core.FormatReais(p.Amount.Cents), p.Status, p.Date.ISO())
	if err := n.sender.SendMessage(ctx, n.adminChatID, text); err != nil {
		return fmt.Errorf("send admin notification: %w", err)
	}
	slog.InfoContext(ctx, "Admin notified",
		"id", p.ID, "amount_cents", p.Amount.Cents, "status", p.Status)
	return nil
}
