// Package ledger orchestrates ingestion, aggregation, retention pruning
// and the undo/list/export queries over the SQLite store. It is the
// command surface the Telegram layer and the webhook handlers call into.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finbot/internal/core"
	"finbot/internal/mercadopago"
	"finbot/internal/parser"
	"finbot/internal/storage"
)

// PaymentFetcher looks up full payment detail at the processor.
type PaymentFetcher interface {
	FetchPayment(ctx context.Context, id string) (mercadopago.Payment, error)
}

// NoticePublisher hands a freshly inserted payment to the notification
// pipeline. May be nil when no broker is configured.
type NoticePublisher interface {
	PublishPaymentNotice(ctx context.Context, id int64) error
}

type Service struct {
	store      *storage.SQLiteRepository
	fetcher    PaymentFetcher
	notices    NoticePublisher
	keepMonths int
	dedupText  bool
	now        func() time.Time
}

func NewService(store *storage.SQLiteRepository, fetcher PaymentFetcher, notices NoticePublisher, keepMonths int, dedupText bool) *Service {
	return &Service{
		store:      store,
		fetcher:    fetcher,
		notices:    notices,
		keepMonths: keepMonths,
		dedupText:  dedupText,
		now:        time.Now,
	}
}

// IngestResult reports one ingestion attempt. Inserted=false with nil
// error is the idempotent duplicate case, distinguishable from a hard
// failure.
type IngestResult struct {
	Inserted bool
	Payment  core.Payment
}

// IngestProcessorPayment resolves a webhook-delivered payment id into a
// ledger row: fetch detail, normalize, insert deduplicated on the natural
// key, then notify and prune. A failed lookup aborts before any write.
// Notification and pruning failures are logged and reported to no one —
// they never fail the ingestion.
func (s *Service) IngestProcessorPayment(ctx context.Context, externalID string) (IngestResult, error) {
	detail, err := s.fetcher.FetchPayment(ctx, externalID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: %v", core.ErrLookupFailed, err)
	}

	date, err := core.ParseDate(detail.EconomicDate())
	if err != nil {
		// Processor omitted or mangled the creation date; the economic
		// date falls back to today rather than rejecting the payment.
		date = core.DateOf(s.now())
	}

	p := core.Payment{
		ExternalID: externalID,
		Date:       date,
		Amount:     core.Money{Cents: core.CentsFromFloat(detail.Amount())},
		Status:     detail.Status,
		PayerEmail: detail.Payer.Email,
		Raw:        core.CapRaw(detail.Raw),
		Source:     core.SourceProcessorWebhook,
	}

	id, inserted, err := s.store.InsertPayment(ctx, p, false)
	if err != nil {
		return IngestResult{}, fmt.Errorf("insert processor payment: %w", err)
	}
	if !inserted {
		slog.InfoContext(ctx, "Payment already exists", "external_id", externalID)
		return IngestResult{Inserted: false, Payment: p}, nil
	}
	p.ID = id

	s.notifyInserted(ctx, id)
	s.pruneAfterIngest(ctx)

	return IngestResult{Inserted: true, Payment: p}, nil
}

// IngestDepositText parses forwarded notification text and appends every
// deposit it yields. Zero deposits is a valid, silent outcome. Source
// records whether the text arrived as a direct message or a channel post.
func (s *Service) IngestDepositText(ctx context.Context, text string, source core.Source) ([]IngestResult, error) {
	deposits := parser.Parse(text, s.now())
	if len(deposits) == 0 {
		return nil, nil
	}

	results := make([]IngestResult, 0, len(deposits))
	for _, d := range deposits {
		p := core.Payment{
			Date:         d.Date,
			Amount:       d.Amount,
			UserCode:     d.UserCode,
			ReferrerCode: d.ReferrerCode,
			Raw:          d.Raw,
			Source:       source,
		}
		id, inserted, err := s.store.InsertPayment(ctx, p, s.dedupText)
		if err != nil {
			return results, fmt.Errorf("insert deposit: %w", err)
		}
		p.ID = id
		if !inserted {
			slog.InfoContext(ctx, "Duplicate deposit ignored",
				"date", p.Date.ISO(),
				"amount_cents", p.Amount.Cents,
				"user_code", p.UserCode)
		}
		results = append(results, IngestResult{Inserted: inserted, Payment: p})
	}
	return results, nil
}

// AddExpense records an expense dated today.
func (s *Service) AddExpense(ctx context.Context, amountCents int64, description string) (core.Expense, error) {
	e := core.Expense{
		Date:        core.DateOf(s.now()),
		Amount:      core.Money{Cents: amountCents},
		Description: description,
	}
	id, err := s.store.InsertExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}
	e.ID = id
	return e, nil
}

// Profit summarizes one calendar month: approved/recorded sales,
// expenses, and their difference.
func (s *Service) Profit(ctx context.Context, month, year int) (core.MonthSummary, error) {
	if err := core.ValidateMonthYear(month, year); err != nil {
		return core.MonthSummary{}, err
	}

	start, end := core.MonthInterval(year, month)
	sales, err := s.store.SumPayments(ctx, start, end)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("sum payments: %w", err)
	}
	expenses, err := s.store.SumExpenses(ctx, start, end)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("sum expenses: %w", err)
	}

	return core.MonthSummary{
		Year:     year,
		Month:    month,
		Sales:    core.Money{Cents: sales},
		Expenses: core.Money{Cents: expenses},
	}, nil
}

// LastMonths returns summaries for the n most recent calendar months,
// newest first, stepping backwards over year boundaries.
func (s *Service) LastMonths(ctx context.Context, n int) ([]core.MonthSummary, error) {
	if n < 1 {
		return nil, core.ErrInvalidArgument
	}

	now := s.now().UTC()
	year, month := now.Year(), int(now.Month())

	summaries := make([]core.MonthSummary, 0, n)
	for i := 0; i < n; i++ {
		sum, err := s.Profit(ctx, month, year)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
		year, month = core.PrevMonth(year, month)
	}
	return summaries, nil
}

// Page is one page of the merged ledger listing.
type Page struct {
	Entries    []storage.Entry
	Page       int
	TotalPages int
	Total      int
}

// List returns ledger entries in [start, end) sorted by insertion time
// descending, paginated. A requested page outside [1, totalPages] is
// clamped, not rejected.
func (s *Service) List(ctx context.Context, start, end core.Date, page, pageSize int) (Page, error) {
	if pageSize < 1 {
		return Page{}, core.ErrInvalidArgument
	}

	total, err := s.store.CountRange(ctx, start, end)
	if err != nil {
		return Page{}, fmt.Errorf("count entries: %w", err)
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	entries, err := s.store.ListRange(ctx, start, end, pageSize, (page-1)*pageSize)
	if err != nil {
		return Page{}, fmt.Errorf("list entries: %w", err)
	}

	return Page{Entries: entries, Page: page, TotalPages: totalPages, Total: total}, nil
}

// ExportRows renders every entry in [start, end) as CSV records, header
// first, oldest page ordering preserved from the listing (newest first).
func (s *Service) ExportRows(ctx context.Context, start, end core.Date) ([][]string, error) {
	total, err := s.store.CountRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}

	rows := [][]string{{"kind", "date", "amount", "description", "inserted_at"}}
	if total == 0 {
		return rows, nil
	}

	entries, err := s.store.ListRange(ctx, start, end, total, 0)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	for _, e := range entries {
		kind := "payment"
		if e.Table == storage.TableExpenses {
			kind = "expense"
		}
		rows = append(rows, []string{
			kind,
			e.Date.ISO(),
			fmt.Sprintf("%d.%02d", e.Amount.Cents/100, e.Amount.Cents%100),
			e.Label,
			e.CreatedAt.Format(time.RFC3339),
		})
	}
	return rows, nil
}

// Undone describes the entry removed by UndoLast.
type Undone struct {
	Table string
	ID    int64
}

// UndoLast deletes the single most recently inserted record across both
// ledgers. Returns ErrNothingToUndo on an empty ledger.
func (s *Service) UndoLast(ctx context.Context) (Undone, error) {
	table, id, ok, err := s.store.MostRecent(ctx)
	if err != nil {
		return Undone{}, fmt.Errorf("find last entry: %w", err)
	}
	if !ok {
		return Undone{}, core.ErrNothingToUndo
	}
	if err := s.store.DeleteRow(ctx, table, id); err != nil {
		return Undone{}, fmt.Errorf("undo delete: %w", err)
	}
	slog.InfoContext(ctx, "Undid last ledger entry", "table", table, "id", id)
	return Undone{Table: table, ID: id}, nil
}

// Prune drops ledger rows older than the retention cutoff. Idempotent.
func (s *Service) Prune(ctx context.Context) (int64, error) {
	cutoff := core.RetentionCutoff(s.now(), s.keepMonths)
	removed, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune ledger: %w", err)
	}
	if removed > 0 {
		slog.InfoContext(ctx, "Pruned old ledger rows",
			"removed", removed, "cutoff", cutoff.ISO())
	}
	return removed, nil
}

// notifyInserted publishes the admin notice for a fresh payment row.
func (s *Service) notifyInserted(ctx context.Context, id int64) {
	if s.notices == nil {
		return
	}
	if err := s.notices.PublishPaymentNotice(ctx, id); err != nil {
		// The worker's unnotified sweep will pick it up later.
		slog.ErrorContext(ctx, "Failed to publish payment notice", "id", id, "error", err)
	}
}

// pruneAfterIngest runs retention opportunistically after a successful
// webhook ingestion. There is no scheduled trigger: pruning lag equals
// the gap between ingestion events.
func (s *Service) pruneAfterIngest(ctx context.Context) {
	if _, err := s.Prune(ctx); err != nil {
		slog.ErrorContext(ctx, "Retention pruning failed", "error", err)
	}
}
