// Package storage is the SQLite ledger store: append-only payments and
// expenses tables, natural-key deduplication for processor payments, and
// the range queries the aggregation and undo/list layers run on.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finbot/internal/core"

	_ "modernc.org/sqlite"
)

// Entry table names, also used as the discriminator in merged listings.
const (
	TablePayments = "payments"
	TableExpenses = "expenses"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertPayment appends one payment row and returns its id. When the
// payment carries an external id the insert is idempotent: a second
// delivery of the same id returns inserted=false and changes nothing.
// Text-sourced deposits have no natural key; dedupText optionally rejects
// an exact (date, amount, user code) repeat for them.
func (r *SQLiteRepository) InsertPayment(ctx context.Context, p core.Payment, dedupText bool) (id int64, inserted bool, err error) {
	if err := p.Validate(); err != nil {
		return 0, false, fmt.Errorf("validate payment: %w", err)
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var externalID sql.NullString
	if p.ExternalID != "" {
		externalID = sql.NullString{String: p.ExternalID, Valid: true}
	}

	if dedupText && !externalID.Valid {
		var exists bool
		err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(
			   SELECT 1 FROM payments
			   WHERE external_id IS NULL AND date = ? AND amount_cents = ? AND user_code = ?)`,
			p.Date.ISO(), p.Amount.Cents, p.UserCode).Scan(&exists)
		if err != nil {
			return 0, false, fmt.Errorf("check duplicate deposit: %w", err)
		}
		if exists {
			return 0, false, nil
		}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments
		   (external_id, date, amount_cents, status, payer_email, user_code, referrer_code, raw, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_id) DO NOTHING`,
		externalID, p.Date.ISO(), p.Amount.Cents, p.Status, p.PayerEmail,
		p.UserCode, p.ReferrerCode, core.CapRaw(p.Raw), string(p.Source), createdAt.UnixNano())
	if err != nil {
		return 0, false, fmt.Errorf("insert payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Natural-key duplicate: an idempotent no-op, not a failure.
		return 0, false, nil
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Payment saved",
		"id", id,
		"external_id", p.ExternalID,
		"amount_cents", p.Amount.Cents,
		"date", p.Date.ISO(),
		"source", string(p.Source))
	return id, true, nil
}

// InsertExpense appends one expense row and returns its id.
func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, fmt.Errorf("validate expense: %w", err)
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (date, amount_cents, description, created_at) VALUES (?, ?, ?, ?)`,
		e.Date.ISO(), e.Amount.Cents, e.Description, createdAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"amount_cents", e.Amount.Cents,
		"description", e.Description)
	return id, nil
}

// SumPayments totals revenue in the half-open range [start, end).
// Processor-sourced rows count only when approved; text-sourced rows have
// no status and always count. A month with no rows sums to zero.
func (r *SQLiteRepository) SumPayments(ctx context.Context, start, end core.Date) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM payments
		 WHERE date >= ? AND date < ? AND (source != ? OR status = ?)`,
		start.ISO(), end.ISO(), string(core.SourceProcessorWebhook), core.StatusApproved).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum payments: %w", err)
	}
	return sum, nil
}

// SumExpenses totals expenses in [start, end).
func (r *SQLiteRepository) SumExpenses(ctx context.Context, start, end core.Date) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE date >= ? AND date < ?`,
		start.ISO(), end.ISO()).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return sum, nil
}

// DeleteOlderThan removes rows from both tables whose economic date is
// before cutoff. Idempotent; returns the number of rows removed.
func (r *SQLiteRepository) DeleteOlderThan(ctx context.Context, cutoff core.Date) (int64, error) {
	var removed int64
	for _, table := range []string{TablePayments, TableExpenses} {
		res, err := r.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE date < ?`, table), cutoff.ISO())
		if err != nil {
			return removed, fmt.Errorf("prune %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, fmt.Errorf("rows affected: %w", err)
		}
		removed += n
	}
	return removed, nil
}

// Entry is one row of the merged payments+expenses listing.
type Entry struct {
	Table     string // TablePayments or TableExpenses
	ID        int64
	Date      core.Date
	Amount    core.Money
	Label     string // expense description, or payer/user code for payments
	CreatedAt time.Time
}

const mergedSelect = `
	SELECT kind, id, date, amount_cents, label, created_at FROM (
		SELECT 'payments' AS kind, id, date, amount_cents,
		       CASE WHEN payer_email != '' THEN payer_email ELSE user_code END AS label,
		       created_at, 1 AS pri
		FROM payments WHERE date >= ? AND date < ?
		UNION ALL
		SELECT 'expenses', id, date, amount_cents, description, created_at, 0
		FROM expenses WHERE date >= ? AND date < ?
	)
	ORDER BY created_at DESC, pri DESC`

// ListRange returns ledger entries in [start, end) merged across both
// tables, newest insertion first. Ties on created_at order payments ahead
// of expenses, matching MostRecent.
func (r *SQLiteRepository) ListRange(ctx context.Context, start, end core.Date, limit, offset int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, mergedSelect+` LIMIT ? OFFSET ?`,
		start.ISO(), end.ISO(), start.ISO(), end.ISO(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list range: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			dateISO string
			nanos   int64
		)
		if err := rows.Scan(&e.Table, &e.ID, &dateISO, &e.Amount.Cents, &e.Label, &nanos); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		d, err := core.ParseDate(dateISO)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", dateISO, err)
		}
		e.Date = d
		e.CreatedAt = time.Unix(0, nanos).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountRange counts entries in [start, end) across both tables.
func (r *SQLiteRepository) CountRange(ctx context.Context, start, end core.Date) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM payments WHERE date >= ? AND date < ?)
		      + (SELECT COUNT(*) FROM expenses WHERE date >= ? AND date < ?)`,
		start.ISO(), end.ISO(), start.ISO(), end.ISO()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count range: %w", err)
	}
	return count, nil
}

// MostRecent returns the table and id of the latest inserted row across
// both ledgers, ties going to payments. ok is false when both tables are
// empty.
func (r *SQLiteRepository) MostRecent(ctx context.Context) (table string, id int64, ok bool, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT kind, id FROM (
			SELECT 'payments' AS kind, id, created_at, 1 AS pri FROM payments
			UNION ALL
			SELECT 'expenses', id, created_at, 0 FROM expenses
		 ) ORDER BY created_at DESC, pri DESC LIMIT 1`).Scan(&table, &id)
	if err == sql.ErrNoRows {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("most recent row: %w", err)
	}
	return table, id, true, nil
}

// DeleteRow removes a single row by table and id.
func (r *SQLiteRepository) DeleteRow(ctx context.Context, table string, id int64) error {
	if table != TablePayments && table != TableExpenses {
		return fmt.Errorf("unknown table %q", table)
	}
	if _, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

// GetPayment fetches one payment by id, for notification rendering.
func (r *SQLiteRepository) GetPayment(ctx context.Context, id int64) (core.Payment, error) {
	var (
		p          core.Payment
		externalID sql.NullString
		dateISO    string
		source     string
		nanos      int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, external_id, date, amount_cents, status, payer_email, user_code, referrer_code, raw, source, created_at
		 FROM payments WHERE id = ?`, id).
		Scan(&p.ID, &externalID, &dateISO, &p.Amount.Cents, &p.Status,
			&p.PayerEmail, &p.UserCode, &p.ReferrerCode, &p.Raw, &source, &nanos)
	if err != nil {
		return core.Payment{}, fmt.Errorf("get payment %d: %w", id, err)
	}
	if externalID.Valid {
		p.ExternalID = externalID.String
	}
	d, err := core.ParseDate(dateISO)
	if err != nil {
		return core.Payment{}, fmt.Errorf("parse stored date %q: %w", dateISO, err)
	}
	p.Date = d
	p.Source = core.Source(source)
	p.CreatedAt = time.Unix(0, nanos).UTC()
	return p, nil
}

// GetUnnotifiedPayments lists processor payments whose admin notice has
// not gone out yet. Backup sweep for lost broker messages; text-sourced
// rows were entered by the operator and are never announced.
func (r *SQLiteRepository) GetUnnotifiedPayments(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM payments WHERE notified = 0 AND source = ? ORDER BY created_at ASC LIMIT ?`,
		string(core.SourceProcessorWebhook), limit)
	if err != nil {
		return nil, fmt.Errorf("get unnotified payments: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan payment id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkNotified records that the admin notice for a payment was delivered.
func (r *SQLiteRepository) MarkNotified(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE payments SET notified = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark payment notified: %w", err)
	}
	return nil
}
