// Package bot routes Telegram updates to ledger operations and renders
// the pt-BR replies.
package bot

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"finbot/internal/core"
	"finbot/internal/ledger"
	"finbot/internal/telegram"
)

// Sender is the outbound half of the Telegram client the bot needs.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Bot struct {
	svc      *ledger.Service
	sender   Sender
	pageSize int
	now      func() time.Time
}

func New(svc *ledger.Service, sender Sender, pageSize int) *Bot {
	return &Bot{
		svc:      svc,
		sender:   sender,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// HandleUpdate dispatches one Telegram update. Channel posts are ingested
// as deposit text without a reply; private messages either run a command
// or are scanned for forwarded deposit notifications.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	switch {
	case u.ChannelPost != nil:
		b.ingestText(ctx, u.ChannelPost.Chat.ID, u.ChannelPost.Text, core.SourceChannelText, false)
	case u.Message != nil:
		msg := u.Message
		if strings.HasPrefix(msg.Text, "/") {
			b.handleCommand(ctx, msg)
			return
		}
		b.ingestText(ctx, msg.Chat.ID, msg.Text, core.SourceManualText, true)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *telegram.Message) {
	fields := strings.Fields(msg.Text)
	cmd := fields[0]
	// Strip the /cmd@botname suffix used in group chats.
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	args := fields[1:]

	switch cmd {
	case "/start":
		b.reply(ctx, msg.Chat.ID, startText)
	case "/addexpense":
		b.addExpense(ctx, msg.Chat.ID, args)
	case "/profit", "/balance":
		b.profit(ctx, msg.Chat.ID, args)
	case "/lastmonths":
		b.lastMonths(ctx, msg.Chat.ID, args)
	case "/list":
		b.list(ctx, msg.Chat.ID, args)
	case "/export":
		b.export(ctx, msg.Chat.ID, args)
	case "/undo":
		b.undo(ctx, msg.Chat.ID)
	default:
		b.reply(ctx, msg.Chat.ID, "Comando desconhecido. Use /start para ver os comandos.")
	}
}

const startText = "Bot de finanças MP.\nComandos:\n" +
	"/addexpense <valor> <descr> - registra gasto\n" +
	"/profit <mm> <aaaa> - mostra lucro do mês\n" +
	"/balance <mm> <aaaa> - mostra vendas, gastos do mês\n" +
	"/lastmonths <n> - mostra lucros últimos n meses\n" +
	"/list <mm> <aaaa> [página] - lista lançamentos do mês\n" +
	"/export <mm> <aaaa> - exporta o mês em CSV\n" +
	"/undo - desfaz o último lançamento"

func (b *Bot) addExpense(ctx context.Context, chatID int64, args []string) {
	if len(args) < 2 {
		b.reply(ctx, chatID, "Uso: /addexpense 12.50 Descrição do gasto")
		return
	}
	cents, err := core.ParseDecimalAmount(args[0])
	if err != nil {
		b.reply(ctx, chatID, "Valor inválido: "+args[0])
		return
	}
	description := strings.Join(args[1:], " ")

	e, err := b.svc.AddExpense(ctx, cents, description)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to add expense", "error", err)
		b.reply(ctx, chatID, "Erro ao salvar despesa.")
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("Despesa salva: %s — %s",
		core.FormatReais(e.Amount.Cents), e.Description))
}

// monthYearArgs parses optional "<mm> <aaaa>" arguments, defaulting to
// the current month. Month and year come as a pair; a lone month is an
// invalid invocation, not a half-default.
func (b *Bot) monthYearArgs(args []string) (month, year int, err error) {
	if len(args) == 0 {
		now := b.now().UTC()
		return int(now.Month()), now.Year(), nil
	}
	if len(args) == 1 {
		return 0, 0, core.ErrInvalidArgument
	}
	month, err = strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, core.ErrInvalidArgument
	}
	year, err = strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, core.ErrInvalidArgument
	}
	return month, year, nil
}

func (b *Bot) profit(ctx context.Context, chatID int64, args []string) {
	month, year, err := b.monthYearArgs(args)
	if err != nil {
		b.reply(ctx, chatID, "Uso: /profit <mm> <aaaa>")
		return
	}
	sum, err := b.svc.Profit(ctx, month, year)
	if errors.Is(err, core.ErrInvalidArgument) {
		b.reply(ctx, chatID, "Mês ou ano inválido.")
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to compute profit", "error", err)
		b.reply(ctx, chatID, "Erro ao calcular o resumo.")
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf(
		"Resumo %02d/%d\nVendas aprovadas: %s\nGastos: %s\nLucro: %s",
		sum.Month, sum.Year,
		core.FormatReais(sum.Sales.Cents),
		core.FormatReais(sum.Expenses.Cents),
		core.FormatReais(sum.Profit().Cents)))
}

func (b *Bot) lastMonths(ctx context.Context, chatID int64, args []string) {
	n := 6
	if len(args) >= 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			b.reply(ctx, chatID, "Uso: /lastmonths <n>")
			return
		}
		n = v
	}
	summaries, err := b.svc.LastMonths(ctx, n)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to compute last months", "error", err)
		b.reply(ctx, chatID, "Erro ao calcular os últimos meses.")
		return
	}
	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		lines = append(lines, fmt.Sprintf("%02d/%d — V: %s G: %s L: %s",
			s.Month, s.Year,
			core.FormatReais(s.Sales.Cents),
			core.FormatReais(s.Expenses.Cents),
			core.FormatReais(s.Profit().Cents)))
	}
	b.reply(ctx, chatID, strings.Join(lines, "\n"))
}

func (b *Bot) list(ctx context.Context, chatID int64, args []string) {
	month, year, err := b.monthYearArgs(args)
	if err != nil {
		b.reply(ctx, chatID, "Uso: /list <mm> <aaaa> [página]")
		return
	}
	page := 1
	if len(args) >= 3 {
		if page, err = strconv.Atoi(args[2]); err != nil {
			b.reply(ctx, chatID, "Uso: /list <mm> <aaaa> [página]")
			return
		}
	}
	if err := core.ValidateMonthYear(month, year); err != nil {
		b.reply(ctx, chatID, "Mês ou ano inválido.")
		return
	}

	start, end := core.MonthInterval(year, month)
	p, err := b.svc.List(ctx, start, end, page, b.pageSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list entries", "error", err)
		b.reply(ctx, chatID, "Erro ao listar lançamentos.")
		return
	}
	if p.Total == 0 {
		b.reply(ctx, chatID, fmt.Sprintf("Nenhum lançamento em %02d/%d.", month, year))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Lançamentos %02d/%d (página %d de %d):\n", month, year, p.Page, p.TotalPages)
	for _, e := range p.Entries {
		kind := "Pagamento"
		if e.Table == "expenses" {
			kind = "Gasto"
		}
		label := e.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(&sb, "%s %s %s %s\n", e.Date.ISO(), kind, core.FormatReais(e.Amount.Cents), label)
	}
	b.reply(ctx, chatID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) export(ctx context.Context, chatID int64, args []string) {
	month, year, err := b.monthYearArgs(args)
	if err != nil || core.ValidateMonthYear(month, year) != nil {
		b.reply(ctx, chatID, "Uso: /export <mm> <aaaa>")
		return
	}

	start, end := core.MonthInterval(year, month)
	rows, err := b.svc.ExportRows(ctx, start, end)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to export entries", "error", err)
		b.reply(ctx, chatID, "Erro ao exportar lançamentos.")
		return
	}
	if len(rows) == 1 {
		b.reply(ctx, chatID, fmt.Sprintf("Nenhum lançamento em %02d/%d.", month, year))
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		slog.ErrorContext(ctx, "Failed to render CSV", "error", err)
		b.reply(ctx, chatID, "Erro ao exportar lançamentos.")
		return
	}
	b.reply(ctx, chatID, buf.String())
}

func (b *Bot) undo(ctx context.Context, chatID int64) {
	undone, err := b.svc.UndoLast(ctx)
	if errors.Is(err, core.ErrNothingToUndo) {
		b.reply(ctx, chatID, "Nada para desfazer.")
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to undo", "error", err)
		b.reply(ctx, chatID, "Erro ao desfazer.")
		return
	}
	kind := "pagamento"
	if undone.Table == "expenses" {
		kind = "gasto"
	}
	b.reply(ctx, chatID, fmt.Sprintf("Último lançamento removido (%s #%d).", kind, undone.ID))
}

// ingestText runs deposit-text ingestion and, when replying is allowed,
// confirms what was recorded. Text with no deposit markers stays silent.
func (b *Bot) ingestText(ctx context.Context, chatID int64, text string, source core.Source, replyable bool) {
	results, err := b.svc.IngestDepositText(ctx, text, source)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to ingest deposit text", "error", err, "source", string(source))
		if replyable {
			b.reply(ctx, chatID, "Erro ao registrar depósito.")
		}
		return
	}
	if len(results) == 0 || !replyable {
		return
	}

	inserted, skipped := 0, 0
	var total int64
	for _, r := range results {
		if r.Inserted {
			inserted++
			total += r.Payment.Amount.Cents
		} else {
			skipped++
		}
	}
	text = fmt.Sprintf("Depósitos registrados: %d (%s)", inserted, core.FormatReais(total))
	if skipped > 0 {
		text += fmt.Sprintf("\nIgnorados como duplicados: %d", skipped)
	}
	b.reply(ctx, chatID, text)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.sender.SendMessage(ctx, chatID, text); err != nil {
		slog.ErrorContext(ctx, "Failed to send reply", "chat_id", chatID, "error", err)
	}
}
