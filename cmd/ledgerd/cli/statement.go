package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
	"github.com/odyssey-erp/ledger-recon/internal/reconcile/export"
)

// Exit codes of the statement command.
const (
	ExitOK             = 0
	ExitError          = 1
	ExitNotFound       = 2
	ExitPartialFailure = 10
)

// StatementOptions defines available flags for the statement command. Watch
// re-runs the statement on that interval until the context is cancelled.
type StatementOptions struct {
	Kind       string
	EntityID   int64
	Limit      int
	JSONOutput bool
	Watch      time.Duration
	Lang       string
	Stdout     io.Writer
	Stderr     io.Writer
}

// StatementCLI prints counterparty statements from the terminal.
type StatementCLI struct {
	runner reconcile.Runner
	logger *slog.Logger
}

// NewStatementCLI constructs the helper over runner.
func NewStatementCLI(runner reconcile.Runner, logger *slog.Logger) (*StatementCLI, error) {
	if runner == nil {
		return nil, errors.New("statement cli: runner not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatementCLI{runner: runner, logger: logger}, nil
}

// StatementCommand reconciles one entity and prints the outcome. With a watch
// interval it keeps refreshing and prints every applied result.
func (c *StatementCLI) StatementCommand(ctx context.Context, opts StatementOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	ref := reconcile.EntityRef{Kind: reconcile.Kind(strings.ToLower(strings.TrimSpace(opts.Kind))), ID: opts.EntityID}
	if !ref.Kind.Valid() {
		_, _ = fmt.Fprintf(opts.Stderr, "statement: --kind must be customer or vendor, got %q\n", opts.Kind)
		return ExitError
	}
	if ref.ID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "statement: --id is required and must be positive")
		return ExitError
	}
	tag, err := language.Parse(defaultLang(opts.Lang))
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "statement: invalid --lang %q\n", opts.Lang)
		return ExitError
	}
	printer := message.NewPrinter(tag)

	ctrl := reconcile.NewController(c.runner, c.logger, nil)
	outcome := ctrl.Reconcile(ctx, ref)
	code := c.render(opts, printer, outcome.Result)
	if opts.Watch <= 0 || outcome.Result.Terminal() {
		return code
	}

	ticker := time.NewTicker(opts.Watch)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return code
		case <-ticker.C:
			outcome, err := ctrl.Refresh(ctx)
			if err != nil {
				_, _ = fmt.Fprintf(opts.Stderr, "statement: %v\n", err)
				return ExitError
			}
			if ctx.Err() != nil {
				return code
			}
			if outcome.Applied {
				code = c.render(opts, printer, outcome.Result)
			}
		}
	}
}

func (c *StatementCLI) render(opts StatementOptions, printer *message.Printer, result reconcile.Result) int {
	if result.Terminal() {
		if result.HasWarning(reconcile.WarningEntityNotFound) {
			_, _ = fmt.Fprintf(opts.Stderr, "statement: %s %d not found\n", result.Entity.Kind, result.Entity.ID)
			return ExitNotFound
		}
		_, _ = fmt.Fprintf(opts.Stderr, "statement: %s\n", result.Warnings[0].Message)
		return ExitError
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(export.NewStatement(result, opts.Limit)); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "statement: encode json: %v\n", err)
			return ExitError
		}
	} else {
		renderStatementHuman(opts.Stdout, printer, result, opts.Limit)
	}
	if result.State() == reconcile.StatePartialFailure {
		return ExitPartialFailure
	}
	return ExitOK
}

func renderStatementHuman(out io.Writer, printer *message.Printer, result reconcile.Result, limit int) {
	_, _ = fmt.Fprintf(out, "Statement for %s (%s %d): %s\n", result.Entity.DisplayName, result.Entity.Kind, result.Entity.ID, result.State())

	txs := result.Transactions
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "DATE\tSOURCE\tREFERENCE\tSTATUS\tCLASS\tAMOUNT\t")
	for _, tx := range txs {
		date := "-"
		if !tx.Date.IsZero() {
			date = tx.Date.UTC().Format("2006-01-02")
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n", date, tx.SourceType, tx.ReferenceCode, tx.Status, tx.SettlementClass, formatAmount(printer, tx.Amount))
	}
	_ = tw.Flush()
	if len(txs) < len(result.Transactions) {
		_, _ = fmt.Fprintf(out, "(%d of %d transactions shown)\n", len(txs), len(result.Transactions))
	}

	summary := result.Summary
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(tw, "Billed\t%s\t\n", formatAmount(printer, summary.TotalBilled))
	_, _ = fmt.Fprintf(tw, "Settled\t%s\t\n", formatAmount(printer, summary.TotalSettled))
	_, _ = fmt.Fprintf(tw, "Retained\t%s\t\n", formatAmount(printer, summary.TotalRetained))
	_, _ = fmt.Fprintf(tw, "Outstanding\t%s\t\n", formatAmount(printer, summary.Outstanding))
	_ = tw.Flush()

	if len(result.Warnings) > 0 {
		_, _ = fmt.Fprintf(out, "%d warning(s):\n", len(result.Warnings))
		for _, w := range result.Warnings {
			_, _ = fmt.Fprintf(out, " - %s %s %s\n", w.Code, w.Source, w.Message)
		}
	}
}

// formatAmount groups the integer part per locale and keeps all three
// decimals exact.
func formatAmount(printer *message.Printer, amount decimal.Decimal) string {
	raw := reconcile.FormatAmount(amount)
	whole, frac, _ := strings.Cut(raw, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return raw
	}
	return printer.Sprintf("%d", n) + decimalSeparator(printer) + frac
}

func decimalSeparator(printer *message.Printer) string {
	return strings.Trim(printer.Sprintf("%.1f", 1.5), "15")
}

func defaultLang(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return "en"
	}
	return lang
}
