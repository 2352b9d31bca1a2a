// Command invoicectl runs the invoicing use cases from the command line.
// Every command prints its result as JSON on stdout; logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/erp/invoicing/internal/domain/shared"
)

type command struct {
	usage       string
	description string
	// needsKeys opens the idempotency store
	needsKeys bool
	run       func(ctx context.Context, a *app, args []string) (any, error)
}

var commands = map[string]command{
	"next-number":          {usage: "-type INVOICE [-year 2024]", description: "Reserve and print the next number of a series", run: runNextNumber},
	"create-invoice":       {usage: "-file invoice.json", description: "Issue an invoice from a JSON request (- reads stdin)", run: runCreateInvoice},
	"show":                 {usage: "-id <uuid> | -number FAC-2024-001", description: "Print an invoice", run: runShow},
	"list":                 {usage: "[-status PARTIAL] [-year 2024] [-client <uuid>] [-page 1]", description: "List invoices", run: runList},
	"pay":                  {usage: "-invoice <uuid> -amount 20000 [-method CASH] [-ref R] [-key K]", description: "Apply a payment", needsKeys: true, run: runPay},
	"cancel":               {usage: "-invoice <uuid> -reason R", description: "Cancel an invoice", run: runCancel},
	"credit-note":          {usage: "-invoice <uuid> -line <line-uuid>=<qty>... [-reason R]", description: "Open a pending credit note", run: runCreateCreditNote},
	"update-credit-note":   {usage: "-id <uuid> -line <line-uuid>=<qty>...", description: "Replace the selection of a pending credit note", run: runUpdateCreditNote},
	"validate-credit-note": {usage: "-id <uuid>", description: "Apply a pending credit note to its invoice", run: runValidateCreditNote},
	"refuse-credit-note":   {usage: "-id <uuid> [-reason R]", description: "Refuse a pending credit note", run: runRefuseCreditNote},
	"delete-credit-note":   {usage: "-id <uuid>", description: "Delete a pending credit note", run: runDeleteCreditNote},
	"credit-notes":         {usage: "-invoice <uuid>", description: "List the credit notes of an invoice", run: runListCreditNotes},
	"create-quote":         {usage: "-file quote.json", description: "Issue a quote from a JSON request (- reads stdin)", run: runCreateQuote},
	"convert-quote":        {usage: "-id <uuid>", description: "Turn a pending quote into an invoice", run: runConvertQuote},
	"cancel-quote":         {usage: "-id <uuid>", description: "Cancel a pending quote", run: runCancelQuote},
}

func main() {
	var journalPath string
	flag.StringVar(&journalPath, "journal", "", "Append published events to this file as JSON lines")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cmd, args[1:], appOptions{journalPath: journalPath, idempotencyKey: cmd.needsKeys}, os.Stdout, os.Stderr))
}

func run(ctx context.Context, cmd command, args []string, opts appOptions, stdout, stderr io.Writer) int {
	a, err := newApp(ctx, opts)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintln(stderr, "shutdown:", err)
		}
	}()

	result, err := cmd.run(ctx, a, args)
	if err != nil {
		return reportError(stderr, err)
	}
	if result == nil {
		return 0
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

// reportError prints domain errors as JSON so scripts can match on the code
func reportError(w io.Writer, err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 2
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"error": de})
		return 1
	}
	fmt.Fprintln(w, "error:", err)
	return 1
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: invoicectl [-journal file] <command> [flags]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(os.Stderr, "  %-22s %s\n  %-22s   %s\n", name, c.description, "", c.usage)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Configuration is read from .env, config.toml and INVOICING_* variables.")
}
