package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// uuidFlag is a flag.Value holding a uuid
type uuidFlag struct {
	value uuid.UUID
	set   bool
}

func (f *uuidFlag) String() string {
	if !f.set {
		return ""
	}
	return f.value.String()
}

func (f *uuidFlag) Set(s string) error {
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	f.value, f.set = id, true
	return nil
}

// linesFlag collects repeated -line <line-uuid>=<qty> selections
type linesFlag []appinvoicing.ReturnLineRequest

func (f *linesFlag) String() string {
	parts := make([]string, len(*f))
	for i, l := range *f {
		parts[i] = fmt.Sprintf("%s=%d", l.LineID, l.Quantity)
	}
	return strings.Join(parts, ",")
}

func (f *linesFlag) Set(s string) error {
	id, qty, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected <line-uuid>=<qty>, got %q", s)
	}
	lineID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	n, err := strconv.ParseInt(qty, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid quantity %q", qty)
	}
	*f = append(*f, appinvoicing.ReturnLineRequest{LineID: lineID, Quantity: n})
	return nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func requireID(name string, f *uuidFlag) error {
	if !f.set {
		return fmt.Errorf("-%s is required", name)
	}
	return nil
}

// decodeFile reads a JSON request from path, or stdin for "-"
func decodeFile(path string, v any) error {
	if path == "" {
		return errors.New("-file is required")
	}
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func runNextNumber(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlagSet("next-number")
	docType := fs.String("type", string(invoicing.DocumentTypeInvoice), "INVOICE, QUOTE, CREDIT_NOTE or SETTLEMENT")
	year := fs.Int("year", 0, "Fiscal year (default: current year)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	number, err := a.service.NextNumber(ctx, invoicing.DocumentType(strings.ToUpper(*docType)), *year)
	if err != nil {
		return nil, err
	}
	return map[string]string{"number": number}, nil
}

func runCreateInvoice(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlagSet("create-invoice")
	file := fs.String("file", "", "JSON request file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	var req appinvoicing.CreateInvoiceRequest
	if err := decodeFile(*file, &req); err != nil {
		return nil, err
	}
	return a.service.CreateInvoice(ctx, req)
}

func runShow(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlagSet("show")
	var id uuidFlag
	fs.Var(&id, "id", "Invoice id")
	number := fs.String("number", "", "Invoice number")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *number != "" {
		return a.service.GetInvoiceByNumber(ctx, *number)
	}
	if err := requireID("id", &id); err != nil {
		return nil, err
	}
	return a.service.GetInvoice(ctx, id.value)
}

func runList(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlagSet("list")
	var client uuidFlag
	fs.Var(&client, "client", "Client id")
	status := fs.String("status", "", "PENDING, PARTIAL, PAID or CANCELLED")
	year := fs.Int("year", 0, "Issue year")
	page := fs.Int("page", 1, "Page number")
	pageSize := fs.Int("page-size", 20, "Page size")
	orderBy := fs.String("order-by", "issue_date", "Sort field")
	orderDir := fs.String("order-dir", "desc", "asc or desc")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	filter := appinvoicing.InvoiceListFilter{
		Status:   strings.ToUpper(*status),
		Page:     *page,
		PageSize: *pageSize,
		OrderBy:  *orderBy,
		OrderDir: *orderDir,
	}
	if client.set {
		filter.ClientID = &client.value
	}
	if *year != 0 {
		filter.Year = year
	}
	return a.service.ListInvoices(ctx, filter)
}

func runPay(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlagSet("pay")
	var invoiceID uuidFlag
	fs.Var(&invoiceID, "invoice", "Invoice id")
	amount := fs.String("amount", "", "Amount in the invoice currency")
	method := fs.String("method", string(invoicing.PaymentMethodCash), "CASH, BANK_TRANSFER, CHECK or MOBILE_MONEY")
	ref := fs.String("ref", "", "External reference")
	key := fs.String("key", "", "Idempotency key; repeating it returns the first payment")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireID("invoice", &invoiceID); err != nil {
		return nil, err
	}
	value, err := decimal.NewFromString(*amount)
	if err != nil {
		return nil, fmt.Errorf("invalid -amount %q", *amount)
	}
	return a.service.ApplyPayment(ctx, appinvoicing.ApplyPaymentRequest{
		InvoiceID:      invoiceID.value,
		Amount:         value,
		Method:         strings.ToUpper(*method),
		Reference:      *ref,
		IdempotencyKey: *key,
	})
}

func runCancel(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlagSet("cancel")
	var invoiceID uuidFlag
	fs.Var(&invoiceID, "invoice", "Invoice id")
	reason := fs.String("reason", "", "Why the invoice is cancelled")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireID("invoice", &invoiceID); err != nil {
		return nil, err
	}
	return a.service.CancelInvoice(ctx, appinvoicing.CancelInvoiceRequest{InvoiceID: invoiceID.value, Reason: *reason})
}

func runCreateCreditNote(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlagSet("credit-note")
	var (
		invoiceID uuidFlag
		lines     linesFlag
	)
	fs.Var(&invoiceID, "invoice", "Invoice id")
	fs.Var(&lines, "line", "Returned quantity as <line-uuid>=<qty>, repeatable")
	reason := fs.String("reason", "", "Reason for the return")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireID("invoice", &invoiceID); err != nil {
		return nil, err
	}
	return a.service.CreateCreditNote(ctx, appinvoicing.CreateCreditNoteRequest{
		InvoiceID: invoiceID.value,
		Lines:     lines,
		Reason:    *reason,
	})
}

func runUpdateCreditNote(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlagSet("update-credit-note")
	var (
		id    uuidFlag
		lines linesFlag
	)
	fs.Var(&id, "id", "Credit note id")
	fs.Var(&lines, "line", "Returned quantity as <line-uuid>=<qty>, repeatable")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireID("id", &id); err != nil {
		return nil, err
	}
	return a.service.UpdateCreditNote(ctx, appinvoicing.UpdateCreditNoteRequest{CreditNoteID: id.value, Lines: lines})
}

func parseID(name string, args []string) (uuid.UUID, error) {
	fs := newFlagSet(name)
	var id uuidFlag
	fs.Var(&id, "id", "Document id")
	if err := fs.Parse(args); err != nil {
		return uuid.Nil, err
	}
	if err := requireID("id", &id); err != nil {
		return uuid.Nil, err
	}
	return id.value, nil
}

func runValidateCreditNote(ctx context.Context, a *app, args []string) (any, error) {
	id, err := parseID("validate-credit-note", args)
	if err != nil {
		return nil, err
	}
	cn, err := a.service.ValidateCreditNote(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{"credit_note": cn, "restock": a.restock.Pending()}, nil
}

func runRefuseCreditNote(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlagSet("refuse-credit-note")
	var id uuidFlag
	fs.Var(&id, "id", "Credit note id")
	reason := fs.String("reason", "", "Why the return is refused")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireID("id", &id); err != nil {
		return nil, err
	}
	return a.service.RefuseCreditNote(ctx, appinvoicing.RefuseCreditNoteRequest{CreditNoteID: id.value, Reason: *reason})
}

func runDeleteCreditNote(ctx context.Context, a *app, args []string) (any, error) {
	id, err := parseID("delete-credit-note", args)
	if err != nil {
		return nil, err
	}
	if err := a.service.DeleteCreditNote(ctx, id); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": id}, nil
}

func runListCreditNotes(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlagSet("credit-notes")
	var invoiceID uuidFlag
	fs.Var(&invoiceID, "invoice", "Invoice id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireID("invoice", &invoiceID); err != nil {
		return nil, err
	}
	return a.service.ListCreditNotes(ctx, invoiceID.value)
}

func runCreateQuote(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlagSet("create-quote")
	file := fs.String("file", "", "JSON request file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	var req appinvoicing.CreateQuoteRequest
	if err := decodeFile(*file, &req); err != nil {
		return nil, err
	}
	return a.service.CreateQuote(ctx, req)
}

func runConvertQuote(ctx context.Context, a *app, args []string) (any, error) {
	id, err := parseID("convert-quote", args)
	if err != nil {
		return nil, err
	}
	return a.service.ConvertQuote(ctx, id)
}

func runCancelQuote(ctx context.Context, a *app, args []string) (any, error) {
	id, err := parseID("cancel-quote", args)
	if err != nil {
		return nil, err
	}
	return a.service.CancelQuote(ctx, id)
}
