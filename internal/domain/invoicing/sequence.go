package invoicing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// DocumentType selects the numbering series
type DocumentType string

const (
	DocumentTypeInvoice    DocumentType = "INVOICE"
	DocumentTypeQuote      DocumentType = "QUOTE"
	DocumentTypeCreditNote DocumentType = "CREDIT_NOTE"
	DocumentTypeSettlement DocumentType = "SETTLEMENT"
)

// IsValid checks if the type is a known DocumentType
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeInvoice, DocumentTypeQuote, DocumentTypeCreditNote, DocumentTypeSettlement:
		return true
	}
	return false
}

// DefaultPrefixes are the series prefixes used when none are configured
var DefaultPrefixes = map[DocumentType]string{
	DocumentTypeInvoice:    "FAC",
	DocumentTypeQuote:      "DEV",
	DocumentTypeCreditNote: "AVO",
	DocumentTypeSettlement: "REG",
}

// DefaultPadding is the zero-padded width of the sequence part
const DefaultPadding = 3

// SequenceStore hands out counters per (document type, year).
// Increment must be atomic: two concurrent callers never get the same value.
// A value that is handed out but never committed is simply skipped.
type SequenceStore interface {
	Increment(ctx context.Context, docType DocumentType, year int) (int64, error)
}

// NumberFormat renders {PREFIX}-{year}-{seq}
type NumberFormat struct {
	Prefixes map[DocumentType]string
	Padding  int
}

// DefaultNumberFormat returns the stock prefixes with 3-digit padding
func DefaultNumberFormat() NumberFormat {
	return NumberFormat{Prefixes: DefaultPrefixes, Padding: DefaultPadding}
}

// Prefix returns the prefix of the document type
func (f NumberFormat) Prefix(docType DocumentType) (string, error) {
	if p, ok := f.Prefixes[docType]; ok && p != "" {
		return p, nil
	}
	if p, ok := DefaultPrefixes[docType]; ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown document type %q", docType)
}

// Format renders a number; sequences wider than the padding are not truncated
func (f NumberFormat) Format(docType DocumentType, year int, seq int64) (string, error) {
	prefix, err := f.Prefix(docType)
	if err != nil {
		return "", err
	}
	padding := f.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	return fmt.Sprintf("%s-%d-%0*d", prefix, year, padding, seq), nil
}

// Parse splits a formatted number back into its parts
func (f NumberFormat) Parse(number string) (DocumentType, int, int64, error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("malformed document number %q", number)
	}
	var docType DocumentType
	for _, t := range []DocumentType{DocumentTypeInvoice, DocumentTypeQuote, DocumentTypeCreditNote, DocumentTypeSettlement} {
		if p, _ := f.Prefix(t); p == parts[0] {
			docType = t
			break
		}
	}
	if docType == "" {
		return "", 0, 0, fmt.Errorf("unknown prefix in document number %q", number)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed year in document number %q: %w", number, err)
	}
	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed sequence in document number %q: %w", number, err)
	}
	return docType, year, seq, nil
}

// Sequence generates year-scoped document numbers
type Sequence struct {
	store  SequenceStore
	format NumberFormat
}

// NewSequence creates a sequence backed by the given store
func NewSequence(store SequenceStore, format NumberFormat) *Sequence {
	return &Sequence{store: store, format: format}
}

// Next reserves the next number of the series for the given year
func (s *Sequence) Next(ctx context.Context, docType DocumentType, year int) (string, error) {
	if !docType.IsValid() {
		return "", fmt.Errorf("unknown document type %q", docType)
	}
	if year <= 0 {
		return "", fmt.Errorf("invalid year %d", year)
	}
	seq, err := s.store.Increment(ctx, docType, year)
	if err != nil {
		return "", fmt.Errorf("failed to reserve %s number for %d: %w", docType, year, err)
	}
	return s.format.Format(docType, year, seq)
}

// Format exposes the number format in use
func (s *Sequence) Format() NumberFormat {
	return s.format
}
