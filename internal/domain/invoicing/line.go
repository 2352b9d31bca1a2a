package invoicing

import (
	"strings"

	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ArticleKind distinguishes physical goods from services
type ArticleKind string

const (
	ArticleKindGood    ArticleKind = "GOOD"
	ArticleKindService ArticleKind = "SERVICE"
)

// IsValid checks if the kind is a known ArticleKind
func (k ArticleKind) IsValid() bool {
	return k == ArticleKindGood || k == ArticleKindService
}

// String returns the string representation of ArticleKind
func (k ArticleKind) String() string {
	return string(k)
}

// ParseArticleKind accepts GOOD/SERVICE case-insensitively, plus the
// PRODUIT label used by older catalog exports.
func ParseArticleKind(s string) (ArticleKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GOOD", "PRODUIT":
		return ArticleKindGood, nil
	case "SERVICE":
		return ArticleKindService, nil
	}
	return "", invalidLine("unknown article kind %q", s)
}

// LineItem is a priced line on an invoice, quote or credit note
type LineItem struct {
	ID          uuid.UUID         `json:"id"`
	ArticleID   uuid.UUID         `json:"article_id"`
	Designation string            `json:"designation"`
	Kind        ArticleKind       `json:"kind"`
	Quantity    int64             `json:"quantity"`
	UnitPrice   valueobject.Money `json:"unit_price"`
}

// NewLineItem creates a validated line item
func NewLineItem(articleID uuid.UUID, designation string, kind ArticleKind, quantity int64, unitPrice valueobject.Money) (LineItem, error) {
	line := LineItem{
		ID:          uuid.New(),
		ArticleID:   articleID,
		Designation: designation,
		Kind:        kind,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	}
	if err := line.Validate(); err != nil {
		return LineItem{}, err
	}
	return line, nil
}

// Validate enforces quantity > 0, unit price >= 0 and a known kind
func (l LineItem) Validate() error {
	if !l.Kind.IsValid() {
		return invalidLine("line %q has unknown article kind %q", l.Designation, l.Kind)
	}
	if l.Quantity <= 0 {
		return invalidLine("line %q has quantity %d, must be positive", l.Designation, l.Quantity)
	}
	if l.UnitPrice.Currency() == "" {
		return invalidLine("line %q has no currency", l.Designation)
	}
	if l.UnitPrice.IsNegative() {
		return invalidLine("line %q has negative unit price %s", l.Designation, l.UnitPrice)
	}
	return nil
}

// AmountHT returns quantity * unit price, unrounded
func (l LineItem) AmountHT() valueobject.Money {
	return l.UnitPrice.MultiplyByInt(l.Quantity)
}

// IsService reports whether withholding can apply to the line
func (l LineItem) IsService() bool {
	return l.Kind == ArticleKindService
}

// copyLines returns fresh line ids so a converted document does not share
// identities with its source.
func copyLines(lines []LineItem) []LineItem {
	out := make([]LineItem, len(lines))
	for i, l := range lines {
		l.ID = uuid.New()
		out[i] = l
	}
	return out
}
