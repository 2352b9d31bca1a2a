package models

import (
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	AggregateModel
	Number             string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoices_number"`
	ClientID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	QuoteID            *uuid.UUID      `gorm:"type:uuid;index"`
	IssueDate          time.Time       `gorm:"not null;index"`
	DueDate            time.Time       `gorm:"not null"`
	Currency           string          `gorm:"type:varchar(3);not null"`
	WithholdingEnabled bool            `gorm:"not null;default:false"`
	WithholdingRate    decimal.Decimal `gorm:"type:decimal(9,6);not null;default:0"`
	VATRate            decimal.Decimal `gorm:"column:vat_rate;type:decimal(9,6);not null;default:0"`
	TotalsColumns
	AmountPaid   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AmountDue    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status       string          `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Notes        string          `gorm:"type:text"`
	CancelledAt  *time.Time
	CancelReason string             `gorm:"type:varchar(500)"`
	Lines        []InvoiceLineModel `gorm:"foreignKey:InvoiceID;references:ID"`
	Settlements  []SettlementModel  `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	currency := valueobject.Currency(m.Currency)
	inv := &invoicing.Invoice{
		BaseAggregateRoot:  m.ToDomainAggregateRoot(),
		Number:             m.Number,
		ClientID:           m.ClientID,
		QuoteID:            m.QuoteID,
		IssueDate:          m.IssueDate,
		DueDate:            m.DueDate,
		Currency:           currency,
		WithholdingEnabled: m.WithholdingEnabled,
		WithholdingRate:    rate(m.WithholdingRate),
		VATRate:            rate(m.VATRate),
		Lines:              make([]invoicing.InvoiceLine, len(m.Lines)),
		Totals:             m.TotalsColumns.toDomain(currency),
		AmountPaid:         money(m.AmountPaid, currency),
		AmountDue:          money(m.AmountDue, currency),
		Status:             invoicing.PaymentStatus(m.Status),
		Settlements:        make([]invoicing.Settlement, len(m.Settlements)),
		Notes:              m.Notes,
		CancelledAt:        m.CancelledAt,
		CancelReason:       m.CancelReason,
	}
	for i := range m.Lines {
		inv.Lines[i] = m.Lines[i].ToDomain(currency)
	}
	for i := range m.Settlements {
		inv.Settlements[i] = m.Settlements[i].ToDomain(currency)
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.Number = inv.Number
	m.ClientID = inv.ClientID
	m.QuoteID = inv.QuoteID
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Currency = string(inv.Currency)
	m.WithholdingEnabled = inv.WithholdingEnabled
	m.WithholdingRate = inv.WithholdingRate.Fraction()
	m.VATRate = inv.VATRate.Fraction()
	m.TotalsColumns = totalsFromDomain(inv.Totals)
	m.AmountPaid = inv.AmountPaid.Amount()
	m.AmountDue = inv.AmountDue.Amount()
	m.Status = string(inv.Status)
	m.Notes = inv.Notes
	m.CancelledAt = inv.CancelledAt
	m.CancelReason = inv.CancelReason
	m.Lines = make([]InvoiceLineModel, len(inv.Lines))
	for i, l := range inv.Lines {
		m.Lines[i] = InvoiceLineModelFromDomain(inv, i, l)
	}
	m.Settlements = make([]SettlementModel, len(inv.Settlements))
	for i, s := range inv.Settlements {
		m.Settlements[i] = SettlementModelFromDomain(s)
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceLineModel is the persistence model for an invoice line.
// Only the returned/credited columns change after creation.
type InvoiceLineModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	InvoiceID uuid.UUID `gorm:"type:uuid;not null;index"`
	Position  int       `gorm:"not null"`
	PricedLineColumns
	ReturnedQuantity int64           `gorm:"not null;default:0"`
	CreditedHT       decimal.Decimal `gorm:"column:credited_ht;type:decimal(18,4);not null;default:0"`
	CreditedTTC      decimal.Decimal `gorm:"column:credited_ttc;type:decimal(18,4);not null;default:0"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceLineModel) TableName() string {
	return "invoice_lines"
}

// ToDomain converts the line model to a domain InvoiceLine
func (m *InvoiceLineModel) ToDomain(currency valueobject.Currency) invoicing.InvoiceLine {
	return invoicing.InvoiceLine{
		PricedLine:       m.PricedLineColumns.toDomain(m.ID, currency),
		ReturnedQuantity: m.ReturnedQuantity,
		CreditedHT:       money(m.CreditedHT, currency),
		CreditedTTC:      money(m.CreditedTTC, currency),
	}
}

// InvoiceLineModelFromDomain maps the i-th line of an invoice
func InvoiceLineModelFromDomain(inv *invoicing.Invoice, position int, l invoicing.InvoiceLine) InvoiceLineModel {
	return InvoiceLineModel{
		ID:                l.ID,
		InvoiceID:         inv.ID,
		Position:          position,
		PricedLineColumns: pricedLineFromDomain(l.PricedLine),
		ReturnedQuantity:  l.ReturnedQuantity,
		CreditedHT:        l.CreditedHT.Amount(),
		CreditedTTC:       l.CreditedTTC.Amount(),
		CreatedAt:         inv.CreatedAt,
		UpdatedAt:         inv.UpdatedAt,
	}
}

// SettlementModel is the persistence model for a settlement. Rows are
// append-only.
type SettlementModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Number         string          `gorm:"type:varchar(50);not null;index"`
	Kind           string          `gorm:"type:varchar(20);not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Method         string          `gorm:"type:varchar(20);not null"`
	Reference      string          `gorm:"type:varchar(255)"`
	CreditNoteID   *uuid.UUID      `gorm:"type:uuid;index"`
	IdempotencyKey string          `gorm:"type:varchar(100);index"`
	SettledAt      time.Time       `gorm:"not null"`
	CreatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SettlementModel) TableName() string {
	return "settlements"
}

// ToDomain converts the settlement model to a domain Settlement
func (m *SettlementModel) ToDomain(currency valueobject.Currency) invoicing.Settlement {
	return invoicing.Settlement{
		ID:             m.ID,
		Number:         m.Number,
		InvoiceID:      m.InvoiceID,
		Kind:           invoicing.SettlementKind(m.Kind),
		Amount:         money(m.Amount, currency),
		Method:         invoicing.PaymentMethod(m.Method),
		Reference:      m.Reference,
		CreditNoteID:   m.CreditNoteID,
		IdempotencyKey: m.IdempotencyKey,
		SettledAt:      m.SettledAt,
		CreatedAt:      m.CreatedAt,
	}
}

// SettlementModelFromDomain maps a domain Settlement
func SettlementModelFromDomain(s invoicing.Settlement) SettlementModel {
	return SettlementModel{
		ID:             s.ID,
		InvoiceID:      s.InvoiceID,
		Number:         s.Number,
		Kind:           string(s.Kind),
		Amount:         s.Amount.Amount(),
		Method:         string(s.Method),
		Reference:      s.Reference,
		CreditNoteID:   s.CreditNoteID,
		IdempotencyKey: s.IdempotencyKey,
		SettledAt:      s.SettledAt,
		CreatedAt:      s.CreatedAt,
	}
}

func (c TotalsColumns) toDomain(currency valueobject.Currency) invoicing.Totals {
	return invoicing.Totals{
		AmountHT:          money(c.AmountHT, currency),
		AmountVAT:         money(c.AmountVAT, currency),
		AmountWithholding: money(c.AmountWithholding, currency),
		AmountTTC:         money(c.AmountTTC, currency),
	}
}

func totalsFromDomain(t invoicing.Totals) TotalsColumns {
	return TotalsColumns{
		AmountHT:          t.AmountHT.Amount(),
		AmountVAT:         t.AmountVAT.Amount(),
		AmountWithholding: t.AmountWithholding.Amount(),
		AmountTTC:         t.AmountTTC.Amount(),
	}
}

func (c PricedLineColumns) toDomain(id uuid.UUID, currency valueobject.Currency) invoicing.PricedLine {
	return invoicing.PricedLine{
		LineItem: invoicing.LineItem{
			ID:          id,
			ArticleID:   c.ArticleID,
			Designation: c.Designation,
			Kind:        invoicing.ArticleKind(c.Kind),
			Quantity:    c.Quantity,
			UnitPrice:   money(c.UnitPrice, currency),
		},
		AmountHT:          money(c.AmountHT, currency),
		AmountVAT:         money(c.AmountVAT, currency),
		AmountWithholding: money(c.AmountWithholding, currency),
		AmountTTC:         money(c.AmountTTC, currency),
	}
}

func pricedLineFromDomain(l invoicing.PricedLine) PricedLineColumns {
	return PricedLineColumns{
		ArticleID:         l.ArticleID,
		Designation:       l.Designation,
		Kind:              string(l.Kind),
		Quantity:          l.Quantity,
		UnitPrice:         l.UnitPrice.Amount(),
		AmountHT:          l.AmountHT.Amount(),
		AmountVAT:         l.AmountVAT.Amount(),
		AmountWithholding: l.AmountWithholding.Amount(),
		AmountTTC:         l.AmountTTC.Amount(),
	}
}
