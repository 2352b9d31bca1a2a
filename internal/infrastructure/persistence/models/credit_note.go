package models

import (
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditNoteModel is the persistence model for the CreditNote aggregate root.
type CreditNoteModel struct {
	AggregateModel
	Number        string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_credit_notes_number"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceNumber string          `gorm:"type:varchar(50);not null"`
	ClientID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	IssueDate     time.Time       `gorm:"not null"`
	Currency      string          `gorm:"type:varchar(3);not null"`
	Status        string          `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	AmountHT      decimal.Decimal `gorm:"column:amount_ht;type:decimal(18,4);not null;default:0"`
	AmountTTC     decimal.Decimal `gorm:"column:amount_ttc;type:decimal(18,4);not null;default:0"`
	Reason        string          `gorm:"type:varchar(500)"`
	ValidatedAt   *time.Time
	RefusedAt     *time.Time
	RefuseReason  string                `gorm:"type:varchar(500)"`
	Lines         []CreditNoteLineModel `gorm:"foreignKey:CreditNoteID;references:ID"`
}

// TableName returns the table name for GORM
func (CreditNoteModel) TableName() string {
	return "credit_notes"
}

// ToDomain converts the persistence model to a domain CreditNote
func (m *CreditNoteModel) ToDomain() *invoicing.CreditNote {
	currency := valueobject.Currency(m.Currency)
	cn := &invoicing.CreditNote{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Number:            m.Number,
		InvoiceID:         m.InvoiceID,
		InvoiceNumber:     m.InvoiceNumber,
		ClientID:          m.ClientID,
		IssueDate:         m.IssueDate,
		Currency:          currency,
		Status:            invoicing.CreditNoteStatus(m.Status),
		Lines:             make([]invoicing.RefundLine, len(m.Lines)),
		AmountHT:          money(m.AmountHT, currency),
		AmountTTC:         money(m.AmountTTC, currency),
		Reason:            m.Reason,
		ValidatedAt:       m.ValidatedAt,
		RefusedAt:         m.RefusedAt,
		RefuseReason:      m.RefuseReason,
	}
	for i := range m.Lines {
		cn.Lines[i] = m.Lines[i].ToDomain(currency)
	}
	return cn
}

// FromDomain populates the persistence model from a domain CreditNote
func (m *CreditNoteModel) FromDomain(cn *invoicing.CreditNote) {
	m.FromDomainAggregateRoot(cn.BaseAggregateRoot)
	m.Number = cn.Number
	m.InvoiceID = cn.InvoiceID
	m.InvoiceNumber = cn.InvoiceNumber
	m.ClientID = cn.ClientID
	m.IssueDate = cn.IssueDate
	m.Currency = string(cn.Currency)
	m.Status = string(cn.Status)
	m.AmountHT = cn.AmountHT.Amount()
	m.AmountTTC = cn.AmountTTC.Amount()
	m.Reason = cn.Reason
	m.ValidatedAt = cn.ValidatedAt
	m.RefusedAt = cn.RefusedAt
	m.RefuseReason = cn.RefuseReason
	m.Lines = make([]CreditNoteLineModel, len(cn.Lines))
	for i, l := range cn.Lines {
		m.Lines[i] = CreditNoteLineModelFromDomain(cn.ID, i, l)
	}
}

// CreditNoteModelFromDomain creates a new persistence model from a domain CreditNote
func CreditNoteModelFromDomain(cn *invoicing.CreditNote) *CreditNoteModel {
	m := &CreditNoteModel{}
	m.FromDomain(cn)
	return m
}

// CreditNoteLineModel is one refunded invoice line. A note refunds a given
// invoice line at most once, so (credit_note_id, line_id) is the key.
type CreditNoteLineModel struct {
	CreditNoteID     uuid.UUID       `gorm:"type:uuid;primaryKey"`
	LineID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Position         int             `gorm:"not null"`
	ArticleID        uuid.UUID       `gorm:"type:uuid;not null"`
	Designation      string          `gorm:"type:varchar(255);not null"`
	Kind             string          `gorm:"type:varchar(20);not null"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OriginalQuantity int64           `gorm:"not null"`
	ReturnedQuantity int64           `gorm:"not null"`
	RefundHT         decimal.Decimal `gorm:"column:refund_ht;type:decimal(18,4);not null"`
	RefundTTC        decimal.Decimal `gorm:"column:refund_ttc;type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (CreditNoteLineModel) TableName() string {
	return "credit_note_lines"
}

// ToDomain converts the line model to a domain RefundLine
func (m *CreditNoteLineModel) ToDomain(currency valueobject.Currency) invoicing.RefundLine {
	return invoicing.RefundLine{
		LineID:           m.LineID,
		ArticleID:        m.ArticleID,
		Designation:      m.Designation,
		Kind:             invoicing.ArticleKind(m.Kind),
		UnitPrice:        money(m.UnitPrice, currency),
		OriginalQuantity: m.OriginalQuantity,
		ReturnedQuantity: m.ReturnedQuantity,
		RefundHT:         money(m.RefundHT, currency),
		RefundTTC:        money(m.RefundTTC, currency),
	}
}

// CreditNoteLineModelFromDomain maps the i-th refund line of a note
func CreditNoteLineModelFromDomain(creditNoteID uuid.UUID, position int, l invoicing.RefundLine) CreditNoteLineModel {
	return CreditNoteLineModel{
		CreditNoteID:     creditNoteID,
		LineID:           l.LineID,
		Position:         position,
		ArticleID:        l.ArticleID,
		Designation:      l.Designation,
		Kind:             string(l.Kind),
		UnitPrice:        l.UnitPrice.Amount(),
		OriginalQuantity: l.OriginalQuantity,
		ReturnedQuantity: l.ReturnedQuantity,
		RefundHT:         l.RefundHT.Amount(),
		RefundTTC:        l.RefundTTC.Amount(),
	}
}
