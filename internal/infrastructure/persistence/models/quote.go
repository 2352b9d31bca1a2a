package models

import (
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// QuoteModel is the persistence model for the Quote aggregate root.
type QuoteModel struct {
	AggregateModel
	Number             string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_quotes_number"`
	ClientID           uuid.UUID  `gorm:"type:uuid;not null;index"`
	IssueDate          time.Time  `gorm:"not null"`
	ValidUntil         *time.Time
	Currency           string `gorm:"type:varchar(3);not null"`
	WithholdingEnabled bool   `gorm:"not null;default:false"`
	TotalsColumns
	Status    string           `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	InvoiceID *uuid.UUID       `gorm:"type:uuid;index"`
	Notes     string           `gorm:"type:text"`
	Lines     []QuoteLineModel `gorm:"foreignKey:QuoteID;references:ID"`
}

// TableName returns the table name for GORM
func (QuoteModel) TableName() string {
	return "quotes"
}

// ToDomain converts the persistence model to a domain Quote
func (m *QuoteModel) ToDomain() *invoicing.Quote {
	currency := valueobject.Currency(m.Currency)
	q := &invoicing.Quote{
		BaseAggregateRoot:  m.ToDomainAggregateRoot(),
		Number:             m.Number,
		ClientID:           m.ClientID,
		IssueDate:          m.IssueDate,
		ValidUntil:         m.ValidUntil,
		Currency:           currency,
		WithholdingEnabled: m.WithholdingEnabled,
		Lines:              make([]invoicing.PricedLine, len(m.Lines)),
		Totals:             m.TotalsColumns.toDomain(currency),
		Status:             invoicing.QuoteStatus(m.Status),
		InvoiceID:          m.InvoiceID,
		Notes:              m.Notes,
	}
	for i := range m.Lines {
		q.Lines[i] = m.Lines[i].PricedLineColumns.toDomain(m.Lines[i].ID, currency)
	}
	return q
}

// FromDomain populates the persistence model from a domain Quote
func (m *QuoteModel) FromDomain(q *invoicing.Quote) {
	m.FromDomainAggregateRoot(q.BaseAggregateRoot)
	m.Number = q.Number
	m.ClientID = q.ClientID
	m.IssueDate = q.IssueDate
	m.ValidUntil = q.ValidUntil
	m.Currency = string(q.Currency)
	m.WithholdingEnabled = q.WithholdingEnabled
	m.TotalsColumns = totalsFromDomain(q.Totals)
	m.Status = string(q.Status)
	m.InvoiceID = q.InvoiceID
	m.Notes = q.Notes
	m.Lines = make([]QuoteLineModel, len(q.Lines))
	for i, l := range q.Lines {
		m.Lines[i] = QuoteLineModel{
			ID:                l.ID,
			QuoteID:           q.ID,
			Position:          i,
			PricedLineColumns: pricedLineFromDomain(l),
		}
	}
}

// QuoteModelFromDomain creates a new persistence model from a domain Quote
func QuoteModelFromDomain(q *invoicing.Quote) *QuoteModel {
	m := &QuoteModel{}
	m.FromDomain(q)
	return m
}

// QuoteLineModel is the persistence model for a quote line
type QuoteLineModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key"`
	QuoteID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Position int       `gorm:"not null"`
	PricedLineColumns
}

// TableName returns the table name for GORM
func (QuoteLineModel) TableName() string {
	return "quote_lines"
}
