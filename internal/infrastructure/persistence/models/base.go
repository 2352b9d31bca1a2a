package models

import (
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel extends BaseModel with the optimistic lock version
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// ToDomainAggregateRoot rebuilds a clean (not dirty) aggregate base
func (m *AggregateModel) ToDomainAggregateRoot() shared.BaseAggregateRoot {
	return shared.RestoreBaseAggregateRoot(m.BaseModel.ToDomain(), m.Version)
}

// PricedLineColumns are the amounts shared by invoice and quote lines
type PricedLineColumns struct {
	ArticleID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	Designation       string          `gorm:"type:varchar(255);not null"`
	Kind              string          `gorm:"type:varchar(20);not null"`
	Quantity          int64           `gorm:"not null"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AmountHT          decimal.Decimal `gorm:"column:amount_ht;type:decimal(18,4);not null"`
	AmountVAT         decimal.Decimal `gorm:"column:amount_vat;type:decimal(18,4);not null;default:0"`
	AmountWithholding decimal.Decimal `gorm:"column:amount_withholding;type:decimal(18,4);not null;default:0"`
	AmountTTC         decimal.Decimal `gorm:"column:amount_ttc;type:decimal(18,4);not null"`
}

// TotalsColumns are the document-level totals
type TotalsColumns struct {
	AmountHT          decimal.Decimal `gorm:"column:amount_ht;type:decimal(18,4);not null;default:0"`
	AmountVAT         decimal.Decimal `gorm:"column:amount_vat;type:decimal(18,4);not null;default:0"`
	AmountWithholding decimal.Decimal `gorm:"column:amount_withholding;type:decimal(18,4);not null;default:0"`
	AmountTTC         decimal.Decimal `gorm:"column:amount_ttc;type:decimal(18,4);not null;default:0"`
}

// money rebuilds a Money from a stored amount; the currency comes from the
// owning row and is never empty for persisted documents.
func money(amount decimal.Decimal, currency valueobject.Currency) valueobject.Money {
	m, err := valueobject.NewMoney(amount, currency)
	if err != nil {
		return valueobject.Zero(valueobject.DefaultCurrency)
	}
	return m
}

// rate rebuilds a Rate from its stored fraction
func rate(fraction decimal.Decimal) valueobject.Rate {
	r, err := valueobject.NewRate(fraction)
	if err != nil {
		return valueobject.ZeroRate()
	}
	return r
}
