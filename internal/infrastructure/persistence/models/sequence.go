package models

import "time"

// DocumentSequenceModel holds the last number handed out per series and year
type DocumentSequenceModel struct {
	DocType   string    `gorm:"type:varchar(20);primaryKey"`
	Year      int       `gorm:"primaryKey"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}

// All lists every model, in dependency order, for AutoMigrate in tests and
// local sqlite databases.
func All() []any {
	return []any{
		&InvoiceModel{},
		&InvoiceLineModel{},
		&SettlementModel{},
		&CreditNoteModel{},
		&CreditNoteLineModel{},
		&QuoteModel{},
		&QuoteLineModel{},
		&DocumentSequenceModel{},
	}
}
