// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities are free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. ToDomain / FromDomain convert between the two
// 4. Repositories use persistence models for database operations
//
// Monetary columns are decimal(18,4); the currency is stored once on the
// owning document row and applied to every amount when mapping back.
//
// Structure:
// - base.go: BaseModel and AggregateModel
// - invoice.go: invoices, invoice_lines, settlements
// - credit_note.go: credit_notes, credit_note_lines
// - quote.go: quotes, quote_lines
// - sequence.go: document_sequences
package models
