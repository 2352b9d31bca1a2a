package invoicing

import (
	"context"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateQuote numbers, prices and stores a pending quote
func (s *Service) CreateQuote(ctx context.Context, req CreateQuoteRequest) (*QuoteResponse, error) {
	var resp QuoteResponse
	err := s.observe(ctx, "CreateQuote", invoicing.DocumentTypeQuote, func(ctx context.Context) error {
		if err := s.validateRequest(req); err != nil {
			return err
		}
		lines, err := s.toLineItems(req.Lines)
		if err != nil {
			return err
		}
		issueDate := req.IssueDate
		if issueDate.IsZero() {
			issueDate = s.now()
		}

		var q *invoicing.Quote
		err = s.withRetry(ctx, "CreateQuote", func() error {
			number, err := s.nextNumber(ctx, invoicing.DocumentTypeQuote, issueDate)
			if err != nil {
				return err
			}
			q, err = invoicing.NewQuote(invoicing.NewQuoteParams{
				Number:             number,
				ClientID:           req.ClientID,
				IssueDate:          issueDate,
				ValidUntil:         req.ValidUntil,
				WithholdingEnabled: req.WithholdingEnabled,
				Lines:              lines,
				Notes:              req.Notes,
			}, s.aggregator)
			if err != nil {
				return err
			}
			return s.repos.Quotes.Create(ctx, q)
		})
		if err != nil {
			return err
		}

		s.metrics.RecordDocumentIssued(ctx, string(invoicing.DocumentTypeQuote))
		logger.WithLogger(logger.WithDocument(ctx, q.Number), s.logger).Info("quote issued",
			zap.String("quote_id", q.ID.String()),
			zap.String("amount_ttc", q.AmountTTC.String()),
		)
		s.publishEvents(ctx, q)
		resp = ToQuoteResponse(q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetQuote returns a quote with its lines
func (s *Service) GetQuote(ctx context.Context, id uuid.UUID) (*QuoteResponse, error) {
	q, err := s.repos.Quotes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToQuoteResponse(q)
	return &resp, nil
}

// ConvertQuote issues the invoice of a pending quote. The invoice insert and
// the quote update share a transaction, so a quote never points at a missing
// invoice and is never converted twice.
func (s *Service) ConvertQuote(ctx context.Context, id uuid.UUID) (*ConvertQuoteResponse, error) {
	var resp ConvertQuoteResponse
	err := s.observe(ctx, "ConvertQuote", invoicing.DocumentTypeInvoice, func(ctx context.Context) error {
		issueDate := s.now()

		var (
			q   *invoicing.Quote
			inv *invoicing.Invoice
		)
		err := s.withRetry(ctx, "ConvertQuote", func() error {
			// numbers are reserved outside the transaction
			number, err := s.nextNumber(ctx, invoicing.DocumentTypeInvoice, issueDate)
			if err != nil {
				return err
			}
			return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
				loaded, err := repos.Quotes().FindByID(ctx, id)
				if err != nil {
					return err
				}
				invoice, err := loaded.ConvertToInvoice(number, issueDate, s.aggregator)
				if err != nil {
					return err
				}
				if err := repos.Invoices().Create(ctx, invoice); err != nil {
					return err
				}
				if err := repos.Quotes().SaveWithLock(ctx, loaded); err != nil {
					return err
				}
				q, inv = loaded, invoice
				return nil
			})
		})
		if err != nil {
			return err
		}

		s.metrics.RecordDocumentIssued(ctx, string(invoicing.DocumentTypeInvoice))
		logger.WithLogger(logger.WithDocument(ctx, inv.Number), s.logger).Info("quote converted",
			zap.String("quote", q.Number),
			zap.String("amount_ttc", inv.AmountTTC.String()),
		)
		s.publishEvents(ctx, q, inv)
		resp = ConvertQuoteResponse{Quote: ToQuoteResponse(q), Invoice: ToInvoiceResponse(inv)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelQuote cancels a pending quote
func (s *Service) CancelQuote(ctx context.Context, id uuid.UUID) (*QuoteResponse, error) {
	var resp QuoteResponse
	err := s.observe(ctx, "CancelQuote", invoicing.DocumentTypeQuote, func(ctx context.Context) error {
		var q *invoicing.Quote
		err := s.withRetry(ctx, "CancelQuote", func() error {
			loaded, err := s.repos.Quotes.FindByID(ctx, id)
			if err != nil {
				return err
			}
			if err := loaded.Cancel(); err != nil {
				return err
			}
			if err := s.repos.Quotes.SaveWithLock(ctx, loaded); err != nil {
				return err
			}
			q = loaded
			return nil
		})
		if err != nil {
			return err
		}

		logger.WithLogger(logger.WithDocument(ctx, q.Number), s.logger).Info("quote cancelled")
		resp = ToQuoteResponse(q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
