package invoicing

import (
	"context"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Credit note transitions reported to metrics
const (
	transitionCreated   = "created"
	transitionUpdated   = "updated"
	transitionValidated = "validated"
	transitionRefused   = "refused"
	transitionDeleted   = "deleted"
)

func toSelection(lines []ReturnLineRequest) []invoicing.ReturnSelection {
	return lo.Map(lines, func(l ReturnLineRequest, _ int) invoicing.ReturnSelection {
		return invoicing.ReturnSelection{LineID: l.LineID, ReturnedQuantity: l.Quantity}
	})
}

func (s *Service) logCreditNote(ctx context.Context, msg string, cn *invoicing.CreditNote, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("invoice", cn.InvoiceNumber),
		zap.String("amount_ttc", cn.AmountTTC.String()),
		zap.String("status", cn.Status.String()),
	}, fields...)
	logger.WithLogger(logger.WithDocument(ctx, cn.Number), s.logger).Info(msg, fields...)
}

// CreateCreditNote opens a pending credit note for returned quantities of an
// invoice. The invoice is not changed until the note is validated.
func (s *Service) CreateCreditNote(ctx context.Context, req CreateCreditNoteRequest) (*CreditNoteResponse, error) {
	var resp CreditNoteResponse
	err := s.observe(ctx, "CreateCreditNote", invoicing.DocumentTypeCreditNote, func(ctx context.Context) error {
		if err := s.validateRequest(req); err != nil {
			return err
		}
		issueDate := req.IssueDate
		if issueDate.IsZero() {
			issueDate = s.now()
		}

		inv, err := s.repos.Invoices.FindByID(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		// dry run so that a rejected selection does not consume a number
		if _, err := inv.CanAcceptCreditNote(toSelection(req.Lines)); err != nil {
			return err
		}

		var cn *invoicing.CreditNote
		err = s.withRetry(ctx, "CreateCreditNote", func() error {
			number, err := s.nextNumber(ctx, invoicing.DocumentTypeCreditNote, issueDate)
			if err != nil {
				return err
			}
			cn, err = invoicing.NewCreditNote(number, inv, issueDate, toSelection(req.Lines), req.Reason)
			if err != nil {
				return err
			}
			return s.repos.CreditNotes.Create(ctx, cn)
		})
		if err != nil {
			return err
		}

		s.metrics.RecordDocumentIssued(ctx, string(invoicing.DocumentTypeCreditNote))
		s.metrics.RecordCreditNote(ctx, transitionCreated, string(cn.Currency), cn.AmountTTC.Amount())
		s.logCreditNote(ctx, "credit note opened", cn, zap.Int("lines", len(cn.Lines)))
		s.publishEvents(ctx, cn)
		resp = ToCreditNoteResponse(cn)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateCreditNote recomputes a pending note for a new selection
func (s *Service) UpdateCreditNote(ctx context.Context, req UpdateCreditNoteRequest) (*CreditNoteResponse, error) {
	var resp CreditNoteResponse
	err := s.observe(ctx, "UpdateCreditNote", invoicing.DocumentTypeCreditNote, func(ctx context.Context) error {
		if err := s.validateRequest(req); err != nil {
			return err
		}

		var cn *invoicing.CreditNote
		err := s.withRetry(ctx, "UpdateCreditNote", func() error {
			loaded, err := s.repos.CreditNotes.FindByID(ctx, req.CreditNoteID)
			if err != nil {
				return err
			}
			inv, err := s.repos.Invoices.FindByID(ctx, loaded.InvoiceID)
			if err != nil {
				return err
			}
			if err := loaded.UpdateSelection(inv, toSelection(req.Lines)); err != nil {
				return err
			}
			if err := s.repos.CreditNotes.SaveWithLock(ctx, loaded); err != nil {
				return err
			}
			cn = loaded
			return nil
		})
		if err != nil {
			return err
		}

		s.metrics.RecordCreditNote(ctx, transitionUpdated, string(cn.Currency), cn.AmountTTC.Amount())
		s.logCreditNote(ctx, "credit note updated", cn)
		s.publishEvents(ctx, cn)
		resp = ToCreditNoteResponse(cn)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidateCreditNote applies a pending note to its invoice. The note and the
// invoice are saved in one transaction, both under their version stamp.
func (s *Service) ValidateCreditNote(ctx context.Context, id uuid.UUID) (*CreditNoteResponse, error) {
	var resp CreditNoteResponse
	err := s.observe(ctx, "ValidateCreditNote", invoicing.DocumentTypeCreditNote, func(ctx context.Context) error {
		var (
			cn  *invoicing.CreditNote
			inv *invoicing.Invoice
		)
		err := s.withRetry(ctx, "ValidateCreditNote", func() error {
			return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
				loaded, err := repos.CreditNotes().FindByID(ctx, id)
				if err != nil {
					return err
				}
				invoice, err := repos.Invoices().FindByID(ctx, loaded.InvoiceID)
				if err != nil {
					return err
				}
				if err := loaded.Validate(invoice); err != nil {
					return err
				}
				if err := repos.CreditNotes().SaveWithLock(ctx, loaded); err != nil {
					return err
				}
				if err := repos.Invoices().SaveWithLock(ctx, invoice); err != nil {
					return err
				}
				cn, inv = loaded, invoice
				return nil
			})
		})
		if err != nil {
			return err
		}

		s.metrics.RecordCreditNote(ctx, transitionValidated, string(cn.Currency), cn.AmountTTC.Amount())
		s.logCreditNote(ctx, "credit note validated", cn,
			zap.String("amount_due", inv.AmountDue.String()),
			zap.String("invoice_status", inv.Status.String()),
		)
		s.publishEvents(ctx, cn, inv)
		resp = ToCreditNoteResponse(cn)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefuseCreditNote closes a pending note without touching the invoice
func (s *Service) RefuseCreditNote(ctx context.Context, req RefuseCreditNoteRequest) (*CreditNoteResponse, error) {
	var resp CreditNoteResponse
	err := s.observe(ctx, "RefuseCreditNote", invoicing.DocumentTypeCreditNote, func(ctx context.Context) error {
		if err := s.validateRequest(req); err != nil {
			return err
		}

		var cn *invoicing.CreditNote
		err := s.withRetry(ctx, "RefuseCreditNote", func() error {
			loaded, err := s.repos.CreditNotes.FindByID(ctx, req.CreditNoteID)
			if err != nil {
				return err
			}
			if err := loaded.Refuse(req.Reason); err != nil {
				return err
			}
			if err := s.repos.CreditNotes.SaveWithLock(ctx, loaded); err != nil {
				return err
			}
			cn = loaded
			return nil
		})
		if err != nil {
			return err
		}

		s.metrics.RecordCreditNote(ctx, transitionRefused, string(cn.Currency), cn.AmountTTC.Amount())
		s.logCreditNote(ctx, "credit note refused", cn, zap.String("reason", req.Reason))
		s.publishEvents(ctx, cn)
		resp = ToCreditNoteResponse(cn)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteCreditNote removes a pending note. Its number is not reused.
func (s *Service) DeleteCreditNote(ctx context.Context, id uuid.UUID) error {
	return s.observe(ctx, "DeleteCreditNote", invoicing.DocumentTypeCreditNote, func(ctx context.Context) error {
		var cn *invoicing.CreditNote
		err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			loaded, err := repos.CreditNotes().FindByID(ctx, id)
			if err != nil {
				return err
			}
			if err := loaded.CanDelete(); err != nil {
				return err
			}
			cn = loaded
			return repos.CreditNotes().Delete(ctx, id)
		})
		if err != nil {
			return err
		}

		s.metrics.RecordCreditNote(ctx, transitionDeleted, string(cn.Currency), cn.AmountTTC.Amount())
		s.logCreditNote(ctx, "credit note deleted", cn)
		return nil
	})
}

// GetCreditNote returns a credit note with its refund lines
func (s *Service) GetCreditNote(ctx context.Context, id uuid.UUID) (*CreditNoteResponse, error) {
	cn, err := s.repos.CreditNotes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToCreditNoteResponse(cn)
	return &resp, nil
}

// ListCreditNotes lists the credit notes of an invoice, oldest first
func (s *Service) ListCreditNotes(ctx context.Context, invoiceID uuid.UUID) ([]CreditNoteResponse, error) {
	filter := invoicing.CreditNoteFilter{InvoiceID: &invoiceID}
	filter.OrderBy = "created_at"
	filter.OrderDir = "asc"

	notes, err := s.repos.CreditNotes.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	return lo.Map(notes, func(cn invoicing.CreditNote, _ int) CreditNoteResponse {
		return ToCreditNoteResponse(&cn)
	}), nil
}
