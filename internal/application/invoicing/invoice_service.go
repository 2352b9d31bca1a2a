package invoicing

import (
	"context"
	"fmt"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

func (s *Service) toLineItems(reqs []LineRequest) ([]invoicing.LineItem, error) {
	items := make([]invoicing.LineItem, 0, len(reqs))
	for _, r := range reqs {
		kind, err := invoicing.ParseArticleKind(r.Kind)
		if err != nil {
			return nil, err
		}
		price, err := valueobject.NewMoney(r.UnitPrice, s.aggregator.Currency)
		if err != nil {
			return nil, err
		}
		item, err := invoicing.NewLineItem(r.ArticleID, r.Designation, kind, r.Quantity, price)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// CreateInvoice numbers, prices and stores a new invoice
func (s *Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	var resp InvoiceResponse
	err := s.observe(ctx, "CreateInvoice", invoicing.DocumentTypeInvoice, func(ctx context.Context) error {
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
		dueDate := issueDate.AddDate(0, 0, s.paymentTerm)
		if req.DueDate != nil {
			dueDate = *req.DueDate
		}

		var inv *invoicing.Invoice
		err = s.withRetry(ctx, "CreateInvoice", func() error {
			number, err := s.nextNumber(ctx, invoicing.DocumentTypeInvoice, issueDate)
			if err != nil {
				return err
			}
			inv, err = invoicing.NewInvoice(invoicing.NewInvoiceParams{
				Number:             number,
				ClientID:           req.ClientID,
				IssueDate:          issueDate,
				DueDate:            dueDate,
				WithholdingEnabled: req.WithholdingEnabled,
				Lines:              lines,
				Notes:              req.Notes,
			}, s.aggregator)
			if err != nil {
				return err
			}
			return s.repos.Invoices.Create(ctx, inv)
		})
		if err != nil {
			return err
		}

		s.metrics.RecordDocumentIssued(ctx, string(invoicing.DocumentTypeInvoice))
		logger.WithLogger(logger.WithDocument(ctx, inv.Number), s.logger).Info("invoice issued",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("amount_ht", inv.AmountHT.String()),
			zap.String("amount_withholding", inv.AmountWithholding.String()),
			zap.String("amount_ttc", inv.AmountTTC.String()),
		)
		s.publishEvents(ctx, inv)
		resp = ToInvoiceResponse(inv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetInvoice returns an invoice with its lines and settlements
func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.repos.Invoices.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// GetInvoiceByNumber returns an invoice by its document number
func (s *Service) GetInvoiceByNumber(ctx context.Context, number string) (*InvoiceResponse, error) {
	inv, err := s.repos.Invoices.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// ListInvoices lists invoices matching filter
func (s *Service) ListInvoices(ctx context.Context, filter InvoiceListFilter) ([]InvoiceResponse, error) {
	if err := s.validateRequest(filter); err != nil {
		return nil, err
	}

	domainFilter := invoicing.InvoiceFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		},
		ClientID: filter.ClientID,
		Year:     filter.Year,
	}
	if domainFilter.Page <= 0 {
		domainFilter.Page = 1
	}
	if domainFilter.PageSize <= 0 {
		domainFilter.PageSize = 20
	}
	if filter.Status != "" {
		status := invoicing.PaymentStatus(filter.Status)
		domainFilter.Status = &status
	}

	invoices, err := s.repos.Invoices.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	return lo.Map(invoices, func(inv invoicing.Invoice, _ int) InvoiceResponse {
		return ToInvoiceResponse(&inv)
	}), nil
}

func paymentKey(req ApplyPaymentRequest) string {
	return fmt.Sprintf("payment:%s:%s", req.InvoiceID, req.IdempotencyKey)
}

// ApplyPayment settles part of an invoice.
//
// With an idempotency key, the key is claimed before anything is written;
// a second submission returns the stored settlement with Replayed set. The
// claim is released if the payment fails so that it can be resubmitted.
func (s *Service) ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*PaymentResponse, error) {
	var resp *PaymentResponse
	err := s.observe(ctx, "ApplyPayment", invoicing.DocumentTypeSettlement, func(ctx context.Context) error {
		if err := s.validateRequest(req); err != nil {
			return err
		}

		claimed := false
		if req.IdempotencyKey != "" && s.idempotency != nil {
			ok, err := s.idempotency.MarkProcessed(ctx, paymentKey(req), s.idempotencyTTL)
			if err != nil {
				return err
			}
			if !ok {
				replay, err := s.replayPayment(ctx, req)
				if err != nil {
					return err
				}
				resp = replay
				return nil
			}
			claimed = true
		}

		r, err := s.applyPayment(ctx, req)
		if err != nil {
			if claimed {
				if relErr := s.idempotency.Release(ctx, paymentKey(req)); relErr != nil {
					logger.WithLogger(ctx, s.logger).Warn("failed to release idempotency key",
						zap.String("key", req.IdempotencyKey),
						zap.Error(relErr),
					)
				}
			}
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// replayPayment answers a repeated idempotency key from the stored invoice
func (s *Service) replayPayment(ctx context.Context, req ApplyPaymentRequest) (*PaymentResponse, error) {
	inv, err := s.repos.Invoices.FindByID(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	settlement, ok := inv.SettlementByIdempotencyKey(req.IdempotencyKey)
	if !ok {
		return nil, ErrPaymentInProgress.WithDetail("idempotency_key", req.IdempotencyKey)
	}
	logger.WithLogger(logger.WithDocument(ctx, inv.Number), s.logger).Info("payment replayed",
		zap.String("settlement", settlement.Number),
		zap.String("idempotency_key", req.IdempotencyKey),
	)
	return &PaymentResponse{
		Settlement: ToSettlementResponse(*settlement),
		Invoice:    ToInvoiceResponse(inv),
		Replayed:   true,
	}, nil
}

func (s *Service) applyPayment(ctx context.Context, req ApplyPaymentRequest) (*PaymentResponse, error) {
	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	var (
		number     string
		inv        *invoicing.Invoice
		settlement *invoicing.Settlement
		replayed   bool
	)
	err := s.withRetry(ctx, "ApplyPayment", func() error {
		loaded, err := s.repos.Invoices.FindByID(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		if existing, ok := loaded.SettlementByIdempotencyKey(req.IdempotencyKey); ok {
			inv, settlement, replayed = loaded, existing, true
			return nil
		}

		amount, err := valueobject.NewMoney(req.Amount, loaded.Currency)
		if err != nil {
			return err
		}
		if err := loaded.CanAcceptPayment(amount); err != nil {
			return err
		}
		// reserved once; a conflict retry reuses it
		if number == "" {
			if number, err = s.nextNumber(ctx, invoicing.DocumentTypeSettlement, paidAt); err != nil {
				return err
			}
		}
		applied, err := loaded.ApplyPayment(invoicing.Payment{
			Number:         number,
			Amount:         amount,
			Method:         invoicing.PaymentMethod(req.Method),
			Reference:      req.Reference,
			PaidAt:         paidAt,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			return err
		}
		if err := s.repos.Invoices.SaveWithLock(ctx, loaded); err != nil {
			return err
		}
		inv, settlement = loaded, applied
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !replayed {
		s.metrics.RecordPayment(ctx, req.Method, inv.Status.String(), string(inv.Currency), settlement.Amount.Amount())
		logger.WithLogger(logger.WithDocument(ctx, inv.Number), s.logger).Info("payment applied",
			zap.String("settlement", settlement.Number),
			zap.String("amount", settlement.Amount.String()),
			zap.String("amount_due", inv.AmountDue.String()),
			zap.String("status", inv.Status.String()),
		)
		s.publishEvents(ctx, inv)
	}

	return &PaymentResponse{
		Settlement: ToSettlementResponse(*settlement),
		Invoice:    ToInvoiceResponse(inv),
		Replayed:   replayed,
	}, nil
}

// CancelInvoice cancels an invoice; goods still billed are announced for restock
func (s *Service) CancelInvoice(ctx context.Context, req CancelInvoiceRequest) (*InvoiceResponse, error) {
	var resp InvoiceResponse
	err := s.observe(ctx, "CancelInvoice", invoicing.DocumentTypeInvoice, func(ctx context.Context) error {
		if err := s.validateRequest(req); err != nil {
			return err
		}

		var inv *invoicing.Invoice
		err := s.withRetry(ctx, "CancelInvoice", func() error {
			loaded, err := s.repos.Invoices.FindByID(ctx, req.InvoiceID)
			if err != nil {
				return err
			}
			if err := loaded.Cancel(req.Reason); err != nil {
				return err
			}
			if err := s.repos.Invoices.SaveWithLock(ctx, loaded); err != nil {
				return err
			}
			inv = loaded
			return nil
		})
		if err != nil {
			return err
		}

		logger.WithLogger(logger.WithDocument(ctx, inv.Number), s.logger).Info("invoice cancelled",
			zap.String("reason", req.Reason),
			zap.String("amount_paid", inv.AmountPaid.String()),
		)
		s.publishEvents(ctx, inv)
		resp = ToInvoiceResponse(inv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
