package event

import (
	"context"
	"sync"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RestockHandler collects goods that come back from clients, either through
// a cancelled invoice or a validated credit note. Stock itself is managed
// elsewhere; Pending exposes what still has to be booked in.
type RestockHandler struct {
	mu      sync.Mutex
	pending map[uuid.UUID]int64
	logger  *zap.Logger
}

// NewRestockHandler creates a RestockHandler
func NewRestockHandler(logger *zap.Logger) *RestockHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RestockHandler{
		pending: make(map[uuid.UUID]int64),
		logger:  logger.Named("restock"),
	}
}

// Handle implements shared.EventHandler
func (h *RestockHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var (
		returns []invoicing.StockReturn
		source  string
	)
	switch e := event.(type) {
	case *invoicing.InvoiceCancelledEvent:
		returns, source = e.Restock, e.Number
	case *invoicing.CreditNoteValidatedEvent:
		returns, source = e.Restock, e.Number
	default:
		return nil
	}
	if len(returns) == 0 {
		return nil
	}

	h.mu.Lock()
	for _, r := range returns {
		h.pending[r.ArticleID] += r.Quantity
	}
	h.mu.Unlock()

	logger.WithLogger(ctx, h.logger).Info("goods returned to stock",
		zap.String("document", source),
		zap.Int("articles", len(returns)),
	)
	return nil
}

// EventTypes implements shared.EventHandler
func (h *RestockHandler) EventTypes() []string {
	return []string{invoicing.EventTypeInvoiceCancelled, invoicing.EventTypeCreditNoteValidated}
}

// Pending returns the quantity awaiting restock per article
func (h *RestockHandler) Pending() map[uuid.UUID]int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[uuid.UUID]int64, len(h.pending))
	for k, v := range h.pending {
		out[k] = v
	}
	return out
}

var _ shared.EventHandler = (*RestockHandler)(nil)
