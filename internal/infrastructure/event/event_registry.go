package event

import (
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
)

func factory[E any, P interface {
	*E
	shared.DomainEvent
}]() func() shared.DomainEvent {
	return func() shared.DomainEvent { return P(new(E)) }
}

// RegisterInvoicingEvents makes every invoicing event decodable
func RegisterInvoicingEvents(serializer *EventSerializer) {
	serializer.Register(invoicing.EventTypeInvoiceCreated, factory[invoicing.InvoiceCreatedEvent]())
	serializer.Register(invoicing.EventTypePaymentApplied, factory[invoicing.PaymentAppliedEvent]())
	serializer.Register(invoicing.EventTypeInvoicePaid, factory[invoicing.InvoicePaidEvent]())
	serializer.Register(invoicing.EventTypeInvoiceCancelled, factory[invoicing.InvoiceCancelledEvent]())
	serializer.Register(invoicing.EventTypeInvoiceCredited, factory[invoicing.InvoiceCreditedEvent]())

	serializer.Register(invoicing.EventTypeCreditNoteCreated, factory[invoicing.CreditNoteCreatedEvent]())
	serializer.Register(invoicing.EventTypeCreditNoteUpdated, factory[invoicing.CreditNoteUpdatedEvent]())
	serializer.Register(invoicing.EventTypeCreditNoteValidated, factory[invoicing.CreditNoteValidatedEvent]())
	serializer.Register(invoicing.EventTypeCreditNoteRefused, factory[invoicing.CreditNoteRefusedEvent]())

	serializer.Register(invoicing.EventTypeQuoteCreated, factory[invoicing.QuoteCreatedEvent]())
	serializer.Register(invoicing.EventTypeQuoteConverted, factory[invoicing.QuoteConvertedEvent]())
}

// NewInvoicingSerializer returns a serializer with every invoicing event registered
func NewInvoicingSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterInvoicingEvents(s)
	return s
}
