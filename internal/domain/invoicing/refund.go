package invoicing

import (
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ReturnSelection is the caller's choice of quantity to return on one line.
// A zero quantity means the line is not selected.
type ReturnSelection struct {
	LineID           uuid.UUID `json:"line_id"`
	ReturnedQuantity int64     `json:"returned_quantity"`
}

// RefundLine is the prorated refund for one invoice line
type RefundLine struct {
	LineID           uuid.UUID         `json:"line_id"`
	ArticleID        uuid.UUID         `json:"article_id"`
	Designation      string            `json:"designation"`
	Kind             ArticleKind       `json:"kind"`
	UnitPrice        valueobject.Money `json:"unit_price"`
	OriginalQuantity int64             `json:"original_quantity"`
	ReturnedQuantity int64             `json:"returned_quantity"`
	RefundHT         valueobject.Money `json:"refund_ht"`
	RefundTTC        valueobject.Money `json:"refund_ttc"`
}

// Refund is the outcome of ComputeRefund
type Refund struct {
	Lines    []RefundLine      `json:"lines"`
	TotalHT  valueobject.Money `json:"total_ht"`
	TotalTTC valueobject.Money `json:"total_ttc"`
}

// ComputeRefund prorates each selected line's HT and TTC share by
// returned/original quantity. The original quantity always comes from the
// invoice line. When a selection returns the last units of a line the refund
// is whatever remains uncredited, so repeated partial returns add up to the
// line amounts exactly.
func ComputeRefund(lines []InvoiceLine, selection []ReturnSelection) (Refund, error) {
	if len(lines) == 0 {
		return Refund{}, invalidLine("invoice has no lines")
	}
	currency := lines[0].AmountHT.Currency()

	for _, s := range selection {
		if s.ReturnedQuantity < 0 {
			return Refund{}, invalidLine("returned quantity %d on line %s is negative", s.ReturnedQuantity, s.LineID)
		}
	}
	selected := lo.Filter(selection, func(s ReturnSelection, _ int) bool {
		return s.ReturnedQuantity > 0
	})
	if len(selected) == 0 {
		return Refund{}, ErrEmptySelection
	}
	if dups := lo.FindDuplicatesBy(selected, func(s ReturnSelection) uuid.UUID { return s.LineID }); len(dups) > 0 {
		return Refund{}, invalidLine("line %s is selected more than once", dups[0].LineID)
	}

	byID := lo.KeyBy(lines, func(l InvoiceLine) uuid.UUID { return l.ID })

	refund := Refund{
		Lines:    make([]RefundLine, 0, len(selected)),
		TotalHT:  valueobject.Zero(currency),
		TotalTTC: valueobject.Zero(currency),
	}
	for _, s := range selected {
		line, ok := byID[s.LineID]
		if !ok {
			return Refund{}, invalidLine("line %s is not on the invoice", s.LineID)
		}
		if s.ReturnedQuantity > line.ReturnableQuantity() {
			return Refund{}, NewExceedsReturnableError(line.Designation, line.ReturnableQuantity(), s.ReturnedQuantity)
		}

		refundHT, refundTTC, err := prorateLine(line, s.ReturnedQuantity)
		if err != nil {
			return Refund{}, err
		}

		refund.Lines = append(refund.Lines, RefundLine{
			LineID:           line.ID,
			ArticleID:        line.ArticleID,
			Designation:      line.Designation,
			Kind:             line.Kind,
			UnitPrice:        line.UnitPrice,
			OriginalQuantity: line.Quantity,
			ReturnedQuantity: s.ReturnedQuantity,
			RefundHT:         refundHT,
			RefundTTC:        refundTTC,
		})
		refund.TotalHT = refund.TotalHT.MustAdd(refundHT)
		refund.TotalTTC = refund.TotalTTC.MustAdd(refundTTC)
	}

	return refund, nil
}

func prorateLine(line InvoiceLine, returned int64) (valueobject.Money, valueobject.Money, error) {
	if returned == line.ReturnableQuantity() {
		return line.AmountHT.MustSubtract(line.CreditedHT), line.AmountTTC.MustSubtract(line.CreditedTTC), nil
	}
	ht, err := line.AmountHT.Prorate(returned, line.Quantity)
	if err != nil {
		return valueobject.Money{}, valueobject.Money{}, err
	}
	ttc, err := line.AmountTTC.Prorate(returned, line.Quantity)
	if err != nil {
		return valueobject.Money{}, valueobject.Money{}, err
	}
	return ht.RoundToCurrency(), ttc.RoundToCurrency(), nil
}
