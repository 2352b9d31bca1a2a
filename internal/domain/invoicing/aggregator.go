package invoicing

import (
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
)

// Totals are the document-level amounts derived from its lines
type Totals struct {
	AmountHT          valueobject.Money `json:"amount_ht"`
	AmountVAT         valueobject.Money `json:"amount_vat"`
	AmountWithholding valueobject.Money `json:"amount_withholding"`
	AmountTTC         valueobject.Money `json:"amount_ttc"`
}

// ZeroTotals returns all-zero totals in the given currency
func ZeroTotals(currency valueobject.Currency) Totals {
	zero := valueobject.Zero(currency)
	return Totals{AmountHT: zero, AmountVAT: zero, AmountWithholding: zero, AmountTTC: zero}
}

// PricedLine is a line together with its share of each document total.
// AmountTTC is the line's contribution to the document TTC and is what
// refunds are prorated from.
type PricedLine struct {
	LineItem
	AmountHT          valueobject.Money `json:"amount_ht"`
	AmountVAT         valueobject.Money `json:"amount_vat"`
	AmountWithholding valueobject.Money `json:"amount_withholding"`
	AmountTTC         valueobject.Money `json:"amount_ttc"`
}

// Aggregation is the output of pricing a set of lines
type Aggregation struct {
	Totals
	Lines []PricedLine `json:"lines"`
}

// Aggregator reduces lines to totals.
//
// VAT (when VATRate is non-zero) is added on HT first; withholding is then
// subtracted on SERVICE lines only. Both are rounded per line to the currency
// minor unit so that the document totals equal the sum of line shares.
type Aggregator struct {
	Currency        valueobject.Currency
	VATRate         valueobject.Rate
	WithholdingRate valueobject.Rate
}

// NewAggregator creates an aggregator for the given currency and rates
func NewAggregator(currency valueobject.Currency, vatRate, withholdingRate valueobject.Rate) Aggregator {
	return Aggregator{Currency: currency, VATRate: vatRate, WithholdingRate: withholdingRate}
}

// Price computes per-line shares and document totals
func (a Aggregator) Price(lines []LineItem, withholdingEnabled bool) (Aggregation, error) {
	currency := a.Currency
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	result := Aggregation{
		Totals: ZeroTotals(currency),
		Lines:  make([]PricedLine, 0, len(lines)),
	}
	zero := valueobject.Zero(currency)

	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return Aggregation{}, err
		}
		if line.UnitPrice.Currency() != currency {
			return Aggregation{}, invalidLine("line %q is priced in %s, document currency is %s",
				line.Designation, line.UnitPrice.Currency(), currency)
		}

		ht := line.AmountHT()
		vat := zero
		if !a.VATRate.IsZero() {
			vat = a.VATRate.Of(ht)
		}
		withholding := zero
		if withholdingEnabled && line.IsService() {
			withholding = a.WithholdingRate.Of(ht)
		}
		ttc := ht.MustAdd(vat).MustSubtract(withholding)

		result.Lines = append(result.Lines, PricedLine{
			LineItem:          line,
			AmountHT:          ht,
			AmountVAT:         vat,
			AmountWithholding: withholding,
			AmountTTC:         ttc,
		})
		result.AmountHT = result.AmountHT.MustAdd(ht)
		result.AmountVAT = result.AmountVAT.MustAdd(vat)
		result.AmountWithholding = result.AmountWithholding.MustAdd(withholding)
		result.AmountTTC = result.AmountTTC.MustAdd(ttc)
	}

	return result, nil
}

// Aggregate is the withholding-only form of Price: HT, service-line
// withholding and TTC = HT - withholding. The currency is taken from the
// first line; an empty list yields zero totals in the default currency.
func Aggregate(lines []LineItem, withholdingEnabled bool, withholdingRate valueobject.Rate) (Totals, error) {
	currency := valueobject.DefaultCurrency
	if len(lines) > 0 && lines[0].UnitPrice.Currency() != "" {
		currency = lines[0].UnitPrice.Currency()
	}
	agg, err := NewAggregator(currency, valueobject.ZeroRate(), withholdingRate).Price(lines, withholdingEnabled)
	if err != nil {
		return Totals{}, err
	}
	return agg.Totals, nil
}
