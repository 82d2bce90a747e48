package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/bill-digitizer/internal/record"
)

// BaseCurrency is the currency every stored bill is expressed in
const BaseCurrency = "USD"

// usdRates maps a currency code to the USD value of one unit. MYR is also
// written RM on receipts.
var usdRates = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"INR": decimal.RequireFromString("0.012000"),
	"EUR": decimal.RequireFromString("1.080000"),
	"GBP": decimal.RequireFromString("1.270000"),
	"MYR": decimal.RequireFromString("0.210000"),
	"RM":  decimal.RequireFromString("0.210000"),
	"SGD": decimal.RequireFromString("0.740000"),
	"CAD": decimal.RequireFromString("0.730000"),
	"AUD": decimal.RequireFromString("0.660000"),
	"JPY": decimal.RequireFromString("0.006700"),
	"AED": decimal.RequireFromString("0.272294"),
}

// Rate returns the USD exchange rate for a currency code
func Rate(code string) (float64, bool) {
	r, ok := usdRates[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return 0, false
	}
	return r.InexactFloat64(), true
}

// ConvertToUSD returns a copy of the bill expressed in USD. An unrecognized
// currency leaves the amounts untouched and yields a warning.
func ConvertToUSD(b *record.Bill) (*record.Bill, *Warning) {
	out := b.Clone()
	code := strings.ToUpper(strings.TrimSpace(out.Currency))
	if code == "" || code == BaseCurrency {
		out.Currency = BaseCurrency
		return out, nil
	}

	rate, ok := usdRates[code]
	if !ok {
		return out, &Warning{
			Kind:    WarnCurrencyUnrecognized,
			Field:   "currency",
			Message: fmt.Sprintf("currency %q has no exchange rate; amounts left unconverted", out.Currency),
		}
	}

	original := out.TotalAmount
	r := rate.InexactFloat64()
	out.OriginalCurrency = code
	out.OriginalTotalAmount = &original
	out.ExchangeRate = &r

	out.Subtotal = convert(out.Subtotal, rate)
	out.TaxAmount = convert(out.TaxAmount, rate)
	out.TotalAmount = convert(out.TotalAmount, rate)
	for i := range out.Items {
		out.Items[i].UnitPrice = convert(out.Items[i].UnitPrice, rate)
		out.Items[i].ItemTotal = convert(out.Items[i].ItemTotal, rate)
	}
	out.Currency = BaseCurrency
	return out, nil
}

func convert(amount float64, rate decimal.Decimal) float64 {
	return decimal.NewFromFloat(amount).Mul(rate).Round(2).InexactFloat64()
}
