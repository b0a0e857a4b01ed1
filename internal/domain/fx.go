package domain

import "github.com/shopspring/decimal"

// Currency describes one supported transaction currency. Rate is the
// number of reference-currency units per unit of this currency.
type Currency struct {
	Code   string          `json:"code"`
	Symbol string          `json:"symbol"`
	Rate   decimal.Decimal `json:"rate"`
}
