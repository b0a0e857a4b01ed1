package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kardiguemagassa/paymybuddy/internal/domain"
	"github.com/kardiguemagassa/paymybuddy/pkg/xerrors"
)

// ReferenceCurrency is the currency every balance and fee is
// denominated in.
const ReferenceCurrency = "EUR"

// defaultRates maps a 3-letter code to units of reference currency per
// unit of that currency. The table is read-only after process start.
var defaultRates = map[string]decimal.Decimal{
	"EUR": decimal.NewFromInt(1),
	"USD": decimal.RequireFromString("0.85"),
	"XOF": decimal.RequireFromString("0.0015"),
	"JPY": decimal.RequireFromString("0.0073"),
	"CNY": decimal.RequireFromString("0.13"),
	"GBP": decimal.RequireFromString("1.1972"),
	"RUB": decimal.RequireFromString("0.01095"),
}

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"XOF": "CFA",
	"JPY": "¥",
	"CNY": "¥",
	"GBP": "£",
	"RUB": "₽",
}

// Canonicalize upper-cases and trims a currency code. Lookups are
// case-insensitive on input.
func Canonicalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FXService converts amounts between supported currencies and the
// reference currency using a static rate table. No side effects.
type FXService struct {
	reference string
	rates     map[string]decimal.Decimal
}

func NewFXService() *FXService {
	return &FXService{reference: ReferenceCurrency, rates: defaultRates}
}

// NewFXServiceWithRates builds a converter over a custom table. The
// reference currency always resolves with rate 1.
func NewFXServiceWithRates(reference string, rates map[string]decimal.Decimal) *FXService {
	return &FXService{reference: Canonicalize(reference), rates: rates}
}

func (s *FXService) Reference() string { return s.reference }

// ToReference converts an amount in the given currency to reference
// units. The reference currency passes through unchanged.
func (s *FXService) ToReference(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	code = Canonicalize(code)
	if code == s.reference {
		return amount, nil
	}

	rate, ok := s.rates[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", code, xerrors.ErrUnsupportedCurrency)
	}
	return amount.Mul(rate), nil
}

// FromReference is the inverse of ToReference.
func (s *FXService) FromReference(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	code = Canonicalize(code)
	if code == s.reference {
		return amount, nil
	}

	rate, ok := s.rates[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", code, xerrors.ErrUnsupportedCurrency)
	}
	return amount.Div(rate), nil
}

// IsSupported reports whether a code resolves in the rate table.
func (s *FXService) IsSupported(code string) bool {
	code = Canonicalize(code)
	if code == s.reference {
		return true
	}
	_, ok := s.rates[code]
	return ok
}

// Supported lists the supported currencies sorted by code, for
// caller-side validation before a transfer.
func (s *FXService) Supported() []domain.Currency {
	out := make([]domain.Currency, 0, len(s.rates))
	for code, rate := range s.rates {
		out = append(out, domain.Currency{
			Code:   code,
			Symbol: currencySymbols[code],
			Rate:   rate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
