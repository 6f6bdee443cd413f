package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CryptoPrecision is the scale settlement amounts are quoted at.
const CryptoPrecision = 8

// FiatToCrypto converts a fiat amount into its crypto equivalent at the
// given rate (fiat units per crypto unit).
func FiatToCrypto(fiatAmount, rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.IsZero() || rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid exchange rate: %s", rate)
	}
	return fiatAmount.DivRound(rate, CryptoPrecision), nil
}

// ParsePositiveAmount parses a decimal string and requires it to be
// strictly greater than zero.
func ParsePositiveAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format: %w", err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be greater than zero")
	}
	return amount, nil
}

// FormatFiat renders a fiat amount at two decimal places for display.
func FormatFiat(amount decimal.Decimal, code string) string {
	return fmt.Sprintf("%s %s", amount.StringFixed(2), code)
}
