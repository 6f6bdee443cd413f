package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CoinCapAsset struct {
	ID                string `json:"id"`
	Rank              string `json:"rank"`
	Symbol            string `json:"symbol"`
	Name              string `json:"name"`
	PriceUSD          string `json:"priceUsd"`
	ChangePercent24Hr string `json:"changePercent24Hr"`
}

// ExchangeRate is one fiat-per-crypto quote from the rate provider.
type ExchangeRate struct {
	CryptoCurrency string          `json:"crypto_currency"`
	FiatCurrency   string          `json:"fiat_currency"`
	Rate           decimal.Decimal `json:"rate"`
	QuotedAt       time.Time       `json:"quoted_at"`
}
