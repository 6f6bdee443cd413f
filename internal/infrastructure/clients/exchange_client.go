package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/arsmhmt/unifiedgw/internal/domain"
	"github.com/arsmhmt/unifiedgw/pkg/config"
)

// IRateProvider supplies fiat-per-crypto conversion quotes.
type IRateProvider interface {
	GetExchangeRate(ctx context.Context, cryptoCurrency, fiatCurrency string) (*domain.ExchangeRate, error)
}

type ExchangeAPIClient struct {
	baseURL    string
	httpClient *http.Client
	config     *config.ExchangeAPIConfig
	logger     zerolog.Logger
}

func NewExchangeAPIClient(cfg *config.ExchangeAPIConfig, logger zerolog.Logger) *ExchangeAPIClient {
	return &ExchangeAPIClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		config: cfg,
		logger: logger.With().Str("component", "coincap_api_client").Logger(),
	}
}

func (c *ExchangeAPIClient) GetExchangeRate(ctx context.Context, cryptoCurrency, fiatCurrency string) (*domain.ExchangeRate, error) {
	return c.getExchangeRateWithRetry(ctx, cryptoCurrency, 0)
}

func (c *ExchangeAPIClient) getExchangeRateWithRetry(ctx context.Context, cryptoCurrency string, attempt int) (*domain.ExchangeRate, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	coinCapID := c.mapCryptoToCoinCapID(cryptoCurrency)
	u.Path = fmt.Sprintf("/v3/assets/%s", coinCapID)

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request failed: %w", err)
	}

	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if shouldRetry(err) && attempt < c.config.MaxRetries {
			backoff := calculateBackoff(attempt, c.config.RetryBackoffBase)
			c.logger.Info().
				Err(err).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("Request failed, retrying after backoff")

			time.Sleep(backoff)
			return c.getExchangeRateWithRetry(ctx, cryptoCurrency, attempt+1)
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if shouldRetryStatusCode(resp.StatusCode) && attempt < c.config.MaxRetries {
			backoff := calculateBackoff(attempt, c.config.RetryBackoffBase)
			c.logger.Warn().
				Int("status_code", resp.StatusCode).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("Received non-200 status, retrying after backoff")

			time.Sleep(backoff)
			return c.getExchangeRateWithRetry(ctx, cryptoCurrency, attempt+1)
		}
		return nil, c.handleErrorResponse(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body failed: %w", err)
	}

	return c.parseCoinCapResponse(body, cryptoCurrency)
}

func (c *ExchangeAPIClient) parseCoinCapResponse(body []byte, cryptoCurrency string) (*domain.ExchangeRate, error) {
	var response struct {
		Data      domain.CoinCapAsset `json:"data"`
		Timestamp int64               `json:"timestamp"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing JSON response failed: %w", err)
	}

	rate, err := decimal.NewFromString(response.Data.PriceUSD)
	if err != nil {
		return nil, fmt.Errorf("invalid price format: %w", err)
	}

	quotedAt := time.Unix(response.Timestamp/1000, 0)
	if response.Timestamp == 0 {
		quotedAt = time.Now()
	}

	return &domain.ExchangeRate{
		CryptoCurrency: cryptoCurrency,
		FiatCurrency:   "USD",
		Rate:           rate,
		QuotedAt:       quotedAt,
	}, nil
}

func (c *ExchangeAPIClient) handleErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("HTTP error %d: failed to read response body", resp.StatusCode)
	}

	var errorResp struct {
		Error string `json:"error"`
	}

	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error != "" {
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, errorResp.Error)
	}

	return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
}

func (c *ExchangeAPIClient) mapCryptoToCoinCapID(cryptoCurrency string) string {
	mapping := map[string]string{
		"BTC":  "bitcoin",
		"ETH":  "ethereum",
		"LTC":  "litecoin",
		"USDT": "tether",
		"USDC": "usd-coin",
		"BNB":  "binance-coin",
		"XRP":  "xrp",
		"DOGE": "dogecoin",
		"SOL":  "solana",
		"TRX":  "tron",
		"DAI":  "dai",
	}

	if id, exists := mapping[cryptoCurrency]; exists {
		return id
	}

	return cryptoCurrency
}

func shouldRetry(err error) bool {
	if err, ok := err.(interface{ Timeout() bool }); ok && err.Timeout() {
		return true
	}
	if err, ok := err.(interface{ Temporary() bool }); ok && err.Temporary() {
		return true
	}
	return false
}

func shouldRetryStatusCode(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

func calculateBackoff(attempt, base int) time.Duration {
	if base <= 0 {
		base = 2
	}
	backoff := time.Duration(base<<attempt) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
