package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"finbot/pkg/config"
)

// Conversion is the result of converting an amount into the default
// currency. The original value is always kept alongside.
type Conversion struct {
	ConvertedValue float64 `json:"result"`
	ExchangeRate   float64 `json:"rate"`
}

// CurrencyConverter resolves foreign-currency amounts through an external
// exchange-rate service.
type CurrencyConverter struct {
	config     *config.CurrencyConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewCurrencyConverter(cfg *config.CurrencyConfig, logger *zap.Logger) *CurrencyConverter {
	return &CurrencyConverter{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (c *CurrencyConverter) Convert(ctx context.Context, amount float64, from, to string) (*Conversion, error) {
	query := url.Values{}
	query.Set("from", from)
	query.Set("to", to)
	query.Set("amount", fmt.Sprintf("%f", amount))

	req, err := http.NewRequestWithContext(ctx, "GET", c.config.URL+"/convert?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("currency conversion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("currency conversion failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var conversion Conversion
	if err := json.NewDecoder(resp.Body).Decode(&conversion); err != nil {
		return nil, fmt.Errorf("failed to decode conversion response: %w", err)
	}

	c.logger.Debug("Currency converted",
		zap.String("from", from),
		zap.String("to", to),
		zap.Float64("amount", amount),
		zap.Float64("rate", conversion.ExchangeRate),
	)
	return &conversion, nil
}
