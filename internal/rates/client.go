package rates

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hichang4u/fxtrader/internal/config"
	"github.com/hichang4u/fxtrader/internal/models"
)

// Quote is a point-in-time exchange rate in KRW per foreign unit. JPY is
// normalized to KRW per 100 yen. Quotes are ephemeral and never persisted.
type Quote struct {
	Currency      models.Currency `json:"currency"`
	CurrentRate   float64         `json:"current_rate"`
	ChangeAmount  float64         `json:"change_amount"`
	ChangePercent float64         `json:"change_percent"`
	Timestamp     string          `json:"timestamp"`
}

// Fetcher fetches a fresh quote for one currency.
type Fetcher interface {
	FetchRate(ctx context.Context, currency models.Currency) (*Quote, error)
}

// Client scrapes exchange-rate quotes from the investing.com currency pages.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure Client implements the interface
var _ Fetcher = (*Client)(nil)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// NewClient creates a rate-feed client.
func NewClient(cfg *config.Rates, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:  client,
		logger:  logger,
		limiter: limiter,
	}
}

// quotePath maps a currency to its instrument page.
func quotePath(currency models.Currency) string {
	if currency == models.CurrencyJPY {
		return "/currencies/jpy-krw"
	}
	return "/currencies/usd-krw"
}

// FetchRate fetches and parses the quote page for a currency. A timeout or
// scrape failure is an error the caller treats as "no quote available".
func (c *Client) FetchRate(ctx context.Context, currency models.Currency) (*Quote, error) {
	if !currency.Valid() {
		return nil, fmt.Errorf("unsupported currency %q", currency)
	}

	resp, err := c.doRequest(ctx, quotePath(currency))
	if err != nil {
		return nil, fmt.Errorf("fetch %s quote: %w", currency, err)
	}

	quote, err := parseQuote(currency, resp.Body())
	if err != nil {
		return nil, fmt.Errorf("parse %s quote: %w", currency, err)
	}
	return quote, nil
}

// doRequest executes a GET with rate limiting and retry on throttling and
// server errors.
func (c *Client) doRequest(ctx context.Context, url string) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Fetching quote page", zap.String("url", c.client.BaseURL+url))
		resp, err = c.client.R().SetContext(ctx).Get(url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil && resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else { // Network or client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s", resp.Status())
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Quote request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// parseQuote extracts the rate, change and trading time from a quote page.
func parseQuote(currency models.Currency, body []byte) (*Quote, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	currentRate, err := parseNumber(doc.Find(`[data-test="instrument-price-last"]`).First().Text())
	if err != nil {
		return nil, fmt.Errorf("price element: %w", err)
	}

	changeAmount, err := parseNumber(doc.Find(`[data-test="instrument-price-change"]`).First().Text())
	if err != nil {
		return nil, fmt.Errorf("change element: %w", err)
	}

	changePercent, err := parseNumber(doc.Find(`[data-test="instrument-price-change-percent"]`).First().Text())
	if err != nil {
		return nil, fmt.Errorf("change-percent element: %w", err)
	}

	if currency == models.CurrencyJPY {
		// The page quotes per single yen; the ledger works per 100 yen.
		currentRate *= 100
		changeAmount *= 100
	}

	timestamp := strings.TrimSpace(doc.Find(`time[data-test="trading-time-label"]`).First().Text())
	if timestamp == "" {
		timestamp = time.Now().Format("15:04:05")
	}

	return &Quote{
		Currency:      currency,
		CurrentRate:   currentRate,
		ChangeAmount:  changeAmount,
		ChangePercent: changePercent,
		Timestamp:     timestamp,
	}, nil
}

// parseNumber strips thousands separators, parens, percent signs and comment
// residue the page leaves in text nodes.
func parseNumber(s string) (float64, error) {
	for _, junk := range []string{",", "(", ")", "%", "<!-- -->"} {
		s = strings.ReplaceAll(s, junk, "")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed value %q", s)
	}
	return v, nil
}
