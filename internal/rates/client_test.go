package rates

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hichang4u/fxtrader/internal/models"
)

const usdPage = `<!DOCTYPE html><html><body>
<div data-test="instrument-price-last">1,342.50</div>
<span data-test="instrument-price-change">+2.50<!-- --></span>
<span data-test="instrument-price-change-percent">(+0.19%)</span>
<time data-test="trading-time-label">15:29:59</time>
</body></html>`

const jpyPage = `<!DOCTYPE html><html><body>
<div data-test="instrument-price-last">9.0550</div>
<span data-test="instrument-price-change">-0.0150</span>
<span data-test="instrument-price-change-percent">(-0.17%)</span>
<time data-test="trading-time-label">15:29:59</time>
</body></html>`

// setupTestServer creates a test server and a Client configured to use it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	rc := &Client{
		client:  resty.New().SetBaseURL(server.URL),
		logger:  zap.NewNop(),
		limiter: rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}
	return rc, server
}

func TestFetchRateUSD(t *testing.T) {
	client, server := setupTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/currencies/usd-krw", r.URL.Path)
		fmt.Fprint(w, usdPage)
	}))
	defer server.Close()

	quote, err := client.FetchRate(context.Background(), models.CurrencyUSD)
	assert.NoError(t, err)
	assert.Equal(t, models.CurrencyUSD, quote.Currency)
	assert.InDelta(t, 1342.50, quote.CurrentRate, 1e-9)
	assert.InDelta(t, 2.50, quote.ChangeAmount, 1e-9)
	assert.InDelta(t, 0.19, quote.ChangePercent, 1e-9)
	assert.Equal(t, "15:29:59", quote.Timestamp)
}

func TestFetchRateJPYNormalizedToPer100(t *testing.T) {
	client, server := setupTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/currencies/jpy-krw", r.URL.Path)
		fmt.Fprint(w, jpyPage)
	}))
	defer server.Close()

	quote, err := client.FetchRate(context.Background(), models.CurrencyJPY)
	assert.NoError(t, err)
	// The page quotes per yen; the quote is per 100 yen.
	assert.InDelta(t, 905.50, quote.CurrentRate, 1e-9)
	assert.InDelta(t, -1.50, quote.ChangeAmount, 1e-9)
	assert.InDelta(t, -0.17, quote.ChangePercent, 1e-9)
}

func TestFetchRateMissingElements(t *testing.T) {
	client, server := setupTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div>markup changed</div></body></html>`)
	}))
	defer server.Close()

	_, err := client.FetchRate(context.Background(), models.CurrencyUSD)
	assert.Error(t, err)
}

func TestFetchRateUnsupportedCurrency(t *testing.T) {
	client, server := setupTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, usdPage)
	}))
	defer server.Close()

	_, err := client.FetchRate(context.Background(), models.Currency("EUR"))
	assert.Error(t, err)
}

func TestFetchRateRetriesServerErrors(t *testing.T) {
	attempts := 0
	client, server := setupTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, usdPage)
	}))
	defer server.Close()

	quote, err := client.FetchRate(context.Background(), models.CurrencyUSD)
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.InDelta(t, 1342.50, quote.CurrentRate, 1e-9)
}

func TestParseNumber(t *testing.T) {
	testCases := []struct {
		in       string
		expected float64
		wantErr  bool
	}{
		{in: "1,342.50", expected: 1342.50},
		{in: "(+0.19%)", expected: 0.19},
		{in: "-0.0150", expected: -0.0150},
		{in: "+2.50<!-- -->", expected: 2.50},
		{in: "  1300 ", expected: 1300},
		{in: "", wantErr: true},
		{in: "n/a", wantErr: true},
	}

	for _, tc := range testCases {
		v, err := parseNumber(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
		} else {
			assert.NoError(t, err, "input %q", tc.in)
			assert.InDelta(t, tc.expected, v, 1e-9, "input %q", tc.in)
		}
	}
}
