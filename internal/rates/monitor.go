package rates

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hichang4u/fxtrader/internal/models"
)

// Monitor caches the latest quote per currency and refreshes them on a fixed
// schedule. It only ever talks to the rate feed; it holds no handle to the
// trade ledger.
type Monitor struct {
	logger   *zap.Logger
	feed     Fetcher
	interval time.Duration

	mu     sync.RWMutex
	quotes map[models.Currency]*Quote
}

// NewMonitor creates a monitor over a rate feed.
func NewMonitor(logger *zap.Logger, feed Fetcher, interval time.Duration) *Monitor {
	return &Monitor{
		logger:   logger,
		feed:     feed,
		interval: interval,
		quotes:   make(map[models.Currency]*Quote),
	}
}

// CurrentRate returns the quote for a currency, fetching one when the cache
// is empty or refresh is set. It returns nil when no quote is available;
// callers degrade their display instead of failing.
func (m *Monitor) CurrentRate(ctx context.Context, currency models.Currency, refresh bool) *Quote {
	m.mu.RLock()
	cached, ok := m.quotes[currency]
	m.mu.RUnlock()

	if ok && !refresh {
		return cached
	}

	quote, err := m.feed.FetchRate(ctx, currency)
	if err != nil {
		m.logger.Warn("Quote unavailable",
			zap.String("currency", string(currency)),
			zap.Error(err))
		return cached // may be nil on the first failure
	}

	m.mu.Lock()
	_, initialized := m.quotes[currency]
	m.quotes[currency] = quote
	m.mu.Unlock()

	if !initialized {
		m.logger.Info("Initial quote loaded",
			zap.String("currency", string(currency)),
			zap.Float64("rate", quote.CurrentRate),
			zap.String("time", quote.Timestamp))
	} else {
		m.logger.Debug("Quote refreshed",
			zap.String("currency", string(currency)),
			zap.Float64("rate", quote.CurrentRate),
			zap.String("time", quote.Timestamp))
	}

	return quote
}

// Run polls every supported currency on the configured interval until the
// context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Starting rate monitor", zap.Duration("interval", m.interval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Stopping rate monitor...")
			return
		case <-ticker.C:
			for _, currency := range models.Currencies {
				m.CurrentRate(ctx, currency, true)
			}
		}
	}
}
