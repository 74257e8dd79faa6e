package models

import (
	"fmt"
	"math"

	"gorm.io/gorm"
)

// CurrencySettings holds the per-currency planning policy: how far above the
// buy rate each planned take-profit sell sits, how the buy amount is split
// across them, and where the stop-loss and next planned buy land.
type CurrencySettings struct {
	gorm.Model
	Currency         Currency  `gorm:"uniqueIndex" json:"currency"`
	RateIncrements   []float64 `gorm:"serializer:json" json:"rate_increments"`
	SellSplitRatios  []float64 `gorm:"serializer:json" json:"sell_split_ratios"`
	StopLossGap      float64   `json:"stop_loss_gap"`
	DefaultAmount    float64   `json:"default_amount"`
	BuyDropThreshold float64   `json:"buy_drop_threshold"`
	PlannedBuyAmount float64   `json:"planned_buy_amount"`
	PlannedBuyRate   float64   `json:"planned_buy_rate"`
}

// DefaultSellSplitRatios is the split applied when a policy does not define
// its own: 30%, 30%, 40% across three planned sells.
var DefaultSellSplitRatios = []float64{0.3, 0.3, 0.4}

// SplitRatios returns the policy's split ratios, falling back to the default
// triple when none are configured.
func (s *CurrencySettings) SplitRatios() []float64 {
	if len(s.SellSplitRatios) == 0 {
		return DefaultSellSplitRatios
	}
	return s.SellSplitRatios
}

// Validate checks that the split ratios line up with the increments and sum
// to one.
func (s *CurrencySettings) Validate() error {
	if !s.Currency.Valid() {
		return fmt.Errorf("unknown currency %q", s.Currency)
	}
	if len(s.RateIncrements) == 0 {
		return fmt.Errorf("%s: at least one rate increment is required", s.Currency)
	}
	ratios := s.SplitRatios()
	if len(ratios) != len(s.RateIncrements) {
		return fmt.Errorf("%s: %d split ratios for %d increments", s.Currency, len(ratios), len(s.RateIncrements))
	}
	var sum float64
	for _, r := range ratios {
		if r <= 0 {
			return fmt.Errorf("%s: split ratios must be positive", s.Currency)
		}
		sum += r
	}
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%s: split ratios sum to %g, want 1", s.Currency, sum)
	}
	return nil
}

// DefaultSettings returns the policies seeded on first start.
func DefaultSettings() []CurrencySettings {
	return []CurrencySettings{
		{
			Currency:         CurrencyUSD,
			RateIncrements:   []float64{10, 20, 30},
			SellSplitRatios:  DefaultSellSplitRatios,
			StopLossGap:      20,
			DefaultAmount:    100000,
			BuyDropThreshold: 5,
			PlannedBuyAmount: 100000,
		},
		{
			Currency:         CurrencyJPY,
			RateIncrements:   []float64{6, 12, 18},
			SellSplitRatios:  DefaultSellSplitRatios,
			StopLossGap:      6,
			DefaultAmount:    100000,
			BuyDropThreshold: 3,
			PlannedBuyAmount: 100000,
		},
	}
}
