package trading

import (
	"github.com/hichang4u/fxtrader/internal/ledger"
	"github.com/hichang4u/fxtrader/internal/models"
)

// Valuator aggregates the ledger into holdings and profit figures.
type Valuator struct {
	ledger *ledger.Ledger
}

// NewValuator creates a valuation engine over the ledger.
func NewValuator(l *ledger.Ledger) *Valuator {
	return &Valuator{ledger: l}
}

// Holding is a currency position at buy-average cost.
type Holding struct {
	HoldingAmount float64 `json:"holding_amount"`
	AvgRate       float64 `json:"avg_rate"`
	HoldingKRW    float64 `json:"holding_krw"`
}

// ValueReport is a holding marked to a live rate.
type ValueReport struct {
	CurrentValue float64 `json:"current_value"`
	ProfitAmount float64 `json:"profit_amount"`
	ProfitRate   float64 `json:"profit_rate"`
}

// TotalProfit sums realized profit over executed sells and stop-losses
// across all currencies. Planned rows never count.
func (v *Valuator) TotalProfit() (float64, error) {
	trades, err := v.ledger.Executed("")
	if err != nil {
		return 0, err
	}
	var total float64
	for _, t := range trades {
		total += t.Profit
	}
	return total, nil
}

// CurrencyProfit sums realized profit for one currency.
func (v *Valuator) CurrencyProfit(currency models.Currency) (float64, error) {
	trades, err := v.ledger.Executed(currency)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, t := range trades {
		total += t.Profit
	}
	return total, nil
}

// TotalBuyAmount sums the KRW spent on buys for one currency.
func (v *Valuator) TotalBuyAmount(currency models.Currency) (float64, error) {
	buys, err := v.ledger.ByTypes(currency, models.TypeBuy)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, t := range buys {
		total += t.KRWAmount
	}
	return total, nil
}

// HoldingAmount computes a currency's position: bought minus sold foreign
// quantity, the buy-average rate, and the position valued at that average.
// The average rate is zero when there are no buys.
func (v *Valuator) HoldingAmount(currency models.Currency) (Holding, error) {
	buys, err := v.ledger.ByTypes(currency, models.TypeBuy)
	if err != nil {
		return Holding{}, err
	}
	sold, err := v.ledger.Executed(currency)
	if err != nil {
		return Holding{}, err
	}

	var boughtForeign, boughtKRW, soldForeign float64
	for _, t := range buys {
		boughtForeign += t.ForeignAmount
		boughtKRW += t.KRWAmount
	}
	for _, t := range sold {
		soldForeign += t.ForeignAmount
	}

	var avgRate float64
	if boughtForeign != 0 {
		avgRate = boughtKRW / boughtForeign
	}

	holdingAmount := boughtForeign - soldForeign
	return Holding{
		HoldingAmount: holdingAmount,
		AvgRate:       avgRate,
		HoldingKRW:    holdingAmount * avgRate,
	}, nil
}

// CurrentValue marks a holding to a live rate. An empty position or missing
// rate yields the all-zero report rather than dividing by zero.
func (v *Valuator) CurrentValue(currentRate float64, holding Holding) ValueReport {
	if holding.HoldingAmount == 0 || currentRate == 0 {
		return ValueReport{}
	}

	currentValue := holding.HoldingAmount * currentRate
	profitAmount := currentValue - holding.HoldingKRW

	var profitRate float64
	if holding.HoldingKRW != 0 {
		profitRate = profitAmount / holding.HoldingKRW * 100
	}

	return ValueReport{
		CurrentValue: currentValue,
		ProfitAmount: profitAmount,
		ProfitRate:   profitRate,
	}
}
