package trading

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hichang4u/fxtrader/internal/models"
)

func TestHoldingAmountSingleBuy(t *testing.T) {
	planner, l := setupTest(t)
	valuator := NewValuator(l)

	_, err := planner.CreateBuyOrder(100000, 1300, models.CurrencyUSD, "", "")
	assert.NoError(t, err)

	holding, err := valuator.HoldingAmount(models.CurrencyUSD)
	assert.NoError(t, err)
	assert.InDelta(t, 76.92, holding.HoldingAmount, 1e-9)
	assert.InDelta(t, 1300, holding.AvgRate, 0.1)
	assert.InDelta(t, 100000, holding.HoldingKRW, 1e-6)
}

func TestHoldingAmountAfterSell(t *testing.T) {
	planner, l := setupTest(t)
	valuator := NewValuator(l)

	_, err := planner.CreateBuyOrder(100000, 1300, models.CurrencyUSD, "", "")
	assert.NoError(t, err)
	_, err = planner.CreateSellOrder("BUY1", 1310, 0.3, "", "")
	assert.NoError(t, err)

	holding, err := valuator.HoldingAmount(models.CurrencyUSD)
	assert.NoError(t, err)
	// 76.92 bought minus 22.90 sold
	assert.InDelta(t, 54.02, holding.HoldingAmount, 1e-9)
	assert.InDelta(t, 1300, holding.AvgRate, 0.1)
}

func TestHoldingAmountNoBuys(t *testing.T) {
	_, l := setupTest(t)
	valuator := NewValuator(l)

	holding, err := valuator.HoldingAmount(models.CurrencyUSD)
	assert.NoError(t, err)
	assert.Zero(t, holding.HoldingAmount)
	assert.Zero(t, holding.AvgRate)
	assert.Zero(t, holding.HoldingKRW)
}

func TestHoldingAmountIgnoresOtherCurrencies(t *testing.T) {
	planner, l := setupTest(t)
	valuator := NewValuator(l)

	_, err := planner.CreateBuyOrder(100000, 1300, models.CurrencyUSD, "", "")
	assert.NoError(t, err)
	_, err = planner.CreateBuyOrder(100000, 900, models.CurrencyJPY, "", "")
	assert.NoError(t, err)

	holding, err := valuator.HoldingAmount(models.CurrencyJPY)
	assert.NoError(t, err)
	assert.InDelta(t, 111.1111, holding.HoldingAmount, 1e-9)
	assert.InDelta(t, 900, holding.AvgRate, 0.1)
}

func TestCurrentValueDegenerateCases(t *testing.T) {
	_, l := setupTest(t)
	valuator := NewValuator(l)

	// Empty position: all zero regardless of rate.
	report := valuator.CurrentValue(1350, Holding{})
	assert.Equal(t, ValueReport{}, report)

	// No quote available: all zero regardless of position.
	report = valuator.CurrentValue(0, Holding{HoldingAmount: 76.92, AvgRate: 1300, HoldingKRW: 100000})
	assert.Equal(t, ValueReport{}, report)
}

func TestCurrentValueMarksToRate(t *testing.T) {
	_, l := setupTest(t)
	valuator := NewValuator(l)

	holding := Holding{HoldingAmount: 76.92, AvgRate: 1300.052, HoldingKRW: 100000}
	report := valuator.CurrentValue(1350, holding)

	assert.InDelta(t, 103842.0, report.CurrentValue, 1e-9)
	assert.InDelta(t, 3842.0, report.ProfitAmount, 1e-9)
	assert.InDelta(t, 3.842, report.ProfitRate, 1e-9)
}

func TestTotalProfitCountsOnlyExecuted(t *testing.T) {
	planner, l := setupTest(t)
	valuator := NewValuator(l)

	// A fresh buy generates planned rows with nonzero projected profit; none
	// of it is realized.
	_, err := planner.CreateBuyOrder(100000, 1300, models.CurrencyUSD, "", "")
	assert.NoError(t, err)

	total, err := valuator.TotalProfit()
	assert.NoError(t, err)
	assert.Zero(t, total)

	sell, err := planner.CreateSellOrder("BUY1", 1310, 0.3, "", "")
	assert.NoError(t, err)

	total, err = valuator.TotalProfit()
	assert.NoError(t, err)
	assert.InDelta(t, sell.Profit, total, 1e-9)
}

func TestCurrencyProfitFilters(t *testing.T) {
	planner, l := setupTest(t)
	valuator := NewValuator(l)

	_, err := planner.CreateBuyOrder(100000, 1300, models.CurrencyUSD, "", "")
	assert.NoError(t, err)
	_, err = planner.CreateBuyOrder(100000, 900, models.CurrencyJPY, "", "")
	assert.NoError(t, err)

	// Realize a loss on the USD position only.
	stopLoss, err := planner.CreateStopLoss("BUY1", 1250, "")
	assert.NoError(t, err)

	usd, err := valuator.CurrencyProfit(models.CurrencyUSD)
	assert.NoError(t, err)
	assert.InDelta(t, stopLoss.Profit, usd, 1e-9)

	jpy, err := valuator.CurrencyProfit(models.CurrencyJPY)
	assert.NoError(t, err)
	assert.Zero(t, jpy)
}

func TestTotalBuyAmount(t *testing.T) {
	planner, l := setupTest(t)
	valuator := NewValuator(l)

	_, err := planner.CreateBuyOrder(100000, 1300, models.CurrencyUSD, "", "")
	assert.NoError(t, err)
	_, err = planner.CreateBuyOrder(50000, 1310, models.CurrencyUSD, "", "")
	assert.NoError(t, err)

	total, err := valuator.TotalBuyAmount(models.CurrencyUSD)
	assert.NoError(t, err)
	assert.Equal(t, 150000.0, total)
}
