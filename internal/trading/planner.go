package trading

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/hichang4u/fxtrader/internal/ledger"
	"github.com/hichang4u/fxtrader/internal/models"
	"github.com/hichang4u/fxtrader/internal/policy"
)

// Planner derives the family of dependent planned orders from each buy,
// regenerates it when a buy is edited, and enforces the deletion rules.
// All multi-row mutations run inside one ledger transaction.
type Planner struct {
	logger   *zap.Logger
	ledger   *ledger.Ledger
	policies *policy.Store
}

// NewPlanner creates a planning engine over the ledger and policy store.
func NewPlanner(logger *zap.Logger, l *ledger.Ledger, policies *policy.Store) *Planner {
	return &Planner{
		logger:   logger,
		ledger:   l,
		policies: policies,
	}
}

// round rounds v to the given number of decimals, half away from zero.
func round(v float64, places int) float64 {
	pow := math.Pow10(places)
	return math.Round(v*pow) / pow
}

// today returns the fallback trade date.
func today() string {
	return time.Now().Format("2006-01-02")
}

// settingsFor resolves a currency's policy, translating a missing row into
// the typed currency error.
func (p *Planner) settingsFor(currency models.Currency) (*models.CurrencySettings, error) {
	settings, err := p.policies.Get(currency)
	if errors.Is(err, policy.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCurrency, currency)
	}
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// CreateBuyOrder records a buy and generates its planned follow-on orders:
// one planned sell per configured rate increment (the buy amount split per
// the policy's ratios), one planned stop-loss over the full amount, and one
// planned next buy at the policy's default amount. All rows are inserted as
// one unit.
func (p *Planner) CreateBuyOrder(krwAmount, rateValue float64, currency models.Currency, date, note string) (*models.Trade, error) {
	settings, err := p.settingsFor(currency)
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = today()
	}

	prec := currency.AmountPrecision()
	var buy *models.Trade

	err = p.ledger.Transaction(func(tx *ledger.Ledger) error {
		seq, err := tx.NextSeq(models.TypeBuy)
		if err != nil {
			return err
		}

		buy = &models.Trade{
			TradeID:       models.OrderID{Type: models.TypeBuy, Seq: seq}.String(),
			Seq:           seq,
			Date:          date,
			Type:          models.TypeBuy,
			Currency:      currency,
			Rate:          rateValue,
			KRWAmount:     round(krwAmount, 2),
			ForeignAmount: round(krwAmount/rateValue, prec),
			Note:          note,
		}

		rows := []*models.Trade{buy}
		rows = append(rows, plannedSells(buy, settings)...)
		rows = append(rows, plannedStopLoss(buy, settings))
		rows = append(rows, plannedNextBuy(buy, settings))
		return tx.Append(rows...)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Buy order created",
		zap.String("trade_id", buy.TradeID),
		zap.String("currency", string(currency)),
		zap.Float64("rate", rateValue),
		zap.Float64("krw_amount", buy.KRWAmount),
		zap.Int("planned_orders", len(settings.RateIncrements)+2))
	return buy, nil
}

// plannedSells builds one planned take-profit sell per rate increment,
// splitting the buy amount per the policy ratios. The projected profit is
// what a sale at the raised rate yields against the original cost basis.
func plannedSells(buy *models.Trade, settings *models.CurrencySettings) []*models.Trade {
	prec := buy.Currency.AmountPrecision()
	ratios := settings.SplitRatios()
	rows := make([]*models.Trade, 0, len(settings.RateIncrements))

	for i, increment := range settings.RateIncrements {
		sellRate := buy.Rate + increment
		sellKRW := round(buy.KRWAmount*ratios[i], 2)
		foreign := round(sellKRW/sellRate, prec)
		costBasis := round(foreign*buy.Rate, 2)

		rows = append(rows, &models.Trade{
			TradeID:       models.OrderID{Type: models.TypeSellPlanned, Seq: buy.Seq, Sub: i + 1}.String(),
			Seq:           buy.Seq,
			Sub:           i + 1,
			Date:          buy.Date,
			Type:          models.TypeSellPlanned,
			Currency:      buy.Currency,
			Rate:          sellRate,
			KRWAmount:     sellKRW,
			ForeignAmount: foreign,
			Profit:        round(sellKRW-costBasis, 2),
			Note:          fmt.Sprintf("auto-generated (split %d/%d, +%g)", i+1, len(settings.RateIncrements), increment),
			RelatedID:     buy.TradeID,
		})
	}
	return rows
}

// plannedStopLoss builds the planned stop-loss over the full buy amount. Its
// projected profit is never positive while the gap is.
func plannedStopLoss(buy *models.Trade, settings *models.CurrencySettings) *models.Trade {
	prec := buy.Currency.AmountPrecision()
	stopRate := buy.Rate - settings.StopLossGap

	return &models.Trade{
		TradeID:       models.OrderID{Type: models.TypeStopLossPlanned, Seq: buy.Seq}.String(),
		Seq:           buy.Seq,
		Date:          buy.Date,
		Type:          models.TypeStopLossPlanned,
		Currency:      buy.Currency,
		Rate:          stopRate,
		KRWAmount:     buy.KRWAmount,
		ForeignAmount: round(buy.KRWAmount/stopRate, prec),
		Profit:        round(buy.KRWAmount*(stopRate/buy.Rate)-buy.KRWAmount, 2),
		Note:          fmt.Sprintf("auto-generated (-%g)", settings.StopLossGap),
		RelatedID:     buy.TradeID,
	}
}

// plannedNextBuy builds the planned follow-up buy at the policy's default
// amount, not the original buy's amount.
func plannedNextBuy(buy *models.Trade, settings *models.CurrencySettings) *models.Trade {
	prec := buy.Currency.AmountPrecision()
	nextRate := buy.Rate - settings.BuyDropThreshold

	return &models.Trade{
		TradeID:       models.OrderID{Type: models.TypeBuyPlanned, Seq: buy.Seq}.String(),
		Seq:           buy.Seq,
		Date:          buy.Date,
		Type:          models.TypeBuyPlanned,
		Currency:      buy.Currency,
		Rate:          nextRate,
		KRWAmount:     settings.DefaultAmount,
		ForeignAmount: round(settings.DefaultAmount/nextRate, prec),
		Note:          fmt.Sprintf("auto-generated (-%g)", settings.BuyDropThreshold),
		RelatedID:     buy.TradeID,
	}
}

// findBuy resolves buyID to an executed buy row.
func (p *Planner) findBuy(buyID string) (*models.Trade, error) {
	buy, err := p.ledger.Find(buyID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBuyNotFound, buyID)
	}
	if err != nil {
		return nil, err
	}
	if buy.Type != models.TypeBuy {
		return nil, fmt.Errorf("%w: %s", ErrBuyNotFound, buyID)
	}
	return buy, nil
}

// CreateSellOrder records a partial sell against a buy. The realized profit
// is taken against the proportional KRW cost basis, so it depends on the
// rate only through the sell amount. Planned sell rows are left in place.
func (p *Planner) CreateSellOrder(buyID string, rateValue, ratio float64, date, note string) (*models.Trade, error) {
	buy, err := p.findBuy(buyID)
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = today()
	}

	prec := buy.Currency.AmountPrecision()
	sellKRW := round(buy.KRWAmount*ratio, 2)
	var sell *models.Trade

	err = p.ledger.Transaction(func(tx *ledger.Ledger) error {
		seq, err := tx.NextSeq(models.TypeSell)
		if err != nil {
			return err
		}
		sell = &models.Trade{
			TradeID:       models.OrderID{Type: models.TypeSell, Seq: seq}.String(),
			Seq:           seq,
			Date:          date,
			Type:          models.TypeSell,
			Currency:      buy.Currency,
			Rate:          rateValue,
			KRWAmount:     sellKRW,
			ForeignAmount: round(sellKRW/rateValue, prec),
			Profit:        round(sellKRW-buy.KRWAmount*ratio, 2),
			Note:          note,
			RelatedID:     buy.TradeID,
		}
		return tx.Append(sell)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Sell order created",
		zap.String("trade_id", sell.TradeID),
		zap.String("buy_id", buy.TradeID),
		zap.Float64("ratio", ratio),
		zap.Float64("profit", sell.Profit))
	return sell, nil
}

// CreateStopLoss records an executed stop-loss of a buy's full position at
// the given rate.
func (p *Planner) CreateStopLoss(buyID string, rateValue float64, note string) (*models.Trade, error) {
	buy, err := p.findBuy(buyID)
	if err != nil {
		return nil, err
	}

	var stopLoss *models.Trade
	err = p.ledger.Transaction(func(tx *ledger.Ledger) error {
		seq, err := tx.NextSeq(models.TypeStopLoss)
		if err != nil {
			return err
		}
		stopLoss = &models.Trade{
			TradeID:       models.OrderID{Type: models.TypeStopLoss, Seq: seq}.String(),
			Seq:           seq,
			Date:          today(),
			Type:          models.TypeStopLoss,
			Currency:      buy.Currency,
			Rate:          rateValue,
			KRWAmount:     buy.KRWAmount,
			ForeignAmount: buy.ForeignAmount,
			Profit:        round(buy.KRWAmount-buy.ForeignAmount*rateValue, 2),
			Note:          note,
			RelatedID:     buy.TradeID,
		}
		return tx.Append(stopLoss)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Stop loss recorded",
		zap.String("trade_id", stopLoss.TradeID),
		zap.String("buy_id", buy.TradeID),
		zap.Float64("loss", stopLoss.Profit))
	return stopLoss, nil
}

// UpdateTrade edits a buy or sell. Editing a buy drops every row whose
// RelatedID points at it, executed sells included, and regenerates the
// planned sells and stop-loss from the new values; the planned next buy is
// not regenerated. Editing a sell recomputes its profit against the current
// related buy; when that buy is gone the profit is left as it was.
func (p *Planner) UpdateTrade(tradeID, date string, rateValue, krwAmount float64, note string) (*models.Trade, error) {
	trade, err := p.ledger.Find(tradeID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTradeNotFound, tradeID)
	}
	if err != nil {
		return nil, err
	}

	switch trade.Type {
	case models.TypeBuy:
		return p.updateBuy(trade, date, rateValue, krwAmount, note)
	case models.TypeSell:
		return p.updateSell(trade, date, rateValue, krwAmount, note)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotEditable, trade.Type)
	}
}

func (p *Planner) updateBuy(buy *models.Trade, date string, rateValue, krwAmount float64, note string) (*models.Trade, error) {
	settings, err := p.settingsFor(buy.Currency)
	if err != nil {
		return nil, err
	}

	prec := buy.Currency.AmountPrecision()
	err = p.ledger.Transaction(func(tx *ledger.Ledger) error {
		if err := tx.DeleteRelated(buy.TradeID); err != nil {
			return err
		}

		buy.Date = date
		buy.Rate = rateValue
		buy.KRWAmount = round(krwAmount, 2)
		buy.ForeignAmount = round(krwAmount/rateValue, prec)
		buy.Note = note
		if err := tx.Save(buy); err != nil {
			return err
		}

		rows := plannedSells(buy, settings)
		rows = append(rows, plannedStopLoss(buy, settings))
		return tx.Append(rows...)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Buy order updated, planned orders regenerated",
		zap.String("trade_id", buy.TradeID),
		zap.Float64("rate", rateValue),
		zap.Float64("krw_amount", buy.KRWAmount))
	return buy, nil
}

func (p *Planner) updateSell(sell *models.Trade, date string, rateValue, krwAmount float64, note string) (*models.Trade, error) {
	prec := sell.Currency.AmountPrecision()

	sell.Date = date
	sell.Rate = rateValue
	sell.KRWAmount = round(krwAmount, 2)
	sell.ForeignAmount = round(krwAmount/rateValue, prec)
	sell.Note = note

	buy, err := p.ledger.Find(sell.RelatedID)
	if err == nil {
		ratio := krwAmount / buy.KRWAmount
		sell.Profit = round(krwAmount-buy.KRWAmount*ratio, 2)
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	if err := p.ledger.Save(sell); err != nil {
		return nil, err
	}

	p.logger.Info("Sell order updated",
		zap.String("trade_id", sell.TradeID),
		zap.Float64("krw_amount", sell.KRWAmount))
	return sell, nil
}

// HasRelatedSells reports whether any executed sell references the buy.
func (p *Planner) HasRelatedSells(buyID string) (bool, error) {
	return p.ledger.HasRelatedSells(buyID)
}

// DeleteTrade removes a trade. A buy with executed sells is refused; a buy
// without them takes its whole generated family with it; any other type is
// removed alone.
func (p *Planner) DeleteTrade(tradeID string) error {
	trade, err := p.ledger.Find(tradeID)
	if errors.Is(err, ledger.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrTradeNotFound, tradeID)
	}
	if err != nil {
		return err
	}

	if trade.Type == models.TypeBuy {
		hasSells, err := p.ledger.HasRelatedSells(trade.TradeID)
		if err != nil {
			return err
		}
		if hasSells {
			return fmt.Errorf("%w: %s", ErrHasRelatedSells, trade.TradeID)
		}
		if err := p.ledger.DeleteFamily(trade.TradeID); err != nil {
			return err
		}
		p.logger.Info("Buy order and related orders deleted", zap.String("trade_id", trade.TradeID))
		return nil
	}

	if err := p.ledger.DeleteOne(trade.TradeID); err != nil {
		return err
	}
	p.logger.Info("Trade deleted", zap.String("trade_id", trade.TradeID))
	return nil
}
